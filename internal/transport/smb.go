package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/melih-ucgun/integra/internal/core"
)

// ShareConfig describes an SMB share. Path is UNC-like without the host,
// e.g. `deploy\player`: its first element names the share.
type ShareConfig struct {
	Host     string
	Port     int
	User     string // empty for a guest session
	Password string
	Path     string
	Timeout  time.Duration
}

// SplitSharePath splits `share\sub\dir` (or with forward slashes) into the
// share name and the directory inside it.
func SplitSharePath(p string) (share, dir string) {
	p = strings.Trim(strings.ReplaceAll(p, "/", `\`), `\`)
	share, dir, _ = strings.Cut(p, `\`)
	return share, dir
}

// Share is a mounted SMB share rooted at the configured directory.
type Share struct {
	session *smb2.Session
	fs      *smb2.Share
	root    string
	unc     string
}

// DialShare establishes an SMB session and mounts the share named by the
// first element of cfg.Path.
func DialShare(ctx context.Context, cfg ShareConfig) (*Share, error) {
	shareName, root := SplitSharePath(cfg.Path)
	if shareName == "" {
		return nil, fmt.Errorf("%w: empty share path", core.ErrConfiguration)
	}
	port := cfg.Port
	if port == 0 {
		port = 445
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: smb dial %s: %v", core.ErrConnection, addr, err)
	}
	core.Track(ctx, conn)

	user := cfg.User
	if user == "" {
		user = "guest"
	}
	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{User: user, Password: cfg.Password},
	}
	session, err := dialer.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: smb session %s: %v", core.ErrConnection, addr, err)
	}

	fs, err := session.Mount(shareName)
	if err != nil {
		session.Logoff()
		return nil, fmt.Errorf("%w: mount %s: %v", core.ErrConnection, shareName, err)
	}

	unc := `\\` + cfg.Host + `\` + shareName
	if root != "" {
		unc += `\` + root
	}
	return &Share{session: session, fs: fs.WithContext(ctx), root: root, unc: unc}, nil
}

// UNC returns the `\\host\share\dir` form of the root directory.
func (s *Share) UNC() string {
	return s.unc
}

func (s *Share) path(name string) string {
	name = strings.Trim(strings.ReplaceAll(name, "/", `\`), `\`)
	switch {
	case s.root == "":
		return name
	case name == "":
		return s.root
	default:
		return s.root + `\` + name
	}
}

// IsDir reports whether name, relative to the root, is a directory. An empty
// name checks the root itself.
func (s *Share) IsDir(name string) (bool, error) {
	p := s.path(name)
	if p == "" {
		return true, nil
	}
	info, err := s.fs.Stat(p)
	if errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Wipe removes every entry below dir and keeps dir itself.
func (s *Share) Wipe(dir string) (int, error) {
	p := s.path(dir)
	entries, err := s.fs.ReadDir(p)
	if err != nil {
		return 0, fmt.Errorf("%w: list %s: %v", core.ErrTransfer, p, err)
	}
	removed := 0
	for _, e := range entries {
		child := e.Name()
		if p != "" {
			child = p + `\` + child
		}
		if e.IsDir() {
			err = s.fs.RemoveAll(child)
		} else {
			err = s.fs.Remove(child)
		}
		if err != nil {
			return removed, fmt.Errorf("%w: remove %s: %v", core.ErrTransfer, child, err)
		}
		removed++
	}
	return removed, nil
}

// MkdirAll creates name and its parents below the root.
func (s *Share) MkdirAll(name string) error {
	return s.fs.MkdirAll(s.path(name), 0755)
}

// Create opens name below the root for writing, truncating it.
func (s *Share) Create(name string, _ os.FileMode) (io.WriteCloser, error) {
	return s.fs.Create(s.path(name))
}

// CopyFile uploads a local file to name below the root.
func (s *Share) CopyFile(ctx context.Context, localPath, name string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	defer src.Close()

	dst, err := s.fs.WithContext(ctx).Create(s.path(name))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", core.ErrTransfer, name, err)
	}
	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: copy %s: %v", core.ErrTransfer, name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	return nil
}

func (s *Share) Close() error {
	err := s.fs.Umount()
	if lerr := s.session.Logoff(); err == nil {
		err = lerr
	}
	return err
}
