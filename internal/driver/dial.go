package driver

import (
	"context"
	"io"
	"os"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/transport"
)

// Shell is a remote shell session with file upload.
type Shell interface {
	Run(ctx context.Context, cmd string, out func(string)) error
	RunWithSecret(ctx context.Context, cmd, secret string, out func(string)) error
	Upload(ctx context.Context, localPath, remotePath string) error
	Close() error
}

// FileShare is a mounted network share rooted at a working directory.
type FileShare interface {
	UNC() string
	IsDir(name string) (bool, error)
	Wipe(dir string) (int, error)
	MkdirAll(name string) error
	Create(name string, mode os.FileMode) (io.WriteCloser, error)
	CopyFile(ctx context.Context, localPath, name string) error
	Close() error
}

// RemoteExec runs a command on a Windows host.
type RemoteExec interface {
	Run(ctx context.Context, cmd string) (core.ProcResult, error)
}

// ContainerRuntime is a docker daemon session.
type ContainerRuntime interface {
	RemoveIfExists(ctx context.Context, name string) (string, error)
	RunWeb(ctx context.Context, w transport.WebContainer) (string, error)
	Close() error
}

// Dialers open transport sessions. Tests replace them with fakes.
type Dialers struct {
	SSH    func(ctx context.Context, cfg transport.SSHConfig) (Shell, error)
	Share  func(ctx context.Context, cfg transport.ShareConfig) (FileShare, error)
	WinRM  func(cfg transport.WinRMConfig) (RemoteExec, error)
	Docker func(ctx context.Context, host string, port int) (ContainerRuntime, error)
}

// DefaultDialers returns dialers backed by the real transports.
func DefaultDialers() Dialers {
	return Dialers{
		SSH: func(ctx context.Context, cfg transport.SSHConfig) (Shell, error) {
			c, err := transport.DialSSH(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Share: func(ctx context.Context, cfg transport.ShareConfig) (FileShare, error) {
			c, err := transport.DialShare(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		WinRM: func(cfg transport.WinRMConfig) (RemoteExec, error) {
			c, err := transport.DialWinRM(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Docker: func(ctx context.Context, host string, port int) (ContainerRuntime, error) {
			c, err := transport.DialDocker(ctx, host, port)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}
