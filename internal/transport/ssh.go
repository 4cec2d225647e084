package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/melih-ucgun/integra/internal/core"
)

// SSHConfig holds connection information for a remote shell.
type SSHConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyPath  string
	Timeout  time.Duration
}

// SSH is a remote shell session with SFTP file transfer.
type SSH struct {
	client *ssh.Client
	cfg    SSHConfig
}

// DialSSH opens an SSH connection. The connection is registered with the
// abort handles carried by ctx.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSH, error) {
	var authMethods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read ssh key: %v", core.ErrConnection, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse ssh key: %v", core.ErrConnection, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		authMethods = append(authMethods,
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = cfg.Password
				}
				return answers, nil
			}),
		)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	sshConfig := &ssh.ClientConfig{
		User: cfg.User,
		Auth: authMethods,
		// Signage players and kiosks are re-imaged often; host keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh dial %s: %v", core.ErrConnection, addr, err)
	}
	core.Track(ctx, conn)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake %s: %v", core.ErrConnection, addr, err)
	}
	return &SSH{client: ssh.NewClient(c, chans, reqs), cfg: cfg}, nil
}

func (t *SSH) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// Run executes cmd and streams its combined output line by line to out.
// A non-zero exit status is returned as an error.
func (t *SSH) Run(ctx context.Context, cmd string, out func(string)) error {
	return t.run(ctx, cmd, "", out)
}

// RunWithSecret runs cmd under sudo and feeds secret on stdin, so the
// password never appears in the process list or shell history.
func (t *SSH) RunWithSecret(ctx context.Context, cmd, secret string, out func(string)) error {
	return t.run(ctx, "sudo -S -p '' "+cmd, secret+"\n", out)
}

func (t *SSH) run(ctx context.Context, cmd, stdin string, out func(string)) error {
	session, err := t.client.NewSession()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConnection, err)
	}
	defer session.Close()

	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw
	if stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if out != nil {
				out(strings.TrimRight(scanner.Text(), "\r"))
			}
		}
		// Keep draining so the session never blocks on a long line.
		io.Copy(io.Discard, pr)
	}()

	if err := session.Start(cmd); err != nil {
		pw.Close()
		<-drained
		return err
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- session.Wait() }()

	select {
	case err = <-waitErr:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		err = ctx.Err()
	}
	pw.Close()
	<-drained

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("exit status %d", exitErr.ExitStatus())
	}
	return err
}

// Upload copies a local file to remotePath over SFTP, creating parent
// directories. A leading "~/" is resolved against the login directory.
func (t *SSH) Upload(ctx context.Context, localPath, remotePath string) error {
	remotePath = strings.TrimPrefix(remotePath, "~/")

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	defer src.Close()

	client, err := sftp.NewClient(t.client)
	if err != nil {
		return fmt.Errorf("%w: sftp: %v", core.ErrTransfer, err)
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", core.ErrTransfer, dir, err)
		}
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", core.ErrTransfer, remotePath, err)
	}
	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: upload %s: %v", core.ErrTransfer, remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	return ctx.Err()
}
