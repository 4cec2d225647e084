package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/transport"
)

// shell is the SSH helper shared by the *nix families and remote web targets.
type shell struct {
	env    *Env
	sess   Shell
	secret string
}

func newShell(env *Env) *shell {
	return &shell{env: env}
}

func (s *shell) connect(ctx context.Context) error {
	dev := s.env.Device
	s.env.Log.Printf("connecting to %s ...", dev.Addr())

	// Key auth makes the password optional; sudo still needs it.
	secret, err := s.env.secret(dev.Username)
	if err != nil && s.env.Config.SSHKeyPath == "" {
		s.env.Log.Println("failed to connect")
		return err
	}
	s.secret = secret

	sess, err := s.env.Dial.SSH(ctx, transport.SSHConfig{
		Host:     dev.Host,
		Port:     dev.Port,
		User:     dev.Username,
		Password: secret,
		KeyPath:  s.env.Config.SSHKeyPath,
	})
	if err != nil {
		s.env.Log.Println("failed to connect")
		return err
	}
	s.sess = sess
	s.env.Log.Printf("connected to %s via SSH", dev.Name)
	return nil
}

// exec runs cmd and logs every output line.
func (s *shell) exec(ctx context.Context, cmd string) error {
	if err := s.sess.Run(ctx, cmd, s.env.Log.Writer()); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrInstall, cmd, err)
	}
	return nil
}

// sudo runs cmd under sudo with the account secret piped on stdin.
func (s *shell) sudo(ctx context.Context, cmd string) error {
	if s.secret == "" {
		return fmt.Errorf("%w: %w: sudo needs the password of %s", core.ErrConnection, core.ErrSecretNotFound, s.env.Device.Username)
	}
	if err := s.sess.RunWithSecret(ctx, cmd, s.secret, s.env.Log.Writer()); err != nil {
		return fmt.Errorf("%w: sudo %s: %v", core.ErrInstall, cmd, err)
	}
	return nil
}

// upload copies the package to remote.
func (s *shell) upload(ctx context.Context, remote string) error {
	s.env.Log.Printf("copying to destination %s ...", remote)
	if err := s.sess.Upload(ctx, s.env.Package.Path, remote); err != nil {
		return err
	}
	s.env.Log.Println("done")
	return nil
}

// pkill stops a process by name. No matching process is not an error.
func (s *shell) pkill(ctx context.Context, proc string) error {
	if proc == "" {
		return nil
	}
	s.env.Log.Println("closing previous version")
	return s.exec(ctx, fmt.Sprintf("pkill %s || true", proc))
}

func (s *shell) close() error {
	if s.sess == nil {
		return nil
	}
	return s.sess.Close()
}

// quote single-quotes p for a POSIX shell. A leading "~/" stays unquoted so
// the shell still expands it.
func quote(p string) string {
	prefix := ""
	if strings.HasPrefix(p, "~/") {
		prefix, p = "~/", p[2:]
	}
	return prefix + "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
