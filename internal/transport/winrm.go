package transport

import (
	"context"
	"fmt"

	"github.com/masterzen/winrm"

	"github.com/melih-ucgun/integra/internal/core"
)

// WinRMConfig holds the remote command endpoint of a Windows host.
type WinRMConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// WinRM runs commands on a Windows host.
type WinRM struct {
	client *winrm.Client
}

// DialWinRM creates a WinRM client. WinRM is stateless HTTP, so nothing is
// contacted until the first command.
func DialWinRM(cfg WinRMConfig) (*WinRM, error) {
	port := cfg.Port
	if port == 0 {
		port = 5985
	}
	endpoint := winrm.NewEndpoint(cfg.Host, port, false, false, nil, nil, nil, 0)
	client, err := winrm.NewClient(endpoint, cfg.User, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: winrm client: %v", core.ErrConnection, err)
	}
	return &WinRM{client: client}, nil
}

// Run executes cmd through cmd.exe and returns its captured output.
func (w *WinRM) Run(ctx context.Context, cmd string) (core.ProcResult, error) {
	type result struct {
		res core.ProcResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		stdout, stderr, code, err := w.client.RunWithString(cmd, "")
		done <- result{core.ProcResult{Stdout: stdout, Stderr: stderr, ExitCode: code}, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.res, fmt.Errorf("%w: winrm: %v", core.ErrConnection, r.err)
		}
		return r.res, nil
	case <-ctx.Done():
		// The remote command keeps running; WinRM has no portable abort.
		return core.ProcResult{}, ctx.Err()
	}
}
