package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
)

// ADB drives the adb CLI through a Runner.
type ADB struct {
	Path   string
	Runner core.Runner
}

// NewADB creates an adb client; path defaults to "adb" on PATH.
func NewADB(path string, runner core.Runner) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{Path: path, Runner: runner}
}

func output(res core.ProcResult) string {
	return strings.TrimSpace(res.Stdout + "\n" + res.Stderr)
}

// StartServer makes sure the local adb server is running.
func (a *ADB) StartServer(ctx context.Context) error {
	res, err := a.Runner.Run(ctx, a.Path, "start-server")
	if err != nil {
		return fmt.Errorf("%w: adb start-server: %v", core.ErrConnection, err)
	}
	if res.Failed() {
		return fmt.Errorf("%w: adb start-server: %s", core.ErrConnection, output(res))
	}
	return nil
}

// Connect attaches a network device and returns its serial (host:port).
func (a *ADB) Connect(ctx context.Context, addr string) (string, error) {
	res, err := a.Runner.Run(ctx, a.Path, "connect", addr)
	if err != nil {
		return "", fmt.Errorf("%w: adb connect: %v", core.ErrConnection, err)
	}
	out := output(res)
	// adb exits 0 on most connect failures, so the text decides.
	if strings.Contains(out, "connected to") && !strings.Contains(out, "cannot") && !strings.Contains(out, "failed") {
		return addr, nil
	}
	return "", fmt.Errorf("%w: adb connect %s: %s", core.ErrConnection, addr, out)
}

// Install installs or replaces an apk, allowing downgrades.
func (a *ADB) Install(ctx context.Context, serial, apk string) (string, error) {
	res, err := a.Runner.Run(ctx, a.Path, "-s", serial, "install", "-r", "-d", apk)
	if err != nil {
		return "", fmt.Errorf("%w: adb install: %v", core.ErrInstall, err)
	}
	out := output(res)
	if res.Failed() || !strings.Contains(out, "Success") {
		return out, fmt.Errorf("%w: adb install: %s", core.ErrInstall, out)
	}
	return out, nil
}

// Uninstall removes an application. A package that is not installed counts
// as already clean; removed reports whether anything was uninstalled.
func (a *ADB) Uninstall(ctx context.Context, serial, app string) (removed bool, err error) {
	res, err := a.Runner.Run(ctx, a.Path, "-s", serial, "uninstall", app)
	if err != nil {
		return false, fmt.Errorf("%w: adb uninstall: %v", core.ErrInstall, err)
	}
	out := output(res)
	switch {
	case strings.Contains(out, "Success"):
		return true, nil
	case strings.Contains(out, "DELETE_FAILED_INTERNAL_ERROR"),
		strings.Contains(out, "Unknown package"),
		strings.Contains(out, "not installed"):
		return false, nil
	default:
		return false, fmt.Errorf("%w: adb uninstall %s: %s", core.ErrInstall, app, out)
	}
}
