package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
)

// signageApp is the application id prefix of debug signage builds.
const signageApp = "com.lg.app.signage.dev"

// WebOSDebug installs debug builds through the webOS developer CLI.
type WebOSDebug struct {
	env *Env
	aid string
}

func NewWebOSDebug(env *Env) Driver {
	return &WebOSDebug{env: env}
}

func (d *WebOSDebug) ares(ctx context.Context, tool string, args ...string) (core.ProcResult, error) {
	name := "ares-" + tool
	if dir := d.env.Config.AresDir; dir != "" {
		name = filepath.Join(dir, name)
	}
	res, err := d.env.Runner.Run(ctx, name, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func (d *WebOSDebug) logOutput(s string) {
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line != "" {
			d.env.Log.Println(line)
		}
	}
}

// resolve looks up the installed signage application.
func (d *WebOSDebug) resolve(ctx context.Context) (string, error) {
	res, err := d.ares(ctx, "install", "--device", d.env.Device.Name, "--list")
	if err != nil {
		return "", err
	}
	if res.Failed() {
		d.logOutput(res.Stderr)
		return "", nil
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); strings.Contains(line, signageApp) {
			d.env.Log.Printf("found %s", line)
			return line, nil
		}
	}
	d.env.Log.Println("no target application found")
	return "", nil
}

func (d *WebOSDebug) Connect(ctx context.Context) error {
	dev := d.env.Device
	d.env.Log.Printf("setting up %s...", dev.Name)

	phrase, err := d.env.secret(dev.Name)
	if err != nil {
		return err
	}
	info := fmt.Sprintf("{'name':'%s','host':'%s','port':'%d','username':'%s','description':'%s','privatekey':'%s','passphrase':'%s'}",
		dev.Name, dev.Host, dev.Port, dev.Username, dev.Description, dev.Name, phrase)

	res, err := d.ares(ctx, "setup-device", "--add", dev.Name, "--info", info)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConnection, err)
	}
	// Re-adding a known device fails; the existing entry is still usable.
	if !res.Failed() {
		d.logOutput(res.Stdout)
	}

	aid, err := d.resolve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConnection, err)
	}
	d.aid = aid
	return nil
}

func (d *WebOSDebug) Cleanup(ctx context.Context) error {
	if d.aid == "" {
		d.env.Log.Println("previous version not found, skipping clean-up")
		return nil
	}
	name := d.env.Device.Name

	res, err := d.ares(ctx, "launch", "--device", name, "--close", d.aid)
	if err != nil {
		return err
	}
	if res.Failed() {
		d.logOutput(res.Stderr)
	} else {
		d.logOutput(res.Stdout)
	}

	res, err = d.ares(ctx, "install", "--device", name, "--remove", d.aid)
	if err != nil {
		return err
	}
	if res.Failed() {
		d.logOutput(res.Stderr)
		return fmt.Errorf("remove %s failed", d.aid)
	}
	d.logOutput(res.Stdout)
	d.env.Log.Println("application closed and removed")
	return nil
}

func (d *WebOSDebug) Install(ctx context.Context) error {
	name := d.env.Device.Name
	d.env.Log.Printf("installing %s ...", d.env.Package.Name)
	res, err := d.ares(ctx, "install", "--device", name, d.env.Package.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInstall, err)
	}
	if res.Failed() {
		d.env.Log.Println("installation failed")
		d.logOutput(res.Stderr)
		return fmt.Errorf("%w: ares-install exited with %d", core.ErrInstall, res.ExitCode)
	}
	d.env.Log.Println("installation successful")

	if d.aid, err = d.resolve(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInstall, err)
	}
	if d.aid == "" {
		return fmt.Errorf("%w: %s not installed", core.ErrInstall, signageApp)
	}

	res, err = d.ares(ctx, "launch", "--device", name, d.aid)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInstall, err)
	}
	if res.Failed() {
		d.logOutput(res.Stderr)
		return fmt.Errorf("%w: launch %s failed", core.ErrInstall, d.aid)
	}
	d.logOutput(res.Stdout)
	return nil
}

func (d *WebOSDebug) Close() error { return nil }
