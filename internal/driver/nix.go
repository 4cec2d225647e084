package driver

import (
	"context"
	"fmt"
	"strings"
)

// Edition keys of the *nix families.
const (
	editionMacOS    = "macos"
	editionLinux    = "linux"
	editionRaspbian = "raspbian"
	editionDebian   = "ubuntu"
)

// MacOS installs .pkg packages with the system installer.
type MacOS struct {
	env *Env
	sh  *shell
}

func NewMacOS(env *Env) Driver {
	return &MacOS{env: env, sh: newShell(env)}
}

func (d *MacOS) Connect(ctx context.Context) error { return d.sh.connect(ctx) }
func (d *MacOS) Close() error                      { return d.sh.close() }

func (d *MacOS) Cleanup(ctx context.Context) error {
	ed, err := d.env.edition(editionMacOS)
	if err != nil {
		d.env.Log.Println("no macOS process configured, skipping clean-up")
		return nil
	}
	return d.sh.pkill(ctx, ed.Proc)
}

func (d *MacOS) Install(ctx context.Context) error {
	pkg := "~/Downloads/" + d.env.Package.Name
	if err := d.sh.upload(ctx, pkg); err != nil {
		return err
	}
	d.env.Log.Printf("installing %s ...", d.env.Package.Name)
	if err := d.sh.sudo(ctx, fmt.Sprintf("installer -allowUntrusted -pkg %s -target /", quote(pkg))); err != nil {
		return err
	}
	d.env.Log.Printf("successfully installed %s", d.env.Package.Name)
	return nil
}

// Linux unpacks a zipped player into the home directory and relaunches it.
type Linux struct {
	env *Env
	sh  *shell
}

func NewLinux(env *Env) Driver {
	return &Linux{env: env, sh: newShell(env)}
}

func (d *Linux) Connect(ctx context.Context) error { return d.sh.connect(ctx) }
func (d *Linux) Close() error                      { return d.sh.close() }

func (d *Linux) playerDir() string {
	return "~/" + strings.TrimSuffix(d.env.Package.Name, ".zip")
}

func (d *Linux) Cleanup(ctx context.Context) error {
	ed, err := d.env.edition(editionLinux)
	if err != nil {
		return err
	}
	if err := d.sh.pkill(ctx, ed.Proc); err != nil {
		return err
	}
	d.env.Log.Printf("removing %s ...", d.playerDir())
	return d.sh.exec(ctx, "rm -rf "+quote(d.playerDir()))
}

func (d *Linux) Install(ctx context.Context) error {
	ed, err := d.env.edition(editionLinux)
	if err != nil {
		return err
	}
	dir := quote(d.playerDir())
	pkg := "~/Downloads/" + d.env.Package.Name

	if err := d.sh.pkill(ctx, ed.Proc); err != nil {
		return err
	}

	d.env.Log.Printf("preparing %s ...", d.playerDir())
	if err := d.sh.exec(ctx, fmt.Sprintf("rm -rf %s ; mkdir -p %s", dir, dir)); err != nil {
		return err
	}
	d.env.Log.Println("done")

	if err := d.sh.upload(ctx, pkg); err != nil {
		return err
	}

	d.env.Log.Printf("extracting %s ...", d.env.Package.Name)
	if err := d.sh.exec(ctx, fmt.Sprintf("unzip -o %s -d %s", quote(pkg), dir)); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	d.env.Log.Printf("extracted to %s", d.playerDir())

	d.env.Log.Println("launching application")
	return d.sh.exec(ctx, fmt.Sprintf("cd %s && DISPLAY=:0 nohup ./%s >/dev/null 2>&1 &", dir, ed.App))
}

// Raspbian uploads a self-contained player binary to the desktop and runs it.
type Raspbian struct {
	env *Env
	sh  *shell
}

func NewRaspbian(env *Env) Driver {
	return &Raspbian{env: env, sh: newShell(env)}
}

func (d *Raspbian) Connect(ctx context.Context) error { return d.sh.connect(ctx) }
func (d *Raspbian) Close() error                      { return d.sh.close() }

func (d *Raspbian) Cleanup(ctx context.Context) error {
	ed, err := d.env.edition(editionRaspbian)
	if err != nil {
		return err
	}
	return d.sh.pkill(ctx, ed.Proc)
}

func (d *Raspbian) Install(ctx context.Context) error {
	ed, err := d.env.edition(editionRaspbian)
	if err != nil {
		return err
	}
	pkg := "~/Desktop/" + d.env.Package.Name

	if err := d.sh.pkill(ctx, ed.Proc); err != nil {
		return err
	}
	if err := d.sh.upload(ctx, pkg); err != nil {
		return err
	}
	err = d.sh.exec(ctx, fmt.Sprintf("chmod a+x %s ; cd ~/Desktop && DISPLAY=:0 nohup ./%s >/dev/null 2>&1 &",
		quote(pkg), quote(d.env.Package.Name)))
	if err != nil {
		return err
	}
	d.env.Log.Println("application is being launched")
	return nil
}

// Debian installs a .deb with dpkg and relaunches the player.
type Debian struct {
	env *Env
	sh  *shell
}

func NewDebian(env *Env) Driver {
	return &Debian{env: env, sh: newShell(env)}
}

func (d *Debian) Connect(ctx context.Context) error { return d.sh.connect(ctx) }
func (d *Debian) Close() error                      { return d.sh.close() }

func (d *Debian) Cleanup(ctx context.Context) error {
	ed, err := d.env.edition(editionDebian)
	if err != nil {
		return err
	}
	return d.sh.pkill(ctx, ed.Proc)
}

func (d *Debian) Install(ctx context.Context) error {
	ed, err := d.env.edition(editionDebian)
	if err != nil {
		return err
	}
	pkg := "~/Downloads/" + d.env.Package.Name

	if err := d.sh.upload(ctx, pkg); err != nil {
		return err
	}
	if err := d.sh.pkill(ctx, ed.Proc); err != nil {
		return err
	}

	d.env.Log.Println("installing application...")
	if err := d.sh.sudo(ctx, "dpkg -i "+quote(pkg)); err != nil {
		return err
	}

	d.env.Log.Println("launching application")
	return d.sh.exec(ctx, fmt.Sprintf("DISPLAY=:0 nohup %s >/dev/null 2>&1 &", ed.App))
}
