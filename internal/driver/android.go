package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/transport"
)

const editionGeneral = "general"

// Android installs .apk packages with adb and .aab bundles through bundletool.
type Android struct {
	env    *Env
	adb    *transport.ADB
	serial string
}

func NewAndroid(env *Env) Driver {
	return &Android{env: env, adb: transport.NewADB(env.Config.ADB, env.Runner)}
}

func (d *Android) Connect(ctx context.Context) error {
	d.env.Log.Println("starting adb server")
	if err := d.adb.StartServer(ctx); err != nil {
		return err
	}
	d.env.Log.Printf("connecting to %s ...", d.env.Device.Addr())
	serial, err := d.adb.Connect(ctx, d.env.Device.Addr())
	if err != nil {
		return err
	}
	d.serial = serial
	d.env.Log.Printf("connected to %s", serial)
	return nil
}

func (d *Android) Cleanup(ctx context.Context) error {
	ed, err := d.env.edition(editionGeneral)
	if err != nil {
		return err
	}
	d.env.Log.Printf("removing %s ...", ed.App)
	removed, err := d.adb.Uninstall(ctx, d.serial, ed.App)
	if err != nil {
		return err
	}
	if removed {
		d.env.Log.Printf("%s removed", ed.App)
	} else {
		d.env.Log.Printf("%s is not installed", ed.App)
	}
	return nil
}

func (d *Android) Install(ctx context.Context) error {
	switch d.env.Package.Format {
	case core.FormatAAB:
		return d.installBundle(ctx)
	default:
		d.env.Log.Printf("installing %s ...", d.env.Package.Name)
		out, err := d.adb.Install(ctx, d.serial, d.env.Package.Path)
		if err != nil {
			return err
		}
		d.env.Log.Println(out)
		return nil
	}
}

// apksPath is the derived bundle of this device. One file per device keeps
// concurrent builds apart.
func (d *Android) apksPath() string {
	return filepath.Join(d.env.Config.DownloadDir, d.env.Device.Name+".apks")
}

func (d *Android) keyPass() (string, error) {
	if d.env.Config.AABKeyPass != "" {
		return d.env.Config.AABKeyPass, nil
	}
	return d.env.secret(d.env.Config.AABKeyAlias)
}

func (d *Android) installBundle(ctx context.Context) error {
	cfg := d.env.Config
	apks := d.apksPath()
	if err := os.Remove(apks); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove stale %s: %v", core.ErrInstall, apks, err)
	}

	bundletool, err := filepath.Abs(cfg.Bundletool)
	if err != nil {
		return fmt.Errorf("%w: bundletool path: %v", core.ErrConfiguration, err)
	}
	pass, err := d.keyPass()
	if err != nil {
		return err
	}

	d.env.Log.Println("building apks from bundle ...")
	err = d.java(ctx, "-jar", bundletool, "build-apks",
		"--bundle="+d.env.Package.Path,
		"--output="+apks,
		"--overwrite",
		"--ks="+cfg.AABKey,
		"--ks-pass=pass:"+pass,
		"--ks-key-alias="+cfg.AABKeyAlias,
		"--connected-device",
		"--device-id="+d.serial,
	)
	if err != nil {
		return err
	}

	d.env.Log.Printf("installing %s ...", filepath.Base(apks))
	err = d.java(ctx, "-jar", bundletool, "install-apks",
		"--apks="+apks,
		"--device-id="+d.serial,
	)
	if err != nil {
		return err
	}
	d.env.Log.Printf("successfully installed %s", d.env.Package.Name)
	return nil
}

func (d *Android) java(ctx context.Context, args ...string) error {
	res, err := d.env.Runner.Run(ctx, d.env.Config.Java, args...)
	if err != nil {
		return fmt.Errorf("%w: bundletool: %v", core.ErrInstall, err)
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line != "" {
			d.env.Log.Println(line)
		}
	}
	if res.Failed() {
		return fmt.Errorf("%w: bundletool: %s", core.ErrInstall, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (d *Android) Close() error { return nil }
