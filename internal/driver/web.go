package driver

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/transport"
	"github.com/melih-ucgun/integra/internal/utils"
)

// Web serves a static bundle from an nginx container. The bundle lives on
// the docker host: local disk, or over SSH when the device is remote.
type Web struct {
	env    *Env
	docker ContainerRuntime
	sh     *shell
}

func NewWeb(env *Env) Driver {
	return &Web{env: env, sh: newShell(env)}
}

func (d *Web) dest() string {
	return d.env.Device.UploadDir
}

func (d *Web) Connect(ctx context.Context) error {
	dev := d.env.Device
	if dev.UploadDir == "" {
		return fmt.Errorf("%w: %s has no upload_dir", core.ErrConfiguration, dev.Name)
	}
	d.env.Log.Printf("connecting to docker daemon at tcp://%s:%d", dev.Host, d.env.Config.DockerPort)
	docker, err := d.env.Dial.Docker(ctx, dev.Host, d.env.Config.DockerPort)
	if err != nil {
		return err
	}
	d.docker = docker
	d.env.Log.Println("daemon present")

	id, err := docker.RemoveIfExists(ctx, dev.Name)
	switch {
	case err != nil:
		d.env.Log.Println(err.Error())
	case id != "":
		d.env.Log.Printf("removed expired container %s", id)
	}

	if dev.Remote {
		return d.sh.connect(ctx)
	}
	return nil
}

func (d *Web) Cleanup(ctx context.Context) error {
	dest := d.dest()
	d.env.Log.Printf("preparing %s ...", dest)
	if d.env.Device.Remote {
		q := quote(dest)
		if err := d.sh.exec(ctx, fmt.Sprintf("rm -rf %s ; mkdir -p %s", q, q)); err != nil {
			return err
		}
	} else {
		if err := os.RemoveAll(dest); err != nil {
			return err
		}
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}
	}
	d.env.Log.Println("done")
	return nil
}

func (d *Web) Install(ctx context.Context) error {
	dest := d.dest()
	d.env.Log.Printf("extracting %s ...", d.env.Package.Name)
	if d.env.Device.Remote {
		rpkg := path.Join(dest, d.env.Package.Name)
		if err := d.sh.exec(ctx, "mkdir -p "+quote(dest)); err != nil {
			return err
		}
		if err := d.sh.upload(ctx, rpkg); err != nil {
			return err
		}
		if err := d.sh.exec(ctx, fmt.Sprintf("unzip -o %s -d %s", quote(rpkg), quote(dest))); err != nil {
			return err
		}
	} else {
		abs, err := filepath.Abs(dest)
		if err != nil {
			return err
		}
		dest = abs
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("%w: %v", core.ErrTransfer, err)
		}
		if _, err := utils.ExtractZip(d.env.Package.Path, utils.DirTarget(dest)); err != nil {
			return fmt.Errorf("%w: %v", core.ErrTransfer, err)
		}
	}
	d.env.Log.Printf("extracted to %s", dest)

	d.env.Log.Println("running docker container...")
	id, err := d.docker.RunWeb(ctx, transport.WebContainer{
		Name:     d.env.Device.Name,
		Image:    d.env.Config.WebImage,
		HostPort: d.env.Device.CPort,
		HTMLDir:  dest,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInstall, err)
	}
	d.env.Log.Printf("%s deployed", id)
	return nil
}

func (d *Web) Close() error {
	err := d.sh.close()
	if d.docker != nil {
		if cerr := d.docker.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
