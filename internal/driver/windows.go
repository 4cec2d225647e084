package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/transport"
)

const editionWindows = "windows"

// Windows copies the installer over SMB and runs it silently over WinRM.
type Windows struct {
	env   *Env
	share FileShare
	exec  RemoteExec
}

func NewWindows(env *Env) Driver {
	return &Windows{env: env}
}

func (d *Windows) Connect(ctx context.Context) error {
	dev := d.env.Device
	d.env.Log.Printf("connecting to %s ...", dev.Addr())

	password, err := d.env.secret(dev.Username)
	if err != nil {
		return err
	}

	share, err := d.env.Dial.Share(ctx, transport.ShareConfig{
		Host:     dev.Host,
		Port:     dev.Port,
		User:     dev.Username,
		Password: password,
		Path:     dev.UploadDir,
	})
	if err != nil {
		return err
	}
	d.share = share

	exec, err := d.env.Dial.WinRM(transport.WinRMConfig{
		Host:     dev.Host,
		Port:     d.env.Config.WinRMPort,
		User:     dev.Username,
		Password: password,
	})
	if err != nil {
		return err
	}
	d.exec = exec

	ok, err := share.IsDir("")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %v", core.ErrConnection, share.UNC(), errNotAvailable)
	}
	d.env.Log.Printf("connected to %s", share.UNC())
	return nil
}

func (d *Windows) Cleanup(ctx context.Context) error {
	ed, err := d.env.edition(editionWindows)
	if err != nil || ed.Proc == "" {
		d.env.Log.Println("no windows process configured, skipping clean-up")
		return nil
	}
	d.env.Log.Println("closing previous version")
	res, err := d.exec.Run(ctx, fmt.Sprintf("taskkill /F /IM %s /T", ed.Proc))
	if err != nil {
		return err
	}
	// 128: no such process.
	if res.Failed() && res.ExitCode != 128 {
		return fmt.Errorf("taskkill %s: %s", ed.Proc, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (d *Windows) Install(ctx context.Context) error {
	pkg := d.env.Package.Name
	d.env.Log.Printf("copying to destination %s\\%s ...", d.share.UNC(), pkg)
	if err := d.share.CopyFile(ctx, d.env.Package.Path, pkg); err != nil {
		return err
	}
	d.env.Log.Println("done")

	dir := strings.Trim(strings.ReplaceAll(d.env.Device.UploadDir, "/", `\`), `\`)
	cmd := fmt.Sprintf(`C:\%s\%s /VERYSILENT /SUPPRESSMSGBOXES /NOCANCEL /CURRENTUSER /LOWESTPRIVILEGES=true`, dir, pkg)
	d.env.Log.Printf("installing %s ...", pkg)
	res, err := d.exec.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.Failed() {
		d.env.Log.Println(strings.TrimSpace(res.Stderr))
		return fmt.Errorf("%w: installer exited with %d", core.ErrInstall, res.ExitCode)
	}
	d.env.Log.Printf("successfully installed %s", pkg)
	return nil
}

func (d *Windows) Close() error {
	if d.share == nil {
		return nil
	}
	return d.share.Close()
}
