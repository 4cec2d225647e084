package driver

import (
	"context"
	"fmt"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/transport"
	"github.com/melih-ucgun/integra/internal/utils"
)

// sharedHost is the SMB folder on the signage host that Tizen and webOS
// players poll for new packages.
type sharedHost struct {
	env   *Env
	share FileShare
}

func (s *sharedHost) connect(ctx context.Context) error {
	host := s.env.Config.SharedHost
	s.env.Log.Printf("connecting to %s ...", host)
	share, err := s.env.Dial.Share(ctx, transport.ShareConfig{
		Host: host,
		Path: s.env.Device.UploadDir,
	})
	if err != nil {
		return err
	}
	s.share = share

	ok, err := share.IsDir("")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %v", core.ErrConnection, share.UNC(), errNotAvailable)
	}
	s.env.Log.Printf("connected to %s", share.UNC())
	return nil
}

func (s *sharedHost) cleanup(ctx context.Context) error {
	s.env.Log.Printf("cleaning %s ...", s.share.UNC())
	n, err := s.share.Wipe("")
	if err != nil {
		return err
	}
	s.env.Log.Printf("%d entries removed", n)
	return nil
}

func (s *sharedHost) close() error {
	if s.share == nil {
		return nil
	}
	return s.share.Close()
}

// Tizen unpacks the player archive into the share.
type Tizen struct{ sharedHost }

func NewTizen(env *Env) Driver {
	return &Tizen{sharedHost{env: env}}
}

func (d *Tizen) Connect(ctx context.Context) error { return d.connect(ctx) }
func (d *Tizen) Cleanup(ctx context.Context) error { return d.cleanup(ctx) }
func (d *Tizen) Close() error                      { return d.close() }

func (d *Tizen) Install(ctx context.Context) error {
	d.env.Log.Printf("extracting %s to %s ...", d.env.Package.Name, d.share.UNC())
	n, err := utils.ExtractZip(d.env.Package.Path, d.share)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	d.env.Log.Printf("%d files extracted", n)
	return nil
}

// WebOS drops the package into the share under the name the player expects.
type WebOS struct{ sharedHost }

func NewWebOS(env *Env) Driver {
	return &WebOS{sharedHost{env: env}}
}

func (d *WebOS) Connect(ctx context.Context) error { return d.connect(ctx) }
func (d *WebOS) Cleanup(ctx context.Context) error { return d.cleanup(ctx) }
func (d *WebOS) Close() error                      { return d.close() }

func (d *WebOS) Install(ctx context.Context) error {
	const name = "Player.ipk"
	d.env.Log.Printf("copying to destination %s\\%s ...", d.share.UNC(), name)
	if err := d.share.CopyFile(ctx, d.env.Package.Path, name); err != nil {
		return err
	}
	d.env.Log.Println("done")
	return nil
}
