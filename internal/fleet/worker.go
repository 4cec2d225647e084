// Package fleet runs deployments: a Worker deploys one device, the Foreman
// runs batches of them on a bounded pool.
package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/melih-ucgun/integra/internal/catalog"
	"github.com/melih-ucgun/integra/internal/config"
	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/credentials"
	"github.com/melih-ucgun/integra/internal/driver"
	"github.com/melih-ucgun/integra/internal/logsink"
)

// Deployer deploys one device and always returns a terminal outcome.
type Deployer interface {
	Deploy(ctx context.Context, dev core.Device) core.Outcome
}

// Worker resolves the package for a device and runs its driver.
type Worker struct {
	Catalog catalog.Catalog
	Drivers *driver.Registry
	Config  *config.Config
	Secrets credentials.Store
	Runner  core.Runner
	Dial    driver.Dialers
	Sink    *logsink.Sink
}

// Deploy never returns an error or panics: every failure degrades the
// outcome of this device only. It logs to the logger carried by ctx when
// there is one.
func (w *Worker) Deploy(ctx context.Context, dev core.Device) (out core.Outcome) {
	log, ok := logsink.FromContext(ctx)
	if !ok {
		log = w.Sink.Device(dev.Name)
	}
	out = core.Outcome{Device: dev.Name, Started: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("worker panic: %v", r)
			log.Println(out.Err.Error())
		}
		if out.Err != nil {
			log.Failed()
			out.Status = core.StatusFailed
		} else {
			out.Status = core.StatusSucceeded
		}
		out.Finished = time.Now()
		out.Lines = log.Lines()
	}()

	out.Err = w.deploy(ctx, dev, log)
	return out
}

func (w *Worker) deploy(ctx context.Context, dev core.Device, log *logsink.Logger) error {
	fail := func(err error) error {
		log.Println(err.Error())
		return err
	}

	mask, err := w.Config.Mask(dev.PType)
	if err != nil {
		return fail(err)
	}

	found, err := w.Catalog.Search(ctx, dev, mask)
	if err != nil {
		return fail(err)
	}
	if len(found) == 0 {
		log.Printf("%s not found", dev.PType)
		return fmt.Errorf("%w: %s", core.ErrPackageNotFound, dev.PType)
	}
	log.Printf("found %s", found[0].Name)

	path, err := w.Catalog.Fetch(ctx, found[0])
	if err != nil {
		return fail(err)
	}

	env := &driver.Env{
		Device:  dev,
		Package: core.NewPackage(found[0].Name, path),
		Config:  w.Config,
		Secrets: w.Secrets,
		Log:     log,
		Runner:  w.Runner,
		Dial:    w.Dial,
	}
	d, family, err := w.Drivers.New(env)
	if err != nil {
		return fail(err)
	}
	log.Printf("deploying %s with the %s driver", env.Package.Name, family)

	return driver.Deploy(ctx, d, dev, log)
}
