// Package driver implements the connect, cleanup and install protocol for
// every device family.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/melih-ucgun/integra/internal/config"
	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/credentials"
	"github.com/melih-ucgun/integra/internal/logsink"
)

// Driver deploys a package to one device.
type Driver interface {
	// Connect opens the sessions the family needs.
	Connect(ctx context.Context) error
	// Cleanup is best-effort teardown before installing. Already clean is
	// success.
	Cleanup(ctx context.Context) error
	// Install transfers the package and triggers installation or launch.
	Install(ctx context.Context) error
	// Close releases whatever Connect opened. It is safe after a failed Connect.
	Close() error
}

// Env carries everything a driver needs for one deployment attempt.
type Env struct {
	Device  core.Device
	Package core.Package
	Config  *config.Config
	Secrets credentials.Store
	Log     *logsink.Logger
	Runner  core.Runner
	Dial    Dialers
}

// secret looks up the secret of an account. A missing secret is a
// connection failure.
func (e *Env) secret(account string) (string, error) {
	if e.Secrets == nil {
		return "", fmt.Errorf("%w: %w: %s", core.ErrConnection, core.ErrSecretNotFound, account)
	}
	s, err := e.Secrets.Secret(account)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrConnection, err)
	}
	return s, nil
}

// edition resolves the edition entry of the device for an OS family key.
func (e *Env) edition(family string) (core.Edition, error) {
	return e.Config.Edition(e.Device.Edition, family)
}

// Deploy runs the fixed protocol: connect, optional cleanup, install. Cleanup
// failures are logged and do not gate installation. Exactly one terminal
// marker is written to log, whatever step fails.
func Deploy(ctx context.Context, d Driver, dev core.Device, log *logsink.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver panic: %v", r)
			log.Println(err.Error())
		}
		if cerr := d.Close(); cerr != nil {
			slog.Debug("driver close", "device", dev.Name, "error", cerr)
		}
		if err != nil {
			log.Failed()
		} else {
			log.Succeeded()
		}
	}()

	if err := d.Connect(ctx); err != nil {
		log.Println(err.Error())
		return err
	}
	if err := ctx.Err(); err != nil {
		log.Println("deployment interrupted")
		return err
	}

	if dev.Cleanup {
		if err := d.Cleanup(ctx); err != nil {
			log.Printf("clean-up failed: %v", err)
		}
		if err := ctx.Err(); err != nil {
			log.Println("deployment interrupted")
			return err
		}
	}

	if err := d.Install(ctx); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

// Constructor builds a driver for one attempt.
type Constructor func(env *Env) Driver

// Resolver maps a ptype to its driver family.
type Resolver interface {
	Family(ptype string) (string, error)
}

// Registry maps driver families to constructors. Selection depends on the
// ptype alone.
type Registry struct {
	resolver Resolver
	ctors    map[string]Constructor
}

// NewRegistry creates a registry with every built-in family.
func NewRegistry(resolver Resolver) *Registry {
	r := &Registry{resolver: resolver, ctors: make(map[string]Constructor)}
	r.Register(config.FamilyWindows, NewWindows)
	r.Register(config.FamilyMacOS, NewMacOS)
	r.Register(config.FamilyLinux, NewLinux)
	r.Register(config.FamilyRaspbian, NewRaspbian)
	r.Register(config.FamilyDebian, NewDebian)
	r.Register(config.FamilyAndroid, NewAndroid)
	r.Register(config.FamilyTizen, NewTizen)
	r.Register(config.FamilyWebOS, NewWebOS)
	r.Register(config.FamilyWebOSDebug, NewWebOSDebug)
	r.Register(config.FamilyWeb, NewWeb)
	return r
}

// Register sets the constructor of a family, replacing any previous one.
func (r *Registry) Register(family string, c Constructor) {
	r.ctors[family] = c
}

// Select returns the family deploying ptype.
func (r *Registry) Select(ptype string) (string, error) {
	family, err := r.resolver.Family(ptype)
	if err != nil {
		return "", err
	}
	if _, ok := r.ctors[family]; !ok {
		return "", fmt.Errorf("%w: no driver for family %q", core.ErrConfiguration, family)
	}
	return family, nil
}

// New builds the driver for env.Device.
func (r *Registry) New(env *Env) (Driver, string, error) {
	family, err := r.Select(env.Device.PType)
	if err != nil {
		return nil, "", err
	}
	return r.ctors[family](env), family, nil
}

// errNotAvailable reports a missing remote working directory.
var errNotAvailable = errors.New("is not available")
