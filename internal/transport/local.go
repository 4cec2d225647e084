package transport

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-cmd/cmd"

	"github.com/melih-ucgun/integra/internal/core"
)

// LocalRunner runs processes on the control machine (adb, bundletool, the
// ares CLI). It implements core.Runner.
type LocalRunner struct {
	// Dir is the working directory of started processes, empty for the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// NewLocalRunner creates a runner inheriting the current environment.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run starts name with args and waits for it. The process group is killed
// when ctx is done or when the abort handles carried by ctx are closed.
func (r *LocalRunner) Run(ctx context.Context, name string, args ...string) (core.ProcResult, error) {
	c := cmd.NewCmdOptions(cmd.Options{Buffered: true}, name, args...)
	c.Dir = r.Dir
	if len(r.Env) > 0 {
		c.Env = append(os.Environ(), r.Env...)
	}

	statusChan := c.Start()
	core.Track(ctx, core.CloserFunc(c.Stop))

	var status cmd.Status
	select {
	case status = <-statusChan:
	case <-ctx.Done():
		_ = c.Stop()
		<-statusChan
		return core.ProcResult{ExitCode: -1}, ctx.Err()
	}

	res := core.ProcResult{
		Stdout:   strings.Join(status.Stdout, "\n"),
		Stderr:   strings.Join(status.Stderr, "\n"),
		ExitCode: status.Exit,
	}
	if status.Error != nil {
		return res, fmt.Errorf("%s: %w", core.CommandLine(name, args...), status.Error)
	}
	if !status.Complete {
		// Stopped from outside, e.g. by the abort handles.
		return res, fmt.Errorf("%s: process was terminated", name)
	}
	return res, nil
}
