package core

import (
	"context"
	"fmt"
	"strings"
)

// ProcResult is the captured result of a local or remote process.
type ProcResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Failed reports a non-zero exit code.
func (r ProcResult) Failed() bool {
	return r.ExitCode != 0
}

// Runner executes local processes. Implementations must stop the process when
// ctx is cancelled. A non-zero exit code is reported in ProcResult, not as an
// error; the error is reserved for processes that could not run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (ProcResult, error)
}

// CommandLine renders a process invocation for log lines.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s %s", name, strings.Join(args, " "))
}
