package inventory

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/melih-ucgun/integra/internal/core"
)

// Selector is a compiled device selection expression, e.g.
//
//	ptype == "win64" && host startsWith "10.0."
type Selector struct {
	program *vm.Program
}

func selectorEnv(d core.Device, family string) map[string]any {
	return map[string]any{
		"name":    d.Name,
		"ptype":   d.PType,
		"edition": d.Edition,
		"host":    d.Host,
		"port":    d.Port,
		"family":  family,
		"remote":  d.Remote,
		"cleanup": d.Cleanup,
	}
}

// CompileSelector compiles a boolean expression over the device attributes
// name, ptype, edition, host, port, family, remote and cleanup.
func CompileSelector(condition string) (*Selector, error) {
	program, err := expr.Compile(condition, expr.Env(selectorEnv(core.Device{}, "")), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid selector '%s': %v", condition, err)
	}
	return &Selector{program: program}, nil
}

// Match evaluates the selector for one device.
func (s *Selector) Match(d core.Device, family string) (bool, error) {
	out, err := expr.Run(s.program, selectorEnv(d, family))
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %v", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("selector must return a boolean, got %T", out)
	}
	return result, nil
}

// Select sets Selected on every device matching condition and clears it on
// the rest. An empty condition keeps the flags from the file.
func (r *Registry) Select(condition string) error {
	if condition == "" {
		return nil
	}
	sel, err := CompileSelector(condition)
	if err != nil {
		return err
	}
	for i := range r.Devices {
		ok, err := sel.Match(r.Devices[i], r.families[r.Devices[i].Name])
		if err != nil {
			return fmt.Errorf("device %s: %w", r.Devices[i].Name, err)
		}
		r.Devices[i].Selected = ok
	}
	return nil
}

// SelectNames marks exactly the named devices as selected.
func (r *Registry) SelectNames(names ...string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for i := range r.Devices {
		r.Devices[i].Selected = want[r.Devices[i].Name]
		delete(want, r.Devices[i].Name)
	}
	for n := range want {
		return fmt.Errorf("unknown device %q", n)
	}
	return nil
}
