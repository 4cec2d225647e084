package inventory

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/melih-ucgun/integra/internal/config"
	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/utils"
)

// FileName is the default device list file.
const FileName = "devices.yaml"

// Resolver maps a ptype to its driver family.
type Resolver interface {
	Family(ptype string) (string, error)
}

// Rejection records a device entry the loader refused.
type Rejection struct {
	Index  int // position in the file, zero based
	Name   string
	Reason string
}

// Registry is the validated device list.
type Registry struct {
	Devices  []core.Device
	Rejected []Rejection

	families map[string]string // device name -> family
}

// Family returns the resolved driver family of a loaded device.
func (r *Registry) Family(name string) string {
	return r.families[name]
}

// Find returns the device with the given name.
func (r *Registry) Find(name string) (core.Device, bool) {
	for _, d := range r.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return core.Device{}, false
}

// Load reads and validates the device list. Malformed entries, entries without
// a name and entries whose ptype does not resolve are rejected, never fatal.
// Only an unreadable or non-list file is an error.
func Load(path string, resolver Resolver) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}
	return Parse(data, resolver)
}

// Parse validates a YAML device list.
func Parse(data []byte, resolver Resolver) (*Registry, error) {
	reg := &Registry{families: make(map[string]string)}
	if len(strings.TrimSpace(string(data))) == 0 {
		return reg, nil
	}

	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file: %w", err)
	}

	seen := make(map[string]bool)
	for i := range nodes {
		var dev core.Device
		if err := nodes[i].Decode(&dev); err != nil {
			// Type errors still decode the remaining fields.
			reg.reject(i, strings.TrimSpace(dev.Name), fmt.Sprintf("malformed entry: %v", err))
			continue
		}
		dev.Name = strings.TrimSpace(dev.Name)
		dev.PType = strings.TrimSpace(dev.PType)

		switch {
		case dev.Name == "":
			reg.reject(i, "", "missing name")
			continue
		case !utils.IsValidDeviceName(dev.Name):
			reg.reject(i, dev.Name, "invalid name")
			continue
		case !utils.IsValidPort(dev.Port) || !utils.IsValidPort(dev.CPort):
			reg.reject(i, dev.Name, "port out of range")
			continue
		case seen[dev.Name]:
			reg.reject(i, dev.Name, "duplicate name")
			continue
		case dev.PType == "":
			reg.reject(i, dev.Name, "missing ptype")
			continue
		}

		family, err := resolver.Family(dev.PType)
		if err != nil {
			reason := err.Error()
			if errors.Is(err, core.ErrConfiguration) {
				reason = fmt.Sprintf("unknown ptype %q", dev.PType)
			}
			reg.reject(i, dev.Name, reason)
			continue
		}

		applyDefaults(&dev, family)
		seen[dev.Name] = true
		reg.families[dev.Name] = family
		reg.Devices = append(reg.Devices, dev)
	}
	return reg, nil
}

func (r *Registry) reject(i int, name, reason string) {
	r.Rejected = append(r.Rejected, Rejection{Index: i, Name: name, Reason: reason})
}

// DefaultPort returns the port a family listens on when the entry omits it.
func DefaultPort(family string) int {
	switch family {
	case config.FamilyMacOS, config.FamilyLinux, config.FamilyRaspbian, config.FamilyDebian:
		return 22
	case config.FamilyAndroid:
		return 5555
	case config.FamilyWebOSDebug:
		return 9922
	case config.FamilyWindows:
		return 445
	default:
		return 0
	}
}

func applyDefaults(dev *core.Device, family string) {
	if dev.Port == 0 {
		dev.Port = DefaultPort(family)
	}
	if dev.Edition == "" {
		dev.Edition = config.DefaultEdition
	}
	if family == config.FamilyWeb && dev.CPort == 0 {
		dev.CPort = 80
	}
	dev.Host = strings.TrimSpace(dev.Host)
}
