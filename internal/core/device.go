package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Device is one member of the fleet as described in devices.yaml.
type Device struct {
	Name        string `yaml:"name"`
	PType       string `yaml:"ptype"`
	Edition     string `yaml:"edition"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	UploadDir   string `yaml:"upload_dir"`
	CPort       int    `yaml:"cport"`
	Description string `yaml:"description"`
	Remote      bool   `yaml:"remote"`
	Cleanup     bool   `yaml:"cleanup"`
	Selected    bool   `yaml:"selected"`
}

// Addr returns host:port.
func (d Device) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Package formats, derived from the file extension.
const (
	FormatExe     = "exe"
	FormatAPK     = "apk"
	FormatAAB     = "aab"
	FormatZip     = "zip"
	FormatIPK     = "ipk"
	FormatDeb     = "deb"
	FormatPkg     = "pkg"
	FormatUnknown = "unknown"
)

// Package is a downloaded artifact. Drivers treat it as read-only.
type Package struct {
	Name   string // file name
	Path   string // local path under the download directory
	Format string
}

// NewPackage builds a Package for a local file. An empty name defaults to
// the base name of path.
func NewPackage(name, path string) Package {
	if name == "" {
		name = filepath.Base(path)
	}
	return Package{Name: name, Path: path, Format: FormatOf(name)}
}

// FormatOf infers the package format from a file name.
func FormatOf(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case FormatExe, FormatAPK, FormatAAB, FormatZip, FormatIPK, FormatDeb, FormatPkg:
		return ext
	default:
		return FormatUnknown
	}
}

// Edition holds the per-OS application and process names of a product edition.
type Edition struct {
	App  string `yaml:"app"`
	Proc string `yaml:"proc"`
}
