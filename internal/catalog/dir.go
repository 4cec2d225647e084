package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// Dir is a catalog backed by a local directory. Versions are taken from the
// file names and publish times from the modification times. Files at the top
// level fit every edition; files in a subdirectory belong to the edition the
// subdirectory is named after.
type Dir struct {
	Path string
}

// NewDir creates a directory catalog.
func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

func (c *Dir) Search(ctx context.Context, dev core.Device, mask string) ([]Descriptor, error) {
	entries, err := os.ReadDir(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}

	out := c.scan(entries, "", mask)
	for _, e := range entries {
		if !e.IsDir() || (dev.Edition != "" && e.Name() != dev.Edition) {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(c.Path, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, c.scan(sub, e.Name(), mask)...)
	}
	Rank(out)
	return out, ctx.Err()
}

func (c *Dir) scan(entries []os.DirEntry, edition, mask string) []Descriptor {
	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), mask) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Descriptor{
			Name:      e.Name(),
			Version:   versionPattern.FindString(strings.TrimSuffix(e.Name(), mask)),
			Edition:   edition,
			Published: info.ModTime(),
			path:      filepath.Join(c.Path, edition, e.Name()),
		})
	}
	return out
}

func (c *Dir) Fetch(ctx context.Context, d Descriptor) (string, error) {
	p := d.path
	if p == "" {
		p = filepath.Join(c.Path, filepath.Base(d.Edition), filepath.Base(d.Name))
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	return filepath.Abs(p)
}
