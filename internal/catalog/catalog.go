// Package catalog resolves the package applicable to a device and fetches it
// into the local download directory.
package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/melih-ucgun/integra/internal/core"
)

// Descriptor describes one package known to a catalog.
type Descriptor struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Edition   string    `json:"edition,omitempty"`
	Published time.Time `json:"published"`
	URL       string    `json:"url,omitempty"`    // relative to the index for HTTP catalogs
	SHA256    string    `json:"sha256,omitempty"` // hex digest, optionally prefixed with "sha256:"

	path string // set by directory catalogs
}

// Catalog is the package collaborator. Implementations are called
// concurrently by workers.
type Catalog interface {
	// Search returns candidates for the device whose file names end with
	// mask, best first. An empty result means no package is available.
	Search(ctx context.Context, dev core.Device, mask string) ([]Descriptor, error)
	// Fetch stores the package locally and returns its path.
	Fetch(ctx context.Context, d Descriptor) (string, error)
}

// Rank sorts candidates best first: highest semantic version, then newest
// publish time, then name descending. Unparsable versions rank after every
// parsable one.
func Rank(ds []Descriptor) {
	versions := make(map[string]*semver.Version, len(ds))
	for _, d := range ds {
		if v, err := semver.NewVersion(d.Version); err == nil {
			versions[d.Version] = v
		}
	}
	sort.SliceStable(ds, func(i, j int) bool {
		vi, vj := versions[ds[i].Version], versions[ds[j].Version]
		switch {
		case vi != nil && vj == nil:
			return true
		case vi == nil && vj != nil:
			return false
		case vi != nil && vj != nil && !vi.Equal(vj):
			return vi.GreaterThan(vj)
		}
		if !ds[i].Published.Equal(ds[j].Published) {
			return ds[i].Published.After(ds[j].Published)
		}
		return ds[i].Name > ds[j].Name
	})
}

func matchEdition(d Descriptor, edition string) bool {
	return d.Edition == "" || edition == "" || d.Edition == edition
}
