// Package catalog maintains the set of servable layers and their metadata.
//
// A catalog is built once (from static descriptors or a directory scan) and
// then read concurrently by every query. Rebuild replaces the whole snapshot
// atomically; readers never observe a half-built catalog.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-atlas/internal/source"
)

// ErrUnknownLayer is returned by Resolve for names not in the catalog. A layer
// whose backing file is temporarily unreadable does NOT trigger this — that
// failure surfaces at query time as source.ErrUnavailable.
var ErrUnknownLayer = errors.New("unknown layer")

// CanonicalEPSG is the coordinate reference every feature is normalized to
// before leaving the sanitizer.
const CanonicalEPSG = 4326

// supportedEPSG are the source reference systems the sanitizer can reproject
// exactly. GDA94 (4283) is datum-aligned with WGS84 at display precision.
var supportedEPSG = map[int]bool{4326: true, 4283: true, 3857: true}

// Descriptor is the immutable metadata of one layer.
type Descriptor struct {
	Name        string         `json:"name" yaml:"name"`
	DisplayName string         `json:"displayName" yaml:"display_name"`
	Category    string         `json:"category" yaml:"category"`
	MinZoom     int            `json:"minZoom" yaml:"min_zoom"`
	FeatureCap  int            `json:"featureCap" yaml:"feature_cap"`
	Attributes  []string       `json:"attributes" yaml:"attributes"`
	Style       map[string]any `json:"style,omitempty" yaml:"style"`
	SourceEPSG  int            `json:"sourceEpsg" yaml:"source_epsg"`
	Backing     source.Handle  `json:"-" yaml:"-"`
}

type snapshot struct {
	byName  map[string]Descriptor
	ordered []Descriptor
}

// Builder produces a fresh set of descriptors on every (re)build. The scan
// builder walks a layers directory; StaticBuilder returns a fixed set.
type Builder func() ([]Descriptor, error)

// Catalog is the process-wide layer registry.
type Catalog struct {
	build Builder

	mu   sync.RWMutex
	snap *snapshot
}

// New builds a catalog from the given builder. The initial build must
// succeed; later Rebuild failures keep the previous snapshot.
func New(build Builder) (*Catalog, error) {
	c := &Catalog{build: build}
	if err := c.Rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

// StaticBuilder wraps a fixed descriptor set, mostly for embedding and tests.
func StaticBuilder(descs []Descriptor) Builder {
	return func() ([]Descriptor, error) {
		out := make([]Descriptor, len(descs))
		copy(out, descs)
		return out, nil
	}
}

// Merge combines builders in order. A later descriptor is skipped when an
// earlier builder already claimed its name or its backing file, so curated
// sets take precedence over a directory scan of the same files.
func Merge(builders ...Builder) Builder {
	return func() ([]Descriptor, error) {
		names := make(map[string]struct{})
		paths := make(map[string]struct{})
		var out []Descriptor
		for _, build := range builders {
			descs, err := build()
			if err != nil {
				return nil, err
			}
			for _, d := range descs {
				if _, ok := names[d.Name]; ok {
					continue
				}
				if _, ok := paths[d.Backing.Path]; ok {
					continue
				}
				names[d.Name] = struct{}{}
				if d.Backing.Path != "" {
					paths[d.Backing.Path] = struct{}{}
				}
				out = append(out, d)
			}
		}
		return out, nil
	}
}

// Resolve returns the descriptor for a layer name.
func (c *Catalog) Resolve(name string) (Descriptor, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	d, ok := snap.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return d, nil
}

// List returns all descriptors ordered by name.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	out := make([]Descriptor, len(snap.ordered))
	copy(out, snap.ordered)
	return out
}

// Rebuild runs the builder and swaps in the new snapshot. Readers holding the
// old snapshot finish against it; there is no intermediate state.
func (c *Catalog) Rebuild() error {
	descs, err := c.build()
	if err != nil {
		return fmt.Errorf("catalog build: %w", err)
	}

	snap := &snapshot{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.Name == "" {
			return fmt.Errorf("catalog build: descriptor with empty name")
		}
		if _, dup := snap.byName[d.Name]; dup {
			return fmt.Errorf("catalog build: duplicate layer %q", d.Name)
		}
		if d.SourceEPSG == 0 {
			d.SourceEPSG = CanonicalEPSG
		}
		if !supportedEPSG[d.SourceEPSG] {
			return fmt.Errorf("catalog build: layer %q: unsupported source EPSG %d", d.Name, d.SourceEPSG)
		}
		snap.byName[d.Name] = d
		snap.ordered = append(snap.ordered, d)
	}
	sort.Slice(snap.ordered, func(i, j int) bool {
		return snap.ordered[i].Name < snap.ordered[j].Name
	})

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	log.WithField("layers", len(snap.ordered)).Info("catalog rebuilt")
	return nil
}
