package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// Memory is an in-process Source keyed by dataset name. It backs unit tests
// and local demos that have no layer files on disk.
type Memory struct {
	mu       sync.RWMutex
	datasets map[string][]RawFeature
	fetches  int
	failing  bool
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{datasets: make(map[string][]RawFeature)}
}

// Load replaces the features of a dataset.
func (m *Memory) Load(dataset string, feats []RawFeature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[dataset] = feats
}

// SetFailing makes every fetch fail with ErrUnavailable, simulating an
// unreachable backing store.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Fetches returns how many fetches have been served, for cache assertions.
func (m *Memory) Fetches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches
}

// FetchIntersecting implements Source with a linear bound scan.
func (m *Memory) FetchIntersecting(ctx context.Context, h Handle, bound orb.Bound, attrs []string) ([]RawFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	m.fetches++
	failing := m.failing
	feats, ok := m.datasets[h.Path]
	m.mu.Unlock()

	if failing {
		return nil, fmt.Errorf("%w: memory source marked failing", ErrUnavailable)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no dataset %q", ErrUnavailable, h.Path)
	}

	keep := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		keep[a] = struct{}{}
	}

	var out []RawFeature
	for _, f := range feats {
		if f.Geometry != nil && !f.Geometry.Bound().Intersects(bound) {
			continue
		}
		props := make(map[string]any, len(attrs))
		for k, v := range f.Attributes {
			if _, ok := keep[k]; ok {
				props[k] = v
			}
		}
		out = append(out, RawFeature{Geometry: f.Geometry, Attributes: props})
	}
	return out, nil
}

var _ Source = (*Memory)(nil)
