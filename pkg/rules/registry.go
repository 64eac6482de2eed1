package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Standard errors for catalogue lookup.
var (
	ErrUnknownRegulation = errors.New("rules: unknown regulation")
	ErrVersionNotFound   = errors.New("rules: no catalogue version satisfies constraint")
	ErrDuplicateVersion  = errors.New("rules: catalogue version already registered")
)

// Loader builds a catalogue on first use.
type Loader func() (*Catalogue, error)

type registration struct {
	version *semver.Version
	load    Loader

	once sync.Once
	cat  *Catalogue
	err  error
}

func (r *registration) catalogue() (*Catalogue, error) {
	r.once.Do(func() {
		r.cat, r.err = r.load()
	})
	return r.cat, r.err
}

// Registry maps regulation ids to versioned catalogue loaders. Catalogues are
// built lazily and at most once per version.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]*registration)}
}

// Register adds a loader for regulation id at a semantic version.
func (r *Registry) Register(id, version string, load Loader) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidVersion, version, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries[id] {
		if existing.version.Equal(v) {
			return fmt.Errorf("%w: %s@%s", ErrDuplicateVersion, id, v)
		}
	}
	list := append(r.entries[id], &registration{version: v, load: load})
	sort.Slice(list, func(i, j int) bool { return list[i].version.LessThan(list[j].version) })
	r.entries[id] = list
	return nil
}

// Get returns the latest catalogue registered for id.
func (r *Registry) Get(id string) (*Catalogue, error) {
	return r.Resolve(id, "")
}

// Resolve returns the highest catalogue version for id that satisfies the
// semver constraint. An empty constraint selects the latest version.
func (r *Registry) Resolve(id, constraint string) (*Catalogue, error) {
	r.mu.RLock()
	list := r.entries[id]
	r.mu.RUnlock()

	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegulation, id)
	}

	var c *semver.Constraints
	if constraint != "" {
		parsed, err := semver.NewConstraint(constraint)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidVersion, constraint, err)
		}
		c = parsed
	}

	for i := len(list) - 1; i >= 0; i-- {
		reg := list[i]
		if c != nil && !c.Check(reg.version) {
			continue
		}
		cat, err := reg.catalogue()
		if err != nil {
			return nil, fmt.Errorf("load %s@%s: %w", id, reg.version, err)
		}
		return cat, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrVersionNotFound, id, constraint)
}

// Version describes one registered catalogue.
type Version struct {
	RegulationID string
	Version      string
}

// List returns every registration sorted by regulation id, then version.
func (r *Registry) List() []Version {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Version
	for _, id := range ids {
		for _, reg := range r.entries[id] {
			out = append(out, Version{RegulationID: id, Version: reg.version.String()})
		}
	}
	return out
}
