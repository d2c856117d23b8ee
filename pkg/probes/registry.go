package probes

import (
	"iter"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

// maxSuggestionDistance bounds how far a typo may be from a registered name
const maxSuggestionDistance = 3

// Registry maps metric names to probes.
// It is filled once at startup and frozen before collection begins.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe
	order  []string
	frozen bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[string]Probe),
	}
}

// Register adds a probe
func (r *Registry) Register(p Probe) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return types.ErrRegistryFrozen
	}
	if _, exists := r.probes[p.Name]; exists {
		return &types.DuplicateNameError{Name: p.Name}
	}

	r.probes[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// MustRegister registers every probe and panics on the first error.
// Meant for static tables at process start.
func (r *Registry) MustRegister(ps ...Probe) {
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether the registry is read-only
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the probe registered under name
func (r *Registry) Lookup(name string) (Probe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.probes[name]
	if !ok {
		return Probe{}, &types.UnknownMetricError{Name: name, Suggestion: r.suggest(name)}
	}
	return p, nil
}

// Resolve looks up every name, failing on the first unknown one.
// Duplicate names collapse to a single entry, keeping first-seen order.
func (r *Registry) Resolve(names []string) ([]Probe, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]Probe, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		p, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Check reports the first unknown name, if any
func (r *Registry) Check(names []string) error {
	_, err := r.Resolve(names)
	return err
}

// ByCategory yields probe names of one category in registration order.
// The sequence reads the registry lazily and can be ranged over again.
func (r *Registry) ByCategory(c types.Category) iter.Seq[string] {
	return func(yield func(string) bool) {
		r.mu.RLock()
		order := r.order
		r.mu.RUnlock()

		for _, name := range order {
			r.mu.RLock()
			p := r.probes[name]
			r.mu.RUnlock()

			if p.Category != c {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// Names returns every registered name in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered probes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// suggest finds the closest registered name; caller holds r.mu
func (r *Registry) suggest(name string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, candidate := range r.order {
		d := levenshtein.ComputeDistance(name, candidate)
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
