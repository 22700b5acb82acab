package dasha

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is an immutable set of period systems keyed by name.
type Registry struct {
	systems map[string]*System
	names   []string
}

// NewRegistry builds every definition. Any invalid definition or duplicate
// name fails the whole registry with ErrConfiguration.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{systems: make(map[string]*System, len(defs))}
	for _, def := range defs {
		sys, err := NewSystem(def)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(sys.Name())
		if _, dup := r.systems[key]; dup {
			return nil, fmt.Errorf("%w: system %q defined twice", ErrConfiguration, sys.Name())
		}
		r.systems[key] = sys
		r.names = append(r.names, sys.Name())
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup returns the named system, ignoring case.
func (r *Registry) Lookup(name string) (*System, error) {
	sys, ok := r.systems[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	return sys, nil
}

// Names returns the registered system names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered systems.
func (r *Registry) Len() int { return len(r.systems) }
