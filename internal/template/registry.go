package template

import (
	"errors"
	"fmt"
	"sort"
)

// ErrRegistryFrozen is returned when registering into a frozen registry.
var ErrRegistryFrozen = errors.New("template: registry is frozen")

// Replacer produces the text for a placeholder. arg is empty when the
// placeholder has no argument.
type Replacer func(arg string) string

// Registry maps placeholder names to replacers. It is built per
// invocation, entry by entry, and frozen once every call-scoped value is
// known. Lookups are valid at any time.
type Registry struct {
	replacers map[string]Replacer
	frozen    bool
}

// NewRegistry returns an empty, mutable registry.
func NewRegistry() *Registry {
	return &Registry{replacers: make(map[string]Replacer)}
}

// Register adds or replaces the replacer for name.
func (r *Registry) Register(name string, fn Replacer) error {
	if r.frozen {
		return fmt.Errorf("register %q: %w", name, ErrRegistryFrozen)
	}
	if fn == nil {
		return fmt.Errorf("register %q: nil replacer", name)
	}
	r.replacers[name] = fn
	return nil
}

// Value registers a replacer that ignores its argument and returns v.
func (r *Registry) Value(name, v string) error {
	return r.Register(name, func(string) string { return v })
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Lookup returns the replacer registered under name.
func (r *Registry) Lookup(name string) (Replacer, bool) {
	if r == nil {
		return nil, false
	}
	fn, ok := r.replacers[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.replacers))
	for name := range r.replacers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
