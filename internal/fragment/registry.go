package fragment

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vk/projforge/internal/errs"
)

// Registry holds the fragment types and masks of one generation run.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  []*Type
	byName map[string]*Type
	masks  map[ID][]Bits
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Type),
		masks:  make(map[ID][]Bits),
	}
}

// Register validates spec and adds it to the registry. Any violation is
// reported immediately as a configuration error.
func (r *Registry) Register(spec Spec) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[strings.ToLower(spec.Name)]; exists {
		return nil, errs.Configf("fragment %q is already registered", spec.Name)
	}
	if len(r.types) >= MaxTypes {
		return nil, errs.Configf("cannot register fragment %q: registry is limited to %d fragment types", spec.Name, MaxTypes)
	}

	t, err := newType(ID(len(r.types)), spec)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfiguration, err, "invalid fragment declaration")
	}
	r.types = append(r.types, t)
	r.byName[strings.ToLower(t.name)] = t
	return t, nil
}

// MustRegister is like Register but panics on error. It is meant for
// built-in fragment tables where a failure is a programming error.
func (r *Registry) MustRegister(spec Spec) *Type {
	t, err := r.Register(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Type looks a fragment type up by name, case-insensitively.
func (r *Registry) Type(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[strings.ToLower(name)]
	return t, ok
}

// ByID returns the fragment type with the given ID, or nil.
func (r *Registry) ByID(id ID) *Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(r.types) {
		return nil
	}
	return r.types[id]
}

// Types returns all registered fragment types ordered by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	out := make([]*Type, len(r.types))
	copy(out, r.types)
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// AddMask restricts the fragment type name to values contained in at least one
// of the given patterns. Masks accumulate; each call adds patterns.
func (r *Registry) AddMask(name string, patterns ...Bits) error {
	t, ok := r.Type(name)
	if !ok {
		return errs.Configf("cannot mask unknown fragment %q", name)
	}
	for _, p := range patterns {
		if p == 0 || p&^t.all != 0 {
			return errs.Configf("mask pattern %#x is not made of values of fragment %q", uint64(p), t.name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.masks[t.id] = append(r.masks[t.id], patterns...)
	return nil
}

// AddMaskNames is AddMask with each pattern given as a list of value names.
func (r *Registry) AddMaskNames(name string, patterns ...[]string) error {
	t, ok := r.Type(name)
	if !ok {
		return errs.Configf("cannot mask unknown fragment %q", name)
	}
	bitsPatterns := make([]Bits, 0, len(patterns))
	for _, p := range patterns {
		var b Bits
		for _, valueName := range p {
			v, found := t.Lookup(valueName)
			if !found {
				return errs.Configf("mask for fragment %q names unknown value %q", t.name, valueName)
			}
			b |= v
		}
		bitsPatterns = append(bitsPatterns, b)
	}
	return r.AddMask(name, bitsPatterns...)
}

// Valid reports whether b passes the mask registered for the fragment type
// id. Without a mask every value is valid.
func (r *Registry) Valid(id ID, b Bits) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patterns, ok := r.masks[id]
	if !ok || len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if b&^p == 0 {
			return true
		}
	}
	return false
}

// String lists the registered fragment names; handy in logs.
func (r *Registry) String() string {
	types := r.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.name
	}
	return fmt.Sprintf("fragments[%s]", strings.Join(names, ","))
}
