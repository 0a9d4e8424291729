package resolver

import (
	"fmt"
	"sync"
)

type memberKind int

const (
	kindValue memberKind = iota
	kindString
	kindList
	kindMap
	kindChildren
)

// Member describes one named accessor of a registered type. Members are built
// with the typed constructors below; the zero Member is not usable.
type Member struct {
	Name string

	kind     memberKind
	get      func(obj any) any
	str      func(obj any) *string
	list     func(obj any) *[]string
	dict     func(obj any) *map[string]string
	children func(obj any) []any
}

// Value returns the member's current value on obj.
func (m Member) Value(obj any) any {
	switch m.kind {
	case kindString:
		return *m.str(obj)
	case kindList:
		return *m.list(obj)
	case kindMap:
		return *m.dict(obj)
	case kindChildren:
		return m.children(obj)
	default:
		return m.get(obj)
	}
}

// Field exposes a read-only value.
func Field[T any](name string, get func(T) any) Member {
	return Member{Name: name, kind: kindValue, get: func(obj any) any { return get(obj.(T)) }}
}

// String exposes a string that ResolveObject rewrites in place.
func String[T any](name string, ptr func(T) *string) Member {
	return Member{Name: name, kind: kindString, str: func(obj any) *string { return ptr(obj.(T)) }}
}

// List exposes a string slice whose elements ResolveObject rewrites in place.
func List[T any](name string, ptr func(T) *[]string) Member {
	return Member{Name: name, kind: kindList, list: func(obj any) *[]string { return ptr(obj.(T)) }}
}

// Map exposes a string map whose values ResolveObject rewrites in place.
func Map[T any](name string, ptr func(T) *map[string]string) Member {
	return Member{Name: name, kind: kindMap, dict: func(obj any) *map[string]string { return ptr(obj.(T)) }}
}

// Children exposes nested objects that ResolveObject descends into.
func Children[T any](name string, get func(T) []any) Member {
	return Member{Name: name, kind: kindChildren, children: func(obj any) []any { return get(obj.(T)) }}
}

// TypeInfo is the accessor table of one type. Fields are consulted before
// properties during lookup; ResolveObject only rewrites fields.
type TypeInfo struct {
	Name string
	// Resolvable types have their string members resolved by ResolveObject.
	Resolvable bool
	Fields     []Member
	Properties []Member
}

// names lists every accessor name, fields first.
func (ti *TypeInfo) names() []string {
	out := make([]string, 0, len(ti.Fields)+len(ti.Properties))
	for _, m := range ti.Fields {
		out = append(out, m.Name)
	}
	for _, m := range ti.Properties {
		out = append(out, m.Name)
	}
	return out
}

// Described is implemented by every type the resolver can walk. Describe must
// return the same *TypeInfo for every value of a type.
type Described interface {
	Describe() *TypeInfo
}

// Types is the registration table mapping type names to accessor tables. It
// is filled once, either explicitly through Register or lazily the first time
// a Described value is met, and shared by every Resolver of a run.
type Types struct {
	mu     sync.RWMutex
	byName map[string]*TypeInfo
}

// NewTypes creates an empty table.
func NewTypes() *Types {
	return &Types{byName: make(map[string]*TypeInfo)}
}

// Register adds accessor tables. Registering a different table under an
// existing name is an error.
func (t *Types) Register(infos ...*TypeInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ti := range infos {
		if ti == nil || ti.Name == "" {
			return fmt.Errorf("resolver: type info must have a name")
		}
		if existing, ok := t.byName[ti.Name]; ok && existing != ti {
			return fmt.Errorf("resolver: type %q registered twice with different accessors", ti.Name)
		}
		t.byName[ti.Name] = ti
	}
	return nil
}

// Lookup returns the registered table for name.
func (t *Types) Lookup(name string) (*TypeInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ti, ok := t.byName[name]
	return ti, ok
}

// of returns the accessor table for obj, registering it on first sight.
func (t *Types) of(obj any) (*TypeInfo, bool) {
	d, ok := obj.(Described)
	if !ok {
		return nil, false
	}
	desc := d.Describe()
	if desc == nil {
		return nil, false
	}
	if _, found := t.Lookup(desc.Name); !found {
		// A conflicting registration keeps the first table; the value's own
		// accessors still apply to it.
		_ = t.Register(desc)
	}
	return desc, true
}
