package target

import (
	"fmt"
	"sort"

	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/resolver"
)

// DefaultLayoutName is used when a descriptor does not name its target type.
const DefaultLayoutName = "Target"

// Layout is the shape of a family of targets: a name plus the fragment types
// its targets carry, ordered by fragment name.
type Layout struct {
	name  string
	reg   *fragment.Registry
	types []*fragment.Type
	has   [fragment.MaxTypes]bool
	info  *resolver.TypeInfo
}

// NewLayout builds a layout over the named fragment types of reg. With no
// names, the layout carries every registered fragment type.
func NewLayout(name string, reg *fragment.Registry, fragments ...string) (*Layout, error) {
	if name == "" {
		name = DefaultLayoutName
	}
	l := &Layout{name: name, reg: reg}

	if len(fragments) == 0 {
		l.types = reg.Types()
	} else {
		for _, fname := range fragments {
			typ, ok := reg.Type(fname)
			if !ok {
				return nil, errs.Configf("layout %q uses unknown fragment %q (known: %s)", name, fname, reg)
			}
			if l.has[typ.ID()] {
				return nil, errs.Configf("layout %q lists fragment %q twice", name, typ.Name())
			}
			l.has[typ.ID()] = true
			l.types = append(l.types, typ)
		}
		sort.Slice(l.types, func(i, j int) bool { return l.types[i].Name() < l.types[j].Name() })
	}
	for _, typ := range l.types {
		l.has[typ.ID()] = true
	}

	l.info = describeLayout(l)
	return l, nil
}

// Name returns the layout name.
func (l *Layout) Name() string { return l.name }

// Registry returns the fragment registry the layout was built on.
func (l *Layout) Registry() *fragment.Registry { return l.reg }

// Types returns the layout's fragment types ordered by name.
func (l *Layout) Types() []*fragment.Type {
	out := make([]*fragment.Type, len(l.types))
	copy(out, l.types)
	return out
}

// Has reports whether the layout carries the fragment type id.
func (l *Layout) Has(id fragment.ID) bool {
	return int(id) >= 0 && int(id) < fragment.MaxTypes && l.has[id]
}

// Type finds one of the layout's fragment types by name.
func (l *Layout) Type(name string) (*fragment.Type, bool) {
	typ, ok := l.reg.Type(name)
	if !ok || !l.has[typ.ID()] {
		return nil, false
	}
	return typ, true
}

// Empty returns the target with every field zero.
func (l *Layout) Empty() Target {
	return Target{layout: l}
}

// New builds a target from tagged values. Values of the same fragment are
// combined.
func (l *Layout) New(values ...fragment.Value) (Target, error) {
	t := Target{layout: l}
	for _, v := range values {
		if !l.Has(v.Type) {
			return Target{}, errs.Configf("fragment #%d is not part of layout %q", v.Type, l.name)
		}
		t.fields[v.Type] |= v.Bits
	}
	return t, nil
}

// Parse builds a target from value names keyed by fragment name. Several names
// for one fragment are combined, which is how possibilities spanning several
// values are written.
func (l *Layout) Parse(values map[string][]string) (Target, error) {
	t := Target{layout: l}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, fname := range names {
		typ, ok := l.Type(fname)
		if !ok {
			return Target{}, errs.Configf("fragment %q is not part of layout %q", fname, l.name)
		}
		for _, vname := range values[fname] {
			v, err := typ.Value(vname)
			if err != nil {
				return Target{}, errs.Wrap(errs.ErrConfiguration, err, "layout %q", l.name)
			}
			t.fields[typ.ID()] |= v.Bits
		}
	}
	return t, nil
}

// Project converts t, usually a target of another layout on the same
// registry, into this layout. Fragments the layouts share are copied; the
// rest stay zero.
func (l *Layout) Project(t Target) Target {
	out := Target{layout: l}
	for _, typ := range l.types {
		if t.layout != nil && t.layout.has[typ.ID()] {
			out.fields[typ.ID()] = t.fields[typ.ID()]
		}
	}
	return out
}

func (l *Layout) String() string {
	return fmt.Sprintf("layout %s", l.name)
}

func describeLayout(l *Layout) *resolver.TypeInfo {
	props := []resolver.Member{
		resolver.Field("Name", func(t Target) any { return t.String() }),
		resolver.Field("Layout", func(t Target) any { return t.layout.name }),
	}
	for _, typ := range l.types {
		fname := typ.Name()
		props = append(props, resolver.Field(fname, func(t Target) any { return t.ValueName(fname) }))
	}
	return &resolver.TypeInfo{Name: l.name, Properties: props}
}
