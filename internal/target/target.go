// Package target models points of the configuration space.
//
// A Target holds one field per fragment type of its Layout. Fields are stored
// in a fixed-size array indexed by fragment ID, so targets are plain values:
// they are compared, copied and used as map keys through their canonical
// string, and every mutator returns a copy.
package target

import (
	"strings"

	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/resolver"
)

// Target is one configuration point. The zero Target has no layout and renders
// as the empty string.
type Target struct {
	layout *Layout
	fields [fragment.MaxTypes]fragment.Bits
}

// Layout returns the layout the target belongs to.
func (t Target) Layout() *Layout { return t.layout }

// Get returns the field of fragment id.
func (t Target) Get(id fragment.ID) fragment.Bits {
	if int(id) < 0 || int(id) >= fragment.MaxTypes {
		return 0
	}
	return t.fields[id]
}

// With returns a copy of t with the field of v's fragment replaced by v.
// Values of fragments outside the layout are ignored.
func (t Target) With(v fragment.Value) Target {
	if t.layout != nil && t.layout.Has(v.Type) {
		t.fields[v.Type] = v.Bits
	}
	return t
}

// Clone returns a copy of t with every override ORed into its field.
func (t Target) Clone(overrides ...fragment.Value) Target {
	for _, v := range overrides {
		if t.layout != nil && t.layout.Has(v.Type) {
			t.fields[v.Type] |= v.Bits
		}
	}
	return t
}

// String returns the canonical identity: value names of non-zero fields in
// fragment name order, joined by "_".
func (t Target) String() string {
	if t.layout == nil {
		return ""
	}
	var b strings.Builder
	for _, typ := range t.layout.types {
		bits := t.fields[typ.ID()]
		if bits == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		b.WriteString(typ.NameOf(bits))
	}
	return b.String()
}

// Key identifies the target across layouts.
func (t Target) Key() string {
	if t.layout == nil {
		return ":" + t.String()
	}
	return t.layout.name + ":" + t.String()
}

// Equal reports whether both targets have the same layout name and canonical
// string.
func (t Target) Equal(o Target) bool {
	return Compare(t, o) == 0
}

// ValueName renders the field of the named fragment, "" when it is zero or not
// part of the layout.
func (t Target) ValueName(fragmentName string) string {
	if t.layout == nil {
		return ""
	}
	typ, ok := t.layout.Type(fragmentName)
	if !ok {
		return ""
	}
	return typ.NameOf(t.fields[typ.ID()])
}

// Fields maps every fragment name of the layout to its rendered value.
func (t Target) Fields() map[string]string {
	out := make(map[string]string)
	if t.layout == nil {
		return out
	}
	for _, typ := range t.layout.types {
		out[typ.Name()] = typ.NameOf(t.fields[typ.ID()])
	}
	return out
}

// Describe exposes "Name", "Layout" and one property per fragment to
// templates, e.g. "[target.Platform]".
func (t Target) Describe() *resolver.TypeInfo {
	if t.layout == nil {
		return nil
	}
	return t.layout.info
}

// Compare orders targets by layout name, then canonical string.
func Compare(a, b Target) int {
	if c := strings.Compare(layoutName(a), layoutName(b)); c != 0 {
		return c
	}
	return strings.Compare(a.String(), b.String())
}

func layoutName(t Target) string {
	if t.layout == nil {
		return ""
	}
	return t.layout.name
}
