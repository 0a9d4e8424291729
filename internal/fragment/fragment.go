// Package fragment defines the orthogonal axes of the configuration space.
//
// A fragment type (platform, optimization, development environment, ...) is an
// explicit table of named values, each occupying exactly one bit of a Bits
// word. Fragment types are registered on a Registry which validates them up
// front, assigns them a small integer ID and optionally restricts them with
// masks. A Registry belongs to one generation run; there is no global state.
package fragment

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// MaxTypes is the number of fragment types a single Registry can hold. Targets
// store one field per fragment type in a fixed-size array of this length.
const MaxTypes = 16

// Bits is a set of fragment values. Declared values have exactly one bit set;
// possibilities and masks may combine several.
type Bits uint64

// Single reports whether exactly one bit is set.
func (b Bits) Single() bool {
	return b != 0 && b&(b-1) == 0
}

// Count returns the number of set bits.
func (b Bits) Count() int {
	return bits.OnesCount64(uint64(b))
}

// Lowest returns the lowest set bit, or 0.
func (b Bits) Lowest() Bits {
	return b & -b
}

// NextAfter returns the lowest bit of b strictly above cur, or 0 when cur is
// the highest bit of b.
func (b Bits) NextAfter(cur Bits) Bits {
	higher := b &^ (cur<<1 - 1)
	return higher.Lowest()
}

// ID identifies a fragment type within its Registry.
type ID int

// Value is a set of bits tagged with the fragment type it belongs to.
type Value struct {
	Type ID
	Bits Bits
}

// ValueSpec declares one named value of a fragment type.
type ValueSpec struct {
	Name string
	Bits Bits
	// Composite values are shorthands for the OR of several declared values.
	// They are accepted by Lookup but never enumerated.
	Composite bool
	// Obsolete values are kept for compatibility and are never enumerated.
	Obsolete bool
	// Tolerant allows the value to share its bit with an earlier declaration.
	Tolerant bool
}

// Spec is the static description of a fragment type.
type Spec struct {
	Name   string
	Values []ValueSpec
}

// Type is a validated, registered fragment type. It is immutable.
type Type struct {
	id         ID
	name       string
	enumerable []ValueSpec
	byName     map[string]ValueSpec
	all        Bits
}

// ID returns the registry-assigned identifier.
func (t *Type) ID() ID { return t.id }

// Name returns the declared name.
func (t *Type) Name() string { return t.name }

// All returns the union of every enumerable value.
func (t *Type) All() Bits { return t.all }

// Values returns the enumerable values ordered by bit.
func (t *Type) Values() []ValueSpec {
	out := make([]ValueSpec, len(t.enumerable))
	copy(out, t.enumerable)
	return out
}

// Lookup finds a value (enumerable, composite or obsolete) by name. Names are
// matched case-insensitively.
func (t *Type) Lookup(name string) (Bits, bool) {
	v, ok := t.byName[strings.ToLower(name)]
	return v.Bits, ok
}

// Value returns the tagged value for name.
func (t *Type) Value(name string) (Value, error) {
	b, ok := t.Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("fragment %q has no value %q (known: %s)", t.name, name, strings.Join(t.valueNames(), ", "))
	}
	return Value{Type: t.id, Bits: b}, nil
}

// NameOf renders a set of bits. A single enumerable value renders as its name;
// several values render as their names joined by "|". Bits that belong to no
// enumerable value render in hexadecimal.
func (t *Type) NameOf(b Bits) string {
	if b == 0 {
		return ""
	}
	var parts []string
	rest := b
	for _, v := range t.enumerable {
		if b&v.Bits != 0 {
			parts = append(parts, v.Name)
			rest &^= v.Bits
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

func (t *Type) valueNames() []string {
	names := make([]string, 0, len(t.enumerable))
	for _, v := range t.enumerable {
		names = append(names, v.Name)
	}
	return names
}

// newType validates spec and builds the immutable Type.
func newType(id ID, spec Spec) (*Type, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("fragment type has no name")
	}
	if len(spec.Values) == 0 {
		return nil, fmt.Errorf("fragment %q declares no values", spec.Name)
	}

	t := &Type{
		id:       id,
		name:     spec.Name,
		byName:   make(map[string]ValueSpec, len(spec.Values)),
	}

	var seen Bits
	for _, v := range spec.Values {
		if v.Name == "" {
			return nil, fmt.Errorf("fragment %q declares a value without a name", spec.Name)
		}
		key := strings.ToLower(v.Name)
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("fragment %q declares value %q twice", spec.Name, v.Name)
		}
		t.byName[key] = v

		if v.Composite || v.Obsolete {
			continue
		}
		if !v.Bits.Single() {
			return nil, fmt.Errorf("value %q of fragment %q must have exactly one bit set, got %#x", v.Name, spec.Name, uint64(v.Bits))
		}
		if seen&v.Bits != 0 {
			if !v.Tolerant {
				return nil, fmt.Errorf("value %q of fragment %q collides on bit %#x with an earlier value", v.Name, spec.Name, uint64(v.Bits))
			}
			continue
		}
		seen |= v.Bits
		t.enumerable = append(t.enumerable, v)
	}

	for _, v := range spec.Values {
		if v.Composite && (v.Bits == 0 || v.Bits&^seen != 0) {
			return nil, fmt.Errorf("composite value %q of fragment %q references undeclared bits %#x", v.Name, spec.Name, uint64(v.Bits&^seen))
		}
	}

	sort.Slice(t.enumerable, func(i, j int) bool { return t.enumerable[i].Bits < t.enumerable[j].Bits })
	t.all = seen
	return t, nil
}
