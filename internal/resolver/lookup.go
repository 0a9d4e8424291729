package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

func (r *Resolver) lookup(path string, fallback []any) (any, error) {
	r.lookups++
	segments := strings.Split(path, ".")

	cur, ok := r.Param(segments[0])
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return nil, r.notFound(path, segments[0], r.paramNames())
	}

	for i, seg := range segments[1:] {
		if isNil(cur) {
			return nil, nilValueError(path, segments[i])
		}
		last := i == len(segments)-2
		next, found, candidates, err := r.member(cur, seg, last)
		if err != nil {
			return nil, err
		}
		if !found {
			if len(fallback) > 0 {
				return fallback[0], nil
			}
			return nil, r.notFound(path, seg, candidates)
		}
		cur = next
	}

	if isNil(cur) {
		return nil, nilValueError(path, segments[len(segments)-1])
	}
	return cur, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	if c, ok := v.(cty.Value); ok {
		return c.IsNull()
	}
	return false
}

// member steps from obj to its child named seg. Registered fields come first,
// then properties, then map keys when seg is the last segment.
func (r *Resolver) member(obj any, seg string, last bool) (any, bool, []string, error) {
	if v, ok := obj.(cty.Value); ok {
		return r.ctyMember(v, seg)
	}

	if ti, ok := r.types.of(obj); ok {
		for _, m := range ti.Fields {
			if r.match(m.Name, seg) {
				v, err := r.memberValue(obj, ti, m)
				return v, err == nil, nil, err
			}
		}
		for _, m := range ti.Properties {
			if r.match(m.Name, seg) {
				return m.Value(obj), true, nil, nil
			}
		}
		return nil, false, ti.names(), nil
	}

	if !last {
		return nil, false, nil, nil
	}
	switch m := obj.(type) {
	case map[string]string:
		for k, v := range m {
			if r.match(k, seg) {
				return v, true, nil, nil
			}
		}
		return nil, false, sortedKeys(m), nil
	case map[string]any:
		for k, v := range m {
			if r.match(k, seg) {
				return v, true, nil, nil
			}
		}
		return nil, false, sortedKeys(m), nil
	}
	return nil, false, nil, nil
}

func (r *Resolver) ctyMember(v cty.Value, seg string) (any, bool, []string, error) {
	if !v.IsKnown() {
		return nil, false, nil, fmt.Errorf("value at %q is not known", seg)
	}
	ty := v.Type()
	switch {
	case ty.IsObjectType():
		var names []string
		for name := range ty.AttributeTypes() {
			if r.match(name, seg) {
				return v.GetAttr(name), true, nil, nil
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, false, names, nil
	case ty.IsMapType():
		var names []string
		for it := v.ElementIterator(); it.Next(); {
			k, elem := it.Element()
			if r.match(k.AsString(), seg) {
				return elem, true, nil, nil
			}
			names = append(names, k.AsString())
		}
		sort.Strings(names)
		return nil, false, names, nil
	}
	return nil, false, nil, nil
}

func (r *Resolver) match(name, seg string) bool {
	if r.fold {
		return strings.EqualFold(name, seg)
	}
	return name == seg
}

func (r *Resolver) paramNames() []string {
	names := make([]string, 0, len(r.names))
	for _, n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Resolver) notFound(path, seg string, candidates []string) error {
	return &NotFoundError{Path: path, Segment: seg, Candidates: candidates, Stack: r.stackCopy()}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringify renders a looked-up value for substitution.
func stringify(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case *string:
		return *val, nil
	case []string:
		return strings.Join(val, " "), nil
	case cty.Value:
		return ctyString(val)
	case fmt.Stringer:
		return val.String(), nil
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(val), nil
	}
	return "", fmt.Errorf("value of type %T cannot be rendered as text", v)
}

func ctyString(v cty.Value) (string, error) {
	if !v.IsKnown() || v.IsNull() {
		return "", ErrNilValue
	}
	switch ty := v.Type(); {
	case ty.Equals(cty.String):
		return v.AsString(), nil
	case ty.Equals(cty.Number):
		return v.AsBigFloat().Text('f', -1), nil
	case ty.Equals(cty.Bool):
		if v.True() {
			return "true", nil
		}
		return "false", nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s, err := ctyString(elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), nil
	default:
		return "", fmt.Errorf("cty value of type %s cannot be rendered as text", ty.FriendlyName())
	}
}
