package resolver

import (
	"fmt"
	"reflect"
	"sort"
)

type memberState int

const (
	unresolved memberState = iota
	resolving
	resolved
)

type memberKey struct {
	obj  int
	name string
}

// session tracks one ResolveObject call. Objects reachable from the root are
// registered up front in an arena of opaque ids; lookups that reach one of
// their members before it was visited resolve it on demand.
type session struct {
	ids    map[any]int
	objs   []any
	infos  []*TypeInfo
	states map[memberKey]memberState
}

func newSession() *session {
	return &session{
		ids:    make(map[any]int),
		states: make(map[memberKey]memberState),
	}
}

// id returns the arena id of obj. Only pointers can be registered, which also
// keeps non-comparable values out of the map.
func (s *session) id(obj any) (int, bool) {
	if !isPointer(obj) {
		return 0, false
	}
	id, ok := s.ids[obj]
	return id, ok
}

func (s *session) add(obj any, ti *TypeInfo) (int, bool) {
	if id, ok := s.ids[obj]; ok {
		return id, false
	}
	id := len(s.objs)
	s.ids[obj] = id
	s.objs = append(s.objs, obj)
	s.infos = append(s.infos, ti)
	return id, true
}

func isPointer(obj any) bool {
	t := reflect.TypeOf(obj)
	return t != nil && t.Kind() == reflect.Pointer
}

// ResolveObject resolves, in place, every string, list and map field of obj
// and of the objects reachable through its Children members, provided their
// TypeInfo is Resolvable. Each object is visited once even when reachable
// through several paths. Escapes are unwrapped after every member of the
// graph has been resolved.
func (r *Resolver) ResolveObject(obj any) error {
	if r.session != nil {
		return fmt.Errorf("ResolveObject called while another object graph is being resolved")
	}
	s := newSession()
	r.session = s
	defer func() { r.session = nil }()

	if err := r.collect(obj); err != nil {
		return err
	}
	for id, ti := range s.infos {
		if !ti.Resolvable {
			continue
		}
		for _, m := range ti.Fields {
			if !m.rewritable() {
				continue
			}
			if err := r.resolveMember(id, m); err != nil {
				return err
			}
		}
	}

	for id, ti := range s.infos {
		if !ti.Resolvable {
			continue
		}
		for _, m := range ti.Fields {
			if m.rewritable() {
				r.unescapeMember(s.objs[id], m)
			}
		}
	}
	return nil
}

// collect registers obj and everything reachable from it in the arena.
func (r *Resolver) collect(root any) error {
	pending := []any{root}
	for len(pending) > 0 {
		obj := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		ti, ok := r.types.of(obj)
		if !ok {
			continue
		}
		if !isPointer(obj) {
			if ti.Resolvable {
				return fmt.Errorf("cannot resolve %s in place: %T is not a pointer", ti.Name, obj)
			}
			continue
		}
		if _, added := r.session.add(obj, ti); !added {
			continue
		}

		members := append(append([]Member(nil), ti.Fields...), ti.Properties...)
		for _, m := range members {
			if m.kind != kindChildren {
				continue
			}
			children := m.children(obj)
			for i := len(children) - 1; i >= 0; i-- {
				if children[i] != nil {
					pending = append(pending, children[i])
				}
			}
		}
	}
	return nil
}

// memberValue reads m from obj, resolving it first when obj is part of the
// graph currently being resolved.
func (r *Resolver) memberValue(obj any, ti *TypeInfo, m Member) (any, error) {
	if r.session != nil && ti.Resolvable && m.rewritable() {
		if id, ok := r.session.id(obj); ok {
			if err := r.resolveMember(id, m); err != nil {
				return nil, err
			}
		}
	}
	return m.Value(obj), nil
}

func (r *Resolver) resolveMember(id int, m Member) error {
	s := r.session
	key := memberKey{obj: id, name: m.Name}
	label := fmt.Sprintf("%s#%d.%s", s.infos[id].Name, id, m.Name)

	switch s.states[key] {
	case resolved:
		return nil
	case resolving:
		chain := append(append([]string(nil), r.stack...), label)
		return &CycleError{Chain: chain}
	}

	s.states[key] = resolving
	r.push(label)
	defer r.pop()

	obj := s.objs[id]
	switch m.kind {
	case kindString:
		p := m.str(obj)
		v, err := r.expand(*p, nil)
		if err != nil {
			return err
		}
		*p = v
	case kindList:
		p := m.list(obj)
		for i, item := range *p {
			v, err := r.expand(item, nil)
			if err != nil {
				return err
			}
			(*p)[i] = v
		}
	case kindMap:
		p := m.dict(obj)
		keys := make([]string, 0, len(*p))
		for k := range *p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := r.expand((*p)[k], nil)
			if err != nil {
				return err
			}
			(*p)[k] = v
		}
	}

	s.states[key] = resolved
	return nil
}

func (r *Resolver) unescapeMember(obj any, m Member) {
	switch m.kind {
	case kindString:
		p := m.str(obj)
		*p = r.unescape.Replace(*p)
	case kindList:
		p := m.list(obj)
		for i, item := range *p {
			(*p)[i] = r.unescape.Replace(item)
		}
	case kindMap:
		p := m.dict(obj)
		for k, v := range *p {
			(*p)[k] = r.unescape.Replace(v)
		}
	}
}

func (m Member) rewritable() bool {
	return m.kind == kindString || m.kind == kindList || m.kind == kindMap
}
