package resolver

// Scope is a set of parameter bindings that disappear together. Bindings made
// through a Scope shadow earlier bindings of the same name until Close.
type Scope struct {
	r      *Resolver
	pushed []string
	closed bool
}

// Scope opens a new binding scope. Callers must Close it, usually with defer.
func (r *Resolver) Scope() *Scope {
	return &Scope{r: r}
}

// Set binds name to value for the lifetime of the scope and returns the scope
// so bindings can be chained.
func (s *Scope) Set(name string, value any) *Scope {
	if s.closed {
		panic("resolver: Set on a closed scope")
	}
	key := s.r.key(name)
	s.r.params[key] = append(s.r.params[key], value)
	s.r.names[key] = name
	s.pushed = append(s.pushed, key)
	return s
}

// Close removes every binding made through the scope, restoring the ones they
// shadowed. Closing twice is a no-op.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.pushed) - 1; i >= 0; i-- {
		key := s.pushed[i]
		stack := s.r.params[key]
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			delete(s.r.params, key)
			delete(s.r.names, key)
			continue
		}
		s.r.params[key] = stack
	}
}

// Set binds name at the outermost level. Scoped bindings of the same name keep
// shadowing it.
func (r *Resolver) Set(name string, value any) {
	key := r.key(name)
	r.names[key] = name
	if stack := r.params[key]; len(stack) > 0 {
		stack[0] = value
		return
	}
	r.params[key] = []any{value}
}

// Param returns the innermost binding of name.
func (r *Resolver) Param(name string) (any, bool) {
	stack := r.params[r.key(name)]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}
