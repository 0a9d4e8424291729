// Package resolver substitutes "[path.to.value]" placeholders in strings.
//
// Placeholders are looked up against named parameters and walked through
// object graphs described by a Types table. Resolution runs to a fixed point:
// substituted values are themselves resolved, and a pass that substitutes
// nothing ends the process. Doubled single-character delimiters escape
// ("[[x]]" renders as "[x]") and are unwrapped once, after every
// substitution has been made.
//
// A Resolver is not safe for concurrent use. Each descriptor resolves with its
// own Resolver; Types tables can be shared.
package resolver

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// Delimiter is an open/close pair surrounding a placeholder body.
type Delimiter struct {
	Open  string
	Close string
}

func (d Delimiter) escapable() bool {
	return len(d.Open) == 1 && len(d.Close) == 1
}

var (
	// Default recognises "[body]" only.
	Default = []Delimiter{{Open: "[", Close: "]"}}
	// Extended also recognises "%(body)" and "$(body)".
	Extended = []Delimiter{{Open: "[", Close: "]"}, {Open: "%(", Close: ")"}, {Open: "$(", Close: ")"}}
)

// Modifier post-processes a substituted value.
type Modifier string

const (
	None      Modifier = "none"
	Lower     Modifier = "lower"
	EscapeXML Modifier = "escapeXML"
)

var modifiers = map[string]Modifier{
	"none":      None,
	"lower":     Lower,
	"escapexml": EscapeXML,
}

func (m Modifier) apply(s string) string {
	switch m {
	case Lower:
		return strings.ToLower(s)
	case EscapeXML:
		var b strings.Builder
		// EscapeText only fails when the writer does.
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	default:
		return s
	}
}

var bodyPattern = regexp.MustCompile(`^([A-Za-z]+:)?[A-Za-z0-9_:]+(\.[A-Za-z0-9_:]+)*$`)

// maxPasses bounds the fixed-point loop. Every pass that substitutes
// something consumes one placeholder at least, so only templates that keep
// assembling new placeholders out of their own output can reach it.
const maxPasses = 64

// Option configures a Resolver.
type Option func(*Resolver)

// WithDelimiters replaces the recognised delimiter pairs.
func WithDelimiters(delims ...Delimiter) Option {
	return func(r *Resolver) { r.delims = delims }
}

// WithCaseInsensitive makes parameter and member names match regardless of
// case.
func WithCaseInsensitive() Option {
	return func(r *Resolver) { r.fold = true }
}

// WithTypes shares a registration table between resolvers.
func WithTypes(t *Types) Option {
	return func(r *Resolver) { r.types = t }
}

// Resolver expands templates. Create one with New.
type Resolver struct {
	delims   []Delimiter
	fold     bool
	types    *Types
	unescape *strings.Replacer

	params map[string][]any
	names  map[string]string // folded key -> name as bound, for candidates

	active  map[string]bool
	stack   []string
	lookups int

	session *session
}

// New creates a Resolver with the default delimiters and a private Types table
// unless options say otherwise.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		delims: Default,
		params: make(map[string][]any),
		names:  make(map[string]string),
		active: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.types == nil {
		r.types = NewTypes()
	}

	var pairs []string
	for _, d := range r.delims {
		if d.escapable() {
			pairs = append(pairs, d.Open+d.Open, d.Open, d.Close+d.Close, d.Close)
		}
	}
	r.unescape = strings.NewReplacer(pairs...)
	return r
}

// Types returns the registration table used by r.
func (r *Resolver) Types() *Types { return r.types }

// Lookups returns the number of placeholder lookups performed so far.
func (r *Resolver) Lookups() int { return r.lookups }

// Resolve substitutes every placeholder in template. When fallback is given,
// a placeholder whose path cannot be found renders the fallback instead of
// failing.
func (r *Resolver) Resolve(template string, fallback ...any) (string, error) {
	out, err := r.expand(template, fallback)
	if err != nil {
		return "", err
	}
	if r.session != nil {
		// Unwrapped by ResolveObject once the whole graph is done.
		return out, nil
	}
	return r.unescape.Replace(out), nil
}

// expand runs substitution passes until one makes no change. Escapes are left
// in place.
func (r *Resolver) expand(s string, fallback []any) (string, error) {
	for range maxPasses {
		next, n, err := r.pass(s, fallback)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return next, nil
		}
		s = next
	}
	return "", fmt.Errorf("template %q did not settle after %d passes", s, maxPasses)
}

func (r *Resolver) pass(s string, fallback []any) (string, int, error) {
	if !r.mayContainPlaceholder(s) {
		return s, 0, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for i := 0; i < len(s); {
		d, ok := r.openAt(s, i)
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}

		if d.escapable() && strings.HasPrefix(s[i+1:], d.Open) {
			closing := strings.Index(s[i+2:], d.Close+d.Close)
			if closing < 0 {
				b.WriteString(s[i : i+2])
				i += 2
				continue
			}
			stop := i + 2 + closing + 2
			b.WriteString(s[i:stop])
			i = stop
			continue
		}

		start := i + len(d.Open)
		end := strings.Index(s[start:], d.Close)
		if end < 0 {
			b.WriteString(d.Open)
			i = start
			continue
		}
		mod, path, ok := parseBody(s[start : start+end])
		if !ok {
			b.WriteString(d.Open)
			i = start
			continue
		}

		v, err := r.substitute(mod, path, fallback)
		if err != nil {
			return "", 0, err
		}
		b.WriteString(v)
		n++
		i = start + end + len(d.Close)
	}
	return b.String(), n, nil
}

func (r *Resolver) mayContainPlaceholder(s string) bool {
	for _, d := range r.delims {
		if strings.Contains(s, d.Open) {
			return true
		}
	}
	return false
}

func (r *Resolver) openAt(s string, i int) (Delimiter, bool) {
	for _, d := range r.delims {
		if strings.HasPrefix(s[i:], d.Open) {
			return d, true
		}
	}
	return Delimiter{}, false
}

// parseBody splits "modifier:path" when the prefix names a known modifier.
// Otherwise colons belong to the path.
func parseBody(body string) (Modifier, string, bool) {
	if !bodyPattern.MatchString(body) {
		return "", "", false
	}
	if i := strings.IndexByte(body, ':'); i > 0 {
		if mod, known := modifiers[strings.ToLower(body[:i])]; known {
			return mod, body[i+1:], true
		}
	}
	return None, body, true
}

// substitute looks path up and resolves the value it finds, guarding against
// a path that needs itself.
func (r *Resolver) substitute(mod Modifier, path string, fallback []any) (string, error) {
	key := r.key(path)
	if r.active[key] {
		chain := append(append([]string(nil), r.stack...), path)
		return "", &CycleError{Chain: chain}
	}

	v, err := r.lookup(path, fallback)
	if err != nil {
		return "", err
	}
	s, err := stringify(v)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", path, err)
	}

	r.active[key] = true
	r.push(path)
	defer func() {
		r.pop()
		delete(r.active, key)
	}()

	expanded, err := r.expand(s, nil)
	if err != nil {
		return "", err
	}
	return mod.apply(expanded), nil
}

func (r *Resolver) key(name string) string {
	if r.fold {
		return strings.ToLower(name)
	}
	return name
}

func (r *Resolver) push(entry string) { r.stack = append(r.stack, entry) }

func (r *Resolver) pop() { r.stack = r.stack[:len(r.stack)-1] }

func (r *Resolver) stackCopy() []string {
	if len(r.stack) == 0 {
		return nil
	}
	return append([]string(nil), r.stack...)
}
