package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilValue is returned when a path walks through or ends on a nil value.
// Fallbacks do not apply to it.
var ErrNilValue = errors.New("nil value")

// NotFoundError reports a path segment that matches no parameter, member or
// key. Candidates lists every name that was available at that point.
type NotFoundError struct {
	Path       string
	Segment    string
	Candidates []string
	// Stack is the resolution stack at the time of the failed lookup,
	// outermost first.
	Stack []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot resolve %q: nothing named %q", e.Path, e.Segment)
	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Candidates, ", "))
	} else {
		b.WriteString(" (nothing available)")
	}
	if len(e.Stack) > 0 {
		fmt.Fprintf(&b, "; while resolving %s", strings.Join(e.Stack, " -> "))
	}
	return b.String()
}

// CycleError reports a path or member that, directly or indirectly, needs its
// own value to be resolved.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "resolution cycle: " + strings.Join(e.Chain, " -> ")
}

func nilValueError(path, segment string) error {
	return fmt.Errorf("cannot resolve %q: segment %q: %w", path, segment, ErrNilValue)
}
