package builder

import (
	"sync/atomic"

	"github.com/vk/projforge/internal/errs"
)

// State is the lifecycle position of one descriptor type within a run.
type State int32

const (
	Unscheduled State = iota
	Building
	Built
	Linking
	Linked
	Generating
	Done
	Failed
)

var stateNames = [...]string{
	Unscheduled: "unscheduled",
	Building:    "building",
	Built:       "built",
	Linking:     "linking",
	Linked:      "linked",
	Generating:  "generating",
	Done:        "done",
	Failed:      "failed",
}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition is expected.
func (s State) IsTerminal() bool {
	return s == Done || s == Failed
}

// canTransition lists the legal moves. Failed is reachable from any
// non-terminal state.
func canTransition(from, to State) bool {
	if to == Failed {
		return !from.IsTerminal()
	}
	switch from {
	case Unscheduled:
		return to == Building
	case Building:
		return to == Built
	case Built:
		return to == Linking
	case Linking:
		return to == Linked
	case Linked:
		return to == Generating
	case Generating:
		return to == Done
	default:
		return false
	}
}

// stateCell holds a State and only lets it move along legal transitions.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State { return State(c.v.Load()) }

// transition moves from -> to atomically. A state other than from, or a move
// the lifecycle does not allow, is an internal error.
func (c *stateCell) transition(descriptor string, from, to State) error {
	if !canTransition(from, to) {
		return errs.Internalf("descriptor %q: illegal transition %s -> %s", descriptor, from, to)
	}
	if !c.v.CompareAndSwap(int32(from), int32(to)) {
		return errs.Internalf("descriptor %q: invalid transition %s -> %s, current state is %s", descriptor, from, to, c.load())
	}
	return nil
}

// fail moves to Failed from whatever non-terminal state the cell is in. It
// reports false when the cell was already terminal.
func (c *stateCell) fail() bool {
	for {
		cur := c.load()
		if cur.IsTerminal() {
			return false
		}
		if c.v.CompareAndSwap(int32(cur), int32(Failed)) {
			return true
		}
	}
}
