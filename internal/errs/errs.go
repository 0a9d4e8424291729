// Package errs defines the two error kinds the generator distinguishes:
// configuration errors, which are the user's to fix and only abort the unit of
// work they belong to, and internal errors, which indicate a defect and are
// fatal to the whole run.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks an invalid or ambiguous user configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrInternal marks a broken invariant inside the engine.
	ErrInternal = errors.New("internal error")
)

// Error carries a kind, the descriptor type it belongs to (if any) and an
// optional cause.
type Error struct {
	Kind       error
	Descriptor string
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Descriptor != "" {
		fmt.Fprintf(&b, " in %q", e.Descriptor)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Configf builds a configuration error.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Internalf builds an internal invariant error.
func Internalf(format string, args ...any) *Error {
	return &Error{Kind: ErrInternal, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and a message to err. Wrapping an *Error of the same
// kind folds the messages together instead of repeating the kind.
func Wrap(kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if inner, ok := err.(*Error); ok && inner.Kind == kind {
		folded := *inner
		if folded.Msg != "" {
			folded.Msg = msg + ": " + folded.Msg
		} else {
			folded.Msg = msg
		}
		return &folded
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns ErrInternal for internal errors and ErrConfiguration for
// everything else.
func KindOf(err error) error {
	if IsInternal(err) {
		return ErrInternal
	}
	return ErrConfiguration
}

// ForDescriptor attributes err to a descriptor type. Errors that are not yet
// classified become configuration errors.
func ForDescriptor(err error, descriptor string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Descriptor != "" {
			return err
		}
		c := *e
		c.Descriptor = descriptor
		return &c
	}
	kind := ErrConfiguration
	if errors.Is(err, ErrInternal) {
		kind = ErrInternal
	}
	return &Error{Kind: kind, Descriptor: descriptor, Err: err}
}

// IsInternal reports whether err is fatal to the run.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}
