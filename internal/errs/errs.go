package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Wrap prefixes err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// WithStack records the current stack on err unless something in its chain
// already carries one.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	var se *StackError
	if errors.As(err, &se) {
		return err
	}
	return &StackError{err: err, stack: debug.Stack()}
}

type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

// Root returns the innermost error. For errors joining several causes it
// follows the first one.
func Root(err error) error {
	for err != nil {
		next := unwrapAll(err)
		if len(next) == 0 {
			return err
		}
		err = next[0]
	}
	return nil
}

// Loggable renders err as a slog group with message, root, chain and, when
// captured, stack. Use it as slog.Any("err", errs.Loggable(err)).
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

type loggable struct{ err error }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}
	if root := Root(l.err); root != nil && root != l.err {
		attrs = append(attrs, slog.String("root", root.Error()))
	}

	var se *StackError
	if errors.As(l.err, &se) {
		attrs = append(attrs, slog.String("stack", string(se.Stack())))
	}
	return slog.GroupValue(attrs...)
}

// ErrorChainStrings lists every error in the tree, outermost first. Errors
// wrapping several causes (fmt.Errorf with two %w verbs, errors.Join)
// contribute each branch in order.
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	var walk func(e error)
	walk = func(e error) {
		if e == nil {
			return
		}
		out = append(out, e.Error())
		for _, next := range unwrapAll(e) {
			walk(next)
		}
	}
	walk(err)
	return out
}

func unwrapAll(err error) []error {
	switch typed := err.(type) {
	case interface{ Unwrap() []error }:
		return typed.Unwrap()
	case interface{ Unwrap() error }:
		if next := typed.Unwrap(); next != nil {
			return []error{next}
		}
	}
	return nil
}
