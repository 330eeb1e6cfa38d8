// Package errs holds the error-kind taxonomy used across indexcore and a
// small append-only buffer collaborator that iterators and evaluators push
// non-fatal diagnostics to, inspected by callers at well-defined
// checkpoints (after commit, after building an iterator tree, after each
// evaluate) rather than threaded through every skip/next call.
package errs

import (
	"github.com/pkg/errors"
)

// Kind classifies an error without pinning callers to a concrete type.
type Kind int

const (
	// CorruptData marks block framing violations, inconsistent block
	// ids, unknown key prefixes, or varint truncation.
	CorruptData Kind = iota
	// OutOfRange marks a docno, position, or block-id past its limit, or
	// a metadata value outside its column's type range.
	OutOfRange
	// ConfigMismatch marks a metadata schema disagreement or an
	// incompatible reopen of the backing store.
	ConfigMismatch
	// NotFound marks a lookup that found no key, distinct from a
	// dictionary's default-0 return.
	NotFound
	// TransactionState marks a commit after rollback, a rollback after
	// commit, a double commit, or a write after close.
	TransactionState
	// BackendFailure wraps any error surfaced by the KvStore.
	BackendFailure
	// InvalidArgument marks an unknown function/operator name, a bad
	// cardinality or range, or a malformed query program.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case CorruptData:
		return "CorruptData"
	case OutOfRange:
		return "OutOfRange"
	case ConfigMismatch:
		return "ConfigMismatch"
	case NotFound:
		return "NotFound"
	case TransactionState:
		return "TransactionState"
	case BackendFailure:
		return "BackendFailure"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is a Kind paired with a causal chain built through pkg/errors, so
// callers can both switch on Kind and unwrap to the original cause.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Cause() error { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

// New builds a Kind-tagged error from a message, capturing a stack trace
// via pkg/errors.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Newf is New with fmt-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving it as the cause.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ie, ok := err.(*Error); ok {
			e = ie
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// Buffer is an append-only sink for non-fatal diagnostics produced during
// iterator construction, commit, or evaluation. Its zero value is ready
// to use; it is not safe for concurrent writers, matching the
// single-threaded iterator/evaluator objects it is attached to.
type Buffer struct {
	entries []error
}

// Push records a diagnostic. Pushing a nil error is a no-op.
func (b *Buffer) Push(err error) {
	if err == nil {
		return
	}
	b.entries = append(b.entries, err)
}

// Pushf records a formatted diagnostic tagged with kind.
func (b *Buffer) Pushf(kind Kind, format string, args ...interface{}) {
	b.Push(Newf(kind, format, args...))
}

// Empty reports whether no diagnostics have been pushed.
func (b *Buffer) Empty() bool { return len(b.entries) == 0 }

// Entries returns the accumulated diagnostics in push order. The returned
// slice is owned by the Buffer; callers must not mutate it.
func (b *Buffer) Entries() []error { return b.entries }

// Reset clears the buffer for reuse.
func (b *Buffer) Reset() { b.entries = b.entries[:0] }
