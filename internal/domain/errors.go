package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine errors by failure mode
type Kind string

const (
	// KindConfig marks fatal input problems: missing timezone, empty shift
	// catalog, empty roster. Generation aborts before any state change.
	KindConfig Kind = "CONFIG"
	// KindDataIntegrity marks uniqueness violations, ledger sum mismatches
	// and stale rotation snapshots.
	KindDataIntegrity Kind = "DATA_INTEGRITY"
	// KindConstraint marks constraint violations surfaced as errors.
	KindConstraint Kind = "CONSTRAINT_VIOLATION"
	// KindInsufficientBalance marks a comp-off debit exceeding availability.
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	// KindCancelled marks deadline or caller cancellation; nothing persisted.
	KindCancelled Kind = "CANCELLED"
	// KindSwapIntegrity marks a block-integrity breach found by swap
	// simulation. Callers may proceed with a force flag.
	KindSwapIntegrity Kind = "SWAP_INTEGRITY"
	// KindPartialResult marks a run that hit its soft deadline.
	KindPartialResult Kind = "PARTIAL_RESULT"
	// KindNotFound marks a missing entity.
	KindNotFound Kind = "NOT_FOUND"
)

// Error is a structured engine error carrying the failure kind and the
// identifiers it affects.
type Error struct {
	cause    error
	Kind     Kind
	Message  string
	Affected []string
}

func (e *Error) Error() string {
	if len(e.Affected) > 0 {
		return fmt.Sprintf("%s: %s (affected: %s)", e.Kind, e.Message, strings.Join(e.Affected, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so sentinel values like
// ErrInsufficientBalance work with errors.Is across instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for the common single-value cases.
var (
	// ErrInsufficientBalance is returned when a comp-off debit exceeds the
	// available units.
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient comp-off balance"}
	// ErrStaleRotationState is returned when a compare-and-set save of
	// rotation state loses to a concurrent writer. Callers retry once.
	ErrStaleRotationState = &Error{Kind: KindDataIntegrity, Message: "rotation state version is stale"}
	// ErrNotFound is returned by repositories when an entity does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
)

// NewConfigError reports a fatal configuration problem
func NewConfigError(message string, affected ...string) *Error {
	return &Error{Kind: KindConfig, Message: message, Affected: affected}
}

// NewDataIntegrityError reports a write that would corrupt stored state
func NewDataIntegrityError(message string, affected ...string) *Error {
	return &Error{Kind: KindDataIntegrity, Message: message, Affected: affected}
}

// NewConstraintError reports a constraint violation surfaced as an error
func NewConstraintError(message string, affected ...string) *Error {
	return &Error{Kind: KindConstraint, Message: message, Affected: affected}
}

// NewCancellationError reports that a generation stopped at a date boundary
func NewCancellationError(message string) *Error {
	return &Error{Kind: KindCancelled, Message: message}
}

// NewSwapIntegrityError reports block-integrity breaches for the named analysts
func NewSwapIntegrityError(message string, affected ...string) *Error {
	return &Error{Kind: KindSwapIntegrity, Message: message, Affected: affected}
}

// NewPartialResultError reports a run that exceeded its soft deadline
func NewPartialResultError(message string) *Error {
	return &Error{Kind: KindPartialResult, Message: message}
}

// WrapError attaches a kind to an underlying error while keeping the chain
// intact for errors.Is and errors.As.
func WrapError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// KindOf extracts the Kind from an error chain; empty when the chain holds
// no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
