package upload

import (
	"errors"
	"fmt"
)

// Kind classifies why an upload task failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a local metadata or input problem, raised before any
	// network call.
	KindValidation
	// KindConflict means the metadata service already has the file and force
	// was not set.
	KindConflict
	// KindRegistration is a server error or transport failure while
	// registering. Force never overrides it.
	KindRegistration
	// KindTransfer is any object storage failure.
	KindTransfer
	// KindCompletion means the service rejected the mark-uploaded call. The
	// object bytes are already stored when this happens.
	KindCompletion
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindRegistration:
		return "registration"
	case KindTransfer:
		return "transfer"
	case KindCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Error is the failure of one upload phase.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind with no cause, so the Err* values
// below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrRegistration = &Error{Kind: KindRegistration}
	ErrTransfer     = &Error{Kind: KindTransfer}
	ErrCompletion   = &Error{Kind: KindCompletion}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// asError keeps an existing *Error as is and tags anything else with kind.
func asError(kind Kind, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
