package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the part of the viewer it affects.
type Kind int

const (
	// KindLoad means the match log (or another list) could not be loaded.
	KindLoad Kind = iota + 1
	// KindStateFetch means one per-step panel could not be fetched.
	KindStateFetch
	// KindMutation means an execute, truncate, fork or CRUD write failed.
	KindMutation
	// KindValidation means an action was refused before reaching the backend.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindStateFetch:
		return "state fetch"
	case KindMutation:
		return "mutation"
	case KindValidation:
		return "validation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error carries a Kind alongside the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrInvalidAction is returned when an action without valid == true is submitted.
var ErrInvalidAction = errors.New("action is not valid")

// Wrap tags err with kind. An error already carrying kind is returned as is.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) && be.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err carries kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var be *Error
	for err != nil {
		if !errors.As(err, &be) {
			return false
		}
		if be.Kind == kind {
			return true
		}
		err = be.Err
	}
	return false
}
