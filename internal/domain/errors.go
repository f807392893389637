package domain

import "errors"

var (
	// ErrNotFound is a clean absence reported by a source or the store.
	ErrNotFound = errors.New("not found")

	// ErrMissingRanking means an otherwise valid entity has no row in a ranking table.
	ErrMissingRanking = errors.New("ranking row missing")

	// ErrPassAborted wraps roster or ranking failures that end a whole pass.
	ErrPassAborted = errors.New("pass aborted")
)

type transientError struct {
	cause error
}

func (e transientError) Error() string {
	if e.cause == nil {
		return "transient error"
	}
	return e.cause.Error()
}

func (e transientError) Unwrap() error {
	return e.cause
}

// Transient marks a fetch or parse failure that may succeed on a later attempt.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{cause: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var target transientError
	return errors.As(err, &target)
}
