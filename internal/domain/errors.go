package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation indicates the operation would break a domain invariant.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidSpecification indicates a malformed query descriptor.
	ErrInvalidSpecification = errors.New("invalid specification")

	// ErrTransientStorage indicates a connectivity, timeout or throttling failure
	// of the underlying store. It is the only error worth retrying.
	ErrTransientStorage = errors.New("transient storage failure")

	// ErrCommitFailed indicates the transaction could not be committed. The
	// unit of work has already been rolled back when it is returned.
	ErrCommitFailed = errors.New("commit failed")
)

var (
	// ErrConflict is returned when a unique field already holds the value.
	ErrConflict = fmt.Errorf("%w: duplicate value", ErrInvalidOperation)

	// ErrHierarchyCorrupted is returned when the category parent graph contains a cycle.
	ErrHierarchyCorrupted = fmt.Errorf("%w: category hierarchy contains a cycle", ErrInvalidOperation)

	// ErrValidation is returned by constructors and mutators on invalid input.
	ErrValidation = fmt.Errorf("%w: validation failed", ErrInvalidOperation)
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStorage)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
