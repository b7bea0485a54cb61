package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNothingToEnable = errors.New("nothing to enable: time is not set")
	ErrUnknownKind     = errors.New("unknown kind")
)

// ValidationError rejects malformed user input before any state is mutated.
type ValidationError struct {
	Field  string
	Reason string
	Value  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ContentFetchError reports that a content collaborator could not produce a payload.
type ContentFetchError struct {
	Source string
	Err    error
}

func (e *ContentFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *ContentFetchError) Unwrap() error { return e.Err }

// TransientError marks a network-level send failure that is worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an application-level send failure; retrying will not help.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// StorageError wraps any failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
