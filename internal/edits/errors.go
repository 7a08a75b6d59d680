package edits

import (
	"errors"
	"fmt"

	"apartment-locator/internal/fields"
)

// Sentinel errors. Every typed error below matches exactly one of them via errors.Is.
var (
	ErrValidation        = fields.ErrInvalid
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrPersistence       = errors.New("persistence failure")
	ErrConflictState     = errors.New("conflict state")
)

// ValidationError reports an unknown field for the target type or a malformed value
type ValidationError = fields.ValidationError

// NotFoundError represents a missing entity or edit record
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AuthorizationError represents an attempt to act outside the caller's tenant
type AuthorizationError struct {
	UserID   string
	Resource string
	Reason   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q may not modify %s: %s", e.UserID, e.Resource, e.Reason)
}

// Is implements errors.Is support
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// InvalidResolutionError represents an unrecognized resolution value
type InvalidResolutionError struct {
	Value string
}

func (e *InvalidResolutionError) Error() string {
	return fmt.Sprintf("resolution %q must be %q or %q", e.Value, KeepLocator, AcceptScraper)
}

// Is implements errors.Is support
func (e *InvalidResolutionError) Is(target error) bool {
	return target == ErrInvalidResolution
}

// PersistenceError wraps a store failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ConflictStateError represents an action against a record whose conflict flags
// are not in the expected state: not flagged, superseded, or changed concurrently.
type ConflictStateError struct {
	EditID int64
	Reason string
}

func (e *ConflictStateError) Error() string {
	return fmt.Sprintf("edit %d: %s", e.EditID, e.Reason)
}

// Is implements errors.Is support
func (e *ConflictStateError) Is(target error) bool {
	return target == ErrConflictState
}

// NewPersistenceError wraps err unless it already carries one of the typed errors
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrNotFound, ErrUnauthorized, ErrInvalidResolution, ErrPersistence, ErrConflictState} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
