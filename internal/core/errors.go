package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidBudgetGroup = errors.New("invalid budget group")
	ErrInconsistentState  = errors.New("inconsistent persisted state")
)

// ValidationError is returned for input that is rejected before anything is applied.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a category, goal or owner scope does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthorizationError is returned when a resource exists but belongs to another owner.
type AuthorizationError struct {
	Resource string
	ID       string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s %s belongs to a different owner", e.Resource, e.ID)
}

// AssemblyError aborts a summary computation. No partial summary is returned with it.
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble summary (%s): %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// InvalidField builds a ValidationError wrapping a sentinel.
func InvalidField(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnauthorized reports whether err is, or wraps, an AuthorizationError.
func IsUnauthorized(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}
