package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// PermissionDeniedError represents an unauthorized mutation attempt.
// It is raised before any store write happens.
type PermissionDeniedError struct {
	Operation string
}

func (e PermissionDeniedError) Error() string {
	if e.Operation == "" {
		return "permission denied"
	}
	return fmt.Sprintf("permission denied: %s", e.Operation)
}

// Is enables errors.Is matching on PermissionDeniedError.
func (e PermissionDeniedError) Is(target error) bool {
	_, ok := target.(PermissionDeniedError)
	if ok {
		return true
	}
	_, ok = target.(*PermissionDeniedError)
	return ok
}

// ErrPermissionDenied is the sentinel error for unauthorized mutations.
var ErrPermissionDenied = PermissionDeniedError{}

// ConflictError represents a mutation that lost to current state,
// like reviewing an already-reviewed request.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	if e.Reason == "" {
		return "conflict"
	}
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// Is enables errors.Is matching on ConflictError.
func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// ErrConflict is the sentinel error for state conflicts.
var ErrConflict = ConflictError{}
