// Package domain defines the aggregates, collaborator ports and errors of the
// tenant-scoped RBAC engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates an invariant violation: malformed input, a
// cross-tenant reference, a cyclic nesting attempt and similar. It is never
// retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// PermissionRequiredError is returned by Subject.CheckPermitted when the
// bound subject does not hold a permission.
type PermissionRequiredError struct {
	Permission string
	Username   string
}

func (e *PermissionRequiredError) Error() string {
	return fmt.Sprintf("permission %q required to access requested resource: permission denied for user %s",
		e.Permission, e.Username)
}

// ScopeError signals misuse of the per-scope Subject slot: binding twice,
// clearing an empty slot, or using a context that carries no scope. It is a
// programmer error and fatal to the unit of work.
type ScopeError struct {
	Message string
}

func (e *ScopeError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrScope creates a ScopeError with a formatted message.
func ErrScope(format string, args ...interface{}) *ScopeError {
	return &ScopeError{Message: fmt.Sprintf(format, args...)}
}

// ErrPermissionRequired creates a PermissionRequiredError.
func ErrPermissionRequired(permission, username string) *PermissionRequiredError {
	return &PermissionRequiredError{Permission: permission, Username: username}
}
