package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same error code, so clones still match
// the predefined sentinels below.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrInvalidTransition  = New("INVALID_TRANSITION", http.StatusConflict, "transition not allowed")
	ErrUnauthorizedAction = New("UNAUTHORIZED_ACTION", http.StatusForbidden, "actor not permitted to perform this action")
	ErrInvalidState       = New("INVALID_STATE", http.StatusConflict, "memo is not editable in its current state")
	ErrNotReady           = New("NOT_READY", http.StatusUnprocessableEntity, "document not ready")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]interface{}, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetail returns a copy of err carrying an additional structured detail.
func WithDetail(err *Error, key string, value interface{}) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]interface{}, 1)
	}
	clone.Details[key] = value
	return clone
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	e := Clone(ErrNotFound, fmt.Sprintf("%s not found", resource))
	e.Details = map[string]interface{}{"resource": resource, "id": id}
	return e
}

// Validation reports a missing or malformed field.
func Validation(field, message string) *Error {
	e := Clone(ErrValidation, message)
	e.Details = map[string]interface{}{"field": field}
	return e
}

// InvalidTransition reports an action that is illegal from the current status.
func InvalidTransition(status, action string) *Error {
	e := Clone(ErrInvalidTransition, fmt.Sprintf("cannot %s memo in status %s", action, status))
	e.Details = map[string]interface{}{"status": status, "action": action}
	return e
}

// UnauthorizedAction reports an actor lacking the role required by the current status.
func UnauthorizedAction(status, requiredRole, actorRole string) *Error {
	e := Clone(ErrUnauthorizedAction, fmt.Sprintf("%s required while memo is %s", requiredRole, status))
	e.Details = map[string]interface{}{"status": status, "requiredRole": requiredRole, "actorRole": actorRole}
	return e
}

// InvalidState reports a content mutation outside of the editable statuses.
func InvalidState(status string) *Error {
	e := Clone(ErrInvalidState, fmt.Sprintf("memo cannot be modified while %s", status))
	e.Details = map[string]interface{}{"status": status}
	return e
}

// Conflict reports a lost optimistic-concurrency race.
func Conflict(id string, version int) *Error {
	e := Clone(ErrConflict, "memo was modified concurrently, reload and retry")
	e.Details = map[string]interface{}{"id": id, "version": version}
	return e
}

// NotReady reports a strict render of a memo that is not approved.
func NotReady(status string) *Error {
	e := Clone(ErrNotReady, fmt.Sprintf("document unavailable while memo is %s", status))
	e.Details = map[string]interface{}{"status": status}
	return e
}
