package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrTransformError     = "TRANSFORM_ERROR"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
)

// Session-specific error codes.
const (
	ErrSessionNotReady    = "SESSION_NOT_READY"
	ErrSessionClosed      = "SESSION_CLOSED"
	ErrSessionStale       = "SESSION_STALE"
	ErrConfirmationNeeded = "CONFIRMATION_NEEDED"
)

// ErrorEnvelope is the standard error response envelope. It implements the
// error interface so it can flow through ordinary error returns.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error. Field is the dotted
// path of the offending field in the submission object.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewTransformError returns a TRANSFORM_ERROR. The offending field is carried
// in the details for logging; the message stays generic because transform
// failures are programming or data errors, not something the user can correct
// field by field.
func NewTransformError(field string, cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrTransformError,
		Message: "The record could not be prepared for saving",
		Details: []FieldError{{Field: field, Code: ErrTransformError, Message: cause.Error()}},
	}
}

// NewSessionNotReadyError returns a SESSION_NOT_READY error.
func NewSessionNotReadyError(state string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionNotReady,
		Message: fmt.Sprintf("the edit session is %s and cannot accept this operation", state),
	}
}

// NewConfirmationNeededError returns a CONFIRMATION_NEEDED error. Destructive
// operations require a prior confirmation request.
func NewConfirmationNeededError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrConfirmationNeeded,
		Message: "Deletion must be confirmed before it is executed",
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The backend service is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The backend service did not respond in time",
	}
}
