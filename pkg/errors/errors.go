package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies application errors
type ErrorType string

const (
	ValidationError      ErrorType = "validation"
	NotFoundError        ErrorType = "not_found"
	AuthenticationError  ErrorType = "authentication"
	AuthorizationError   ErrorType = "authorization"
	ConflictError        ErrorType = "conflict"
	ExternalServiceError ErrorType = "external_service"
	TimeoutError         ErrorType = "timeout"
	InternalError        ErrorType = "internal"
)

// AppError is the application error carried through handlers and services
type AppError struct {
	Type       ErrorType
	Code       string
	Message    string
	Details    map[string]interface{}
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap attaches a cause to the error and returns it
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// WithDetail attaches a detail key/value and returns the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an AppError with the default status code for its type
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: defaultStatusCode(errType),
	}
}

func defaultStatusCode(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case AuthenticationError:
		return http.StatusUnauthorized
	case AuthorizationError:
		return http.StatusForbidden
	case ConflictError:
		return http.StatusConflict
	case ExternalServiceError:
		return http.StatusBadGateway
	case TimeoutError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorf creates a validation error
func ValidationErrorf(code, format string, args ...interface{}) *AppError {
	return New(ValidationError, code, fmt.Sprintf(format, args...))
}

// NotFoundErrorf creates a not-found error
func NotFoundErrorf(code, format string, args ...interface{}) *AppError {
	return New(NotFoundError, code, fmt.Sprintf(format, args...))
}

// AuthenticationErrorf creates an authentication error
func AuthenticationErrorf(code, format string, args ...interface{}) *AppError {
	return New(AuthenticationError, code, fmt.Sprintf(format, args...))
}

// AuthorizationErrorf creates an authorization error
func AuthorizationErrorf(code, format string, args ...interface{}) *AppError {
	return New(AuthorizationError, code, fmt.Sprintf(format, args...))
}

// ConflictErrorf creates a conflict error
func ConflictErrorf(code, format string, args ...interface{}) *AppError {
	return New(ConflictError, code, fmt.Sprintf(format, args...))
}

// ExternalServiceErrorf creates an external-service error. Store write
// rejections (permission, connectivity) surface through this type.
func ExternalServiceErrorf(code, format string, args ...interface{}) *AppError {
	return New(ExternalServiceError, code, fmt.Sprintf(format, args...))
}

// TimeoutErrorf creates a timeout error
func TimeoutErrorf(code, format string, args ...interface{}) *AppError {
	return New(TimeoutError, code, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error
func InternalErrorf(code, format string, args ...interface{}) *AppError {
	return New(InternalError, code, fmt.Sprintf(format, args...))
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errType
	}
	return false
}
