package apperr

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// FieldError describes one failed rule for one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// Error is the application error model.
//
// An Error is created where a failure is first detected and is never mutated
// afterwards: fields are unexported and accessors return copies. Errors built
// with New are operational (safe to describe to clients); Internal and the
// NonOperational option produce errors whose details must stay server-side.
type Error struct {
	message     string
	statusCode  int
	code        Code
	operational bool
	details     []FieldError
	cause       error

	// stack is captured at construction for development diagnostics.
	stack error
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithDetails attaches per-field failures. The slice is copied.
func WithDetails(details []FieldError) Option {
	return func(e *Error) {
		if len(details) == 0 {
			return
		}
		e.details = append([]FieldError(nil), details...)
	}
}

// WithCause records the underlying error for logging and errors.Is/As.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// NonOperational marks the error as an unanticipated fault.
func NonOperational() Option {
	return func(e *Error) { e.operational = false }
}

// New constructs an operational Error.
func New(statusCode int, code Code, message string, opts ...Option) *Error {
	e := &Error{
		message:     message,
		statusCode:  statusCode,
		code:        code,
		operational: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cause != nil {
		e.stack = pkgerrors.WithStack(e.cause)
	} else {
		e.stack = pkgerrors.New(message)
	}
	return e
}

// Internal wraps an unexpected cause as a non-operational 500.
func Internal(cause error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, "Internal server error",
		WithCause(cause), NonOperational())
}

// Validation builds the 400 VALIDATION_ERROR raised by the input validator.
func Validation(details []FieldError) *Error {
	return New(http.StatusBadRequest, CodeValidation, "Validation failed", WithDetails(details))
}

// RateLimited builds the 429 returned when a client exhausts its window.
func RateLimited(message string) *Error {
	if message == "" {
		message = "Too many requests from this IP, please try again later."
	}
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, message)
}

// RouteNotFound builds the 404 for unmatched routes.
func RouteNotFound(method, path string) *Error {
	return New(http.StatusNotFound, CodeRouteNotFound,
		fmt.Sprintf("Can't find %s %s on this server", method, path))
}

// MethodNotAllowed builds the 405 for a known path with an unsupported verb.
func MethodNotAllowed(method, path string) *Error {
	return New(http.StatusMethodNotAllowed, CodeMethodNotAllowed,
		fmt.Sprintf("Method %s not allowed on %s", method, path))
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Message() string   { return e.message }
func (e *Error) StatusCode() int   { return e.statusCode }
func (e *Error) Code() Code        { return e.code }
func (e *Error) Operational() bool { return e.operational }
func (e *Error) Cause() error      { return e.cause }

// Status returns "fail" for 4xx and "error" otherwise.
func (e *Error) Status() Status { return statusFor(e.statusCode) }

// Details returns a copy of the per-field failures, or nil.
func (e *Error) Details() []FieldError {
	if len(e.details) == 0 {
		return nil
	}
	return append([]FieldError(nil), e.details...)
}

// Stack returns the diagnostic trace captured at construction.
func (e *Error) Stack() string {
	if e.stack == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.stack)
}
