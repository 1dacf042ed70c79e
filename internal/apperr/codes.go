// Package apperr defines the single structured error type that flows from the
// validation, service, and persistence layers to the HTTP response renderer.
//
// This file centralizes the machine-readable error codes. Codes are stable,
// SCREAMING_SNAKE_CASE strings that clients branch on; the human message may
// change, the code must not.
//
// Example response:
//
//	{
//	  "status": "fail",
//	  "error": { "message": "Duplicate field value: a@b.co. Please use another value.", "code": "DUPLICATE_FIELD" }
//	}
package apperr

// Code is a machine-readable error discriminator.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeDuplicateField    Code = "DUPLICATE_FIELD"
	CodeInvalidData       Code = "INVALID_DATA"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodeTokenExpired      Code = "TOKEN_EXPIRED"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeRouteNotFound     Code = "ROUTE_NOT_FOUND"
	CodeInternal          Code = "INTERNAL_ERROR"

	// HTTP-transport specific:
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
)

// Status is the coarse outcome class derived from the HTTP status code.
type Status string

const (
	// StatusFail marks client errors (4xx).
	StatusFail Status = "fail"
	// StatusError marks everything else.
	StatusError Status = "error"
)

// statusFor derives the outcome class from an HTTP status code.
func statusFor(statusCode int) Status {
	if statusCode >= 400 && statusCode <= 499 {
		return StatusFail
	}
	return StatusError
}
