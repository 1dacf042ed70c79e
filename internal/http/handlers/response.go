// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities used across all endpoints: the
// error envelope, the pure Render function that builds it from an
// *apperr.Error, and the terminal ErrorHandler middleware that writes it.
//
// Conventions:
//   - Handlers never format their own error bodies. They call Abort(c, err);
//     middleware that cannot import this package pushes errors with c.Error.
//   - ErrorHandler translates the last error on the context and renders it
//     once, if nothing has been written yet.
//   - Development mode exposes the stack and the raw error structure;
//     production masks non-operational errors entirely.
//
// Example production error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "status": "fail",
//	  "error": {
//	    "message": "Validation failed",
//	    "code": "VALIDATION_ERROR",
//	    "details": [{"field": "email", "message": "Please provide a valid email address", "value": "x"}]
//	  },
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-subscription-service/internal/apperr"
	"github.com/tbourn/go-subscription-service/internal/config"
	"github.com/tbourn/go-subscription-service/internal/http/middleware"
	"github.com/tbourn/go-subscription-service/internal/observability"
)

// maskedMessage replaces the message of non-operational errors in production.
const maskedMessage = "Something went wrong!"

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// "fail" for 4xx, "error" otherwise
	Status apperr.Status `json:"status" example:"fail" swaggertype:"string"`
	Error  ErrorBody     `json:"error"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// ErrorBody carries the client-facing error fields. Stack and Raw are only
// populated in development mode.
type ErrorBody struct {
	Message string              `json:"message" example:"Validation failed"`
	Code    apperr.Code         `json:"code" example:"VALIDATION_ERROR" swaggertype:"string"`
	Details []apperr.FieldError `json:"details,omitempty"`
	Stack   string              `json:"stack,omitempty"`
	Raw     *RawError           `json:"raw,omitempty"`
}

// RawError is the full error structure exposed in development mode.
type RawError struct {
	StatusCode    int                 `json:"statusCode"`
	Status        apperr.Status       `json:"status" swaggertype:"string"`
	ErrorCode     apperr.Code         `json:"errorCode" swaggertype:"string"`
	IsOperational bool                `json:"isOperational"`
	Details       []apperr.FieldError `json:"details,omitempty"`
	Cause         string              `json:"cause,omitempty"`
}

// SuccessResponse is the envelope for simple acknowledgements.
type SuccessResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Successfully subscribed!"`
}

// Render builds the HTTP status and payload for err in mode. It never panics;
// a nil err renders as an internal error.
//
// In production, operational errors keep their status, message, code and
// details while non-operational errors become a fixed 500 body. In
// development every error keeps its real status and additionally carries the
// stack and raw structure.
func Render(err *apperr.Error, mode config.Mode) (int, ErrorResponse) {
	if err == nil {
		err = apperr.Internal(errors.New("nil error rendered"))
	}

	if mode.IsDevelopment() {
		raw := &RawError{
			StatusCode:    err.StatusCode(),
			Status:        err.Status(),
			ErrorCode:     err.Code(),
			IsOperational: err.Operational(),
			Details:       err.Details(),
		}
		if cause := err.Cause(); cause != nil {
			raw.Cause = cause.Error()
		}
		return err.StatusCode(), ErrorResponse{
			Status: err.Status(),
			Error: ErrorBody{
				Message: err.Message(),
				Code:    err.Code(),
				Details: err.Details(),
				Stack:   err.Stack(),
				Raw:     raw,
			},
		}
	}

	if !err.Operational() {
		return http.StatusInternalServerError, ErrorResponse{
			Status: apperr.StatusError,
			Error:  ErrorBody{Message: maskedMessage, Code: apperr.CodeInternal},
		}
	}

	return err.StatusCode(), ErrorResponse{
		Status: err.Status(),
		Error: ErrorBody{
			Message: err.Message(),
			Code:    err.Code(),
			Details: err.Details(),
		},
	}
}

// ErrorHandler returns the terminal error middleware. After the rest of the
// chain runs, it translates the last error attached to the context and writes
// the rendered envelope unless a response was already written.
//
// Register it after RequestID and RedactingLogger and before Recovery.
func ErrorHandler(mode config.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		writeError(c, apperr.Translate(last.Err), mode)
	}
}

// Abort attaches err to the context and stops the handler chain. The
// ErrorHandler middleware renders it.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// writeError logs and writes ae. Development logs every error; production
// logs only non-operational ones.
func writeError(c *gin.Context, ae *apperr.Error, mode config.Mode) {
	status, body := Render(ae, mode)
	rid := middleware.RequestIDFrom(c)

	if mode.IsDevelopment() || !ae.Operational() {
		level := zerolog.ErrorLevel
		if ae.Operational() {
			level = zerolog.WarnLevel
		}
		middleware.LoggerFrom(c).WithLevel(level).
			Err(ae.Cause()).
			Int("status", ae.StatusCode()).
			Str("code", string(ae.Code())).
			Bool("operational", ae.Operational()).
			Str("trace_id", observability.TraceID(c.Request.Context())).
			Str("stack", ae.Stack()).
			Msg(ae.Message())
	}

	// The masked production body carries nothing but status and error.
	if mode.IsDevelopment() || ae.Operational() {
		body.RequestID = rid
	}
	c.AbortWithStatusJSON(status, body)
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
