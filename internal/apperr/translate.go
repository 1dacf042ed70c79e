package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Translate maps an arbitrary failure cause into an *Error.
//
// Rules are evaluated in order and the first match wins:
//
//	*Error                                  pass-through
//	*CastError, *json.UnmarshalTypeError    400 INVALID_DATA
//	*DuplicateKeyError                      400 DUPLICATE_FIELD
//	*SchemaError                            400 VALIDATION_ERROR
//	ErrTokenInvalid                         401 INVALID_TOKEN
//	ErrTokenExpired                         401 TOKEN_EXPIRED
//	malformed JSON body                     400 INVALID_DATA
//	*http.MaxBytesError                     413 PAYLOAD_TOO_LARGE
//	anything else                           500 INTERNAL_ERROR (non-operational)
//
// Translate(nil) returns nil.
func Translate(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var ce *CastError
	if errors.As(err, &ce) {
		return invalidData(ce.Field, ce.Value, err)
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		field := te.Field
		if field == "" {
			field = "body"
		}
		return invalidData(field, te.Value, err)
	}

	var de *DuplicateKeyError
	if errors.As(err, &de) {
		msg := fmt.Sprintf("Duplicate field value: %v. Please use another value.", de.Value)
		return New(http.StatusBadRequest, CodeDuplicateField, msg, WithCause(err))
	}

	var se *SchemaError
	if errors.As(err, &se) {
		msgs := make([]string, 0, len(se.Violations))
		for _, v := range se.Violations {
			msgs = append(msgs, v.Message)
		}
		msg := "Invalid input data. " + strings.Join(msgs, ". ")
		return New(http.StatusBadRequest, CodeValidation, msg,
			WithDetails(se.Violations), WithCause(err))
	}

	switch {
	case errors.Is(err, ErrTokenInvalid):
		return New(http.StatusUnauthorized, CodeInvalidToken,
			"Invalid token. Please log in again.", WithCause(err))
	case errors.Is(err, ErrTokenExpired):
		return New(http.StatusUnauthorized, CodeTokenExpired,
			"Your token has expired. Please log in again.", WithCause(err))
	}

	var syn *json.SyntaxError
	if errors.As(err, &syn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return New(http.StatusBadRequest, CodeInvalidData, "Invalid request body", WithCause(err))
	}

	var mb *http.MaxBytesError
	if errors.As(err, &mb) {
		return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			"Request body too large", WithCause(err))
	}

	return Internal(err)
}

func invalidData(field string, value any, cause error) *Error {
	return New(http.StatusBadRequest, CodeInvalidData,
		fmt.Sprintf("Invalid %s: %v", field, value), WithCause(cause))
}
