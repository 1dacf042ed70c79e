// Package services defines the business logic for email subscriptions.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed by
// the apperr translator at the handler layer.
package services

import "errors"

// ErrNoDatabase is returned when a service is used without a database handle.
var ErrNoDatabase = errors.New("database handle is nil")
