// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - When a subscription is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - A unique-constraint violation on email is reported as an
//     *apperr.DuplicateKeyError so the HTTP layer can render DUPLICATE_FIELD.
//   - Schema violations raised by the model hook (*apperr.SchemaError) and any
//     other DB error are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-subscription-service/internal/apperr"
	"github.com/tbourn/go-subscription-service/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// FindByEmail returns the subscription for email, or ErrNotFound.
// The address is normalized before lookup.
func FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Where("email = ?", domain.NormalizeEmail(email)).
		Take(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubscription inserts a new subscription for email. ID, timestamp and
// normalization are applied by the model's BeforeCreate hook.
func CreateSubscription(ctx context.Context, db *gorm.DB, email string) (*domain.Subscription, error) {
	s := &domain.Subscription{Email: email}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isDuplicate(err) {
			return nil, &apperr.DuplicateKeyError{Field: "email", Value: domain.NormalizeEmail(email), Err: err}
		}
		return nil, err
	}
	return s, nil
}

// isDuplicate recognizes unique violations. TranslateError covers the
// drivers GORM knows; the text checks catch the rest.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
