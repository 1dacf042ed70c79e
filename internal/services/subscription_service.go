// Package services – SubscriptionService
//
// This file implements the SubscriptionService, which records newsletter
// sign-ups. An address is looked up first so the common resubmission case is
// answered without relying on the insert failing; the unique index on email
// still guards the race between two concurrent first submissions.
//
// Duplicate submissions surface as *apperr.DuplicateKeyError and model-level
// violations as *apperr.SchemaError. Handlers pass both to the translator.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-subscription-service/internal/apperr"
	"github.com/tbourn/go-subscription-service/internal/domain"
)

// SubscriptionRepo defines the repository contract required by
// SubscriptionService.
type SubscriptionRepo interface {
	// FindByEmail returns the subscription for email or gorm.ErrRecordNotFound.
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Subscription, error)

	// CreateSubscription inserts a new subscription row.
	CreateSubscription(ctx context.Context, db *gorm.DB, email string) (*domain.Subscription, error)
}

// SubscriptionService provides the subscribe operation.
type SubscriptionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the subscription repository used by this service.
	Repo SubscriptionRepo
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(db *gorm.DB, r SubscriptionRepo) *SubscriptionService {
	return &SubscriptionService{DB: db, Repo: r}
}

// Subscribe stores email, which callers have already normalized. An address
// that is already stored yields *apperr.DuplicateKeyError.
func (s *SubscriptionService) Subscribe(ctx context.Context, email string) (*domain.Subscription, error) {
	if s.DB == nil {
		return nil, ErrNoDatabase
	}

	existing, err := s.Repo.FindByEmail(ctx, s.DB, email)
	switch {
	case err == nil && existing != nil:
		return nil, &apperr.DuplicateKeyError{Field: "email", Value: existing.Email}
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	return s.Repo.CreateSubscription(ctx, s.DB, email)
}
