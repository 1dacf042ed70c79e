// Package domain defines the persistence model for email subscriptions. The
// type is mapped with GORM and is shared by the repository and service layers.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-subscription-service/internal/apperr"
)

// emailPattern is the storage-level sanity check; stricter syntax checks run
// in the HTTP validator before a record ever reaches the store.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Subscription is a single newsletter sign-up.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email: lower-cased, trimmed address; unique across all rows.
//   - CreatedAt: insertion timestamp (UTC).
type Subscription struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(320);not null;uniqueIndex:ux_subscriptions_email"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BeforeCreate normalizes and validates the record. Violations are reported
// together as an *apperr.SchemaError.
func (s *Subscription) BeforeCreate(_ *gorm.DB) error {
	s.Email = NormalizeEmail(s.Email)

	var violations []apperr.FieldError
	switch {
	case s.Email == "":
		violations = append(violations, apperr.FieldError{Field: "email", Message: "Email is required", Value: s.Email})
	case !emailPattern.MatchString(s.Email):
		violations = append(violations, apperr.FieldError{Field: "email", Message: "Please enter a valid email address", Value: s.Email})
	}
	if len(violations) > 0 {
		return &apperr.SchemaError{Violations: violations}
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}
