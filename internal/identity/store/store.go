// Package store persists users. Implementations return sentinel errors for
// infrastructure facts; the service translates them into domain errors.
package store

import (
	"context"

	"crowngate/internal/identity/models"
	id "crowngate/pkg/domain"
)

// UserStore is the persistence contract for users.
type UserStore interface {
	// Create inserts a new user. Returns sentinel.ErrAlreadyUsed when the
	// email is taken (case-insensitive).
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Delete removes a user. Used to compensate when profile creation fails
	// after the user row was written.
	Delete(ctx context.Context, userID id.UserID) error
}
