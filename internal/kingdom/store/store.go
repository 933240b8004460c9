// Package store persists kingdoms, kings and citizens. Implementations
// return sentinel errors for infrastructure facts; the service translates
// them into domain errors.
package store

import (
	"context"

	"crowngate/internal/kingdom/models"
	id "crowngate/pkg/domain"
)

// KingdomStore persists kingdoms.
type KingdomStore interface {
	// Create inserts a kingdom. Returns sentinel.ErrAlreadyUsed when the
	// name is taken (case-insensitive).
	Create(ctx context.Context, kingdom *models.Kingdom) error
	FindByID(ctx context.Context, kingdomID id.KingdomID) (*models.Kingdom, error)
	List(ctx context.Context) ([]*models.Kingdom, error)
}

// KingStore persists king profiles.
type KingStore interface {
	// Create inserts a king. Returns sentinel.ErrAlreadyUsed when the user
	// already has a profile or the kingdom already has a king.
	Create(ctx context.Context, king *models.King) error
	FindByID(ctx context.Context, kingID id.KingID) (*models.King, error)
	FindByUserID(ctx context.Context, userID id.UserID) (*models.King, error)
	FindByKingdomID(ctx context.Context, kingdomID id.KingdomID) (*models.King, error)
	// Execute runs fn while holding the king's lock (a mutex in memory, a
	// SELECT ... FOR UPDATE row lock in Postgres). Citizen reads and writes
	// made through the ctx passed to fn observe the same lock scope, which
	// is what keeps the capacity check race-free.
	Execute(ctx context.Context, kingID id.KingID, fn func(ctx context.Context, king *models.King) error) error
}

// CitizenStore persists citizen profiles.
type CitizenStore interface {
	// Create inserts a citizen. Returns sentinel.ErrAlreadyUsed when the
	// user already has a profile.
	Create(ctx context.Context, citizen *models.Citizen) error
	FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error)
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Citizen, error)
	ListByKingdom(ctx context.Context, kingdomID id.KingdomID) ([]*models.Citizen, error)
	CountEnrolledByKing(ctx context.Context, kingID id.KingID) (int, error)
	Update(ctx context.Context, citizen *models.Citizen) error
}
