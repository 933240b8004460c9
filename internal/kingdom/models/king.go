package models

import (
	"time"

	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
)

const (
	// DefaultMaxCitizens is the capacity a king gets when none is requested.
	DefaultMaxCitizens = 3
	minMaxCitizens     = 1
	maxMaxCitizens     = 10
)

// King rules exactly one kingdom and admits at most MaxCitizens citizens.
type King struct {
	ID          id.KingID    `json:"id"`
	UserID      id.UserID    `json:"user_id"`
	KingdomID   id.KingdomID `json:"kingdom_id"`
	MaxCitizens int          `json:"max_citizens"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewKing constructs a king profile. A zero maxCitizens selects the default.
func NewKing(kingID id.KingID, userID id.UserID, kingdomID id.KingdomID, maxCitizens int, now time.Time) (*King, error) {
	if maxCitizens == 0 {
		maxCitizens = DefaultMaxCitizens
	}
	if maxCitizens < minMaxCitizens || maxCitizens > maxMaxCitizens {
		return nil, dErrors.New(dErrors.CodeValidation, "max citizens must be between 1 and 10")
	}
	return &King{
		ID:          kingID,
		UserID:      userID,
		KingdomID:   kingdomID,
		MaxCitizens: maxCitizens,
		CreatedAt:   now,
	}, nil
}

// CanAcceptMore reports whether the king has room for another citizen.
func (k *King) CanAcceptMore(currentCitizens int) bool {
	return currentCitizens < k.MaxCitizens
}
