// Package models defines the kingdom aggregate and its two role profiles.
package models

import (
	"strings"
	"time"

	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
)

// Kingdom is a realm citizens enroll into. One king and one screening test
// per kingdom.
type Kingdom struct {
	ID          id.KingdomID `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
}

func NewKingdom(kingdomID id.KingdomID, name, description string, now time.Time) (*Kingdom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "kingdom name cannot be empty")
	}
	if len(name) > 200 {
		return nil, dErrors.New(dErrors.CodeValidation, "kingdom name must be 200 characters or less")
	}
	return &Kingdom{
		ID:          kingdomID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}, nil
}
