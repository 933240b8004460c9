package models

import (
	"time"

	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
)

// Citizen is a kingdom resident.
//
// Invariant: IsEnrolled ⇔ KingID != nil ∧ EnrolledAt != nil. The Enroll
// mutator is the only code that touches these three fields together.
type Citizen struct {
	ID          id.CitizenID `json:"id"`
	UserID      id.UserID    `json:"user_id"`
	KingdomID   id.KingdomID `json:"kingdom_id"`
	KingID      *id.KingID   `json:"king_id,omitempty"`
	Age         int          `json:"age"`
	PigeonEmail string       `json:"pigeon_email"`
	IsEnrolled  bool         `json:"is_enrolled"`
	EnrolledAt  *time.Time   `json:"enrolled_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func NewCitizen(citizenID id.CitizenID, userID id.UserID, kingdomID id.KingdomID, age int, pigeonEmail string, now time.Time) (*Citizen, error) {
	if age < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "age cannot be negative")
	}
	return &Citizen{
		ID:          citizenID,
		UserID:      userID,
		KingdomID:   kingdomID,
		Age:         age,
		PigeonEmail: pigeonEmail,
		CreatedAt:   now,
	}, nil
}

// CanEnroll checks the citizen-side preconditions for enrollment. Use with
// Enroll inside the king store's Execute callback.
func (c *Citizen) CanEnroll() error {
	if c.IsEnrolled {
		return dErrors.New(dErrors.CodeConflict, "citizen is already enrolled")
	}
	return nil
}

// Enroll binds the citizen to a king. Call CanEnroll first.
func (c *Citizen) Enroll(kingID id.KingID, now time.Time) {
	k := kingID
	t := now
	c.KingID = &k
	c.IsEnrolled = true
	c.EnrolledAt = &t
}
