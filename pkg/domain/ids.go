// Package domain holds shared domain value types: typed entity identifiers
// and the user role enum. Typed IDs prevent cross-entity assignment at
// compile time; construct them via the Parse* functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "crowngate/pkg/domain-errors"
)

// Typed identifiers for every aggregate. Each is a distinct type so a
// CitizenID can never be passed where a KingID is expected.
type (
	UserID     uuid.UUID
	KingdomID  uuid.UUID
	KingID     uuid.UUID
	CitizenID  uuid.UUID
	TestID     uuid.UUID
	QuestionID uuid.UUID
	AttemptID  uuid.UUID
	AnswerID   uuid.UUID
	EntryID    uuid.UUID
)

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id KingdomID) String() string  { return uuid.UUID(id).String() }
func (id KingID) String() string     { return uuid.UUID(id).String() }
func (id CitizenID) String() string  { return uuid.UUID(id).String() }
func (id TestID) String() string     { return uuid.UUID(id).String() }
func (id QuestionID) String() string { return uuid.UUID(id).String() }
func (id AttemptID) String() string  { return uuid.UUID(id).String() }
func (id AnswerID) String() string   { return uuid.UUID(id).String() }
func (id EntryID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id KingdomID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id KingID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CitizenID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id TestID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id QuestionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AttemptID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AnswerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseKingdomID(s string) (KingdomID, error) {
	u, err := parseUUID(s, "kingdom id")
	return KingdomID(u), err
}

func ParseKingID(s string) (KingID, error) {
	u, err := parseUUID(s, "king id")
	return KingID(u), err
}

func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseUUID(s, "citizen id")
	return CitizenID(u), err
}

func ParseTestID(s string) (TestID, error) {
	u, err := parseUUID(s, "test id")
	return TestID(u), err
}

func ParseQuestionID(s string) (QuestionID, error) {
	u, err := parseUUID(s, "question id")
	return QuestionID(u), err
}

func ParseAttemptID(s string) (AttemptID, error) {
	u, err := parseUUID(s, "attempt id")
	return AttemptID(u), err
}
