// Package models defines the append-only action log entry and the closed set
// of recorded actions.
package models

import (
	"time"

	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
)

// Action classifies a logged user action.
type Action string

const (
	ActionLogin        Action = "login"
	ActionLogout       Action = "logout"
	ActionRegister     Action = "register"
	ActionTestStart    Action = "test_start"
	ActionTestComplete Action = "test_complete"
	ActionEnrollment   Action = "enrollment"
	// Reserved for pass/fail thresholds; nothing emits these yet.
	ActionTestPass Action = "test_pass"
	ActionTestFail Action = "test_fail"
)

var validActions = map[Action]bool{
	ActionLogin:        true,
	ActionLogout:       true,
	ActionRegister:     true,
	ActionTestStart:    true,
	ActionTestComplete: true,
	ActionEnrollment:   true,
	ActionTestPass:     true,
	ActionTestFail:     true,
}

func (a Action) IsValid() bool {
	return validActions[a]
}

func (a Action) String() string {
	return string(a)
}

// Entry is a single append-only audit record. Entries are never updated;
// they are removed only when the user they belong to is deleted.
type Entry struct {
	ID          id.EntryID     `json:"id"`
	UserID      id.UserID      `json:"user_id"`
	Action      Action         `json:"action"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	IPAddress   string         `json:"ip_address"`
	UserAgent   string         `json:"user_agent"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks the entry invariants before persistence.
func (e *Entry) Validate() error {
	if e.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entry user is required")
	}
	if !e.Action.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid action")
	}
	if e.CreatedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "entry timestamp is required")
	}
	return nil
}
