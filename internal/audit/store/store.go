// Package store persists action log entries. The log is append-only; there
// are no update or delete operations.
package store

import (
	"context"
	"time"

	"crowngate/internal/audit/models"
	id "crowngate/pkg/domain"
)

// Filter narrows a log listing. Zero values mean "no restriction" except
// UserIDs, where nil means all users and an empty slice matches nothing.
type Filter struct {
	UserIDs []id.UserID
	Action  models.Action
	From    time.Time
	To      time.Time
	Limit   int
}

// Store is the persistence contract for the action log.
type Store interface {
	Append(ctx context.Context, entry models.Entry) error
	// List returns matching entries, newest first.
	List(ctx context.Context, filter Filter) ([]models.Entry, error)
}
