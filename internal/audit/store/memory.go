package store

import (
	"context"
	"sort"
	"sync"

	"crowngate/internal/audit/models"
	id "crowngate/pkg/domain"
)

// InMemory is the development and test implementation of Store.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]models.Entry, error) {
	var wanted map[id.UserID]bool
	if filter.UserIDs != nil {
		wanted = make(map[id.UserID]bool, len(filter.UserIDs))
		for _, uid := range filter.UserIDs {
			wanted[uid] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Entry
	for _, e := range s.entries {
		if wanted != nil && !wanted[e.UserID] {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
