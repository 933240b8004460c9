package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"crowngate/internal/kingdom/models"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/sentinel"
)

// InMemoryKingdoms is the development and test implementation of
// KingdomStore.
type InMemoryKingdoms struct {
	mu       sync.RWMutex
	kingdoms map[id.KingdomID]*models.Kingdom
	byName   map[string]id.KingdomID
}

func NewInMemoryKingdoms() *InMemoryKingdoms {
	return &InMemoryKingdoms{
		kingdoms: make(map[id.KingdomID]*models.Kingdom),
		byName:   make(map[string]id.KingdomID),
	}
}

func (s *InMemoryKingdoms) Create(_ context.Context, kingdom *models.Kingdom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(kingdom.Name)
	if _, taken := s.byName[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	k := *kingdom
	s.kingdoms[kingdom.ID] = &k
	s.byName[key] = kingdom.ID
	return nil
}

func (s *InMemoryKingdoms) FindByID(_ context.Context, kingdomID id.KingdomID) (*models.Kingdom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.kingdoms[kingdomID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *k
	return &out, nil
}

func (s *InMemoryKingdoms) List(_ context.Context) ([]*models.Kingdom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Kingdom, 0, len(s.kingdoms))
	for _, k := range s.kingdoms {
		copied := *k
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// InMemoryKings is the development and test implementation of KingStore.
// Execute holds the store-wide mutex for the duration of fn, which
// serializes enrollments the same way the Postgres row lock does.
type InMemoryKings struct {
	mu        sync.Mutex
	kings     map[id.KingID]*models.King
	byUser    map[id.UserID]id.KingID
	byKingdom map[id.KingdomID]id.KingID
}

func NewInMemoryKings() *InMemoryKings {
	return &InMemoryKings{
		kings:     make(map[id.KingID]*models.King),
		byUser:    make(map[id.UserID]id.KingID),
		byKingdom: make(map[id.KingdomID]id.KingID),
	}
}

func (s *InMemoryKings) Create(_ context.Context, king *models.King) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUser[king.UserID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.byKingdom[king.KingdomID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	k := *king
	s.kings[king.ID] = &k
	s.byUser[king.UserID] = king.ID
	s.byKingdom[king.KingdomID] = king.ID
	return nil
}

func (s *InMemoryKings) FindByID(_ context.Context, kingID id.KingID) (*models.King, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(kingID)
}

func (s *InMemoryKings) FindByUserID(_ context.Context, userID id.UserID) (*models.King, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kingID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.find(kingID)
}

func (s *InMemoryKings) FindByKingdomID(_ context.Context, kingdomID id.KingdomID) (*models.King, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kingID, ok := s.byKingdom[kingdomID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.find(kingID)
}

func (s *InMemoryKings) Execute(ctx context.Context, kingID id.KingID, fn func(ctx context.Context, king *models.King) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	king, err := s.find(kingID)
	if err != nil {
		return err
	}
	return fn(ctx, king)
}

// find expects the mutex to be held.
func (s *InMemoryKings) find(kingID id.KingID) (*models.King, error) {
	k, ok := s.kings[kingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *k
	return &out, nil
}

// InMemoryCitizens is the development and test implementation of
// CitizenStore.
type InMemoryCitizens struct {
	mu       sync.RWMutex
	citizens map[id.CitizenID]*models.Citizen
	byUser   map[id.UserID]id.CitizenID
}

func NewInMemoryCitizens() *InMemoryCitizens {
	return &InMemoryCitizens{
		citizens: make(map[id.CitizenID]*models.Citizen),
		byUser:   make(map[id.UserID]id.CitizenID),
	}
}

func (s *InMemoryCitizens) Create(_ context.Context, citizen *models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUser[citizen.UserID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	c := *citizen
	s.citizens[citizen.ID] = &c
	s.byUser[citizen.UserID] = citizen.ID
	return nil
}

func (s *InMemoryCitizens) FindByID(_ context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.citizens[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *InMemoryCitizens) FindByUserID(_ context.Context, userID id.UserID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	citizenID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.citizens[citizenID]
	return &out, nil
}

func (s *InMemoryCitizens) ListByKingdom(_ context.Context, kingdomID id.KingdomID) ([]*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Citizen
	for _, c := range s.citizens {
		if c.KingdomID == kingdomID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryCitizens) CountEnrolledByKing(_ context.Context, kingID id.KingID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.citizens {
		if c.IsEnrolled && c.KingID != nil && *c.KingID == kingID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryCitizens) Update(_ context.Context, citizen *models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.citizens[citizen.ID]; !ok {
		return sentinel.ErrNotFound
	}
	c := *citizen
	s.citizens[citizen.ID] = &c
	return nil
}
