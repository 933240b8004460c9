package store

import (
	"context"
	"sort"
	"sync"

	"crowngate/internal/screening/models"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/sentinel"
)

// InMemoryTests is the development and test implementation of TestStore.
type InMemoryTests struct {
	mu        sync.RWMutex
	tests     map[id.TestID]*models.Test
	byKingdom map[id.KingdomID]id.TestID
}

func NewInMemoryTests() *InMemoryTests {
	return &InMemoryTests{
		tests:     make(map[id.TestID]*models.Test),
		byKingdom: make(map[id.KingdomID]id.TestID),
	}
}

func (s *InMemoryTests) Create(_ context.Context, test *models.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byKingdom[test.KingdomID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	t := *test
	s.tests[test.ID] = &t
	s.byKingdom[test.KingdomID] = test.ID
	return nil
}

func (s *InMemoryTests) FindByID(_ context.Context, testID id.TestID) (*models.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tests[testID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (s *InMemoryTests) FindByKingdom(_ context.Context, kingdomID id.KingdomID) (*models.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	testID, ok := s.byKingdom[kingdomID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.tests[testID]
	return &out, nil
}

// InMemoryQuestions is the development and test implementation of
// QuestionStore.
type InMemoryQuestions struct {
	mu        sync.RWMutex
	questions map[id.QuestionID]*models.Question
}

func NewInMemoryQuestions() *InMemoryQuestions {
	return &InMemoryQuestions{questions: make(map[id.QuestionID]*models.Question)}
}

func (s *InMemoryQuestions) Create(_ context.Context, question *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := *question
	s.questions[question.ID] = &q
	return nil
}

func (s *InMemoryQuestions) FindByID(_ context.Context, questionID id.QuestionID) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[questionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *q
	return &out, nil
}

func (s *InMemoryQuestions) ListByTest(_ context.Context, testID id.TestID) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Question
	for _, q := range s.questions {
		if q.TestID == testID {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryQuestions) CountByTest(ctx context.Context, testID id.TestID) (int, error) {
	questions, err := s.ListByTest(ctx, testID)
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

// InMemoryAttempts is the development and test implementation of
// AttemptStore.
type InMemoryAttempts struct {
	mu       sync.RWMutex
	attempts map[id.AttemptID]*models.TestAttempt
}

func NewInMemoryAttempts() *InMemoryAttempts {
	return &InMemoryAttempts{attempts: make(map[id.AttemptID]*models.TestAttempt)}
}

func (s *InMemoryAttempts) Create(_ context.Context, attempt *models.TestAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *attempt
	s.attempts[attempt.ID] = &a
	return nil
}

func (s *InMemoryAttempts) FindByID(_ context.Context, attemptID id.AttemptID) (*models.TestAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (s *InMemoryAttempts) FindInProgress(_ context.Context, userID id.UserID, testID id.TestID) (*models.TestAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.attempts {
		if a.UserID == userID && a.TestID == testID && a.IsInProgress() {
			out := *a
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryAttempts) LastByUser(_ context.Context, userID id.UserID) (*models.TestAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.TestAttempt
	for _, a := range s.attempts {
		if a.UserID != userID {
			continue
		}
		if last == nil || a.StartedAt.After(last.StartedAt) {
			last = a
		}
	}
	if last == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *last
	return &out, nil
}

func (s *InMemoryAttempts) HasCompleted(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.attempts {
		if a.UserID == userID && a.IsCompleted() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryAttempts) Update(_ context.Context, attempt *models.TestAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[attempt.ID]; !ok {
		return sentinel.ErrNotFound
	}
	a := *attempt
	s.attempts[attempt.ID] = &a
	return nil
}

// InMemoryAnswers is the development and test implementation of AnswerStore.
type InMemoryAnswers struct {
	mu      sync.RWMutex
	answers map[id.AttemptID]map[id.QuestionID]*models.Answer
}

func NewInMemoryAnswers() *InMemoryAnswers {
	return &InMemoryAnswers{answers: make(map[id.AttemptID]map[id.QuestionID]*models.Answer)}
}

func (s *InMemoryAnswers) Upsert(_ context.Context, answer *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuestion, ok := s.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[id.QuestionID]*models.Answer)
		s.answers[answer.AttemptID] = byQuestion
	}
	a := *answer
	if existing, ok := byQuestion[answer.QuestionID]; ok {
		a.ID = existing.ID
	}
	byQuestion[answer.QuestionID] = &a
	return nil
}

func (s *InMemoryAnswers) ListByAttempt(_ context.Context, attemptID id.AttemptID) ([]*models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Answer
	for _, a := range s.answers[attemptID] {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}

func (s *InMemoryAnswers) CountByAttempt(_ context.Context, attemptID id.AttemptID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers[attemptID]), nil
}
