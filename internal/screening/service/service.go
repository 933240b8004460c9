// Package service orchestrates the screening test lifecycle: staff author a
// test per kingdom, citizens take it, completion gates enrollment.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditmodels "crowngate/internal/audit/models"
	identitymodels "crowngate/internal/identity/models"
	kingdommodels "crowngate/internal/kingdom/models"
	"crowngate/internal/notify"
	screeningmetrics "crowngate/internal/screening/metrics"
	"crowngate/internal/screening/models"
	"crowngate/internal/screening/store"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/platform/sentinel"
	"crowngate/pkg/requestcontext"
)

// CitizenResolver maps a user to their citizen profile.
type CitizenResolver interface {
	FindByUserID(ctx context.Context, userID id.UserID) (*kingdommodels.Citizen, error)
}

// UserLookup resolves account data for notifications.
type UserLookup interface {
	FindByID(ctx context.Context, userID id.UserID) (*identitymodels.User, error)
}

// StaffChecker guards the test-authoring operations.
type StaffChecker interface {
	IsStaff(ctx context.Context, userID id.UserID) (bool, error)
}

// AuditRecorder captures user actions; implementations never return errors.
type AuditRecorder interface {
	Record(ctx context.Context, userID id.UserID, action auditmodels.Action, description string, metadata map[string]any)
}

// Notifier queues best-effort notifications.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// Service runs the screening tests.
type Service struct {
	tests     store.TestStore
	questions store.QuestionStore
	attempts  store.AttemptStore
	answers   store.AnswerStore
	citizens  CitizenResolver
	users     UserLookup
	staff     StaffChecker
	audit     AuditRecorder
	notifier  Notifier
	logger    *slog.Logger
	metrics   *screeningmetrics.Metrics
}

func New(
	tests store.TestStore,
	questions store.QuestionStore,
	attempts store.AttemptStore,
	answers store.AnswerStore,
	citizens CitizenResolver,
	users UserLookup,
	staff StaffChecker,
	audit AuditRecorder,
	notifier Notifier,
	logger *slog.Logger,
	metrics *screeningmetrics.Metrics,
) *Service {
	return &Service{
		tests:     tests,
		questions: questions,
		attempts:  attempts,
		answers:   answers,
		citizens:  citizens,
		users:     users,
		staff:     staff,
		audit:     audit,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateTest adds a kingdom's screening test. Staff only; one test per
// kingdom.
func (s *Service) CreateTest(ctx context.Context, kingdomID id.KingdomID, title, description string) (*models.Test, error) {
	if err := s.requireStaff(ctx); err != nil {
		return nil, err
	}

	test, err := models.NewTest(id.TestID(uuid.New()), kingdomID, title, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.tests.Create(ctx, test); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "kingdom already has a test")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create test")
	}
	return test, nil
}

// AddQuestion appends a true/false question to a test. Staff only.
func (s *Service) AddQuestion(ctx context.Context, testID id.TestID, text string, correctAnswer bool, order int) (*models.Question, error) {
	if err := s.requireStaff(ctx); err != nil {
		return nil, err
	}

	if _, err := s.tests.FindByID(ctx, testID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "test not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load test")
	}

	question, err := models.NewQuestion(id.QuestionID(uuid.New()), testID, text, correctAnswer, order, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, question); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create question")
	}
	return question, nil
}

// KingdomQuestions returns the caller's kingdom test and its questions in
// serving order.
func (s *Service) KingdomQuestions(ctx context.Context) (*models.Test, []*models.Question, error) {
	citizen, err := s.callerCitizen(ctx)
	if err != nil {
		return nil, nil, err
	}
	test, err := s.kingdomTest(ctx, citizen.KingdomID)
	if err != nil {
		return nil, nil, err
	}
	questions, err := s.questions.ListByTest(ctx, test.ID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list questions")
	}
	return test, questions, nil
}

// StartAttempt opens an attempt at the caller's kingdom test. Starting again
// while an attempt is open returns the open attempt unchanged.
func (s *Service) StartAttempt(ctx context.Context) (*models.TestAttempt, error) {
	citizen, err := s.callerCitizen(ctx)
	if err != nil {
		return nil, err
	}

	test, err := s.kingdomTest(ctx, citizen.KingdomID)
	if err != nil {
		return nil, err
	}

	if open, err := s.attempts.FindInProgress(ctx, citizen.UserID, test.ID); err == nil {
		return open, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check open attempts")
	}

	total, err := s.questions.CountByTest(ctx, test.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count questions")
	}
	if total == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "test has no questions")
	}

	attempt := models.NewTestAttempt(id.AttemptID(uuid.New()), citizen.UserID, test.ID, total, requestcontext.Now(ctx))
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start attempt")
	}

	s.audit.Record(ctx, citizen.UserID, auditmodels.ActionTestStart, "screening test started", map[string]any{
		"test_id":    test.ID.String(),
		"attempt_id": attempt.ID.String(),
	})
	if s.metrics != nil {
		s.metrics.IncrementAttemptsStarted()
	}
	return attempt, nil
}

// SubmitAnswer records the caller's answer to a question on their open
// attempt. Re-answering a question overwrites the previous answer and the
// score is recounted from scratch. Answering the last outstanding question
// completes the attempt.
func (s *Service) SubmitAnswer(ctx context.Context, questionID id.QuestionID, value bool) (*models.TestAttempt, error) {
	start := time.Now()
	citizen, err := s.callerCitizen(ctx)
	if err != nil {
		return nil, err
	}

	question, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "question not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load question")
	}

	test, err := s.kingdomTest(ctx, citizen.KingdomID)
	if err != nil {
		return nil, err
	}
	if question.TestID != test.ID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "question does not belong to your kingdom's test")
	}

	attempt, err := s.attempts.FindInProgress(ctx, citizen.UserID, test.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "no attempt in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attempt")
	}

	now := requestcontext.Now(ctx)
	answer := &models.Answer{
		ID:         id.AnswerID(uuid.New()),
		AttemptID:  attempt.ID,
		QuestionID: question.ID,
		Value:      value,
		IsCorrect:  value == question.CorrectAnswer,
		AnsweredAt: now,
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record answer")
	}

	// Recount rather than increment: overwrites can flip correctness in
	// either direction.
	answered, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to recount score")
	}
	score := 0
	for _, a := range answered {
		if a.IsCorrect {
			score++
		}
	}
	attempt.Score = score

	if len(answered) >= attempt.TotalQuestions {
		attempt.Complete(now)
	}

	if err := s.attempts.Update(ctx, attempt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update attempt")
	}

	if attempt.IsCompleted() {
		s.audit.Record(ctx, citizen.UserID, auditmodels.ActionTestComplete, "screening test completed", map[string]any{
			"test_id":    test.ID.String(),
			"attempt_id": attempt.ID.String(),
			"score":      attempt.Score,
			"total":      attempt.TotalQuestions,
			"percentage": attempt.Percentage(),
		})
		s.notifyCompletion(ctx, citizen, test, attempt)
		if s.metrics != nil {
			s.metrics.IncrementAttemptsCompleted()
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveAnswer(start)
	}
	return attempt, nil
}

// QuestionResult pairs a question with the answer given on an attempt.
type QuestionResult struct {
	QuestionID id.QuestionID `json:"question_id"`
	Question   string        `json:"question"`
	Answer     bool          `json:"answer"`
	IsCorrect  bool          `json:"is_correct"`
}

// AttemptResults is the per-question breakdown of a finished or running
// attempt.
type AttemptResults struct {
	Attempt    *models.TestAttempt `json:"attempt"`
	Results    []QuestionResult    `json:"results"`
	Correct    int                 `json:"correct"`
	Wrong      int                 `json:"wrong"`
	Percentage float64             `json:"percentage"`
}

// Results returns the breakdown of the caller's own attempt, questions in
// serving order.
func (s *Service) Results(ctx context.Context, attemptID id.AttemptID) (*AttemptResults, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attempt not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attempt")
	}
	if attempt.UserID != callerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "not your attempt")
	}

	questions, err := s.questions.ListByTest(ctx, attempt.TestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list questions")
	}
	answers, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list answers")
	}
	byQuestion := make(map[id.QuestionID]*models.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	results := &AttemptResults{Attempt: attempt, Results: []QuestionResult{}, Percentage: attempt.Percentage()}
	for _, q := range questions {
		a, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		results.Results = append(results.Results, QuestionResult{
			QuestionID: q.ID,
			Question:   q.Text,
			Answer:     a.Value,
			IsCorrect:  a.IsCorrect,
		})
		if a.IsCorrect {
			results.Correct++
		} else {
			results.Wrong++
		}
	}
	return results, nil
}

// HasCompletedAttempt reports whether the user has ever completed a test.
func (s *Service) HasCompletedAttempt(ctx context.Context, userID id.UserID) (bool, error) {
	return s.attempts.HasCompleted(ctx, userID)
}

// LastAttempt returns the user's most recent attempt.
func (s *Service) LastAttempt(ctx context.Context, userID id.UserID) (*models.TestAttempt, error) {
	return s.attempts.LastByUser(ctx, userID)
}

// KingdomTest returns the kingdom's test.
func (s *Service) KingdomTest(ctx context.Context, kingdomID id.KingdomID) (*models.Test, error) {
	return s.tests.FindByKingdom(ctx, kingdomID)
}

func (s *Service) requireStaff(ctx context.Context) error {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	isStaff, err := s.staff.IsStaff(ctx, callerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check permissions")
	}
	if !isStaff {
		return dErrors.New(dErrors.CodeForbidden, "only staff may author tests")
	}
	return nil
}

func (s *Service) callerCitizen(ctx context.Context) (*kingdommodels.Citizen, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	citizen, err := s.citizens.FindByUserID(ctx, callerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only citizens may do this")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up citizen profile")
	}
	return citizen, nil
}

func (s *Service) kingdomTest(ctx context.Context, kingdomID id.KingdomID) (*models.Test, error) {
	test, err := s.tests.FindByKingdom(ctx, kingdomID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "kingdom has no screening test")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kingdom test")
	}
	return test, nil
}

func (s *Service) notifyCompletion(ctx context.Context, citizen *kingdommodels.Citizen, test *models.Test, attempt *models.TestAttempt) {
	if s.notifier == nil || citizen.PigeonEmail == "" {
		return
	}
	name := ""
	if user, err := s.users.FindByID(ctx, citizen.UserID); err == nil {
		name = user.FullName()
	} else {
		s.logger.WarnContext(ctx, "failed to resolve user for completion notice",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	s.notifier.Enqueue(ctx, notify.TestCompleted(citizen.PigeonEmail, name, test.Title, attempt.Score, attempt.TotalQuestions, attempt.Percentage()))
}
