package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	auditmodels "crowngate/internal/audit/models"
	identitymodels "crowngate/internal/identity/models"
	identitystore "crowngate/internal/identity/store"
	kingdommodels "crowngate/internal/kingdom/models"
	kingdomstore "crowngate/internal/kingdom/store"
	"crowngate/internal/notify"
	"crowngate/internal/screening/models"
	"crowngate/internal/screening/store"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/requestcontext"
)

type stubStaff struct {
	staff map[id.UserID]bool
}

func (s *stubStaff) IsStaff(_ context.Context, userID id.UserID) (bool, error) {
	return s.staff[userID], nil
}

type captureAudit struct {
	mu      sync.Mutex
	entries []capturedAction
}

type capturedAction struct {
	action   auditmodels.Action
	metadata map[string]any
}

func (a *captureAudit) Record(_ context.Context, _ id.UserID, action auditmodels.Action, _ string, metadata map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, capturedAction{action: action, metadata: metadata})
}

func (a *captureAudit) last() *capturedAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return nil
	}
	return &a.entries[len(a.entries)-1]
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *captureNotifier) Enqueue(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

type ScreeningServiceSuite struct {
	suite.Suite
	tests     *store.InMemoryTests
	questions *store.InMemoryQuestions
	attempts  *store.InMemoryAttempts
	answers   *store.InMemoryAnswers
	citizens  *kingdomstore.InMemoryCitizens
	users     *identitystore.InMemory
	staff     *stubStaff
	audit     *captureAudit
	notifier  *captureNotifier
	service   *Service

	ctx       context.Context
	kingdomID id.KingdomID
	staffID   id.UserID
}

func TestScreeningServiceSuite(t *testing.T) {
	suite.Run(t, new(ScreeningServiceSuite))
}

func (s *ScreeningServiceSuite) SetupTest() {
	s.tests = store.NewInMemoryTests()
	s.questions = store.NewInMemoryQuestions()
	s.attempts = store.NewInMemoryAttempts()
	s.answers = store.NewInMemoryAnswers()
	s.citizens = kingdomstore.NewInMemoryCitizens()
	s.users = identitystore.NewInMemory()
	s.staff = &stubStaff{staff: make(map[id.UserID]bool)}
	s.audit = &captureAudit{}
	s.notifier = &captureNotifier{}
	s.service = New(s.tests, s.questions, s.attempts, s.answers, s.citizens, s.users, s.staff, s.audit, s.notifier, slog.New(slog.DiscardHandler), nil)
	s.ctx = context.Background()

	s.kingdomID = id.KingdomID(uuid.New())
	s.staffID = id.UserID(uuid.New())
	s.staff.staff[s.staffID] = true
}

func (s *ScreeningServiceSuite) asUser(userID id.UserID) context.Context {
	return requestcontext.WithUserID(s.ctx, userID)
}

func (s *ScreeningServiceSuite) newCitizen() *kingdommodels.Citizen {
	userID := id.UserID(uuid.New())
	citizen, err := kingdommodels.NewCitizen(id.CitizenID(uuid.New()), userID, s.kingdomID, 25, "pigeon@example.com", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.citizens.Create(s.ctx, citizen))

	user, err := identitymodels.NewUser(userID, uuid.NewString()+"@example.com", "x-hash", "Guin", "Evere", id.RoleCitizen, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, user))
	return citizen
}

// newTest authors a test with the given correct answers, one question per
// entry, in order.
func (s *ScreeningServiceSuite) newTest(correctAnswers ...bool) (*models.Test, []*models.Question) {
	ctx := s.asUser(s.staffID)
	test, err := s.service.CreateTest(ctx, s.kingdomID, "Loyalty oath", "true or false")
	s.Require().NoError(err)

	questions := make([]*models.Question, 0, len(correctAnswers))
	for i, correct := range correctAnswers {
		q, err := s.service.AddQuestion(ctx, test.ID, "statement", correct, i+1)
		s.Require().NoError(err)
		questions = append(questions, q)
	}
	return test, questions
}

func (s *ScreeningServiceSuite) TestCreateTestStaffOnly() {
	_, err := s.service.CreateTest(s.asUser(id.UserID(uuid.New())), s.kingdomID, "t", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ScreeningServiceSuite) TestCreateTestOnePerKingdom() {
	s.newTest(true)

	_, err := s.service.CreateTest(s.asUser(s.staffID), s.kingdomID, "another", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ScreeningServiceSuite) TestAddQuestionUnknownTest() {
	_, err := s.service.AddQuestion(s.asUser(s.staffID), id.TestID(uuid.New()), "q", true, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ScreeningServiceSuite) TestStartAttemptSnapshotsQuestionCount() {
	test, _ := s.newTest(true, false, true)
	citizen := s.newCitizen()

	attempt, err := s.service.StartAttempt(s.asUser(citizen.UserID))
	s.Require().NoError(err)

	s.Equal(test.ID, attempt.TestID)
	s.Equal(citizen.UserID, attempt.UserID)
	s.Equal(3, attempt.TotalQuestions)
	s.True(attempt.IsInProgress())

	last := s.audit.last()
	s.Require().NotNil(last)
	s.Equal(auditmodels.ActionTestStart, last.action)
}

func (s *ScreeningServiceSuite) TestStartAttemptIdempotentWhileOpen() {
	s.newTest(true)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)

	first, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)
	second, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
}

func (s *ScreeningServiceSuite) TestStartAttemptRequiresCitizenProfile() {
	s.newTest(true)

	_, err := s.service.StartAttempt(s.asUser(id.UserID(uuid.New())))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ScreeningServiceSuite) TestStartAttemptNoTest() {
	citizen := s.newCitizen()

	_, err := s.service.StartAttempt(s.asUser(citizen.UserID))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ScreeningServiceSuite) TestStartAttemptEmptyTest() {
	s.newTest()
	citizen := s.newCitizen()

	_, err := s.service.StartAttempt(s.asUser(citizen.UserID))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ScreeningServiceSuite) TestCompletionScenario() {
	// Three questions, citizen gets two right: 2/3 rounds to 66.67.
	_, questions := s.newTest(true, true, false)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)

	_, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)

	attempt, err := s.service.SubmitAnswer(ctx, questions[0].ID, true) // correct
	s.Require().NoError(err)
	s.True(attempt.IsInProgress())
	s.Equal(1, attempt.Score)

	attempt, err = s.service.SubmitAnswer(ctx, questions[1].ID, false) // wrong
	s.Require().NoError(err)
	s.True(attempt.IsInProgress())
	s.Equal(1, attempt.Score)

	attempt, err = s.service.SubmitAnswer(ctx, questions[2].ID, false) // correct, completes
	s.Require().NoError(err)

	s.True(attempt.IsCompleted())
	s.NotNil(attempt.CompletedAt)
	s.Equal(2, attempt.Score)
	s.Equal(3, attempt.TotalQuestions)
	s.InDelta(66.67, attempt.Percentage(), 0.001)

	last := s.audit.last()
	s.Require().NotNil(last)
	s.Equal(auditmodels.ActionTestComplete, last.action)
	s.Equal(2, last.metadata["score"])
	s.Equal(3, last.metadata["total"])
	s.InDelta(66.67, last.metadata["percentage"].(float64), 0.001)

	s.Require().Len(s.notifier.sent, 1)
	s.Equal("pigeon@example.com", s.notifier.sent[0].To)
	s.Contains(s.notifier.sent[0].Body, "2/3 (66.67%)")
}

func (s *ScreeningServiceSuite) TestSubmitAnswerOverwrites() {
	_, questions := s.newTest(true, true)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)

	_, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)

	attempt, err := s.service.SubmitAnswer(ctx, questions[0].ID, false) // wrong
	s.Require().NoError(err)
	s.Equal(0, attempt.Score)

	// Re-answering the same question flips it; still one answer recorded.
	attempt, err = s.service.SubmitAnswer(ctx, questions[0].ID, true)
	s.Require().NoError(err)
	s.Equal(1, attempt.Score)
	s.True(attempt.IsInProgress())

	count, err := s.answers.CountByAttempt(ctx, attempt.ID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ScreeningServiceSuite) TestSubmitAnswerRequiresOpenAttempt() {
	_, questions := s.newTest(true)
	citizen := s.newCitizen()

	_, err := s.service.SubmitAnswer(s.asUser(citizen.UserID), questions[0].ID, true)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ScreeningServiceSuite) TestSubmitAnswerForeignQuestion() {
	s.newTest(true)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)
	_, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)

	// A question belonging to some other kingdom's test.
	foreignTest, err := models.NewTest(id.TestID(uuid.New()), id.KingdomID(uuid.New()), "other", "", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.tests.Create(s.ctx, foreignTest))
	foreign, err := models.NewQuestion(id.QuestionID(uuid.New()), foreignTest.ID, "q", true, 1, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.questions.Create(s.ctx, foreign))

	_, err = s.service.SubmitAnswer(ctx, foreign.ID, true)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ScreeningServiceSuite) TestResultsOwnerOnly() {
	_, questions := s.newTest(true)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)

	attempt, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)
	_, err = s.service.SubmitAnswer(ctx, questions[0].ID, true)
	s.Require().NoError(err)

	_, err = s.service.Results(s.asUser(id.UserID(uuid.New())), attempt.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ScreeningServiceSuite) TestResultsBreakdown() {
	_, questions := s.newTest(true, false, true)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)

	attempt, err := s.service.StartAttempt(ctx)
	s.Require().NoError(err)
	_, err = s.service.SubmitAnswer(ctx, questions[0].ID, true) // correct
	s.Require().NoError(err)
	_, err = s.service.SubmitAnswer(ctx, questions[1].ID, true) // wrong
	s.Require().NoError(err)
	_, err = s.service.SubmitAnswer(ctx, questions[2].ID, true) // correct
	s.Require().NoError(err)

	results, err := s.service.Results(ctx, attempt.ID)
	s.Require().NoError(err)

	s.Require().Len(results.Results, 3)
	s.Equal(questions[0].ID, results.Results[0].QuestionID)
	s.True(results.Results[0].IsCorrect)
	s.False(results.Results[1].IsCorrect)
	s.Equal(2, results.Correct)
	s.Equal(1, results.Wrong)
	s.InDelta(66.67, results.Percentage, 0.001)
}

func (s *ScreeningServiceSuite) TestGatewayCompletionState() {
	_, questions := s.newTest(true)
	citizen := s.newCitizen()
	ctx := s.asUser(citizen.UserID)

	completed, err := s.service.HasCompletedAttempt(s.ctx, citizen.UserID)
	s.Require().NoError(err)
	s.False(completed)

	_, err = s.service.StartAttempt(ctx)
	s.Require().NoError(err)
	_, err = s.service.SubmitAnswer(ctx, questions[0].ID, true)
	s.Require().NoError(err)

	completed, err = s.service.HasCompletedAttempt(s.ctx, citizen.UserID)
	s.Require().NoError(err)
	s.True(completed)

	last, err := s.service.LastAttempt(s.ctx, citizen.UserID)
	s.Require().NoError(err)
	s.True(last.IsCompleted())
}

func (s *ScreeningServiceSuite) TestKingdomQuestionsServingOrder() {
	ctx := s.asUser(s.staffID)
	test, err := s.service.CreateTest(ctx, s.kingdomID, "Loyalty oath", "")
	s.Require().NoError(err)

	// Created out of order; serving order follows Order.
	second, err := s.service.AddQuestion(ctx, test.ID, "second", true, 2)
	s.Require().NoError(err)
	first, err := s.service.AddQuestion(ctx, test.ID, "first", true, 1)
	s.Require().NoError(err)

	citizen := s.newCitizen()
	got, questions, err := s.service.KingdomQuestions(s.asUser(citizen.UserID))
	s.Require().NoError(err)

	s.Equal(test.ID, got.ID)
	s.Require().Len(questions, 2)
	s.Equal(first.ID, questions[0].ID)
	s.Equal(second.ID, questions[1].ID)
}
