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
	"crowngate/internal/kingdom/models"
	"crowngate/internal/kingdom/store"
	"crowngate/internal/notify"
	screeningmodels "crowngate/internal/screening/models"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/requestcontext"
)

type stubScreening struct {
	mu        sync.Mutex
	completed map[id.UserID]bool
	test      *screeningmodels.Test
	attempts  map[id.UserID]*screeningmodels.TestAttempt
}

func newStubScreening() *stubScreening {
	return &stubScreening{
		completed: make(map[id.UserID]bool),
		attempts:  make(map[id.UserID]*screeningmodels.TestAttempt),
	}
}

func (s *stubScreening) HasCompletedAttempt(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[userID], nil
}

func (s *stubScreening) LastAttempt(_ context.Context, userID id.UserID) (*screeningmodels.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[userID], nil
}

func (s *stubScreening) KingdomTest(context.Context, id.KingdomID) (*screeningmodels.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.test == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no test")
	}
	return s.test, nil
}

type stubStaff struct {
	staff map[id.UserID]bool
}

func (s *stubStaff) IsStaff(_ context.Context, userID id.UserID) (bool, error) {
	return s.staff[userID], nil
}

type captureAudit struct {
	mu      sync.Mutex
	actions []auditmodels.Action
}

func (a *captureAudit) Record(_ context.Context, _ id.UserID, action auditmodels.Action, _ string, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *captureAudit) count(action auditmodels.Action) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, got := range a.actions {
		if got == action {
			n++
		}
	}
	return n
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

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type KingdomServiceSuite struct {
	suite.Suite
	kingdoms  *store.InMemoryKingdoms
	kings     *store.InMemoryKings
	citizens  *store.InMemoryCitizens
	screening *stubScreening
	users     *identitystore.InMemory
	staff     *stubStaff
	audit     *captureAudit
	notifier  *captureNotifier
	service   *Service

	ctx       context.Context
	kingdomID id.KingdomID
	kingUser  id.UserID
	kingID    id.KingID
}

func TestKingdomServiceSuite(t *testing.T) {
	suite.Run(t, new(KingdomServiceSuite))
}

func (s *KingdomServiceSuite) SetupTest() {
	s.kingdoms = store.NewInMemoryKingdoms()
	s.kings = store.NewInMemoryKings()
	s.citizens = store.NewInMemoryCitizens()
	s.screening = newStubScreening()
	s.users = identitystore.NewInMemory()
	s.staff = &stubStaff{staff: make(map[id.UserID]bool)}
	s.audit = &captureAudit{}
	s.notifier = &captureNotifier{}
	s.service = New(s.kingdoms, s.kings, s.citizens, s.screening, s.users, s.staff, s.audit, s.notifier, slog.New(slog.DiscardHandler), nil)
	s.ctx = context.Background()

	kingdom, err := models.NewKingdom(id.KingdomID(uuid.New()), "Northland", "cold but fair", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.kingdoms.Create(s.ctx, kingdom))
	s.kingdomID = kingdom.ID

	s.kingUser = id.UserID(uuid.New())
	king, err := models.NewKing(id.KingID(uuid.New()), s.kingUser, s.kingdomID, 3, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.kings.Create(s.ctx, king))
	s.kingID = king.ID
}

func (s *KingdomServiceSuite) asUser(userID id.UserID, role id.Role) context.Context {
	ctx := requestcontext.WithUserID(s.ctx, userID)
	return requestcontext.WithRole(ctx, role)
}

// newCitizen registers a citizen of the kingdom, optionally with a completed
// screening attempt.
func (s *KingdomServiceSuite) newCitizen(completed bool) *models.Citizen {
	userID := id.UserID(uuid.New())
	citizen, err := models.NewCitizen(id.CitizenID(uuid.New()), userID, s.kingdomID, 30, "citizen@example.com", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.citizens.Create(s.ctx, citizen))

	user, err := identitymodels.NewUser(userID, uuid.NewString()+"@example.com", "x-hash", "Ada", "Stone", id.RoleCitizen, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, user))

	if completed {
		s.screening.mu.Lock()
		s.screening.completed[userID] = true
		s.screening.mu.Unlock()
	}
	return citizen
}

func (s *KingdomServiceSuite) TestCreateKingdomStaffOnly() {
	staffID := id.UserID(uuid.New())
	s.staff.staff[staffID] = true

	kingdom, err := s.service.CreateKingdom(s.asUser(staffID, id.RoleCitizen), "Southland", "warm")
	s.Require().NoError(err)
	s.Equal("Southland", kingdom.Name)

	_, err = s.service.CreateKingdom(s.asUser(id.UserID(uuid.New()), id.RoleCitizen), "Eastland", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *KingdomServiceSuite) TestCreateKingdomDuplicateName() {
	staffID := id.UserID(uuid.New())
	s.staff.staff[staffID] = true

	_, err := s.service.CreateKingdom(s.asUser(staffID, id.RoleCitizen), "northland", "case clash")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *KingdomServiceSuite) TestCreateKingProfileSecondKingRejected() {
	err := s.service.CreateKingProfile(s.ctx, id.UserID(uuid.New()), s.kingdomID, 0)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *KingdomServiceSuite) TestCreateKingProfileUnknownKingdom() {
	err := s.service.CreateKingProfile(s.ctx, id.UserID(uuid.New()), id.KingdomID(uuid.New()), 0)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *KingdomServiceSuite) TestCreateKingProfileDefaultCapacity() {
	staffID := id.UserID(uuid.New())
	s.staff.staff[staffID] = true
	kingdom, err := s.service.CreateKingdom(s.asUser(staffID, id.RoleCitizen), "Westland", "")
	s.Require().NoError(err)

	userID := id.UserID(uuid.New())
	s.Require().NoError(s.service.CreateKingProfile(s.ctx, userID, kingdom.ID, 0))

	king, err := s.kings.FindByUserID(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(models.DefaultMaxCitizens, king.MaxCitizens)
}

func (s *KingdomServiceSuite) TestEnrollHappyPath() {
	citizen := s.newCitizen(true)

	enrolled, err := s.service.Enroll(s.asUser(s.kingUser, id.RoleKing), citizen.ID)
	s.Require().NoError(err)

	s.True(enrolled.IsEnrolled)
	s.Require().NotNil(enrolled.KingID)
	s.Equal(s.kingID, *enrolled.KingID)
	s.NotNil(enrolled.EnrolledAt)

	stored, err := s.citizens.FindByID(s.ctx, citizen.ID)
	s.Require().NoError(err)
	s.True(stored.IsEnrolled)

	s.Equal(1, s.audit.count(auditmodels.ActionEnrollment))
	s.Equal(1, s.notifier.count())
}

func (s *KingdomServiceSuite) TestEnrollRequiresKing() {
	citizen := s.newCitizen(true)

	_, err := s.service.Enroll(s.asUser(citizen.UserID, id.RoleCitizen), citizen.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *KingdomServiceSuite) TestEnrollRejectsOtherKingdomsCitizen() {
	staffID := id.UserID(uuid.New())
	s.staff.staff[staffID] = true
	other, err := s.service.CreateKingdom(s.asUser(staffID, id.RoleCitizen), "Farland", "")
	s.Require().NoError(err)

	userID := id.UserID(uuid.New())
	stranger, err := models.NewCitizen(id.CitizenID(uuid.New()), userID, other.ID, 20, "s@example.com", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.citizens.Create(s.ctx, stranger))
	s.screening.completed[userID] = true

	_, err = s.service.Enroll(s.asUser(s.kingUser, id.RoleKing), stranger.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *KingdomServiceSuite) TestEnrollRequiresCompletedAttempt() {
	citizen := s.newCitizen(false)

	_, err := s.service.Enroll(s.asUser(s.kingUser, id.RoleKing), citizen.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *KingdomServiceSuite) TestEnrollTwiceConflicts() {
	citizen := s.newCitizen(true)
	ctx := s.asUser(s.kingUser, id.RoleKing)

	_, err := s.service.Enroll(ctx, citizen.ID)
	s.Require().NoError(err)

	_, err = s.service.Enroll(ctx, citizen.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *KingdomServiceSuite) TestEnrollAtCapacity() {
	ctx := s.asUser(s.kingUser, id.RoleKing)
	for range 3 {
		citizen := s.newCitizen(true)
		_, err := s.service.Enroll(ctx, citizen.ID)
		s.Require().NoError(err)
	}

	extra := s.newCitizen(true)
	_, err := s.service.Enroll(ctx, extra.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// TestEnrollConcurrentRespectsCapacity hammers Enroll from many goroutines.
// The Execute lock must keep the enrolled count at the king's capacity.
func (s *KingdomServiceSuite) TestEnrollConcurrentRespectsCapacity() {
	ctx := s.asUser(s.kingUser, id.RoleKing)

	const contenders = 10
	citizens := make([]*models.Citizen, contenders)
	for i := range citizens {
		citizens[i] = s.newCitizen(true)
	}

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for _, citizen := range citizens {
		wg.Add(1)
		go func(citizenID id.CitizenID) {
			defer wg.Done()
			_, err := s.service.Enroll(ctx, citizenID)
			results <- err
		}(citizen.ID)
	}
	wg.Wait()
	close(results)

	succeeded, capacityRejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			capacityRejected++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(3, succeeded)
	s.Equal(contenders-3, capacityRejected)

	count, err := s.citizens.CountEnrolledByKing(s.ctx, s.kingID)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *KingdomServiceSuite) TestKingdomUserIDs() {
	first := s.newCitizen(true)
	second := s.newCitizen(false)

	ids, err := s.service.KingdomUserIDs(s.ctx, s.kingUser)
	s.Require().NoError(err)
	s.ElementsMatch([]id.UserID{s.kingUser, first.UserID, second.UserID}, ids)
}

func (s *KingdomServiceSuite) TestKingDashboard() {
	enrolled := s.newCitizen(true)
	candidate := s.newCitizen(true)
	s.newCitizen(false) // neither enrolled nor a candidate

	_, err := s.service.Enroll(s.asUser(s.kingUser, id.RoleKing), enrolled.ID)
	s.Require().NoError(err)

	dashboard, err := s.service.KingDashboardFor(s.asUser(s.kingUser, id.RoleKing))
	s.Require().NoError(err)

	s.Equal("Northland", dashboard.Kingdom.Name)
	s.Require().Len(dashboard.Enrolled, 1)
	s.Equal(enrolled.ID, dashboard.Enrolled[0].ID)
	s.Require().Len(dashboard.Candidates, 1)
	s.Equal(candidate.ID, dashboard.Candidates[0].ID)
	s.Equal(Capacity{Max: 3, Current: 1, CanAcceptMore: true}, dashboard.Capacity)
}

func (s *KingdomServiceSuite) TestCitizenDashboard() {
	citizen := s.newCitizen(true)
	attempt := &screeningmodels.TestAttempt{
		ID:     id.AttemptID(uuid.New()),
		UserID: citizen.UserID,
		Status: screeningmodels.AttemptCompleted,
		Score:  2, TotalQuestions: 3,
	}
	s.screening.attempts[citizen.UserID] = attempt

	_, err := s.service.Enroll(s.asUser(s.kingUser, id.RoleKing), citizen.ID)
	s.Require().NoError(err)

	dashboard, err := s.service.CitizenDashboardFor(s.asUser(citizen.UserID, id.RoleCitizen))
	s.Require().NoError(err)

	s.True(dashboard.Citizen.IsEnrolled)
	s.Require().NotNil(dashboard.King)
	s.Equal(s.kingID, dashboard.King.ID)
	s.Require().NotNil(dashboard.LastAttempt)
	s.InDelta(66.67, dashboard.LastAttempt.Percentage(), 0.001)
}

func (s *KingdomServiceSuite) TestDashboardDispatchesOnRole() {
	citizen := s.newCitizen(false)

	got, err := s.service.Dashboard(s.asUser(s.kingUser, id.RoleKing))
	s.Require().NoError(err)
	_, isKing := got.(*KingDashboard)
	s.True(isKing)

	got, err = s.service.Dashboard(s.asUser(citizen.UserID, id.RoleCitizen))
	s.Require().NoError(err)
	_, isCitizen := got.(*CitizenDashboard)
	s.True(isCitizen)
}
