// Package service implements kingdom management and the capacity-bounded
// enrollment flow.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditmodels "crowngate/internal/audit/models"
	identitymodels "crowngate/internal/identity/models"
	kingdommetrics "crowngate/internal/kingdom/metrics"
	"crowngate/internal/kingdom/models"
	"crowngate/internal/kingdom/store"
	"crowngate/internal/notify"
	screeningmodels "crowngate/internal/screening/models"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/platform/sentinel"
	"crowngate/pkg/requestcontext"
)

// ScreeningGateway is the slice of the screening module the kingdom module
// needs: enrollment requires a completed attempt, dashboards show attempt
// state.
type ScreeningGateway interface {
	HasCompletedAttempt(ctx context.Context, userID id.UserID) (bool, error)
	LastAttempt(ctx context.Context, userID id.UserID) (*screeningmodels.TestAttempt, error)
	KingdomTest(ctx context.Context, kingdomID id.KingdomID) (*screeningmodels.Test, error)
}

// UserLookup resolves user accounts for dashboards and notifications.
type UserLookup interface {
	FindByID(ctx context.Context, userID id.UserID) (*identitymodels.User, error)
}

// StaffChecker guards the admin-only operations.
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

// Service orchestrates kingdoms, kings and citizens.
type Service struct {
	kingdoms  store.KingdomStore
	kings     store.KingStore
	citizens  store.CitizenStore
	screening ScreeningGateway
	users     UserLookup
	staff     StaffChecker
	audit     AuditRecorder
	notifier  Notifier
	logger    *slog.Logger
	metrics   *kingdommetrics.Metrics
}

func New(
	kingdoms store.KingdomStore,
	kings store.KingStore,
	citizens store.CitizenStore,
	screening ScreeningGateway,
	users UserLookup,
	staff StaffChecker,
	audit AuditRecorder,
	notifier Notifier,
	logger *slog.Logger,
	metrics *kingdommetrics.Metrics,
) *Service {
	return &Service{
		kingdoms:  kingdoms,
		kings:     kings,
		citizens:  citizens,
		screening: screening,
		users:     users,
		staff:     staff,
		audit:     audit,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateKingdom adds a realm. Staff only.
func (s *Service) CreateKingdom(ctx context.Context, name, description string) (*models.Kingdom, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	isStaff, err := s.staff.IsStaff(ctx, callerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check permissions")
	}
	if !isStaff {
		return nil, dErrors.New(dErrors.CodeForbidden, "only staff may create kingdoms")
	}

	kingdom, err := models.NewKingdom(id.KingdomID(uuid.New()), name, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.kingdoms.Create(ctx, kingdom); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "kingdom name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create kingdom")
	}
	return kingdom, nil
}

// ListKingdoms is public; the registration form needs it.
func (s *Service) ListKingdoms(ctx context.Context) ([]*models.Kingdom, error) {
	kingdoms, err := s.kingdoms.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list kingdoms")
	}
	return kingdoms, nil
}

// CreateKingProfile satisfies the identity module's ProfileCreator.
func (s *Service) CreateKingProfile(ctx context.Context, userID id.UserID, kingdomID id.KingdomID, maxCitizens int) error {
	if _, err := s.kingdoms.FindByID(ctx, kingdomID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "kingdom not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up kingdom")
	}

	king, err := models.NewKing(id.KingID(uuid.New()), userID, kingdomID, maxCitizens, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.kings.Create(ctx, king); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeConflict, "kingdom already has a king")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create king profile")
	}
	return nil
}

// CreateCitizenProfile satisfies the identity module's ProfileCreator.
func (s *Service) CreateCitizenProfile(ctx context.Context, userID id.UserID, kingdomID id.KingdomID, age int, pigeonEmail string) error {
	if _, err := s.kingdoms.FindByID(ctx, kingdomID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "kingdom not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up kingdom")
	}

	citizen, err := models.NewCitizen(id.CitizenID(uuid.New()), userID, kingdomID, age, pigeonEmail, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.citizens.Create(ctx, citizen); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeConflict, "user already has a citizen profile")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create citizen profile")
	}
	return nil
}

// Enroll admits a citizen into the calling king's retinue. The capacity
// check and the citizen mutation run inside the king store's Execute lock,
// so the enrolled count can never exceed MaxCitizens even under concurrent
// requests.
func (s *Service) Enroll(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	start := time.Now()

	king, err := s.callerKing(ctx)
	if err != nil {
		s.incrementRejected()
		return nil, err
	}

	citizen, err := s.citizens.FindByID(ctx, citizenID)
	if err != nil {
		s.incrementRejected()
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up citizen")
	}
	if citizen.KingdomID != king.KingdomID {
		s.incrementRejected()
		return nil, dErrors.New(dErrors.CodeForbidden, "citizen belongs to another kingdom")
	}

	completed, err := s.screening.HasCompletedAttempt(ctx, citizen.UserID)
	if err != nil {
		s.incrementRejected()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check screening state")
	}
	if !completed {
		s.incrementRejected()
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "citizen has not completed the screening test")
	}

	now := requestcontext.Now(ctx)
	var enrolled *models.Citizen
	err = s.kings.Execute(ctx, king.ID, func(txCtx context.Context, lockedKing *models.King) error {
		// Re-read under the lock; the pre-checks above were advisory.
		c, err := s.citizens.FindByID(txCtx, citizenID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up citizen")
		}
		if err := c.CanEnroll(); err != nil {
			return err
		}

		current, err := s.citizens.CountEnrolledByKing(txCtx, lockedKing.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count citizens")
		}
		if !lockedKing.CanAcceptMore(current) {
			return dErrors.New(dErrors.CodeConflict, "kingdom is at capacity")
		}

		c.Enroll(lockedKing.ID, now)
		if err := s.citizens.Update(txCtx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll citizen")
		}
		enrolled = c
		return nil
	})
	if err != nil {
		s.incrementRejected()
		return nil, err
	}

	citizenName, kingdomName := "", ""
	if user, err := s.users.FindByID(ctx, citizen.UserID); err == nil {
		citizenName = user.FullName()
	}
	if kingdom, err := s.kingdoms.FindByID(ctx, citizen.KingdomID); err == nil {
		kingdomName = kingdom.Name
	}

	s.audit.Record(ctx, king.UserID, auditmodels.ActionEnrollment, "citizen enrolled", map[string]any{
		"citizen_id":   citizen.ID.String(),
		"citizen_name": citizenName,
		"kingdom_id":   king.KingdomID.String(),
		"kingdom_name": kingdomName,
	})
	s.notifyEnrollment(ctx, enrolled, citizenName, kingdomName)

	if s.metrics != nil {
		s.metrics.IncrementEnrollments()
		s.metrics.ObserveEnroll(start)
	}
	return enrolled, nil
}

func (s *Service) notifyEnrollment(ctx context.Context, citizen *models.Citizen, citizenName, kingdomName string) {
	if s.notifier == nil || citizen.PigeonEmail == "" {
		return
	}
	s.notifier.Enqueue(ctx, notify.EnrollmentWelcome(citizen.PigeonEmail, citizenName, kingdomName))
}

func (s *Service) callerKing(ctx context.Context) (*models.King, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	king, err := s.kings.FindByUserID(ctx, callerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only kings may do this")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up king profile")
	}
	return king, nil
}

// KingdomUserIDs satisfies the audit module's KingdomDirectory: the king
// plus every citizen of the king's kingdom.
func (s *Service) KingdomUserIDs(ctx context.Context, kingUserID id.UserID) ([]id.UserID, error) {
	king, err := s.kings.FindByUserID(ctx, kingUserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []id.UserID{kingUserID}, nil
		}
		return nil, err
	}

	citizens, err := s.citizens.ListByKingdom(ctx, king.KingdomID)
	if err != nil {
		return nil, err
	}
	out := []id.UserID{kingUserID}
	for _, c := range citizens {
		out = append(out, c.UserID)
	}
	return out, nil
}

func (s *Service) incrementRejected() {
	if s.metrics != nil {
		s.metrics.IncrementEnrollmentRejected()
	}
}
