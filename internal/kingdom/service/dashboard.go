package service

import (
	"context"
	"errors"

	"crowngate/internal/kingdom/models"
	screeningmodels "crowngate/internal/screening/models"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/platform/sentinel"
	"crowngate/pkg/requestcontext"
)

// Capacity summarizes a king's headroom.
type Capacity struct {
	Max           int  `json:"max"`
	Current       int  `json:"current"`
	CanAcceptMore bool `json:"can_accept_more"`
}

// KingDashboard is what a king sees: the realm, who is in, and who is
// waiting at the gate.
type KingDashboard struct {
	Kingdom    *models.Kingdom    `json:"kingdom"`
	King       *models.King       `json:"king"`
	Capacity   Capacity           `json:"capacity"`
	Enrolled   []*models.Citizen  `json:"enrolled"`
	Candidates []*models.Citizen  `json:"candidates"`
}

// CitizenDashboard is what a citizen sees: their enrollment state and where
// they stand with the screening test.
type CitizenDashboard struct {
	Citizen     *models.Citizen             `json:"citizen"`
	Kingdom     *models.Kingdom             `json:"kingdom"`
	King        *models.King                `json:"king,omitempty"`
	Test        *screeningmodels.Test       `json:"test,omitempty"`
	LastAttempt *screeningmodels.TestAttempt `json:"last_attempt,omitempty"`
}

// KingDashboardFor builds the dashboard for the calling king. Candidates are
// unenrolled kingdom citizens who have completed the screening test.
func (s *Service) KingDashboardFor(ctx context.Context) (*KingDashboard, error) {
	king, err := s.callerKing(ctx)
	if err != nil {
		return nil, err
	}

	kingdom, err := s.kingdoms.FindByID(ctx, king.KingdomID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kingdom")
	}

	citizens, err := s.citizens.ListByKingdom(ctx, king.KingdomID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list citizens")
	}

	dashboard := &KingDashboard{
		Kingdom:    kingdom,
		King:       king,
		Enrolled:   []*models.Citizen{},
		Candidates: []*models.Citizen{},
	}
	for _, c := range citizens {
		if c.IsEnrolled {
			if c.KingID != nil && *c.KingID == king.ID {
				dashboard.Enrolled = append(dashboard.Enrolled, c)
			}
			continue
		}
		completed, err := s.screening.HasCompletedAttempt(ctx, c.UserID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check screening state")
		}
		if completed {
			dashboard.Candidates = append(dashboard.Candidates, c)
		}
	}

	dashboard.Capacity = Capacity{
		Max:           king.MaxCitizens,
		Current:       len(dashboard.Enrolled),
		CanAcceptMore: king.CanAcceptMore(len(dashboard.Enrolled)),
	}
	return dashboard, nil
}

// CitizenDashboardFor builds the dashboard for the calling citizen.
func (s *Service) CitizenDashboardFor(ctx context.Context) (*CitizenDashboard, error) {
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

	kingdom, err := s.kingdoms.FindByID(ctx, citizen.KingdomID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kingdom")
	}

	dashboard := &CitizenDashboard{Citizen: citizen, Kingdom: kingdom}

	if citizen.IsEnrolled && citizen.KingID != nil {
		if king, err := s.kings.FindByID(ctx, *citizen.KingID); err == nil {
			dashboard.King = king
		}
	}

	if test, err := s.screening.KingdomTest(ctx, citizen.KingdomID); err == nil {
		dashboard.Test = test
	} else if !errors.Is(err, sentinel.ErrNotFound) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kingdom test")
	}

	attempt, err := s.screening.LastAttempt(ctx, callerID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attempt state")
	}
	dashboard.LastAttempt = attempt
	return dashboard, nil
}

// Dashboard dispatches on the caller's role.
func (s *Service) Dashboard(ctx context.Context) (any, error) {
	switch requestcontext.Role(ctx) {
	case id.RoleKing:
		return s.KingDashboardFor(ctx)
	case id.RoleCitizen:
		return s.CitizenDashboardFor(ctx)
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "unknown role")
	}
}
