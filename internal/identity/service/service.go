// Package service implements registration, login and profile management.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditmodels "crowngate/internal/audit/models"
	identitymetrics "crowngate/internal/identity/metrics"
	"crowngate/internal/identity/models"
	"crowngate/internal/identity/revocation"
	"crowngate/internal/identity/store"
	"crowngate/internal/jwtauth"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/email"
	"crowngate/pkg/platform/sentinel"
	"crowngate/pkg/requestcontext"
	"crowngate/pkg/secrets"
)

const minPasswordLength = 8

// ProfileCreator creates the role profile that accompanies a new user. The
// kingdom module implements it; the indirection keeps identity from
// importing kingdom.
type ProfileCreator interface {
	CreateKingProfile(ctx context.Context, userID id.UserID, kingdomID id.KingdomID, maxCitizens int) error
	CreateCitizenProfile(ctx context.Context, userID id.UserID, kingdomID id.KingdomID, age int, pigeonEmail string) error
}

// AuditRecorder captures user actions; implementations never return errors.
type AuditRecorder interface {
	Record(ctx context.Context, userID id.UserID, action auditmodels.Action, description string, metadata map[string]any)
}

// Service orchestrates the identity lifecycle.
type Service struct {
	users       store.UserStore
	revocations revocation.Store
	tokens      *jwtauth.Service
	profiles    ProfileCreator
	audit       AuditRecorder
	logger      *slog.Logger
	metrics     *identitymetrics.Metrics
}

func New(
	users store.UserStore,
	revocations revocation.Store,
	tokens *jwtauth.Service,
	profiles ProfileCreator,
	audit AuditRecorder,
	logger *slog.Logger,
	metrics *identitymetrics.Metrics,
) *Service {
	return &Service{
		users:       users,
		revocations: revocations,
		tokens:      tokens,
		profiles:    profiles,
		audit:       audit,
		logger:      logger,
		metrics:     metrics,
	}
}

// RegisterParams carries a registration request with inputs already parsed
// into domain types at the transport boundary.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      id.Role
	KingdomID id.KingdomID

	// Citizen profile fields.
	Age         int
	PigeonEmail string

	// King profile field; zero means the default capacity.
	MaxCitizens int
}

// Register creates a user plus its role profile and returns the user with a
// fresh access token.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, string, error) {
	start := time.Now()

	if len(params.Password) < minPasswordLength {
		return nil, "", dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if !params.Role.IsValid() {
		return nil, "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	if params.KingdomID.IsNil() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "kingdom is required")
	}

	hash, err := secrets.Hash(params.Password)
	if err != nil {
		return nil, "", err
	}

	firstName, lastName := params.FirstName, params.LastName
	if firstName == "" && lastName == "" {
		firstName, lastName = email.DeriveNameFromEmail(params.Email)
	}

	user, err := models.NewUser(id.UserID(uuid.New()), params.Email, hash, firstName, lastName, params.Role, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	if err := s.createProfile(ctx, user, params); err != nil {
		// The user row is useless without its profile; undo it.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back user after profile error",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", user.ID.String(),
				"error", delErr.Error(),
			)
		}
		return nil, "", err
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, user.ID, auditmodels.ActionRegister, "user registered", map[string]any{
		"email": user.Email,
		"role":  user.Role.String(),
	})

	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
		s.metrics.ObserveRegister(start)
	}
	return user, token, nil
}

func (s *Service) createProfile(ctx context.Context, user *models.User, params RegisterParams) error {
	switch user.Role {
	case id.RoleKing:
		return s.profiles.CreateKingProfile(ctx, user.ID, params.KingdomID, params.MaxCitizens)
	case id.RoleCitizen:
		pigeonEmail := params.PigeonEmail
		if pigeonEmail == "" {
			pigeonEmail = user.Email
		}
		return s.profiles.CreateCitizenProfile(ctx, user.ID, params.KingdomID, params.Age, pigeonEmail)
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
}

// Login verifies credentials and returns the user with a fresh access token.
// The error never reveals whether the email or the password was wrong.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementLoginFailure()
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	if !secrets.Verify(user.PasswordHash, password) || !user.IsActive {
		s.incrementLoginFailure()
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	user.RecordLogin(requestcontext.Now(ctx))
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, user.ID, auditmodels.ActionLogin, "user logged in", map[string]any{
		"email": user.Email,
	})

	if s.metrics != nil {
		s.metrics.IncrementLoginSuccess()
	}
	return user, token, nil
}

// Logout revokes the presented token for its remaining lifetime.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.ValidateToken(rawToken)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "token has no id")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err == nil {
		s.audit.Record(ctx, userID, auditmodels.ActionLogout, "user logged out", nil)
	}
	return nil
}

// Profile returns the authenticated user's account.
func (s *Service) Profile(ctx context.Context) (*models.User, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return user, nil
}

// UpdateProfileParams uses pointers so callers can distinguish "leave as is"
// from "set to empty".
type UpdateProfileParams struct {
	FirstName *string
	LastName  *string
}

// UpdateProfile changes the caller's name fields. Email and role are
// immutable.
func (s *Service) UpdateProfile(ctx context.Context, params UpdateProfileParams) (*models.User, error) {
	user, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}

	if params.FirstName != nil {
		user.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		user.LastName = *params.LastName
	}
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	return user, nil
}

// IsStaff reports whether the user is an operator. Satisfies the audit
// module's StaffChecker.
func (s *Service) IsStaff(ctx context.Context, userID id.UserID) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsStaff, nil
}

func (s *Service) incrementLoginFailure() {
	if s.metrics != nil {
		s.metrics.IncrementLoginFailure()
	}
}
