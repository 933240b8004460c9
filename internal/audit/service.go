package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"crowngate/internal/audit/models"
	"crowngate/internal/audit/store"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/requestcontext"
)

// DefaultListLimit caps listings when the caller does not ask for a limit.
const DefaultListLimit = 50

// StaffChecker reports whether a user has staff privileges.
type StaffChecker interface {
	IsStaff(ctx context.Context, userID id.UserID) (bool, error)
}

// KingdomDirectory resolves which users a king may see logs for.
type KingdomDirectory interface {
	// KingdomUserIDs returns the user IDs of everyone in the king's kingdom,
	// the king included.
	KingdomUserIDs(ctx context.Context, kingUserID id.UserID) ([]id.UserID, error)
}

// ListOptions are caller-supplied filters. Action, UserID, From and To are
// honored for staff only; kings and citizens always get their fixed scope.
type ListOptions struct {
	Action models.Action
	UserID id.UserID
	From   time.Time
	To     time.Time
	Limit  int
}

// Service serves role-scoped reads of the action log. Staff see everything,
// kings see their kingdom's users, citizens see only themselves.
type Service struct {
	store   store.Store
	staff   StaffChecker
	kingdom KingdomDirectory
}

func NewService(st store.Store, staff StaffChecker, kingdom KingdomDirectory) *Service {
	return &Service{store: st, staff: staff, kingdom: kingdom}
}

// List returns the entries visible to the calling user.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]models.Entry, error) {
	filter, err := s.scopedFilter(ctx, opts)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list logs")
	}
	return entries, nil
}

func (s *Service) scopedFilter(ctx context.Context, opts ListOptions) (store.Filter, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return store.Filter{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	isStaff, err := s.staff.IsStaff(ctx, userID)
	if err != nil {
		return store.Filter{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve log scope")
	}
	if isStaff {
		filter := store.Filter{
			Action: opts.Action,
			From:   opts.From,
			To:     opts.To,
			Limit:  limit,
		}
		if !opts.UserID.IsNil() {
			filter.UserIDs = []id.UserID{opts.UserID}
		}
		return filter, nil
	}

	scope := []id.UserID{userID}
	if requestcontext.Role(ctx) == id.RoleKing {
		scope, err = s.kingdom.KingdomUserIDs(ctx, userID)
		if err != nil {
			return store.Filter{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve log scope")
		}
	}
	return store.Filter{UserIDs: scope, Limit: limit}, nil
}

// ExportCSV streams entries as CSV. Staff only; filters behave as in List,
// and no limit is applied unless the caller asks for one.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, opts ListOptions) error {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	isStaff, err := s.staff.IsStaff(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve log scope")
	}
	if !isStaff {
		return dErrors.New(dErrors.CodeForbidden, "only staff may export logs")
	}

	filter := store.Filter{
		Action: opts.Action,
		From:   opts.From,
		To:     opts.To,
		Limit:  opts.Limit,
	}
	if !opts.UserID.IsNil() {
		filter.UserIDs = []id.UserID{opts.UserID}
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list logs")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "user_id", "action", "description", "metadata", "ip_address", "user_agent", "created_at"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		metadata := ""
		if len(e.Metadata) > 0 {
			raw, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for export: %w", err)
			}
			metadata = string(raw)
		}
		record := []string{
			e.ID.String(),
			e.UserID.String(),
			e.Action.String(),
			e.Description,
			metadata,
			e.IPAddress,
			e.UserAgent,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
