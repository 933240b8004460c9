package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crowngate/internal/audit/models"
	id "crowngate/pkg/domain"
	txcontext "crowngate/pkg/platform/tx"
)

// Postgres is the production implementation of Store.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Append(ctx context.Context, entry models.Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal entry metadata: %w", err)
	}

	query := `
		INSERT INTO action_logs (id, user_id, action, description, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.UserID),
		entry.Action.String(),
		entry.Description,
		metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action log: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]models.Entry, error) {
	if filter.UserIDs != nil && len(filter.UserIDs) == 0 {
		return nil, nil
	}

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserIDs != nil {
		ids := make([]uuid.UUID, len(filter.UserIDs))
		for i, uid := range filter.UserIDs {
			ids[i] = uuid.UUID(uid)
		}
		conditions = append(conditions, "user_id = ANY("+arg(pq.Array(ids))+")")
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = "+arg(filter.Action.String()))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at <= "+arg(filter.To))
	}

	query := `
		SELECT id, user_id, action, description, metadata, ip_address, user_agent, created_at
		FROM action_logs
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query action logs: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	var out []models.Entry
	for rows.Next() {
		var (
			e        models.Entry
			entryID  uuid.UUID
			userID   uuid.UUID
			action   string
			metadata []byte
		)
		if err := rows.Scan(&entryID, &userID, &action, &e.Description, &metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		e.ID = id.EntryID(entryID)
		e.UserID = id.UserID(userID)
		e.Action = models.Action(action)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
