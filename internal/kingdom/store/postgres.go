package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crowngate/internal/kingdom/models"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/sentinel"
	txcontext "crowngate/pkg/platform/tx"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresKingdoms is the production implementation of KingdomStore.
type PostgresKingdoms struct {
	db *sql.DB
}

func NewPostgresKingdoms(db *sql.DB) *PostgresKingdoms {
	return &PostgresKingdoms{db: db}
}

func (s *PostgresKingdoms) Create(ctx context.Context, kingdom *models.Kingdom) error {
	query := `
		INSERT INTO kingdoms (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(kingdom.ID), kingdom.Name, kingdom.Description, kingdom.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert kingdom: %w", err)
	}
	return nil
}

func (s *PostgresKingdoms) FindByID(ctx context.Context, kingdomID id.KingdomID) (*models.Kingdom, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM kingdoms WHERE id = $1`, uuid.UUID(kingdomID))
	return scanKingdom(row)
}

func (s *PostgresKingdoms) List(ctx context.Context) ([]*models.Kingdom, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx,
		`SELECT id, name, description, created_at FROM kingdoms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query kingdoms: %w", err)
	}
	defer rows.Close()

	var out []*models.Kingdom
	for rows.Next() {
		var (
			k   models.Kingdom
			kid uuid.UUID
		)
		if err := rows.Scan(&kid, &k.Name, &k.Description, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan kingdom: %w", err)
		}
		k.ID = id.KingdomID(kid)
		out = append(out, &k)
	}
	return out, rows.Err()
}

func scanKingdom(row *sql.Row) (*models.Kingdom, error) {
	var (
		k   models.Kingdom
		kid uuid.UUID
	)
	err := row.Scan(&kid, &k.Name, &k.Description, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan kingdom: %w", err)
	}
	k.ID = id.KingdomID(kid)
	return &k, nil
}

// PostgresKings is the production implementation of KingStore.
type PostgresKings struct {
	db *sql.DB
}

func NewPostgresKings(db *sql.DB) *PostgresKings {
	return &PostgresKings{db: db}
}

const kingColumns = `id, user_id, kingdom_id, max_citizens, created_at`

func (s *PostgresKings) Create(ctx context.Context, king *models.King) error {
	query := `
		INSERT INTO kings (id, user_id, kingdom_id, max_citizens, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(king.ID), uuid.UUID(king.UserID), uuid.UUID(king.KingdomID), king.MaxCitizens, king.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert king: %w", err)
	}
	return nil
}

func (s *PostgresKings) FindByID(ctx context.Context, kingID id.KingID) (*models.King, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+kingColumns+` FROM kings WHERE id = $1`, uuid.UUID(kingID))
	return scanKing(row)
}

func (s *PostgresKings) FindByUserID(ctx context.Context, userID id.UserID) (*models.King, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+kingColumns+` FROM kings WHERE user_id = $1`, uuid.UUID(userID))
	return scanKing(row)
}

func (s *PostgresKings) FindByKingdomID(ctx context.Context, kingdomID id.KingdomID) (*models.King, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+kingColumns+` FROM kings WHERE kingdom_id = $1`, uuid.UUID(kingdomID))
	return scanKing(row)
}

// Execute locks the king's row FOR UPDATE inside a transaction and runs fn
// with the transaction bound to the context, so citizen operations made
// through that context join it. Concurrent enrollments for the same king
// serialize on the row lock.
func (s *PostgresKings) Execute(ctx context.Context, kingID id.KingID, fn func(ctx context.Context, king *models.King) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enroll tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+kingColumns+` FROM kings WHERE id = $1 FOR UPDATE`, uuid.UUID(kingID))
	king, err := scanKing(row)
	if err != nil {
		return err
	}

	if err := fn(txcontext.WithTx(ctx, tx), king); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enroll tx: %w", err)
	}
	return nil
}

func scanKing(row *sql.Row) (*models.King, error) {
	var (
		k                      models.King
		kingID, userID, kingdm uuid.UUID
	)
	err := row.Scan(&kingID, &userID, &kingdm, &k.MaxCitizens, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan king: %w", err)
	}
	k.ID = id.KingID(kingID)
	k.UserID = id.UserID(userID)
	k.KingdomID = id.KingdomID(kingdm)
	return &k, nil
}

// PostgresCitizens is the production implementation of CitizenStore.
type PostgresCitizens struct {
	db *sql.DB
}

func NewPostgresCitizens(db *sql.DB) *PostgresCitizens {
	return &PostgresCitizens{db: db}
}

const citizenColumns = `id, user_id, kingdom_id, king_id, age, pigeon_email, is_enrolled, enrolled_at, created_at`

func (s *PostgresCitizens) Create(ctx context.Context, citizen *models.Citizen) error {
	query := `
		INSERT INTO citizens (id, user_id, kingdom_id, king_id, age, pigeon_email, is_enrolled, enrolled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(citizen.ID),
		uuid.UUID(citizen.UserID),
		uuid.UUID(citizen.KingdomID),
		kingIDValue(citizen.KingID),
		citizen.Age,
		citizen.PigeonEmail,
		citizen.IsEnrolled,
		citizen.EnrolledAt,
		citizen.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert citizen: %w", err)
	}
	return nil
}

func (s *PostgresCitizens) FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE id = $1`, uuid.UUID(citizenID))
	return scanCitizenRow(row)
}

func (s *PostgresCitizens) FindByUserID(ctx context.Context, userID id.UserID) (*models.Citizen, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE user_id = $1`, uuid.UUID(userID))
	return scanCitizenRow(row)
}

func (s *PostgresCitizens) ListByKingdom(ctx context.Context, kingdomID id.KingdomID) ([]*models.Citizen, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE kingdom_id = $1 ORDER BY created_at`, uuid.UUID(kingdomID))
	if err != nil {
		return nil, fmt.Errorf("query citizens: %w", err)
	}
	defer rows.Close()

	var out []*models.Citizen
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCitizens) CountEnrolledByKing(ctx context.Context, kingID id.KingID) (int, error) {
	var count int
	err := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM citizens WHERE king_id = $1 AND is_enrolled`, uuid.UUID(kingID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrolled citizens: %w", err)
	}
	return count, nil
}

func (s *PostgresCitizens) Update(ctx context.Context, citizen *models.Citizen) error {
	query := `
		UPDATE citizens
		SET king_id = $2, age = $3, pigeon_email = $4, is_enrolled = $5, enrolled_at = $6
		WHERE id = $1
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(citizen.ID),
		kingIDValue(citizen.KingID),
		citizen.Age,
		citizen.PigeonEmail,
		citizen.IsEnrolled,
		citizen.EnrolledAt,
	)
	if err != nil {
		return fmt.Errorf("update citizen: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update citizen: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func kingIDValue(kingID *id.KingID) any {
	if kingID == nil {
		return nil
	}
	return uuid.UUID(*kingID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitizenRow(row *sql.Row) (*models.Citizen, error) {
	c, err := scanCitizen(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

func scanCitizen(row rowScanner) (*models.Citizen, error) {
	var (
		c                models.Citizen
		citizenID        uuid.UUID
		userID, kingdmID uuid.UUID
		kingID           uuid.NullUUID
	)
	err := row.Scan(&citizenID, &userID, &kingdmID, &kingID, &c.Age, &c.PigeonEmail, &c.IsEnrolled, &c.EnrolledAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan citizen: %w", err)
	}
	c.ID = id.CitizenID(citizenID)
	c.UserID = id.UserID(userID)
	c.KingdomID = id.KingdomID(kingdmID)
	if kingID.Valid {
		kid := id.KingID(kingID.UUID)
		c.KingID = &kid
	}
	return &c, nil
}
