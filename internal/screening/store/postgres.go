package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crowngate/internal/screening/models"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresTests is the production implementation of TestStore.
type PostgresTests struct {
	db *sql.DB
}

func NewPostgresTests(db *sql.DB) *PostgresTests {
	return &PostgresTests{db: db}
}

const testColumns = `id, kingdom_id, title, description, is_active, created_at`

func (s *PostgresTests) Create(ctx context.Context, test *models.Test) error {
	query := `
		INSERT INTO tests (id, kingdom_id, title, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(test.ID), uuid.UUID(test.KingdomID), test.Title, test.Description, test.IsActive, test.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert test: %w", err)
	}
	return nil
}

func (s *PostgresTests) FindByID(ctx context.Context, testID id.TestID) (*models.Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, uuid.UUID(testID))
	return scanTest(row)
}

func (s *PostgresTests) FindByKingdom(ctx context.Context, kingdomID id.KingdomID) (*models.Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE kingdom_id = $1`, uuid.UUID(kingdomID))
	return scanTest(row)
}

func scanTest(row *sql.Row) (*models.Test, error) {
	var (
		t              models.Test
		testID, kingdm uuid.UUID
	)
	err := row.Scan(&testID, &kingdm, &t.Title, &t.Description, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan test: %w", err)
	}
	t.ID = id.TestID(testID)
	t.KingdomID = id.KingdomID(kingdm)
	return &t, nil
}

// PostgresQuestions is the production implementation of QuestionStore.
type PostgresQuestions struct {
	db *sql.DB
}

func NewPostgresQuestions(db *sql.DB) *PostgresQuestions {
	return &PostgresQuestions{db: db}
}

const questionColumns = `id, test_id, text, correct_answer, "order", created_at`

func (s *PostgresQuestions) Create(ctx context.Context, question *models.Question) error {
	query := `
		INSERT INTO questions (id, test_id, text, correct_answer, "order", created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(question.ID), uuid.UUID(question.TestID), question.Text,
		question.CorrectAnswer, question.Order, question.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *PostgresQuestions) FindByID(ctx context.Context, questionID id.QuestionID) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, uuid.UUID(questionID))
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return q, err
}

func (s *PostgresQuestions) ListByTest(ctx context.Context, testID id.TestID) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE test_id = $1 ORDER BY "order", created_at`,
		uuid.UUID(testID))
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *PostgresQuestions) CountByTest(ctx context.Context, testID id.TestID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE test_id = $1`, uuid.UUID(testID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q              models.Question
		questionID, tid uuid.UUID
	)
	err := row.Scan(&questionID, &tid, &q.Text, &q.CorrectAnswer, &q.Order, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}
	q.ID = id.QuestionID(questionID)
	q.TestID = id.TestID(tid)
	return &q, nil
}

// PostgresAttempts is the production implementation of AttemptStore.
type PostgresAttempts struct {
	db *sql.DB
}

func NewPostgresAttempts(db *sql.DB) *PostgresAttempts {
	return &PostgresAttempts{db: db}
}

const attemptColumns = `id, user_id, test_id, status, score, total_questions, started_at, completed_at`

func (s *PostgresAttempts) Create(ctx context.Context, attempt *models.TestAttempt) error {
	query := `
		INSERT INTO test_attempts (id, user_id, test_id, status, score, total_questions, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(attempt.ID), uuid.UUID(attempt.UserID), uuid.UUID(attempt.TestID),
		string(attempt.Status), attempt.Score, attempt.TotalQuestions, attempt.StartedAt, attempt.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *PostgresAttempts) FindByID(ctx context.Context, attemptID id.AttemptID) (*models.TestAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM test_attempts WHERE id = $1`, uuid.UUID(attemptID))
	return scanAttempt(row)
}

func (s *PostgresAttempts) FindInProgress(ctx context.Context, userID id.UserID, testID id.TestID) (*models.TestAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM test_attempts
		 WHERE user_id = $1 AND test_id = $2 AND status = 'in_progress'
		 ORDER BY started_at DESC LIMIT 1`,
		uuid.UUID(userID), uuid.UUID(testID))
	return scanAttempt(row)
}

func (s *PostgresAttempts) LastByUser(ctx context.Context, userID id.UserID) (*models.TestAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM test_attempts
		 WHERE user_id = $1 ORDER BY started_at DESC LIMIT 1`,
		uuid.UUID(userID))
	return scanAttempt(row)
}

func (s *PostgresAttempts) HasCompleted(ctx context.Context, userID id.UserID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM test_attempts WHERE user_id = $1 AND status = 'completed')`,
		uuid.UUID(userID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed attempt: %w", err)
	}
	return exists, nil
}

func (s *PostgresAttempts) Update(ctx context.Context, attempt *models.TestAttempt) error {
	query := `
		UPDATE test_attempts
		SET status = $2, score = $3, completed_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(attempt.ID), string(attempt.Status), attempt.Score, attempt.CompletedAt)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAttempt(row *sql.Row) (*models.TestAttempt, error) {
	var (
		a           models.TestAttempt
		attemptID   uuid.UUID
		userID, tid uuid.UUID
		status      string
	)
	err := row.Scan(&attemptID, &userID, &tid, &status, &a.Score, &a.TotalQuestions, &a.StartedAt, &a.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	a.ID = id.AttemptID(attemptID)
	a.UserID = id.UserID(userID)
	a.TestID = id.TestID(tid)
	a.Status = models.AttemptStatus(status)
	return &a, nil
}

// PostgresAnswers is the production implementation of AnswerStore.
type PostgresAnswers struct {
	db *sql.DB
}

func NewPostgresAnswers(db *sql.DB) *PostgresAnswers {
	return &PostgresAnswers{db: db}
}

func (s *PostgresAnswers) Upsert(ctx context.Context, answer *models.Answer) error {
	query := `
		INSERT INTO answers (id, attempt_id, question_id, answer, is_correct, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attempt_id, question_id)
		DO UPDATE SET answer = EXCLUDED.answer, is_correct = EXCLUDED.is_correct, answered_at = EXCLUDED.answered_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(answer.ID), uuid.UUID(answer.AttemptID), uuid.UUID(answer.QuestionID),
		answer.Value, answer.IsCorrect, answer.AnsweredAt)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *PostgresAnswers) ListByAttempt(ctx context.Context, attemptID id.AttemptID) ([]*models.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, question_id, answer, is_correct, answered_at
		 FROM answers WHERE attempt_id = $1 ORDER BY answered_at`,
		uuid.UUID(attemptID))
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []*models.Answer
	for rows.Next() {
		var (
			a             models.Answer
			answerID, aid uuid.UUID
			questionID    uuid.UUID
		)
		if err := rows.Scan(&answerID, &aid, &questionID, &a.Value, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.ID = id.AnswerID(answerID)
		a.AttemptID = id.AttemptID(aid)
		a.QuestionID = id.QuestionID(questionID)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresAnswers) CountByAttempt(ctx context.Context, attemptID id.AttemptID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE attempt_id = $1`, uuid.UUID(attemptID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return count, nil
}
