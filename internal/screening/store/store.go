// Package store persists screening tests, questions, attempts and answers.
package store

import (
	"context"

	"crowngate/internal/screening/models"
	id "crowngate/pkg/domain"
)

// TestStore holds at most one test per kingdom.
type TestStore interface {
	// Create fails with ErrAlreadyUsed when the kingdom already has a test.
	Create(ctx context.Context, test *models.Test) error
	FindByID(ctx context.Context, testID id.TestID) (*models.Test, error)
	FindByKingdom(ctx context.Context, kingdomID id.KingdomID) (*models.Test, error)
}

// QuestionStore holds a test's true/false questions.
type QuestionStore interface {
	Create(ctx context.Context, question *models.Question) error
	FindByID(ctx context.Context, questionID id.QuestionID) (*models.Question, error)
	// ListByTest returns questions ordered by Order, then creation time.
	ListByTest(ctx context.Context, testID id.TestID) ([]*models.Question, error)
	CountByTest(ctx context.Context, testID id.TestID) (int, error)
}

// AttemptStore holds citizens' runs through a test.
type AttemptStore interface {
	Create(ctx context.Context, attempt *models.TestAttempt) error
	FindByID(ctx context.Context, attemptID id.AttemptID) (*models.TestAttempt, error)
	// FindInProgress returns the user's open attempt for the test, or
	// ErrNotFound when there is none.
	FindInProgress(ctx context.Context, userID id.UserID, testID id.TestID) (*models.TestAttempt, error)
	// LastByUser returns the user's most recently started attempt.
	LastByUser(ctx context.Context, userID id.UserID) (*models.TestAttempt, error)
	// HasCompleted reports whether the user has any completed attempt.
	HasCompleted(ctx context.Context, userID id.UserID) (bool, error)
	Update(ctx context.Context, attempt *models.TestAttempt) error
}

// AnswerStore holds one answer per (attempt, question).
type AnswerStore interface {
	// Upsert inserts the answer or overwrites an existing one for the same
	// attempt and question.
	Upsert(ctx context.Context, answer *models.Answer) error
	ListByAttempt(ctx context.Context, attemptID id.AttemptID) ([]*models.Answer, error)
	CountByAttempt(ctx context.Context, attemptID id.AttemptID) (int, error)
}
