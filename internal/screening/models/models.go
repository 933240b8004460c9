// Package models defines the screening test aggregate: one true/false test
// per kingdom, attempts and answers.
package models

import (
	"math"
	"strings"
	"time"

	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
)

// Test is a kingdom's screening questionnaire.
type Test struct {
	ID          id.TestID    `json:"id"`
	KingdomID   id.KingdomID `json:"kingdom_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
}

func NewTest(testID id.TestID, kingdomID id.KingdomID, title, description string, now time.Time) (*Test, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "test title cannot be empty")
	}
	return &Test{
		ID:          testID,
		KingdomID:   kingdomID,
		Title:       title,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

// Question is a single true/false statement. Questions are served in Order,
// then creation order for ties.
type Question struct {
	ID            id.QuestionID `json:"id"`
	TestID        id.TestID     `json:"test_id"`
	Text          string        `json:"text"`
	CorrectAnswer bool          `json:"correct_answer"`
	Order         int           `json:"order"`
	CreatedAt     time.Time     `json:"created_at"`
}

func NewQuestion(questionID id.QuestionID, testID id.TestID, text string, correctAnswer bool, order int, now time.Time) (*Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "question text cannot be empty")
	}
	return &Question{
		ID:            questionID,
		TestID:        testID,
		Text:          text,
		CorrectAnswer: correctAnswer,
		Order:         order,
		CreatedAt:     now,
	}, nil
}

// AttemptStatus is the lifecycle state of a test attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	// AttemptFailed exists for a future pass threshold; nothing produces it.
	AttemptFailed AttemptStatus = "failed"
)

// TestAttempt is one citizen's run through a test. TotalQuestions is
// snapshotted at start so completion stays well-defined if questions are
// added mid-attempt.
type TestAttempt struct {
	ID             id.AttemptID  `json:"id"`
	UserID         id.UserID     `json:"user_id"`
	TestID         id.TestID     `json:"test_id"`
	Status         AttemptStatus `json:"status"`
	Score          int           `json:"score"`
	TotalQuestions int           `json:"total_questions"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

func NewTestAttempt(attemptID id.AttemptID, userID id.UserID, testID id.TestID, totalQuestions int, now time.Time) *TestAttempt {
	return &TestAttempt{
		ID:             attemptID,
		UserID:         userID,
		TestID:         testID,
		Status:         AttemptInProgress,
		TotalQuestions: totalQuestions,
		StartedAt:      now,
	}
}

func (a *TestAttempt) IsInProgress() bool {
	return a.Status == AttemptInProgress
}

func (a *TestAttempt) IsCompleted() bool {
	return a.Status == AttemptCompleted
}

// Complete marks the attempt finished.
func (a *TestAttempt) Complete(now time.Time) {
	t := now
	a.Status = AttemptCompleted
	a.CompletedAt = &t
}

// Percentage is the score as a percentage of the question snapshot, rounded
// to two decimals. Zero questions means zero percent, not a division crash.
func (a *TestAttempt) Percentage() float64 {
	if a.TotalQuestions == 0 {
		return 0
	}
	return math.Round(float64(a.Score)/float64(a.TotalQuestions)*100*100) / 100
}

// Answer is a citizen's response to one question. One row per
// (attempt, question); re-answering overwrites.
type Answer struct {
	ID         id.AnswerID   `json:"id"`
	AttemptID  id.AttemptID  `json:"attempt_id"`
	QuestionID id.QuestionID `json:"question_id"`
	Value      bool          `json:"value"`
	IsCorrect  bool          `json:"is_correct"`
	AnsweredAt time.Time     `json:"answered_at"`
}
