// Package repository defines the persistence collaborators of the scorer and
// their MongoDB and PostgreSQL implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"designsense-go/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateAttempt is returned when an attempt for the same
	// (sessionId, applicantEmail) pair has already been stored.
	ErrDuplicateAttempt = errors.New("attempt already recorded for session")
)

// QuestionBank reads the seeded questions.
type QuestionBank interface {
	FindAllQuestions(ctx context.Context) ([]models.Question, error)
	FindSupplemental(ctx context.Context) ([]models.SupplementalQuestion, error)
	FindSupplementalByNumber(ctx context.Context, questionNumber int) (*models.SupplementalQuestion, error)
}

// ImageCatalog resolves answer keys for rated images.
type ImageCatalog interface {
	FindImagesByIDs(ctx context.Context, ids []string) ([]models.Image, error)
}

// ApplicantUpsert carries the fields written by UpsertApplicant. Email and
// CreatedAt (Now) are only set when the applicant is inserted.
type ApplicantUpsert struct {
	Email string
	Name  string
	Now   time.Time
}

// BuildAttempt fills in an attempt once its number has been claimed.
type BuildAttempt func(attemptNumber int) *models.Attempt

// AttemptStore persists attempts and applicants.
type AttemptStore interface {
	FindAttempt(ctx context.Context, sessionID, email string) (*models.Attempt, error)
	InsertAttempt(ctx context.Context, attempt *models.Attempt) error
	FindApplicantByEmail(ctx context.Context, email string) (*models.Applicant, error)
	// UpsertApplicant creates or updates the applicant and increments its
	// attemptCount in one operation. It returns the new count, which is the
	// attempt number claimed by the caller.
	UpsertApplicant(ctx context.Context, upsert ApplicantUpsert) (int, error)
	// RecordAttempt claims the next attempt number and stores the attempt
	// built for it. Either both writes persist or neither does.
	RecordAttempt(ctx context.Context, upsert ApplicantUpsert, build BuildAttempt) (*models.Attempt, error)
}

// AttemptWriter is a store without multi-document transactions. A claimed
// attempt number is handed back with ReleaseAttemptNumber instead.
type AttemptWriter interface {
	UpsertApplicant(ctx context.Context, upsert ApplicantUpsert) (int, error)
	InsertAttempt(ctx context.Context, attempt *models.Attempt) error
	// ReleaseAttemptNumber decrements attemptCount only while it still
	// equals attemptNumber, so later claims are never reused.
	ReleaseAttemptNumber(ctx context.Context, email string, attemptNumber int) error
}

// RecordWithRelease claims an attempt number, then inserts the attempt. When
// the insert fails the claim is released and the insert error is returned.
func RecordWithRelease(ctx context.Context, w AttemptWriter, upsert ApplicantUpsert, build BuildAttempt) (*models.Attempt, error) {
	attemptNumber, err := w.UpsertApplicant(ctx, upsert)
	if err != nil {
		return nil, err
	}
	attempt := build(attemptNumber)
	if err := w.InsertAttempt(ctx, attempt); err != nil {
		if rerr := w.ReleaseAttemptNumber(context.WithoutCancel(ctx), upsert.Email, attemptNumber); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release attempt number %d: %w", attemptNumber, rerr))
		}
		return nil, err
	}
	return attempt, nil
}

// BankWriter replaces the whole question bank.
type BankWriter interface {
	ReplaceQuestionBank(ctx context.Context, bank *models.QuestionBank, now time.Time) error
}

// Store is implemented by every backend.
type Store interface {
	QuestionBank
	ImageCatalog
	AttemptStore
	BankWriter
}
