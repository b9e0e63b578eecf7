package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"designsense-go/internal/metrics"
	"designsense-go/internal/models"
	"designsense-go/internal/repository"
	"designsense-go/internal/scoring"
	"designsense-go/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// isoMillis matches the timestamps the frontend renders.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// AttemptPublisher is notified after a new attempt is stored.
type AttemptPublisher interface {
	PublishAttempt(ctx context.Context, attempt *models.Attempt)
}

// Recorder receives submission outcomes.
type Recorder interface {
	Submission(outcome string)
	AttemptRecorded(band string, overall float64)
}

// Outcome is the result of Submit. Duplicate is set when the attempt for the
// session already existed and nothing was written.
type Outcome struct {
	Result    models.SubmissionResult
	Attempt   *models.Attempt
	Duplicate bool
}

// SubmissionService scores submissions and records attempts.
type SubmissionService struct {
	bank      repository.QuestionBank
	catalog   repository.ImageCatalog
	attempts  repository.AttemptStore
	publisher AttemptPublisher
	recorder  Recorder
	log       *zap.Logger

	now   func() time.Time
	newID func() string
}

// SubmissionDeps wires the collaborators. Publisher and Recorder are optional.
type SubmissionDeps struct {
	Bank      repository.QuestionBank
	Catalog   repository.ImageCatalog
	Attempts  repository.AttemptStore
	Publisher AttemptPublisher
	Recorder  Recorder
	Log       *zap.Logger
}

func NewSubmissionService(deps SubmissionDeps) *SubmissionService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionService{
		bank:      deps.Bank,
		catalog:   deps.Catalog,
		attempts:  deps.Attempts,
		publisher: deps.Publisher,
		recorder:  deps.Recorder,
		log:       log.Named("submission"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
}

// ListQuestions returns the image questions without their answer key.
func (s *SubmissionService) ListQuestions(ctx context.Context) ([]models.PublicQuestion, error) {
	questions, err := s.bank.FindAllQuestions(ctx)
	if err != nil {
		s.log.Error("Failed to load questions", zap.Error(err))
		return nil, persistenceError("Failed to load questions.", err)
	}
	out := make([]models.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.ToPublic())
	}
	return out, nil
}

// ListSupplemental returns the supplemental questions without the correct
// option. Documents of an unknown kind are skipped.
func (s *SubmissionService) ListSupplemental(ctx context.Context) ([]models.PublicSupplemental, error) {
	docs, err := s.bank.FindSupplemental(ctx)
	if err != nil {
		s.log.Error("Failed to load supplemental questions", zap.Error(err))
		return nil, persistenceError("Failed to load supplemental questions.", err)
	}
	out := make([]models.PublicSupplemental, 0, len(docs))
	for _, doc := range docs {
		pub, ok := doc.ToPublic()
		if !ok {
			s.log.Warn("Skipping supplemental question of unknown kind",
				zap.Int("questionNumber", doc.QuestionNumber), zap.String("kind", doc.Kind))
			continue
		}
		out = append(out, pub)
	}
	return out, nil
}

// Submit scores a submission and records it once per (session, email).
// A repeated submission returns the stored result without re-scoring.
func (s *SubmissionService) Submit(ctx context.Context, sub models.Submission) (*Outcome, error) {
	outcome, err := s.submit(ctx, sub)
	s.record(outcome, err)
	return outcome, err
}

func (s *SubmissionService) submit(ctx context.Context, sub models.Submission) (*Outcome, error) {
	email := utils.NormalizeEmail(sub.Applicant.Email)
	name := strings.TrimSpace(sub.Applicant.Name)
	log := s.log.With(zap.String("sessionId", sub.SessionID), zap.String("email", email))

	existing, err := s.attempts.FindAttempt(ctx, sub.SessionID, email)
	switch {
	case err == nil:
		log.Info("Returning stored attempt for repeated submission", zap.String("attemptId", existing.ID))
		return &Outcome{Result: existing.Result(), Attempt: existing, Duplicate: true}, nil
	case !errors.Is(err, repository.ErrNotFound):
		log.Error("Failed to look up existing attempt", zap.Error(err))
		return nil, persistenceError("Failed to submit results.", err)
	}

	_, hasSelection := sub.Choices[scoring.SelectionQuestionNumber]
	_, hasBoost := sub.Choices[scoring.BoostQuestionNumber]
	if !hasSelection || !hasBoost {
		return nil, validationError(CodeMissingRequiredChoice, "Additional questions 9 and 10 are required.", nil)
	}

	input, err := s.scoringInput(ctx, sub)
	if err != nil {
		log.Error("Failed to load scoring data", zap.Error(err))
		return nil, persistenceError("Failed to submit results.", err)
	}

	breakdown, err := scoring.Score(*input)
	if err != nil {
		serr := scoringError(err)
		if serr.Kind == KindDataIntegrity {
			log.Error("Question bank is inconsistent", zap.Error(err))
		}
		return nil, serr
	}

	now := s.now()
	metadata := sub.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	build := func(attemptNumber int) *models.Attempt {
		return &models.Attempt{
			ID:                  s.newID(),
			ApplicantEmail:      email,
			ApplicantName:       name,
			AttemptNumber:       attemptNumber,
			SessionID:           sub.SessionID,
			SubmittedAt:         now,
			SubmittedAtISO:      now.Format(isoMillis),
			OverallCloseness:    breakdown.OverallCloseness,
			OverallClosenessPct: breakdown.OverallClosenessPct,
			BaseCloseness:       breakdown.BaseCloseness,
			MAE:                 breakdown.MAE,
			Band:                breakdown.Band,
			ImageQuestions:      breakdown.Questions,
			ScenarioQuestion:    breakdown.Scenario,
			RolePreference:      breakdown.Role,
			BoostMultiplier:     breakdown.BoostMultiplier,
			Metadata:            metadata,
		}
	}

	attempt, err := s.attempts.RecordAttempt(ctx, repository.ApplicantUpsert{Email: email, Name: name, Now: now}, build)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			return s.concurrentWinner(ctx, log, sub.SessionID, email)
		}
		log.Error("Failed to store attempt", zap.Error(err))
		return nil, persistenceError("Failed to submit results.", err)
	}

	log.Info("Attempt recorded",
		zap.String("attemptId", attempt.ID),
		zap.Int("attemptNumber", attempt.AttemptNumber),
		zap.Float64("overallCloseness", attempt.OverallCloseness),
		zap.String("band", string(attempt.Band)),
	)
	if s.publisher != nil {
		s.publisher.PublishAttempt(ctx, attempt)
	}
	return &Outcome{Result: attempt.Result(), Attempt: attempt}, nil
}

// concurrentWinner handles losing the insert race to a parallel submission
// of the same session: the stored attempt is returned as a duplicate.
func (s *SubmissionService) concurrentWinner(ctx context.Context, log *zap.Logger, sessionID, email string) (*Outcome, error) {
	winner, err := s.attempts.FindAttempt(ctx, sessionID, email)
	if err != nil {
		log.Error("Failed to load concurrently stored attempt", zap.Error(err))
		return nil, persistenceError("Failed to submit results.", err)
	}
	log.Info("Concurrent submission already stored", zap.String("attemptId", winner.ID))
	return &Outcome{Result: winner.Result(), Attempt: winner, Duplicate: true}, nil
}

func (s *SubmissionService) scoringInput(ctx context.Context, sub models.Submission) (*scoring.Input, error) {
	questions, err := s.bank.FindAllQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	docs, err := s.bank.FindSupplemental(ctx)
	if err != nil {
		return nil, fmt.Errorf("load supplemental questions: %w", err)
	}

	ids := make([]string, 0, len(sub.Responses))
	for id := range sub.Responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	images, err := s.catalog.FindImagesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}

	in := &scoring.Input{
		Questions:    questions,
		Catalog:      make(map[string]models.Image, len(images)),
		Supplemental: make(map[int]models.SupplementalQuestion, len(docs)),
		Responses:    sub.Responses,
		Choices:      sub.Choices,
	}
	for _, img := range images {
		in.Catalog[img.ImageID] = img
	}
	for _, doc := range docs {
		in.Supplemental[doc.QuestionNumber] = doc
	}
	return in, nil
}

func scoringError(err error) *Error {
	var qe *scoring.QuestionError
	if !errors.As(err, &qe) {
		return &Error{Kind: KindDataIntegrity, Code: CodeSupplementalMetadataMissing, Detail: "Failed to submit results.", Err: err}
	}
	if errors.Is(err, scoring.ErrInvalidOption) {
		return validationError(CodeInvalidOption, fmt.Sprintf("Invalid selection for question %d.", qe.QuestionNumber), err)
	}
	detail := "Selection question metadata missing."
	if qe.QuestionNumber == scoring.BoostQuestionNumber {
		detail = "Boost question metadata missing."
	}
	return &Error{Kind: KindDataIntegrity, Code: CodeSupplementalMetadataMissing, Detail: detail, Err: err}
}

func (s *SubmissionService) record(outcome *Outcome, err error) {
	if s.recorder == nil {
		return
	}
	var serr *Error
	switch {
	case err == nil && outcome.Duplicate:
		s.recorder.Submission(metrics.OutcomeDuplicate)
	case err == nil:
		s.recorder.Submission(metrics.OutcomeCreated)
		s.recorder.AttemptRecorded(string(outcome.Attempt.Band), outcome.Attempt.OverallCloseness)
	case errors.As(err, &serr) && serr.Kind == KindValidation:
		s.recorder.Submission(metrics.OutcomeRejected)
	default:
		s.recorder.Submission(metrics.OutcomeError)
	}
}
