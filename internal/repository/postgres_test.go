package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"designsense-go/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestPostgresStore connects to DESIGNSENSE_TEST_POSTGRES_DSN and returns
// a migrated store over a throwaway schema, or skips the test.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DESIGNSENSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DESIGNSENSE_TEST_POSTGRES_DSN not set")
	}
	conf := &gorm.Config{TranslateError: true, Logger: logger.Discard}

	admin, err := gorm.Open(postgres.Open(dsn), conf)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schema := fmt.Sprintf("designsense_test_%d", time.Now().UnixNano())
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	db, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), conf)
	if err != nil {
		t.Fatalf("connect to schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := NewPostgresStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

// withSearchPath pins every pooled connection to schema. Both URL and
// key/value DSNs are accepted.
func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestPostgresStoreQuestionBank(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	bank := &models.QuestionBank{
		Questions: []models.Question{
			{QuestionNumber: 2, QuestionType: models.QuestionTypeProduct, Images: []models.Image{
				{ImageID: "2_1_product", Src: "/2_1_product.jpg", ActualScore: 1, ImageType: models.QuestionTypeProduct},
			}},
			{QuestionNumber: 1, QuestionType: models.QuestionTypeHomestyle, Images: []models.Image{
				{ImageID: "1_2_homestyle", Src: "/1_2_homestyle.jpg", ActualScore: 2, ImageType: models.QuestionTypeHomestyle},
				{ImageID: "1_0_homestyle", Src: "/1_0_homestyle.jpg", ActualScore: 0, ImageType: models.QuestionTypeHomestyle},
			}},
		},
		Supplemental: []models.SupplementalQuestion{
			{QuestionNumber: 10, Kind: models.KindBoost, Prompt: "role", Options: []models.SupplementalOption{{OptionID: "A", Label: "a", Boost: 0.1}}},
			{QuestionNumber: 9, Kind: models.KindSelection, Prompt: "pick", CorrectOptionID: "A", Options: []models.SupplementalOption{{OptionID: "A", Label: "a", Value: 2}}},
		},
	}
	if err := store.ReplaceQuestionBank(ctx, bank, time.Now()); err != nil {
		t.Fatalf("ReplaceQuestionBank: %v", err)
	}
	// A second load replaces rather than appends.
	if err := store.ReplaceQuestionBank(ctx, bank, time.Now()); err != nil {
		t.Fatalf("ReplaceQuestionBank again: %v", err)
	}

	questions, err := store.FindAllQuestions(ctx)
	if err != nil {
		t.Fatalf("FindAllQuestions: %v", err)
	}
	if len(questions) != 2 || questions[0].QuestionNumber != 1 || len(questions[0].Images) != 2 {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	if questions[0].Images[0].ImageID != "1_2_homestyle" {
		t.Fatalf("image order not kept: %+v", questions[0].Images)
	}

	images, err := store.FindImagesByIDs(ctx, []string{"1_2_homestyle", "missing"})
	if err != nil {
		t.Fatalf("FindImagesByIDs: %v", err)
	}
	if len(images) != 1 || images[0].ActualScore != 2 || images[0].QuestionNumber != 1 {
		t.Fatalf("unexpected images: %+v", images)
	}

	docs, err := store.FindSupplemental(ctx)
	if err != nil {
		t.Fatalf("FindSupplemental: %v", err)
	}
	if len(docs) != 2 || docs[0].QuestionNumber != 9 || docs[0].CorrectOptionID != "A" {
		t.Fatalf("unexpected supplemental: %+v", docs)
	}
	if len(docs[1].Options) != 1 || docs[1].Options[0].Boost != 0.1 {
		t.Fatalf("options not decoded: %+v", docs[1])
	}

	if _, err := store.FindSupplementalByNumber(ctx, 11); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestPostgresStoreAttemptsAndApplicants(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.FindAttempt(ctx, "session-1", "ada@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	attempt := &models.Attempt{
		ID:                  "a1",
		ApplicantEmail:      "ada@example.com",
		ApplicantName:       "Ada",
		AttemptNumber:       1,
		SessionID:           "session-1",
		SubmittedAt:         now,
		SubmittedAtISO:      now.Format(time.RFC3339),
		OverallCloseness:    0.75,
		OverallClosenessPct: 75,
		BaseCloseness:       0.7,
		MAE:                 0.5,
		Band:                models.BandGood,
		ImageQuestions: []models.QuestionResult{{
			QuestionNumber: 1,
			QuestionType:   models.QuestionTypeHomestyle,
			Closeness:      floatPtr(0.75),
			MAE:            floatPtr(0.5),
			Images: []models.ImageResult{
				{ImageID: "1_0_homestyle", SelectedScore: intPtr(1), ActualScore: intPtr(0), Error: floatPtr(1), Closeness: floatPtr(0.5)},
				{ImageID: "1_2_homestyle", Excluded: true},
			},
		}},
		ScenarioQuestion: models.ScenarioSummary{QuestionNumber: 9, SelectedOption: "B", SelectedLabel: "b", SelectedValue: 2, CorrectValue: 2, Closeness: 1},
		RolePreference:   models.RoleSummary{QuestionNumber: 10, SelectedOption: "A", SelectedLabel: "a", Boost: 0.1},
		BoostMultiplier:  1.1,
		Metadata:         map[string]any{"userAgent": "test", "viewport": map[string]any{"w": float64(1440)}},
	}
	if err := store.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("InsertAttempt: %v", err)
	}
	dup := *attempt
	dup.ID = "a2"
	if err := store.InsertAttempt(ctx, &dup); !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("err=%v, want ErrDuplicateAttempt", err)
	}
	sameNumber := *attempt
	sameNumber.ID = "a3"
	sameNumber.SessionID = "session-2"
	if err := store.InsertAttempt(ctx, &sameNumber); !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("reused attempt number: err=%v, want ErrDuplicateAttempt", err)
	}

	got, err := store.FindAttempt(ctx, "session-1", "ada@example.com")
	if err != nil {
		t.Fatalf("FindAttempt: %v", err)
	}
	if got.ID != "a1" || got.Band != models.BandGood || !got.SubmittedAt.Equal(now) {
		t.Fatalf("unexpected attempt: %+v", got)
	}
	if len(got.ImageQuestions) != 1 || len(got.ImageQuestions[0].Images) != 2 {
		t.Fatalf("breakdown not decoded: %+v", got.ImageQuestions)
	}
	img := got.ImageQuestions[0].Images[0]
	if img.SelectedScore == nil || *img.SelectedScore != 1 || img.Closeness == nil || *img.Closeness != 0.5 {
		t.Fatalf("image result: %+v", img)
	}
	if excluded := got.ImageQuestions[0].Images[1]; !excluded.Excluded || excluded.SelectedScore != nil {
		t.Fatalf("excluded image: %+v", excluded)
	}
	if got.ScenarioQuestion != attempt.ScenarioQuestion || got.RolePreference != attempt.RolePreference {
		t.Fatalf("summaries: %+v %+v", got.ScenarioQuestion, got.RolePreference)
	}
	viewport, ok := got.Metadata["viewport"].(map[string]any)
	if got.Metadata["userAgent"] != "test" || !ok || viewport["w"] != float64(1440) {
		t.Fatalf("metadata: %+v", got.Metadata)
	}

	if n, err := store.UpsertApplicant(ctx, ApplicantUpsert{Email: "ada@example.com", Name: "Ada", Now: now}); err != nil || n != 1 {
		t.Fatalf("UpsertApplicant = %d, %v; want 1", n, err)
	}
	later := now.Add(time.Hour)
	if n, err := store.UpsertApplicant(ctx, ApplicantUpsert{Email: "ada@example.com", Name: "Ada L.", Now: later}); err != nil || n != 2 {
		t.Fatalf("UpsertApplicant = %d, %v; want 2", n, err)
	}

	applicant, err := store.FindApplicantByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindApplicantByEmail: %v", err)
	}
	if applicant.Name != "Ada L." || applicant.AttemptCount != 2 {
		t.Fatalf("unexpected applicant: %+v", applicant)
	}
	if !applicant.CreatedAt.Equal(now) || !applicant.UpdatedAt.Equal(later) {
		t.Fatalf("timestamps: created=%v updated=%v", applicant.CreatedAt, applicant.UpdatedAt)
	}
}

func TestPostgresStoreRecordAttemptRollsBack(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	upsert := ApplicantUpsert{Email: "ada@example.com", Name: "Ada", Now: now}
	build := func(session string) BuildAttempt {
		return func(n int) *models.Attempt {
			return &models.Attempt{ID: fmt.Sprintf("%s-%d", session, n), ApplicantEmail: upsert.Email, AttemptNumber: n, SessionID: session, SubmittedAt: now}
		}
	}

	first, err := store.RecordAttempt(ctx, upsert, build("session-1"))
	if err != nil || first.AttemptNumber != 1 {
		t.Fatalf("RecordAttempt = %+v, %v", first, err)
	}
	if _, err := store.RecordAttempt(ctx, upsert, build("session-1")); !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("err=%v, want ErrDuplicateAttempt", err)
	}
	applicant, err := store.FindApplicantByEmail(ctx, upsert.Email)
	if err != nil || applicant.AttemptCount != 1 {
		t.Fatalf("applicant=%+v err=%v, want attemptCount 1", applicant, err)
	}

	second, err := store.RecordAttempt(ctx, upsert, build("session-2"))
	if err != nil || second.AttemptNumber != 2 {
		t.Fatalf("RecordAttempt = %+v, %v", second, err)
	}
}

func TestPostgresStoreRecordAttemptConcurrentSessions(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()
	upsert := ApplicantUpsert{Email: "ada@example.com", Name: "Ada", Now: time.Now().UTC()}

	const sessions = 5
	var wg sync.WaitGroup
	numbers := make([]int, sessions)
	errs := make([]error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := fmt.Sprintf("session-%d", i)
			a, err := store.RecordAttempt(ctx, upsert, func(n int) *models.Attempt {
				return &models.Attempt{ID: session, ApplicantEmail: upsert.Email, AttemptNumber: n, SessionID: session, SubmittedAt: upsert.Now}
			})
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = a.AttemptNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, sessions)
	for i, n := range numbers {
		if errs[i] != nil {
			t.Fatalf("session %d: %v", i, errs[i])
		}
		if n < 1 || n > sessions || seen[n] {
			t.Fatalf("attempt numbers not distinct: %v", numbers)
		}
		seen[n] = true
	}
}
