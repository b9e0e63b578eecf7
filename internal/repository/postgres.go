package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"designsense-go/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore is the GORM-backed Store. The handle must be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates or updates the tables.
func (s *PostgresStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.QuestionRow{},
		&models.ImageRow{},
		&models.SupplementalRow{},
		&models.AttemptRow{},
		&models.ApplicantRow{},
	)
}

func (s *PostgresStore) FindAllQuestions(ctx context.Context) ([]models.Question, error) {
	var rows []models.QuestionRow
	err := s.db.WithContext(ctx).
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Order("question_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}

	questions := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		q := models.Question{
			QuestionNumber: row.QuestionNumber,
			QuestionType:   models.QuestionType(row.QuestionType),
			Images:         make([]models.Image, 0, len(row.Images)),
		}
		for _, img := range row.Images {
			q.Images = append(q.Images, imageFromRow(img))
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *PostgresStore) FindSupplemental(ctx context.Context) ([]models.SupplementalQuestion, error) {
	var rows []models.SupplementalRow
	if err := s.db.WithContext(ctx).Order("question_number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find supplemental questions: %w", err)
	}

	docs := make([]models.SupplementalQuestion, 0, len(rows))
	for _, row := range rows {
		doc, err := supplementalFromRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *PostgresStore) FindSupplementalByNumber(ctx context.Context, questionNumber int) (*models.SupplementalQuestion, error) {
	var row models.SupplementalRow
	err := s.db.WithContext(ctx).Where("question_number = ?", questionNumber).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find supplemental question %d: %w", questionNumber, err)
	}
	doc, err := supplementalFromRow(row)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PostgresStore) FindImagesByIDs(ctx context.Context, ids []string) ([]models.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ImageRow
	if err := s.db.WithContext(ctx).Where("image_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	images := make([]models.Image, 0, len(rows))
	for _, row := range rows {
		images = append(images, imageFromRow(row))
	}
	return images, nil
}

func (s *PostgresStore) FindAttempt(ctx context.Context, sessionID, email string) (*models.Attempt, error) {
	var row models.AttemptRow
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND applicant_email = ?", sessionID, email).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	return attemptFromRow(row)
}

func (s *PostgresStore) InsertAttempt(ctx context.Context, attempt *models.Attempt) error {
	row, err := attemptToRow(attempt)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindApplicantByEmail(ctx context.Context, email string) (*models.Applicant, error) {
	var row models.ApplicantRow
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find applicant: %w", err)
	}
	return &models.Applicant{
		Email:        row.Email,
		Name:         row.Name,
		AttemptCount: row.AttemptCount,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// UpsertApplicant inserts the applicant with attempt_count 1, or increments
// it on conflict, and returns the stored count. Inside a transaction the
// applicant row stays locked until commit.
func (s *PostgresStore) UpsertApplicant(ctx context.Context, u ApplicantUpsert) (int, error) {
	row := models.ApplicantRow{
		Email:        u.Email,
		Name:         u.Name,
		AttemptCount: 1,
		CreatedAt:    u.Now,
		UpdatedAt:    u.Now,
	}
	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":          u.Name,
				"updated_at":    u.Now,
				"attempt_count": gorm.Expr("applicants.attempt_count + 1"),
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "attempt_count"}, {Name: "created_at"}}},
	).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("upsert applicant: %w", err)
	}
	return row.AttemptCount, nil
}

// RecordAttempt runs the applicant upsert and the attempt insert in one
// transaction.
func (s *PostgresStore) RecordAttempt(ctx context.Context, u ApplicantUpsert, build BuildAttempt) (*models.Attempt, error) {
	var attempt *models.Attempt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := &PostgresStore{db: tx}
		attemptNumber, err := store.UpsertApplicant(ctx, u)
		if err != nil {
			return err
		}
		attempt = build(attemptNumber)
		return store.InsertAttempt(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// ReplaceQuestionBank rewrites the question tables in one transaction.
func (s *PostgresStore) ReplaceQuestionBank(ctx context.Context, bank *models.QuestionBank, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []any{&models.ImageRow{}, &models.QuestionRow{}, &models.SupplementalRow{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
				return fmt.Errorf("clear question bank: %w", err)
			}
		}

		for _, q := range bank.Questions {
			row := models.QuestionRow{
				QuestionNumber: q.QuestionNumber,
				QuestionType:   string(q.QuestionType),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			for i, img := range q.Images {
				row.Images = append(row.Images, models.ImageRow{
					ImageID:        img.ImageID,
					QuestionNumber: q.QuestionNumber,
					Position:       i,
					Src:            img.Src,
					ActualScore:    img.ActualScore,
					ImageType:      string(img.ImageType),
					DisplayLabel:   img.DisplayLabel,
					Filename:       img.Filename,
					CreatedAt:      now,
					UpdatedAt:      now,
				})
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert question %d: %w", q.QuestionNumber, err)
			}
		}

		for _, doc := range bank.Supplemental {
			options, err := json.Marshal(doc.Options)
			if err != nil {
				return fmt.Errorf("encode options for question %d: %w", doc.QuestionNumber, err)
			}
			row := models.SupplementalRow{
				QuestionNumber:  doc.QuestionNumber,
				Kind:            doc.Kind,
				Prompt:          doc.Prompt,
				CorrectOptionID: doc.CorrectOptionID,
				Options:         datatypes.JSON(options),
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert supplemental question %d: %w", doc.QuestionNumber, err)
			}
		}
		return nil
	})
}

func imageFromRow(row models.ImageRow) models.Image {
	return models.Image{
		ImageID:        row.ImageID,
		Src:            row.Src,
		ActualScore:    row.ActualScore,
		ImageType:      models.QuestionType(row.ImageType),
		DisplayLabel:   row.DisplayLabel,
		Filename:       row.Filename,
		QuestionNumber: row.QuestionNumber,
	}
}

func supplementalFromRow(row models.SupplementalRow) (models.SupplementalQuestion, error) {
	doc := models.SupplementalQuestion{
		QuestionNumber:  row.QuestionNumber,
		Kind:            row.Kind,
		Prompt:          row.Prompt,
		CorrectOptionID: row.CorrectOptionID,
	}
	if err := json.Unmarshal(row.Options, &doc.Options); err != nil {
		return doc, fmt.Errorf("decode options for question %d: %w", row.QuestionNumber, err)
	}
	return doc, nil
}

func attemptToRow(a *models.Attempt) (*models.AttemptRow, error) {
	row := &models.AttemptRow{
		ID:                  a.ID,
		SessionID:           a.SessionID,
		ApplicantEmail:      a.ApplicantEmail,
		ApplicantName:       a.ApplicantName,
		AttemptNumber:       a.AttemptNumber,
		SubmittedAt:         a.SubmittedAt,
		SubmittedAtISO:      a.SubmittedAtISO,
		OverallCloseness:    a.OverallCloseness,
		OverallClosenessPct: a.OverallClosenessPct,
		BaseCloseness:       a.BaseCloseness,
		MAE:                 a.MAE,
		Band:                string(a.Band),
		BoostMultiplier:     a.BoostMultiplier,
	}
	for dst, src := range map[*datatypes.JSON]any{
		&row.ImageQuestions:   a.ImageQuestions,
		&row.ScenarioQuestion: a.ScenarioQuestion,
		&row.RolePreference:   a.RolePreference,
		&row.Metadata:         a.Metadata,
	} {
		data, err := json.Marshal(src)
		if err != nil {
			return nil, fmt.Errorf("encode attempt breakdown: %w", err)
		}
		*dst = datatypes.JSON(data)
	}
	return row, nil
}

func attemptFromRow(row models.AttemptRow) (*models.Attempt, error) {
	a := &models.Attempt{
		ID:                  row.ID,
		ApplicantEmail:      row.ApplicantEmail,
		ApplicantName:       row.ApplicantName,
		AttemptNumber:       row.AttemptNumber,
		SessionID:           row.SessionID,
		SubmittedAt:         row.SubmittedAt,
		SubmittedAtISO:      row.SubmittedAtISO,
		OverallCloseness:    row.OverallCloseness,
		OverallClosenessPct: row.OverallClosenessPct,
		BaseCloseness:       row.BaseCloseness,
		MAE:                 row.MAE,
		Band:                models.Band(row.Band),
		BoostMultiplier:     row.BoostMultiplier,
	}
	for src, dst := range map[*datatypes.JSON]any{
		&row.ImageQuestions:   &a.ImageQuestions,
		&row.ScenarioQuestion: &a.ScenarioQuestion,
		&row.RolePreference:   &a.RolePreference,
		&row.Metadata:         &a.Metadata,
	} {
		if len(*src) == 0 {
			continue
		}
		if err := json.Unmarshal(*src, dst); err != nil {
			return nil, fmt.Errorf("decode attempt breakdown: %w", err)
		}
	}
	return a, nil
}
