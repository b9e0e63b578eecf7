package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"designsense-go/internal/models"
	"designsense-go/internal/repository"

	"go.uber.org/zap"
)

// imageNamePattern matches file stems like "3_2_product": question number,
// actual score and image kind.
var imageNamePattern = regexp.MustCompile(`^(\d+?)_([0-2])_([a-zA-Z0-9-]+)$`)

// ErrNoImages is returned when an image directory holds no matching files.
var ErrNoImages = errors.New("no matching image assets found")

// ScanImageDir builds image questions from the files in dir. Files whose stem
// does not match the naming convention are ignored. Kinds other than
// homestyle and product count as homestyle.
func ScanImageDir(dir string) ([]models.Question, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	grouped := make(map[int]*models.Question)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		stem := strings.TrimSuffix(filename, filepath.Ext(filename))
		m := imageNamePattern.FindStringSubmatch(stem)
		if m == nil {
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", filename, err)
		}
		score, _ := strconv.Atoi(m[2])
		kind := models.QuestionType(strings.ToLower(m[3]))
		if !kind.Valid() {
			kind = models.QuestionTypeHomestyle
		}

		q, ok := grouped[number]
		if !ok {
			// The first file seen fixes the question type.
			q = &models.Question{QuestionNumber: number, QuestionType: kind}
			grouped[number] = q
		}
		q.Images = append(q.Images, models.Image{
			ImageID:     stem,
			Src:         "/" + filename,
			ActualScore: score,
			ImageType:   kind,
			Filename:    filename,
		})
	}
	if len(grouped) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	questions := make([]models.Question, 0, len(grouped))
	for _, q := range grouped {
		sort.Slice(q.Images, func(i, j int) bool { return q.Images[i].ImageID < q.Images[j].ImageID })
		questions = append(questions, *q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].QuestionNumber < questions[j].QuestionNumber })
	return questions, nil
}

// DefaultSupplemental returns the stock scenario and role-preference questions.
func DefaultSupplemental() []models.SupplementalQuestion {
	return []models.SupplementalQuestion{
		{
			QuestionNumber:  9,
			Kind:            models.KindSelection,
			Prompt:          "Which item would you add to the Minkowski catalogue if you joined the product team?",
			CorrectOptionID: "B",
			Options: []models.SupplementalOption{
				{OptionID: "A", Label: "A. A white matte vase made of plastic", Value: 0},
				{OptionID: "B", Label: "B. A black glossy vase made with 60% corn-based bioplastic and 40% recycled wood fibers", Value: 2},
				{OptionID: "C", Label: "C. A matte off-white clean and minimal Avengers figurine", Value: 0},
				{OptionID: "D", Label: "D. A minimal burgundy sofa Japandi style", Value: 1},
			},
		},
		{
			QuestionNumber: 10,
			Kind:           models.KindBoost,
			Prompt:         "If you join Minkowski, which role excites you the most?",
			Options: []models.SupplementalOption{
				{OptionID: "A", Label: "A. Product Selection · Curation · Writing Descriptions", Boost: 0.08},
				{OptionID: "B", Label: "B. Write Ad copies · Create content · Post on Social", Boost: 0.10},
				{OptionID: "C", Label: "C. Ads and sales · Data analysis (requires Data Test)", Boost: 0.20},
				{OptionID: "D", Label: "D. Bookkeeping · Accounts (no openings currently)", Boost: 0.10},
			},
		},
	}
}

// Seeder replaces the question bank.
type Seeder struct {
	writer repository.BankWriter
	log    *zap.Logger
	now    func() time.Time
}

func NewSeeder(writer repository.BankWriter, log *zap.Logger) *Seeder {
	return &Seeder{writer: writer, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Run validates bank and swaps it in. Attempts and applicants are kept.
func (s *Seeder) Run(ctx context.Context, bank *models.QuestionBank) error {
	bank.Sort()
	if err := bank.Validate(); err != nil {
		return fmt.Errorf("invalid question bank: %w", err)
	}
	if err := s.writer.ReplaceQuestionBank(ctx, bank, s.now()); err != nil {
		return fmt.Errorf("replace question bank: %w", err)
	}
	s.log.Info("Question bank seeded",
		zap.Int("questions", len(bank.Questions)),
		zap.Int("images", len(bank.Images())),
		zap.Int("supplemental", len(bank.Supplemental)),
	)
	return nil
}
