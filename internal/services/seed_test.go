package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"designsense-go/internal/models"

	"go.uber.org/zap"
)

func TestScanImageDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"2_1_product.jpg",
		"1_2_homestyle.png",
		"1_0_homestyle.jpg",
		"1_1_Lamp-01.webp",
		"readme.txt",
		"3_5_product.jpg",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "4_1_product"), 0o755); err != nil {
		t.Fatal(err)
	}

	questions, err := ScanImageDir(dir)
	if err != nil {
		t.Fatalf("ScanImageDir: %v", err)
	}
	if len(questions) != 2 || questions[0].QuestionNumber != 1 || questions[1].QuestionNumber != 2 {
		t.Fatalf("questions=%+v", questions)
	}

	q1 := questions[0]
	wantIDs := []string{"1_0_homestyle", "1_1_Lamp-01", "1_2_homestyle"}
	for i, img := range q1.Images {
		if img.ImageID != wantIDs[i] {
			t.Fatalf("image %d id=%q, want %q", i, img.ImageID, wantIDs[i])
		}
	}
	lamp := q1.Images[1]
	if lamp.ImageType != models.QuestionTypeHomestyle || lamp.ActualScore != 1 || lamp.Src != "/1_1_Lamp-01.webp" {
		t.Fatalf("unknown kind should fall back to homestyle: %+v", lamp)
	}
	if questions[1].QuestionType != models.QuestionTypeProduct {
		t.Fatalf("question 2 type=%q", questions[1].QuestionType)
	}
}

func TestScanImageDirEmpty(t *testing.T) {
	if _, err := ScanImageDir(t.TempDir()); !errors.Is(err, ErrNoImages) {
		t.Fatalf("err=%v, want ErrNoImages", err)
	}
}

func TestDefaultSupplementalIsValid(t *testing.T) {
	bank := &models.QuestionBank{
		Questions: []models.Question{{
			QuestionNumber: 1,
			QuestionType:   models.QuestionTypeProduct,
			Images:         []models.Image{{ImageID: "1_0_product", ActualScore: 0}},
		}},
		Supplemental: DefaultSupplemental(),
	}
	if err := bank.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

type recordingWriter struct {
	bank *models.QuestionBank
	at   time.Time
}

func (w *recordingWriter) ReplaceQuestionBank(_ context.Context, bank *models.QuestionBank, now time.Time) error {
	w.bank = bank
	w.at = now
	return nil
}

func TestSeederRun(t *testing.T) {
	writer := &recordingWriter{}
	seeder := NewSeeder(writer, zap.NewNop())
	seeder.now = func() time.Time { return time.Unix(100, 0) }

	bank := &models.QuestionBank{
		Questions: []models.Question{
			{QuestionNumber: 2, QuestionType: models.QuestionTypeProduct, Images: []models.Image{{ImageID: "b", ActualScore: 1}}},
			{QuestionNumber: 1, QuestionType: models.QuestionTypeHomestyle, Images: []models.Image{{ImageID: "a", ActualScore: 2}}},
		},
		Supplemental: DefaultSupplemental(),
	}
	if err := seeder.Run(context.Background(), bank); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if writer.bank.Questions[0].QuestionNumber != 1 || !writer.at.Equal(time.Unix(100, 0)) {
		t.Fatalf("bank not sorted or timestamp wrong: %+v at %v", writer.bank.Questions, writer.at)
	}

	bad := &models.QuestionBank{Questions: []models.Question{{QuestionNumber: 1, QuestionType: "poster"}}}
	writer.bank = nil
	if err := seeder.Run(context.Background(), bad); err == nil || writer.bank != nil {
		t.Fatalf("invalid bank should not be written: err=%v", err)
	}
}
