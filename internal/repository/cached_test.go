package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"designsense-go/internal/models"
)

type countingBank struct {
	questionCalls     int
	supplementalCalls int
	err               error
}

func (b *countingBank) FindAllQuestions(context.Context) ([]models.Question, error) {
	b.questionCalls++
	if b.err != nil {
		return nil, b.err
	}
	return []models.Question{{QuestionNumber: 1, QuestionType: models.QuestionTypeProduct}}, nil
}

func (b *countingBank) FindSupplemental(context.Context) ([]models.SupplementalQuestion, error) {
	b.supplementalCalls++
	if b.err != nil {
		return nil, b.err
	}
	return []models.SupplementalQuestion{
		{QuestionNumber: 9, Kind: models.KindSelection},
		{QuestionNumber: 10, Kind: models.KindBoost},
	}, nil
}

func (b *countingBank) FindSupplementalByNumber(context.Context, int) (*models.SupplementalQuestion, error) {
	return nil, errors.New("not used")
}

func TestCachedBankServesFromMemory(t *testing.T) {
	next := &countingBank{}
	bank := NewCachedBank(next, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := bank.FindAllQuestions(ctx); err != nil {
			t.Fatalf("FindAllQuestions: %v", err)
		}
		if _, err := bank.FindSupplemental(ctx); err != nil {
			t.Fatalf("FindSupplemental: %v", err)
		}
	}
	if next.questionCalls != 1 || next.supplementalCalls != 1 {
		t.Fatalf("expected one backend call each, got questions=%d supplemental=%d", next.questionCalls, next.supplementalCalls)
	}

	bank.Invalidate()
	if _, err := bank.FindAllQuestions(ctx); err != nil {
		t.Fatalf("FindAllQuestions: %v", err)
	}
	if next.questionCalls != 2 {
		t.Fatalf("expected reload after Invalidate, got %d calls", next.questionCalls)
	}
}

func TestCachedBankDoesNotCacheErrors(t *testing.T) {
	next := &countingBank{err: errors.New("boom")}
	bank := NewCachedBank(next, time.Minute, nil)

	if _, err := bank.FindAllQuestions(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	next.err = nil
	qs, err := bank.FindAllQuestions(context.Background())
	if err != nil || len(qs) != 1 {
		t.Fatalf("expected recovery, got %v %v", qs, err)
	}
}

func TestCachedBankFindSupplementalByNumber(t *testing.T) {
	bank := NewCachedBank(&countingBank{}, time.Minute, nil)

	doc, err := bank.FindSupplementalByNumber(context.Background(), 10)
	if err != nil {
		t.Fatalf("FindSupplementalByNumber: %v", err)
	}
	if doc.Kind != models.KindBoost {
		t.Fatalf("kind=%q, want boost", doc.Kind)
	}

	if _, err := bank.FindSupplementalByNumber(context.Background(), 11); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestCachedBankRefreshKeepsEntriesOnError(t *testing.T) {
	next := &countingBank{}
	b := NewCachedBank(next, time.Minute, nil)

	questions, supplemental, err := b.Refresh(context.Background())
	if err != nil || questions != 1 || supplemental != 2 {
		t.Fatalf("Refresh = %d, %d, %v", questions, supplemental, err)
	}

	next.err = errors.New("db down")
	if _, _, err := b.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	qs, err := b.FindAllQuestions(context.Background())
	if err != nil || len(qs) != 1 {
		t.Fatalf("cached questions lost after failed refresh: %v, %v", qs, err)
	}
}
