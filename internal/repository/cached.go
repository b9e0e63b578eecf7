package repository

import (
	"context"
	"time"

	"designsense-go/internal/cache"
	"designsense-go/internal/models"
)

const bankKey = "all"

// CachedBank serves the question bank from memory. The bank is seeded once
// and read-only while scoring, so a TTL is the only invalidation needed.
type CachedBank struct {
	next         QuestionBank
	questions    *cache.Cache[[]models.Question]
	supplemental *cache.Cache[[]models.SupplementalQuestion]
}

func NewCachedBank(next QuestionBank, ttl time.Duration, obs cache.Observer) *CachedBank {
	return &CachedBank{
		next:         next,
		questions:    cache.New[[]models.Question]("questions", ttl, obs),
		supplemental: cache.New[[]models.SupplementalQuestion]("supplemental", ttl, obs),
	}
}

func (b *CachedBank) FindAllQuestions(ctx context.Context) ([]models.Question, error) {
	if qs, ok := b.questions.Get(bankKey); ok {
		return qs, nil
	}
	qs, err := b.next.FindAllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	b.questions.Set(bankKey, qs)
	return qs, nil
}

func (b *CachedBank) FindSupplemental(ctx context.Context) ([]models.SupplementalQuestion, error) {
	if docs, ok := b.supplemental.Get(bankKey); ok {
		return docs, nil
	}
	docs, err := b.next.FindSupplemental(ctx)
	if err != nil {
		return nil, err
	}
	b.supplemental.Set(bankKey, docs)
	return docs, nil
}

func (b *CachedBank) FindSupplementalByNumber(ctx context.Context, questionNumber int) (*models.SupplementalQuestion, error) {
	docs, err := b.FindSupplemental(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].QuestionNumber == questionNumber {
			doc := docs[i]
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

// Invalidate drops the cached bank.
func (b *CachedBank) Invalidate() {
	b.questions.Purge()
	b.supplemental.Purge()
}

// Refresh reloads both lists from the backing bank. On error the current
// entries are left in place.
func (b *CachedBank) Refresh(ctx context.Context) (int, int, error) {
	qs, err := b.next.FindAllQuestions(ctx)
	if err != nil {
		return 0, 0, err
	}
	docs, err := b.next.FindSupplemental(ctx)
	if err != nil {
		return 0, 0, err
	}
	b.questions.Set(bankKey, qs)
	b.supplemental.Set(bankKey, docs)
	return len(qs), len(docs), nil
}
