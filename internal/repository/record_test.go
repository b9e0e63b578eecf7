package repository

import (
	"context"
	"errors"
	"testing"

	"designsense-go/internal/models"
)

type memoryWriter struct {
	counts    map[string]int
	attempts  []*models.Attempt
	upsertErr error
	insertErr error
	released  []int
}

func (w *memoryWriter) UpsertApplicant(_ context.Context, u ApplicantUpsert) (int, error) {
	if w.upsertErr != nil {
		return 0, w.upsertErr
	}
	w.counts[u.Email]++
	return w.counts[u.Email], nil
}

func (w *memoryWriter) InsertAttempt(_ context.Context, a *models.Attempt) error {
	if w.insertErr != nil {
		return w.insertErr
	}
	w.attempts = append(w.attempts, a)
	return nil
}

func (w *memoryWriter) ReleaseAttemptNumber(_ context.Context, email string, n int) error {
	w.released = append(w.released, n)
	if w.counts[email] == n {
		w.counts[email]--
	}
	return nil
}

func buildFor(email string) BuildAttempt {
	return func(n int) *models.Attempt {
		return &models.Attempt{ApplicantEmail: email, AttemptNumber: n}
	}
}

func TestRecordWithRelease(t *testing.T) {
	ctx := context.Background()
	upsert := ApplicantUpsert{Email: "ada@example.com", Name: "Ada"}

	t.Run("stores attempt with claimed number", func(t *testing.T) {
		w := &memoryWriter{counts: map[string]int{"ada@example.com": 2}}
		a, err := RecordWithRelease(ctx, w, upsert, buildFor(upsert.Email))
		if err != nil {
			t.Fatalf("RecordWithRelease: %v", err)
		}
		if a.AttemptNumber != 3 || len(w.attempts) != 1 || w.counts[upsert.Email] != 3 {
			t.Fatalf("attempt=%+v stored=%d count=%d", a, len(w.attempts), w.counts[upsert.Email])
		}
	})

	t.Run("upsert failure writes nothing", func(t *testing.T) {
		w := &memoryWriter{counts: map[string]int{}, upsertErr: errors.New("not primary")}
		built := false
		_, err := RecordWithRelease(ctx, w, upsert, func(n int) *models.Attempt {
			built = true
			return buildFor(upsert.Email)(n)
		})
		if err == nil || built || len(w.attempts) != 0 {
			t.Fatalf("err=%v built=%v attempts=%d", err, built, len(w.attempts))
		}
	})

	t.Run("insert failure releases claim", func(t *testing.T) {
		w := &memoryWriter{counts: map[string]int{"ada@example.com": 1}, insertErr: ErrDuplicateAttempt}
		_, err := RecordWithRelease(ctx, w, upsert, buildFor(upsert.Email))
		if !errors.Is(err, ErrDuplicateAttempt) {
			t.Fatalf("err=%v, want ErrDuplicateAttempt", err)
		}
		if w.counts[upsert.Email] != 1 || len(w.released) != 1 || w.released[0] != 2 {
			t.Fatalf("count=%d released=%v", w.counts[upsert.Email], w.released)
		}
	})
}
