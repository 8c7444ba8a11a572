package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-rank-service/internal/domain"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	created, err := store.CreateAttempt(ctx, sampleAttempt(), sampleEntries())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected first id 1, got %d", created.ID)
	}

	got, err := store.GetAttempt(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 1 || got.UserID != "u1" {
		t.Fatalf("unexpected attempt %+v", got)
	}

	answers, err := store.ListAnswers(ctx, created.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 2 || answers[0].AttemptID != created.ID {
		t.Fatalf("unexpected answers %+v", answers)
	}

	if _, err := store.GetAttempt(ctx, 99); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreRejectsInconsistentBatchWhole(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		attempt domain.Attempt
		entries []domain.AnswerEntry
	}{
		{"entry count mismatch", sampleAttempt(), sampleEntries()[:1]},
		{"score out of bounds", func() domain.Attempt {
			a := sampleAttempt()
			a.Score = 3
			return a
		}(), sampleEntries()},
		{"duplicate order position", sampleAttempt(), func() []domain.AnswerEntry {
			e := sampleEntries()
			e[1].OrderNo = e[0].OrderNo
			return e
		}()},
		{"correctness flag mismatch", sampleAttempt(), func() []domain.AnswerEntry {
			e := sampleEntries()
			e[1].IsCorrect = true
			return e
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewAttemptStore()
			_, err := store.CreateAttempt(ctx, tc.attempt, tc.entries)
			var perr *domain.PersistenceError
			if !errors.As(err, &perr) {
				t.Fatalf("expected persistence error, got %v", err)
			}
			// Nothing may be visible after a rejected batch.
			if _, err := store.GetAttempt(ctx, 1); !errors.Is(err, domain.ErrAttemptNotFound) {
				t.Fatalf("expected no attempt visible, got %v", err)
			}
		})
	}
}

func TestAttemptStoreWindowFilter(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	base := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	at := func(offset time.Duration) domain.Attempt {
		a := sampleAttempt()
		a.CreatedAt = base.Add(offset)
		return a
	}
	for _, a := range []domain.Attempt{at(-time.Minute), at(0), at(24 * time.Hour), at(7 * 24 * time.Hour)} {
		if _, err := store.CreateAttempt(ctx, a, sampleEntries()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	window, err := store.ListByModeBetween(ctx, "rank_5s", base, base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	// Start is inclusive, end exclusive.
	if len(window) != 2 {
		t.Fatalf("expected 2 in-window attempts, got %d", len(window))
	}

	other, err := store.ListByModeBetween(ctx, "quick", base, base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("list other mode: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no attempts for other mode, got %d", len(other))
	}
}

func sampleAttempt() domain.Attempt {
	return domain.Attempt{
		UserID:      "u1",
		Mode:        "rank_5s",
		QuestionCnt: 2,
		Score:       1,
		TotalTimeMs: 8000,
		CreatedAt:   time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func sampleEntries() []domain.AnswerEntry {
	sel0 := 0
	sel1 := 1
	return []domain.AnswerEntry{
		{OrderNo: 1, SelectedIdx: &sel0, CorrectIdx: 0, IsCorrect: true},
		{OrderNo: 2, SelectedIdx: &sel1, CorrectIdx: 0, IsCorrect: false},
	}
}
