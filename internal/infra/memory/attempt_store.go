package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-rank-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. Writes
// are all-or-nothing: the batch is checked in full before anything becomes
// visible, mirroring the transactional store's guarantee.
type AttemptStore struct {
	mu       sync.RWMutex
	nextID   int64
	attempts map[int64]domain.Attempt
	answers  map[int64][]domain.AnswerEntry
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		nextID:   1,
		attempts: make(map[int64]domain.Attempt),
		answers:  make(map[int64][]domain.AnswerEntry),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt, entries []domain.AnswerEntry) (domain.Attempt, error) {
	if err := checkBatch(attempt, entries); err != nil {
		return domain.Attempt{}, &domain.PersistenceError{Op: "create attempt", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attempt.ID = s.nextID
	s.nextID++

	stored := make([]domain.AnswerEntry, len(entries))
	copy(stored, entries)
	for i := range stored {
		stored[i].AttemptID = attempt.ID
	}

	s.attempts[attempt.ID] = attempt
	s.answers[attempt.ID] = stored
	return attempt, nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, id int64) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) ListAnswers(_ context.Context, attemptID int64) ([]domain.AnswerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.answers[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	out := make([]domain.AnswerEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *AttemptStore) ListByModeBetween(_ context.Context, mode string, from, to time.Time) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.Mode != mode {
			continue
		}
		if attempt.CreatedAt.Before(from) || !attempt.CreatedAt.Before(to) {
			continue
		}
		out = append(out, attempt)
	}
	return out, nil
}

// checkBatch enforces the same invariants the relational schema does, so a
// corrupt batch is rejected whole instead of half-applied.
func checkBatch(attempt domain.Attempt, entries []domain.AnswerEntry) error {
	if len(entries) != attempt.QuestionCnt {
		return fmt.Errorf("entry count %d != question count %d", len(entries), attempt.QuestionCnt)
	}
	if attempt.Score < 0 || attempt.Score > attempt.QuestionCnt {
		return fmt.Errorf("score %d outside [0,%d]", attempt.Score, attempt.QuestionCnt)
	}
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.OrderNo]; dup {
			return fmt.Errorf("duplicate order position %d", e.OrderNo)
		}
		seen[e.OrderNo] = struct{}{}
		want := e.SelectedIdx != nil && *e.SelectedIdx == e.CorrectIdx
		if e.IsCorrect != want {
			return fmt.Errorf("correctness flag mismatch at order %d", e.OrderNo)
		}
	}
	return nil
}
