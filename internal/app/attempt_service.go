package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quiz-rank-service/internal/domain"
)

// AttemptStore abstracts how attempts are persisted (in-memory, Postgres).
// CreateAttempt must be atomic: either the header and its full answer trail
// become visible together, or nothing does.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt, entries []domain.AnswerEntry) (domain.Attempt, error)
	GetAttempt(ctx context.Context, id int64) (domain.Attempt, error)
	ListAnswers(ctx context.Context, attemptID int64) ([]domain.AnswerEntry, error)
	ListByModeBetween(ctx context.Context, mode string, from, to time.Time) ([]domain.Attempt, error)
}

// QuestionStore loads question content for review joins. Missing ids are
// simply absent from the result map, never an error.
type QuestionStore interface {
	GetQuestions(ctx context.Context, ids []int64) (map[int64]domain.ReviewQuestion, error)
}

// AttemptObserver is notified after an attempt has been durably recorded.
type AttemptObserver interface {
	AttemptRecorded(mode string)
}

// AttemptService contains the submission and review use cases.
type AttemptService struct {
	attempts  AttemptStore
	questions QuestionStore
	observers []AttemptObserver
	now       func() time.Time
}

func NewAttemptService(attempts AttemptStore, questions QuestionStore, observers ...AttemptObserver) *AttemptService {
	return &AttemptService{
		attempts:  attempts,
		questions: questions,
		observers: observers,
		now:       time.Now,
	}
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(attempts AttemptStore, questions QuestionStore, now func() time.Time, observers ...AttemptObserver) *AttemptService {
	s := NewAttemptService(attempts, questions, observers...)
	s.now = now
	return s
}

// Submit validates a submission, recomputes its score server-side, and
// records the attempt header plus answer trail in one transaction. Any score
// the client may have declared alongside the raw answers is ignored.
func (s *AttemptService) Submit(ctx context.Context, userID string, sub domain.Submission) (domain.Attempt, error) {
	if err := validateSubmission(sub); err != nil {
		return domain.Attempt{}, err
	}

	score := recomputeScore(sub.Items)
	if score < 0 || score > sub.QuestionCnt {
		return domain.Attempt{}, &domain.IntegrityError{
			Detail: fmt.Sprintf("recomputed score %d outside [0,%d]", score, sub.QuestionCnt),
		}
	}

	entries := make([]domain.AnswerEntry, 0, len(sub.Items))
	for _, item := range sub.Items {
		entries = append(entries, domain.AnswerEntry{
			OrderNo:     item.OrderNo,
			QuestionID:  item.QuestionID,
			SelectedIdx: item.SelectedIdx,
			CorrectIdx:  item.CorrectIdx,
			IsCorrect:   item.SelectedIdx != nil && *item.SelectedIdx == item.CorrectIdx,
		})
	}

	attempt := domain.Attempt{
		UserID:      userID,
		Mode:        sub.Mode,
		QuestionCnt: sub.QuestionCnt,
		Score:       score,
		TotalTimeMs: sub.TotalTimeMs,
		CreatedAt:   s.now().UTC(),
	}

	created, err := s.attempts.CreateAttempt(ctx, attempt, entries)
	if err != nil {
		return domain.Attempt{}, err
	}

	for _, obs := range s.observers {
		obs.AttemptRecorded(created.Mode)
	}
	return created, nil
}

// Review reconstructs the per-question review for an attempt, scoped to its
// owner. A non-owner gets ErrAttemptNotFound, never a forbidden-style answer.
func (s *AttemptService) Review(ctx context.Context, userID string, attemptID int64) ([]domain.ReviewItem, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, domain.ErrAttemptNotFound
	}

	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].OrderNo < answers[j].OrderNo })

	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(answers))
	for _, a := range answers {
		if a.QuestionID == nil {
			continue
		}
		if _, ok := seen[*a.QuestionID]; ok {
			continue
		}
		seen[*a.QuestionID] = struct{}{}
		ids = append(ids, *a.QuestionID)
	}

	questions := map[int64]domain.ReviewQuestion{}
	if len(ids) > 0 {
		questions, err = s.questions.GetQuestions(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	items := make([]domain.ReviewItem, 0, len(answers))
	for _, a := range answers {
		item := domain.ReviewItem{
			OrderNo:     a.OrderNo,
			QuestionID:  a.QuestionID,
			CorrectIdx:  a.CorrectIdx,
			SelectedIdx: a.SelectedIdx,
			IsCorrect:   a.IsCorrect,
		}
		// A deleted question degrades this item to nil content; it never
		// fails the review as a whole.
		if a.QuestionID != nil {
			if q, ok := questions[*a.QuestionID]; ok {
				text := q.Text
				item.QuestionText = &text
				item.Options = q.Options
				item.Explanation = q.Explanation
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// validateSubmission checks structural well-formedness. It reports the first
// violation found and has no side effects.
func validateSubmission(sub domain.Submission) error {
	if sub.Mode == "" {
		return &domain.ValidationError{Code: domain.CodeInvalidMode}
	}
	if sub.QuestionCnt <= 0 {
		return &domain.ValidationError{Code: domain.CodeInvalidQuestionCnt}
	}
	if sub.TotalTimeMs < 0 {
		return &domain.ValidationError{Code: domain.CodeInvalidTotalTime}
	}
	if len(sub.Items) == 0 {
		return &domain.ValidationError{Code: domain.CodeItemsRequired}
	}
	if len(sub.Items) != sub.QuestionCnt {
		return &domain.ValidationError{Code: domain.CodeItemsLengthMismatch}
	}
	for _, item := range sub.Items {
		if item.OrderNo < 0 {
			return &domain.ValidationError{Code: domain.CodeInvalidOrderNo}
		}
		if item.SelectedIdx != nil && *item.SelectedIdx < 0 {
			return &domain.ValidationError{Code: domain.CodeInvalidSelectedIdx}
		}
		if item.CorrectIdx < 0 {
			return &domain.ValidationError{Code: domain.CodeInvalidCorrectIdx}
		}
	}
	return nil
}

// recomputeScore is the one and only scoring path: a point per item whose
// selected index matches the frozen correct index.
func recomputeScore(items []domain.SubmissionItem) int {
	score := 0
	for _, item := range items {
		if item.SelectedIdx != nil && *item.SelectedIdx == item.CorrectIdx {
			score++
		}
	}
	return score
}
