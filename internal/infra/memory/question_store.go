package memory

import (
	"context"

	"quiz-rank-service/internal/domain"
)

// StaticQuestionStore serves question content from an in-memory map
// (useful for tests/demos and the no-postgres dev mode).
type StaticQuestionStore struct {
	questions map[int64]domain.ReviewQuestion
}

func NewStaticQuestionStore(questions map[int64]domain.ReviewQuestion) *StaticQuestionStore {
	return &StaticQuestionStore{questions: questions}
}

func (s *StaticQuestionStore) GetQuestions(_ context.Context, ids []int64) (map[int64]domain.ReviewQuestion, error) {
	out := make(map[int64]domain.ReviewQuestion, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

// StaticProfileDirectory resolves display names from an in-memory map.
type StaticProfileDirectory struct {
	names map[string]string
}

func NewStaticProfileDirectory(names map[string]string) *StaticProfileDirectory {
	return &StaticProfileDirectory{names: names}
}

func (d *StaticProfileDirectory) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}
