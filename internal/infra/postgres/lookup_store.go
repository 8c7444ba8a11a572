package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-rank-service/internal/domain"
)

// LookupStore reads the externally owned reference tables: question content
// for reviews and profiles for display names.
type LookupStore struct {
	pool *pgxpool.Pool
}

func NewLookupStore(pool *pgxpool.Pool) *LookupStore {
	return &LookupStore{pool: pool}
}

// GetQuestions returns the questions that still exist; deleted ids are simply
// absent. Options are assembled as an explicit ordered list from the choices
// table rather than any database-side JSON aggregation.
func (s *LookupStore) GetQuestions(ctx context.Context, ids []int64) (map[int64]domain.ReviewQuestion, error) {
	out := make(map[int64]domain.ReviewQuestion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, explanation FROM questions WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load questions", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.ReviewQuestion
		if err := rows.Scan(&q.ID, &q.Text, &q.Explanation); err != nil {
			return nil, &domain.PersistenceError{Op: "scan question", Err: err}
		}
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "load questions", Err: err}
	}

	choiceRows, err := s.pool.Query(ctx,
		`SELECT question_id, text FROM choices WHERE question_id = ANY($1)
		 ORDER BY question_id, idx`,
		ids,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load choices", Err: err}
	}
	defer choiceRows.Close()

	for choiceRows.Next() {
		var questionID int64
		var text string
		if err := choiceRows.Scan(&questionID, &text); err != nil {
			return nil, &domain.PersistenceError{Op: "scan choice", Err: err}
		}
		if q, ok := out[questionID]; ok {
			q.Options = append(q.Options, text)
			out[questionID] = q
		}
	}
	if err := choiceRows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "load choices", Err: err}
	}
	return out, nil
}

// DisplayNames batch-resolves participant ids; unknown ids are absent.
func (s *LookupStore) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, display_name FROM user_profiles WHERE user_id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load profiles", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, &domain.PersistenceError{Op: "scan profile", Err: err}
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "load profiles", Err: err}
	}
	return out, nil
}
