package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-rank-service/internal/domain"
)

// AttemptStore persists attempts in Postgres. The header insert and the bulk
// answer insert share one transaction; no reader can ever observe an attempt
// without its full answer trail.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt, entries []domain.AnswerEntry) (domain.Attempt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Attempt{}, &domain.PersistenceError{Op: "begin attempt tx", Err: err}
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO attempts (user_id, mode, question_cnt, score, total_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		attempt.UserID, attempt.Mode, attempt.QuestionCnt, attempt.Score, attempt.TotalTimeMs, attempt.CreatedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return domain.Attempt{}, &domain.PersistenceError{Op: "insert attempt", Err: err}
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO attempt_answers (attempt_id, order_no, question_id, selected_idx, correct_idx, is_correct)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			attempt.ID, e.OrderNo, e.QuestionID, e.SelectedIdx, e.CorrectIdx, e.IsCorrect,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return domain.Attempt{}, &domain.PersistenceError{Op: "insert answer trail", Err: err}
		}
	}
	if err := results.Close(); err != nil {
		return domain.Attempt{}, &domain.PersistenceError{Op: "insert answer trail", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Attempt{}, &domain.PersistenceError{Op: "commit attempt", Err: err}
	}
	return attempt, nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, id int64) (domain.Attempt, error) {
	var attempt domain.Attempt
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, mode, question_cnt, score, total_time_ms, created_at
		 FROM attempts WHERE id = $1`,
		id,
	).Scan(&attempt.ID, &attempt.UserID, &attempt.Mode, &attempt.QuestionCnt, &attempt.Score, &attempt.TotalTimeMs, &attempt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, &domain.PersistenceError{Op: "get attempt", Err: err}
	}
	return attempt, nil
}

func (s *AttemptStore) ListAnswers(ctx context.Context, attemptID int64) ([]domain.AnswerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT attempt_id, order_no, question_id, selected_idx, correct_idx, is_correct
		 FROM attempt_answers WHERE attempt_id = $1
		 ORDER BY order_no`,
		attemptID,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list answers", Err: err}
	}
	defer rows.Close()

	var entries []domain.AnswerEntry
	for rows.Next() {
		var e domain.AnswerEntry
		if err := rows.Scan(&e.AttemptID, &e.OrderNo, &e.QuestionID, &e.SelectedIdx, &e.CorrectIdx, &e.IsCorrect); err != nil {
			return nil, &domain.PersistenceError{Op: "scan answer", Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list answers", Err: err}
	}
	return entries, nil
}

func (s *AttemptStore) ListByModeBetween(ctx context.Context, mode string, from, to time.Time) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, mode, question_cnt, score, total_time_ms, created_at
		 FROM attempts
		 WHERE mode = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at, id`,
		mode, from, to,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list attempts", Err: err}
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.Mode, &a.QuestionCnt, &a.Score, &a.TotalTimeMs, &a.CreatedAt); err != nil {
			return nil, &domain.PersistenceError{Op: "scan attempt", Err: err}
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list attempts", Err: err}
	}
	return attempts, nil
}
