package domain

import "time"

// Attempt is one completed timed quiz session. Rows are insert-only: an
// attempt is never updated or deleted once recorded.
type Attempt struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Mode        string    `json:"mode"`
	QuestionCnt int       `json:"questionCnt"`
	Score       int       `json:"score"`
	TotalTimeMs int64     `json:"totalTimeMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AnswerEntry is one recorded response within an attempt. CorrectIdx is a
// frozen snapshot from submission time; it is never re-derived from the
// question, so review stays truthful even after the answer key changes.
type AnswerEntry struct {
	AttemptID   int64  `json:"attemptId"`
	OrderNo     int    `json:"orderNo"`
	QuestionID  *int64 `json:"questionId"`
	SelectedIdx *int   `json:"selectedIdx"`
	CorrectIdx  int    `json:"correctIdx"`
	IsCorrect   bool   `json:"isCorrect"`
}

// Submission is a client-submitted attempt before validation and scoring.
// It deliberately carries no score field: the server recomputes it.
type Submission struct {
	Mode        string
	QuestionCnt int
	TotalTimeMs int64
	Items       []SubmissionItem
}

// SubmissionItem is one answer within a submission. SelectedIdx is nil when
// the participant gave no answer (e.g. time expired).
type SubmissionItem struct {
	OrderNo     int
	QuestionID  *int64
	SelectedIdx *int
	CorrectIdx  int
}

// ReviewQuestion is the read-only question content joined in at review time.
type ReviewQuestion struct {
	ID          int64
	Text        string
	Options     []string
	Explanation *string
}

// ReviewItem is one display-ready row of an attempt review. Question fields
// are nil when the referenced question no longer exists.
type ReviewItem struct {
	OrderNo      int      `json:"orderNo"`
	QuestionID   *int64   `json:"questionId"`
	QuestionText *string  `json:"questionText"`
	Options      []string `json:"options"`
	CorrectIdx   int      `json:"correctIdx"`
	SelectedIdx  *int     `json:"selectedIdx"`
	IsCorrect    bool     `json:"isCorrect"`
	Explanation  *string  `json:"explanation"`
}

// RankingEntry is one row of a weekly leaderboard, derived from the best
// attempt of a participant plus their weekly participation totals.
type RankingEntry struct {
	Rank            int       `json:"rank"`
	AttemptID       int64     `json:"attemptId"`
	UserID          string    `json:"userId"`
	DisplayName     *string   `json:"displayName"`
	Score           int       `json:"score"`
	QuestionCnt     int       `json:"questionCnt"`
	AccuracyPct     float64   `json:"accuracyPct"`
	TotalTimeMs     int64     `json:"totalTimeMs"`
	AvgMsPerQ       int64     `json:"avgMsPerQuestion"`
	CreatedAt       time.Time `json:"createdAt"`
	WeeklyQuestions int       `json:"weeklyQuestions"`
	WeeklyAttempts  int       `json:"weeklyAttempts"`
}

// Leaderboard is the computed ranking for one mode and one week window.
// It is never persisted; every instance is a live re-derivation.
type Leaderboard struct {
	Mode       string         `json:"mode"`
	WeekStart  time.Time      `json:"weekStart"`
	Entries    []RankingEntry `json:"entries"`
	ComputedAt time.Time      `json:"computedAt"`
}
