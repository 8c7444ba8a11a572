package app

import (
	"context"
	"math"
	"sort"
	"time"

	"quiz-rank-service/internal/domain"
)

// ProfileDirectory resolves opaque participant ids to display names.
// Unresolvable ids are absent from the map, never an error.
type ProfileDirectory interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// RankingService derives the weekly leaderboard for a mode. It is stateless
// and idempotent: the same attempt window always yields the same ranking.
type RankingService struct {
	attempts AttemptStore
	profiles ProfileDirectory
	zone     *time.Location
	now      func() time.Time
}

func NewRankingService(attempts AttemptStore, profiles ProfileDirectory, zone *time.Location) *RankingService {
	if zone == nil {
		zone = time.UTC
	}
	return &RankingService{attempts: attempts, profiles: profiles, zone: zone, now: time.Now}
}

// NewRankingServiceWithClock is test-only for deterministic week windows.
func NewRankingServiceWithClock(attempts AttemptStore, profiles ProfileDirectory, zone *time.Location, now func() time.Time) *RankingService {
	s := NewRankingService(attempts, profiles, zone)
	s.now = now
	return s
}

// WeekStart truncates now to Monday 00:00 in zone. The week boundary is
// computed in-process so ranking never depends on a database session
// timezone.
func WeekStart(now time.Time, zone *time.Location) time.Time {
	local := now.In(zone)
	year, month, day := local.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, zone)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -daysSinceMonday)
}

// Leaderboard computes the current-week ranking for mode, truncated to topN
// entries after the full sort. A nil zone falls back to the configured one.
// An empty window yields an empty leaderboard, not an error.
func (s *RankingService) Leaderboard(ctx context.Context, mode string, topN int, zone *time.Location) (domain.Leaderboard, error) {
	if zone == nil {
		zone = s.zone
	}
	weekStart := WeekStart(s.now(), zone)
	weekEnd := weekStart.AddDate(0, 0, 7)

	window, err := s.attempts.ListByModeBetween(ctx, mode, weekStart, weekEnd)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	// Pass 1: weekly participation totals per participant. These decorate the
	// final rows but never influence ordering.
	weeklyQuestions := make(map[string]int)
	weeklyAttempts := make(map[string]int)
	// Pass 2: running best attempt per participant under the same total order
	// used for the global sort.
	best := make(map[string]domain.Attempt)
	for _, attempt := range window {
		weeklyQuestions[attempt.UserID] += attempt.QuestionCnt
		weeklyAttempts[attempt.UserID]++
		current, ok := best[attempt.UserID]
		if !ok || betterAttempt(attempt, current) {
			best[attempt.UserID] = attempt
		}
	}

	selected := make([]domain.Attempt, 0, len(best))
	for _, attempt := range best {
		selected = append(selected, attempt)
	}
	sort.Slice(selected, func(i, j int) bool {
		return betterAttempt(selected[i], selected[j])
	})

	entries := make([]domain.RankingEntry, 0, len(selected))
	for i, attempt := range selected {
		entries = append(entries, domain.RankingEntry{
			Rank:            i + 1,
			AttemptID:       attempt.ID,
			UserID:          attempt.UserID,
			Score:           attempt.Score,
			QuestionCnt:     attempt.QuestionCnt,
			AccuracyPct:     accuracyPct(attempt.Score, attempt.QuestionCnt),
			TotalTimeMs:     attempt.TotalTimeMs,
			AvgMsPerQ:       avgMsPerQuestion(attempt.TotalTimeMs, attempt.QuestionCnt),
			CreatedAt:       attempt.CreatedAt,
			WeeklyQuestions: weeklyQuestions[attempt.UserID],
			WeeklyAttempts:  weeklyAttempts[attempt.UserID],
		})
	}

	// Truncate only after ranks are assigned over the full sorted set.
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}

	if err := s.enrichDisplayNames(ctx, entries); err != nil {
		return domain.Leaderboard{}, err
	}

	return domain.Leaderboard{
		Mode:       mode,
		WeekStart:  weekStart,
		Entries:    entries,
		ComputedAt: s.now().UTC(),
	}, nil
}

// enrichDisplayNames batch-resolves names for the truncated top-N only.
// Participants without a profile keep a nil name.
func (s *RankingService) enrichDisplayNames(ctx context.Context, entries []domain.RankingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		ids = append(ids, e.UserID)
	}
	sort.Strings(ids)

	names, err := s.profiles.DisplayNames(ctx, ids)
	if err != nil {
		return err
	}
	for i := range entries {
		if name, ok := names[entries[i].UserID]; ok {
			n := name
			entries[i].DisplayName = &n
		}
	}
	return nil
}

// betterAttempt is the deterministic comparison chain shared by per-user
// best-attempt selection and the global sort: higher score, then lower total
// time, then earlier creation. The attempt id settles exact timestamp
// collisions so the order is total regardless of input or map iteration
// order.
func betterAttempt(a, b domain.Attempt) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TotalTimeMs != b.TotalTimeMs {
		return a.TotalTimeMs < b.TotalTimeMs
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// accuracyPct rounds to one decimal place, e.g. 2/3 -> 66.7.
func accuracyPct(score, questionCnt int) float64 {
	if questionCnt == 0 {
		return 0
	}
	return math.Round(float64(score)/float64(questionCnt)*1000) / 10
}

// avgMsPerQuestion floors, never rounds.
func avgMsPerQuestion(totalTimeMs int64, questionCnt int) int64 {
	if questionCnt == 0 {
		return 0
	}
	return totalTimeMs / int64(questionCnt)
}
