package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-rank-service/internal/app"
	"quiz-rank-service/internal/domain"
)

// RankingSource computes a leaderboard directly (no cache).
type RankingSource interface {
	Leaderboard(ctx context.Context, mode string, topN int, zone *time.Location) (domain.Leaderboard, error)
}

// LeaderboardCache keeps computed leaderboard snapshots in Redis, keyed by
// (mode, week start, top-N, zone). Concurrent misses for the same key are
// collapsed with singleflight so the window is scanned once.
type LeaderboardCache struct {
	client *redis.Client
	source RankingSource
	zone   *time.Location
	ttl    time.Duration
	now    func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, source RankingSource, zone *time.Location, ttl time.Duration) *LeaderboardCache {
	if zone == nil {
		zone = time.UTC
	}
	return &LeaderboardCache{
		client: client,
		source: source,
		zone:   zone,
		ttl:    ttl,
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Leaderboard(ctx context.Context, mode string, topN int, zone *time.Location) (domain.Leaderboard, error) {
	if zone == nil {
		zone = c.zone
	}
	key := c.key(mode, topN, zone)

	if lb, ok := c.get(ctx, key); ok {
		return lb, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if lb, ok := c.get(ctx, key); ok {
			return lb, nil
		}

		lb, err := c.source.Leaderboard(ctx, mode, topN, zone)
		if err != nil {
			return domain.Leaderboard{}, err
		}

		if raw, err := json.Marshal(lb); err == nil {
			// Best-effort fill; a cache write failure never fails the read.
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// AttemptRecorded drops every cached snapshot for the mode so the next read
// re-derives the ranking. Implements app.AttemptObserver.
func (c *LeaderboardCache) AttemptRecorded(mode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var cursor uint64
	pattern := "leaderboard:" + escapeMatch(mode) + ":*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = c.client.Del(ctx, keys...).Err()
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// escapeMatch quotes glob metacharacters so a literal mode never matches
// beyond its own keys in SCAN.
func escapeMatch(s string) string {
	return matchEscaper.Replace(s)
}

var matchEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func (c *LeaderboardCache) get(ctx context.Context, key string) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) key(mode string, topN int, zone *time.Location) string {
	weekStart := app.WeekStart(c.now(), zone)
	return fmt.Sprintf("leaderboard:%s:%d:%d:%s", mode, weekStart.Unix(), topN, zone.String())
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

var _ app.AttemptObserver = (*LeaderboardCache)(nil)
