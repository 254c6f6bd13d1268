// Package ratelimit throttles per-user command usage over a sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps recent command timestamps per user.
type Store interface {
	// Window returns the number of timestamps newer than cutoff, dropping
	// older ones as a side effect.
	Window(ctx context.Context, userID int64, cutoff time.Time) (int, error)
	// Push records a timestamp, keeping at most keep entries, and refreshes
	// the entry TTL.
	Push(ctx context.Context, userID int64, at time.Time, keep int, ttl time.Duration) error
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewLimiter(store Store, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow reports whether userID may run another command now. A store
// failure counts as a denial so an outage cannot lift the throttle.
func (l *Limiter) Allow(ctx context.Context, userID int64) bool {
	now := time.Now()
	count, err := l.store.Window(ctx, userID, now.Add(-l.window))
	if err != nil {
		l.logger.Warn("rate limit store unavailable, denying", "user_id", userID, "error", err)
		return false
	}
	if count >= l.limit {
		return false
	}
	if err := l.store.Push(ctx, userID, now, l.limit, l.window); err != nil {
		l.logger.Warn("rate limit store unavailable, denying", "user_id", userID, "error", err)
		return false
	}
	return true
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func rateKey(userID int64) string {
	return "rate:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Window(ctx context.Context, userID int64, cutoff time.Time) (int, error) {
	key := rateKey(userID)
	entries, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read rate window: %w", err)
	}
	count := 0
	stale := 0
	for _, entry := range entries {
		nanos, err := strconv.ParseInt(entry, 10, 64)
		if err != nil || time.Unix(0, nanos).Before(cutoff) {
			stale++
			continue
		}
		count++
	}
	if stale > 0 {
		// Entries are pushed newest-first, so the stale tail can be trimmed off.
		if err := s.client.LTrim(ctx, key, 0, int64(count)-1).Err(); err != nil {
			return 0, fmt.Errorf("failed to trim rate window: %w", err)
		}
	}
	return count, nil
}

func (s *RedisStore) Push(ctx context.Context, userID int64, at time.Time, keep int, ttl time.Duration) error {
	key := rateKey(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, strconv.FormatInt(at.UnixNano(), 10))
	pipe.LTrim(ctx, key, 0, int64(keep)-1)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record rate entry: %w", err)
	}
	return nil
}

// MemoryStore is a process-local Store for single-instance deployments
// and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64][]time.Time)}
}

func (s *MemoryStore) Window(_ context.Context, userID int64, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[userID][:0]
	for _, at := range s.entries[userID] {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	s.entries[userID] = kept
	return len(kept), nil
}

func (s *MemoryStore) Push(_ context.Context, userID int64, at time.Time, keep int, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.entries[userID], at)
	if len(entries) > keep {
		entries = entries[len(entries)-keep:]
	}
	s.entries[userID] = entries
	return nil
}
