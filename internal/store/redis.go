package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client used for the queue backend, the live
// per-session tallies, and the finalized report cache.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

func liveKey(sessionID string) string   { return "attendance:live:" + sessionID }
func reportKey(sessionID string) string { return "attendance:report:" + sessionID }

// BumpLiveTally increments the live status counter for an in-flight session.
func (r *Redis) BumpLiveTally(ctx context.Context, sessionID, status string) error {
	return r.Client.HIncrBy(ctx, liveKey(sessionID), status, 1).Err()
}

// LiveTally reads the live status counters for a session.
func (r *Redis) LiveTally(ctx context.Context, sessionID string) (map[string]string, error) {
	return r.Client.HGetAll(ctx, liveKey(sessionID)).Result()
}

// SaveReport caches the finalized report blob for a stopped session and drops
// the live tally it supersedes.
func (r *Redis) SaveReport(ctx context.Context, sessionID string, blob []byte, ttl time.Duration) error {
	if err := r.Client.Set(ctx, reportKey(sessionID), blob, ttl).Err(); err != nil {
		return err
	}
	return r.Client.Del(ctx, liveKey(sessionID)).Err()
}

// GetReport returns the cached report blob, nil when none is cached.
func (r *Redis) GetReport(ctx context.Context, sessionID string) ([]byte, error) {
	blob, err := r.Client.Get(ctx, reportKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return blob, err
}
