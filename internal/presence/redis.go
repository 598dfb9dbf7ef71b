package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyAgents = "autodesign:agents"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	ZAdd(context.Context, string, ...redis.Z) *redis.IntCmd
	ZRemRangeByScore(context.Context, string, string, string) *redis.IntCmd
	ZRangeByScoreWithScores(context.Context, string, *redis.ZRangeBy) *redis.ZSliceCmd
}

// Redis keeps last-seen times in a sorted set scored by Unix milliseconds,
// so several coordinator replicas share one view of the fleet.
type Redis struct {
	store cmdable
	ttl   time.Duration
	now   func() time.Time
}

// NewRedis connects to url and verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{store: raw, ttl: ttl, now: time.Now}, nil
}

// Touch records agentID with the current time as its score.
func (r *Redis) Touch(ctx context.Context, agentID string) error {
	if agentID == "" {
		return nil
	}
	return r.store.ZAdd(ctx, keyAgents, redis.Z{
		Score:  float64(r.now().UTC().UnixMilli()),
		Member: agentID,
	}).Err()
}

// List prunes members older than the TTL and returns the rest, most recent
// first.
func (r *Redis) List(ctx context.Context) ([]Agent, error) {
	cutoff := strconv.FormatInt(r.now().UTC().Add(-r.ttl).UnixMilli(), 10)
	if err := r.store.ZRemRangeByScore(ctx, keyAgents, "-inf", "("+cutoff).Err(); err != nil {
		return nil, err
	}
	zs, err := r.store.ZRangeByScoreWithScores(ctx, keyAgents, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Agent, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Agent{ID: id, LastSeen: time.UnixMilli(int64(z.Score)).UTC()})
	}
	sortAgents(out)
	return out, nil
}
