package presence

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemory_ListsRecentAgentsNewestFirst(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.Now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Touch(ctx, "old")
	now = now.Add(30 * time.Second)
	_ = m.Touch(ctx, "new")
	_ = m.Touch(ctx, "")

	agents, _ := m.List(ctx)
	if len(agents) != 2 || agents[0].ID != "new" || agents[1].ID != "old" {
		t.Fatalf("unexpected agents: %+v", agents)
	}

	now = now.Add(45 * time.Second)
	agents, _ = m.List(ctx)
	if len(agents) != 1 || agents[0].ID != "new" {
		t.Fatalf("expired agent should be dropped: %+v", agents)
	}
}

func TestRedis_TouchAndList(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock := &mockCmdable{scores: map[string]float64{}}
	r := &Redis{store: mock, ttl: time.Minute, now: func() time.Time { return now }}
	ctx := context.Background()

	if err := r.Touch(ctx, "a1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := r.Touch(ctx, "a2"); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	agents, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "a2" || !agents[0].LastSeen.Equal(now) {
		t.Fatalf("unexpected agents: %+v", agents)
	}
	if _, ok := mock.scores["a1"]; ok {
		t.Fatalf("stale member should be pruned")
	}
}

// mockCmdable implements the sorted-set subset with inclusive numeric
// bounds and the "(" exclusive prefix.
type mockCmdable struct {
	scores map[string]float64
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	for _, z := range members {
		m.scores[z.Member.(string)] = z.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd {
	var n int64
	for id, s := range m.scores {
		if inRange(s, min, max) {
			delete(m.scores, id)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd {
	var out []redis.Z
	for id, s := range m.scores {
		if inRange(s, opt.Min, opt.Max) {
			out = append(out, redis.Z{Score: s, Member: id})
		}
	}
	return redis.NewZSliceCmdResult(out, nil)
}

func inRange(s float64, min, max string) bool {
	return above(s, min) && below(s, max)
}

func above(s float64, bound string) bool {
	if bound == "-inf" {
		return true
	}
	v, excl := parseBound(bound)
	if excl {
		return s > v
	}
	return s >= v
}

func below(s float64, bound string) bool {
	if bound == "+inf" {
		return true
	}
	v, excl := parseBound(bound)
	if excl {
		return s < v
	}
	return s <= v
}

func parseBound(b string) (float64, bool) {
	excl := strings.HasPrefix(b, "(")
	v, _ := strconv.ParseFloat(strings.TrimPrefix(b, "("), 64)
	return v, excl
}
