// Package presence records when worker agents were last seen by the
// coordinator. Every authenticated protocol request touches the calling
// agent; GET /agents lists the agents seen within the TTL.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Agent is one worker and the time of its most recent request.
type Agent struct {
	ID       string    `json:"id"`
	LastSeen time.Time `json:"last_seen"`
}

// Tracker stores agent last-seen times.
type Tracker interface {
	Touch(ctx context.Context, agentID string) error
	List(ctx context.Context) ([]Agent, error)
}

// Memory is an in-process Tracker used when no Redis URL is configured.
type Memory struct {
	TTL time.Duration
	Now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemory returns an empty in-memory tracker.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{TTL: ttl, Now: time.Now, seen: map[string]time.Time{}}
}

// Touch marks agentID as seen now.
func (m *Memory) Touch(_ context.Context, agentID string) error {
	if agentID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[agentID] = m.Now().UTC()
	return nil
}

// List returns agents seen within the TTL, most recent first. Expired
// entries are dropped.
func (m *Memory) List(_ context.Context) ([]Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.Now().UTC().Add(-m.TTL)
	out := make([]Agent, 0, len(m.seen))
	for id, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.seen, id)
			continue
		}
		out = append(out, Agent{ID: id, LastSeen: at})
	}
	sortAgents(out)
	return out, nil
}

func sortAgents(a []Agent) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].LastSeen.Equal(a[j].LastSeen) {
			return a[i].ID < a[j].ID
		}
		return a[i].LastSeen.After(a[j].LastSeen)
	})
}
