// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
// The mutex makes CompareAndSetAgentStatus atomic the same way the
// SQLite conditional UPDATE is, so reservation races behave identically.
type MockStore struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	requests map[string]*Request
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		agents:   make(map[string]*Agent),
		requests: make(map[string]*Request),
	}
}

// CreateAgent stores a new agent.
func (m *MockStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	a := *agent
	m.agents[a.ID] = &a
	return nil
}

// GetAgent retrieves an agent by ID.
func (m *MockStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAgents returns all agents ordered by creation time.
func (m *MockStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		cp := *a
		agents = append(agents, &cp)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents, nil
}

// FindIdleAgent returns an idle agent, matching the SQLite selection order.
func (m *MockStore) FindIdleAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id != "" {
		a, ok := m.agents[id]
		if !ok || a.Status != AgentStatusIdle {
			return nil, ErrNotFound
		}
		cp := *a
		return &cp, nil
	}

	var candidate *Agent
	for _, a := range m.agents {
		if a.Status != AgentStatusIdle {
			continue
		}
		if candidate == nil || a.LastActive.Before(candidate.LastActive) ||
			(a.LastActive.Equal(candidate.LastActive) && a.ID < candidate.ID) {
			candidate = a
		}
	}
	if candidate == nil {
		return nil, ErrNotFound
	}
	cp := *candidate
	return &cp, nil
}

// CompareAndSetAgentStatus performs the conditional transition under the
// write lock: concurrent callers with the same expected status race for
// one winner, losers get ErrConflict.
func (m *MockStore) CompareAndSetAgentStatus(ctx context.Context, id, expected, next, currentTask string) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != expected {
		return nil, ErrConflict
	}

	a.Status = next
	a.CurrentTask = currentTask
	a.LastActive = time.Now().UTC()

	cp := *a
	return &cp, nil
}

// CreateRequest stores a new request.
func (m *MockStore) CreateRequest(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := *req
	m.requests[r.ID] = &r
	return nil
}

// GetRequest retrieves a request by ID.
func (m *MockStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListRequests returns requests ordered by most recently updated.
func (m *MockStore) ListRequests(ctx context.Context, limit int) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make([]*Request, 0, len(m.requests))
	for _, r := range m.requests {
		cp := *r
		requests = append(requests, &cp)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].UpdatedAt.After(requests[j].UpdatedAt)
	})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

// SetRequestStatus updates the request status and stamps updated_at.
func (m *MockStore) SetRequestStatus(ctx context.Context, id, status string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()

	cp := *r
	return &cp, nil
}

// CompareAndSetRequestStatus performs the conditional transition under
// the write lock, mirroring the SQLite conditional UPDATE.
func (m *MockStore) CompareAndSetRequestStatus(ctx context.Context, id, expected, next string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != expected {
		return nil, ErrConflict
	}

	r.Status = next
	r.UpdatedAt = time.Now().UTC()

	cp := *r
	return &cp, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
