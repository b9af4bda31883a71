package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testAgent(id, name string) *Agent {
	now := time.Now().UTC().Truncate(time.Second)
	return &Agent{
		ID:         id,
		Name:       name,
		Role:       "ANALYST",
		Status:     AgentStatusIdle,
		LastActive: now,
		CreatedAt:  now,
	}
}

func testRequest(id, title string) *Request {
	now := time.Now().UTC().Truncate(time.Second)
	return &Request{
		ID:        id,
		Title:     title,
		Status:    RequestStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_CreateAgent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateAgent(ctx, testAgent("a1", "Scout"))
	require.NoError(t, err)

	retrieved, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", retrieved.ID)
	assert.Equal(t, "Scout", retrieved.Name)
	assert.Equal(t, AgentStatusIdle, retrieved.Status)
	assert.Empty(t, retrieved.CurrentTask)
}

func TestStore_GetAgent_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetAgent(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FindIdleAgent_Specific(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))

	found, err := store.FindIdleAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", found.ID)
}

func TestStore_FindIdleAgent_SpecificNotIdle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	busy := testAgent("a1", "Scout")
	busy.Status = AgentStatusProcessing
	require.NoError(t, store.CreateAgent(ctx, busy))

	_, err := store.FindIdleAgent(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FindIdleAgent_SpecificOffline(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	offline := testAgent("a1", "Scout")
	offline.Status = AgentStatusOffline
	require.NoError(t, store.CreateAgent(ctx, offline))

	_, err := store.FindIdleAgent(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FindIdleAgent_Any(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	busy := testAgent("a1", "Scout")
	busy.Status = AgentStatusProcessing
	require.NoError(t, store.CreateAgent(ctx, busy))
	require.NoError(t, store.CreateAgent(ctx, testAgent("a2", "Sage")))

	found, err := store.FindIdleAgent(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "a2", found.ID)
}

func TestStore_FindIdleAgent_PrefersLeastRecentlyActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	older := testAgent("a2", "Sage")
	older.LastActive = older.LastActive.Add(-time.Hour)
	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))
	require.NoError(t, store.CreateAgent(ctx, older))

	found, err := store.FindIdleAgent(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "a2", found.ID)
}

func TestStore_FindIdleAgent_NoneAvailable(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.FindIdleAgent(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CompareAndSetAgentStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))

	updated, err := store.CompareAndSetAgentStatus(ctx, "a1", AgentStatusIdle, AgentStatusProcessing, "Summarize doc")
	require.NoError(t, err)
	assert.Equal(t, AgentStatusProcessing, updated.Status)
	assert.Equal(t, "Summarize doc", updated.CurrentTask)
}

func TestStore_CompareAndSetAgentStatus_Conflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))

	_, err := store.CompareAndSetAgentStatus(ctx, "a1", AgentStatusIdle, AgentStatusProcessing, "first")
	require.NoError(t, err)

	// Second transition expecting idle must lose
	_, err = store.CompareAndSetAgentStatus(ctx, "a1", AgentStatusIdle, AgentStatusProcessing, "second")
	assert.ErrorIs(t, err, ErrConflict)

	// Agent still holds the first task
	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "first", agent.CurrentTask)
}

func TestStore_CompareAndSetAgentStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CompareAndSetAgentStatus(ctx, "ghost", AgentStatusIdle, AgentStatusProcessing, "task")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CompareAndSetAgentStatus_Release(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))

	_, err := store.CompareAndSetAgentStatus(ctx, "a1", AgentStatusIdle, AgentStatusProcessing, "task")
	require.NoError(t, err)

	released, err := store.CompareAndSetAgentStatus(ctx, "a1", AgentStatusProcessing, AgentStatusIdle, "")
	require.NoError(t, err)
	assert.Equal(t, AgentStatusIdle, released.Status)
	assert.Empty(t, released.CurrentTask)
}

// TestStore_CompareAndSetAgentStatus_Concurrent drives many goroutines at a
// single idle agent: exactly one reservation may win.
func TestStore_CompareAndSetAgentStatus_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))

	const attempts = 16
	var wins atomic.Int32

	var wg conc.WaitGroup
	for i := 0; i < attempts; i++ {
		task := fmt.Sprintf("task-%d", i)
		wg.Go(func() {
			if _, err := store.CompareAndSetAgentStatus(ctx, "a1", AgentStatusIdle, AgentStatusProcessing, task); err == nil {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one concurrent reservation should succeed")

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, AgentStatusProcessing, agent.Status)
}

func TestStore_CreateRequest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateRequest(ctx, testRequest("r1", "Summarize doc"))
	require.NoError(t, err)

	retrieved, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Summarize doc", retrieved.Title)
	assert.Equal(t, RequestStatusPending, retrieved.Status)
}

func TestStore_GetRequest_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRequest(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetRequestStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	req := testRequest("r1", "Summarize doc")
	require.NoError(t, store.CreateRequest(ctx, req))

	updated, err := store.SetRequestStatus(ctx, "r1", RequestStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusProcessing, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(req.UpdatedAt))
}

func TestStore_SetRequestStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.SetRequestStatus(ctx, "nonexistent", RequestStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CompareAndSetRequestStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	req := testRequest("r1", "Summarize doc")
	require.NoError(t, store.CreateRequest(ctx, req))

	updated, err := store.CompareAndSetRequestStatus(ctx, "r1", RequestStatusPending, RequestStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusProcessing, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(req.UpdatedAt))
}

func TestStore_CompareAndSetRequestStatus_Conflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRequest(ctx, testRequest("r1", "Summarize doc")))

	_, err := store.CompareAndSetRequestStatus(ctx, "r1", RequestStatusPending, RequestStatusProcessing)
	require.NoError(t, err)

	// The request is no longer pending; a second claim loses.
	_, err = store.CompareAndSetRequestStatus(ctx, "r1", RequestStatusPending, RequestStatusProcessing)
	assert.ErrorIs(t, err, ErrConflict)

	retrieved, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusProcessing, retrieved.Status)
}

func TestStore_CompareAndSetRequestStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CompareAndSetRequestStatus(ctx, "nonexistent", RequestStatusPending, RequestStatusProcessing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CompareAndSetRequestStatus_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRequest(ctx, testRequest("r1", "Summarize doc")))

	const attempts = 16
	var wins atomic.Int32

	var wg conc.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Go(func() {
			if _, err := store.CompareAndSetRequestStatus(ctx, "r1", RequestStatusPending, RequestStatusProcessing); err == nil {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one concurrent claim should succeed")
}

func TestStore_ListRequests(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := testRequest(fmt.Sprintf("r%d", i), fmt.Sprintf("Task %d", i))
		req.UpdatedAt = req.UpdatedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateRequest(ctx, req))
	}

	requests, err := store.ListRequests(ctx, 2)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "r2", requests[0].ID, "most recently updated first")
}

func TestStore_ListAgents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAgent(ctx, testAgent("a1", "Scout")))
	require.NoError(t, store.CreateAgent(ctx, testAgent("a2", "Sage")))

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "a1", agents[0].ID)
	assert.Equal(t, "a2", agents[1].ID)
}
