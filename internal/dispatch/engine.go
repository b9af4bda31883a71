// ABOUTME: Assignment engine that atomically reserves one idle agent per request
// ABOUTME: Retries lost reservation races against a fresh idle-agent lookup

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/taskdesk/internal/store"
)

// ErrNoAgentAvailable indicates no idle agent matched the selection
// criteria. It is a retryable capacity signal, not a fatal error.
var ErrNoAgentAvailable = errors.New("no agent available")

// Engine selects and reserves agents. A successful Reserve performs
// exactly one state mutation (idle -> processing); a failed one performs
// none.
type Engine struct {
	store   store.Store
	retries int
	logger  *slog.Logger
}

// NewEngine creates an Engine. retries is the number of additional
// idle-agent lookups performed after a lost reservation race.
func NewEngine(s store.Store, retries int) *Engine {
	if retries < 0 {
		retries = 0
	}
	return &Engine{
		store:   s,
		retries: retries,
		logger:  slog.Default().With("component", "dispatch"),
	}
}

// Reserve atomically claims one idle agent and stamps it with the task
// label. With a non-empty agentID only that exact agent qualifies and a
// lost race is not retried; with an empty agentID any idle agent is
// accepted and a lost race triggers a fresh lookup, bounded by the retry
// budget. Returns ErrNoAgentAvailable when capacity is exhausted.
func (e *Engine) Reserve(ctx context.Context, agentID, task string) (*store.Agent, error) {
	if agentID != "" {
		return e.reserveSpecific(ctx, agentID, task)
	}
	return e.reserveAny(ctx, task)
}

func (e *Engine) reserveSpecific(ctx context.Context, agentID, task string) (*store.Agent, error) {
	candidate, err := e.store.FindIdleAgent(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		// Missing, busy, and offline all read the same to the caller.
		return nil, ErrNoAgentAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("looking up agent %s: %w", agentID, err)
	}

	agent, err := e.store.CompareAndSetAgentStatus(ctx, candidate.ID, store.AgentStatusIdle, store.AgentStatusProcessing, task)
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		// Never retry against the same already-taken agent.
		return nil, ErrNoAgentAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("reserving agent %s: %w", candidate.ID, err)
	}

	e.logger.Debug("agent reserved", "agent_id", agent.ID, "task", task)
	return agent, nil
}

func (e *Engine) reserveAny(ctx context.Context, task string) (*store.Agent, error) {
	for attempt := 0; attempt <= e.retries; attempt++ {
		candidate, err := e.store.FindIdleAgent(ctx, "")
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoAgentAvailable
		}
		if err != nil {
			return nil, fmt.Errorf("looking up idle agent: %w", err)
		}

		agent, err := e.store.CompareAndSetAgentStatus(ctx, candidate.ID, store.AgentStatusIdle, store.AgentStatusProcessing, task)
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			// Another attempt won this agent; look again.
			e.logger.Debug("reservation race lost", "agent_id", candidate.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reserving agent %s: %w", candidate.ID, err)
		}

		e.logger.Debug("agent reserved", "agent_id", agent.ID, "task", task)
		return agent, nil
	}

	return nil, ErrNoAgentAvailable
}
