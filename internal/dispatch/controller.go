// ABOUTME: Execution controller driving one dispatch attempt through its state machine
// ABOUTME: Reserve, invoke under a deadline, commit outcome, release agent unconditionally

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/taskdesk/internal/executor"
	"github.com/2389/taskdesk/internal/store"
)

// errDeadlineExceeded marks the deadline branch of the invoke race.
var errDeadlineExceeded = errors.New("execution deadline exceeded")

// Ticket describes one dispatch attempt.
type Ticket struct {
	// RequestID identifies the request to execute. Required.
	RequestID string

	// AgentID demands a specific agent. Empty accepts any idle agent.
	AgentID string

	// Timeout caps the executor call. Zero uses the configured default.
	Timeout time.Duration
}

// Controller orchestrates the full attempt lifecycle. Every failure path
// after a successful reservation releases the agent back to idle; an
// agent is never left stranded in processing by a downstream failure.
type Controller struct {
	store          store.Store
	engine         *Engine
	exec           executor.Executor
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewController creates a Controller.
func NewController(s store.Store, engine *Engine, exec executor.Executor, defaultTimeout time.Duration) *Controller {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	return &Controller{
		store:          s,
		engine:         engine,
		exec:           exec,
		defaultTimeout: defaultTimeout,
		logger:         slog.Default().With("component", "dispatch"),
	}
}

// Dispatch runs one attempt: load request, reserve an agent, invoke the
// executor under the deadline, commit the outcome. On any failure after
// reservation the request is marked failed and the agent released.
//
// Failures from the attempt itself are returned as *Error; anything else
// is an infrastructure error.
func (c *Controller) Dispatch(ctx context.Context, ticket Ticket) (*Result, error) {
	req, err := c.store.GetRequest(ctx, ticket.RequestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ReasonRequestNotFound, ticket.RequestID, "request does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("loading request %s: %w", ticket.RequestID, err)
	}

	// Fast path: reject an already-consumed request before reserving an
	// agent. The authoritative guard is the conditional claim below.
	if req.Status != store.RequestStatusPending {
		return nil, newError(ReasonRequestClosed, req.ID,
			fmt.Sprintf("request is %s; submit a new request to retry", req.Status))
	}

	agent, err := c.engine.Reserve(ctx, ticket.AgentID, req.Title)
	if errors.Is(err, ErrNoAgentAvailable) {
		// Aborted: no request or agent mutation has occurred.
		return nil, newError(ReasonNoAgentAvailable, req.ID, "no idle agent matches the selection criteria")
	}
	if err != nil {
		return nil, fmt.Errorf("reserving agent: %w", err)
	}

	c.logger.Info("attempt started",
		"request_id", req.ID,
		"agent_id", agent.ID,
		"agent_name", agent.Name,
	)

	// Claim the request with a conditional transition. Two attempts that
	// both read pending race here for one winner; the loser releases its
	// agent and the request is consumed exactly once.
	if _, err := c.store.CompareAndSetRequestStatus(ctx, req.ID, store.RequestStatusPending, store.RequestStatusProcessing); err != nil {
		c.releaseAgent(ctx, agent.ID)
		if errors.Is(err, store.ErrConflict) {
			return nil, newError(ReasonRequestClosed, req.ID,
				"request was claimed by a concurrent dispatch; submit a new request to retry")
		}
		return nil, fmt.Errorf("claiming request: %w", err)
	}

	timeout := ticket.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	text, invokeErr := c.invokeWithDeadline(ctx, agent, req, timeout)
	if invokeErr == nil && text == "" {
		invokeErr = errors.New("executor returned an empty response")
	}

	if invokeErr != nil {
		c.commitFailure(ctx, req.ID, agent.ID)

		reason := ReasonExecutionFailure
		detail := invokeErr.Error()
		if errors.Is(invokeErr, errDeadlineExceeded) {
			reason = ReasonExecutionTimeout
			detail = fmt.Sprintf("no response within %s", timeout)
		}

		c.logger.Warn("attempt failed",
			"request_id", req.ID,
			"agent_id", agent.ID,
			"reason", string(reason),
			"error", invokeErr,
		)
		return nil, newError(reason, req.ID, detail)
	}

	// Commit writes must survive caller cancellation or the agent would
	// stay stranded in processing.
	commitCtx := context.WithoutCancel(ctx)
	if _, err := c.store.SetRequestStatus(commitCtx, req.ID, store.RequestStatusCompleted); err != nil {
		c.logger.Error("failed to mark request completed", "request_id", req.ID, "error", err)
	}
	c.releaseAgent(ctx, agent.ID)

	c.logger.Info("attempt completed",
		"request_id", req.ID,
		"agent_id", agent.ID,
		"chars", len(text),
	)

	return &Result{
		Success:   true,
		RequestID: req.ID,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Output:    text,
	}, nil
}

// invokeWithDeadline races the executor call against the timeout. The
// deadline branch is fail-safe: it unwinds bookkeeping only and does not
// cancel the in-flight remote call. The buffered channel guarantees the
// losing branch can neither block nor commit later.
func (c *Controller) invokeWithDeadline(ctx context.Context, agent *store.Agent, req *store.Request, timeout time.Duration) (string, error) {
	system, user := buildInstructions(agent, req)

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		text, err := c.exec.Invoke(ctx, system, user)
		ch <- outcome{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.text, o.err
	case <-timer.C:
		return "", errDeadlineExceeded
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// commitFailure marks the request failed and releases the agent. The
// release is unconditional: it happens even when the request write fails.
func (c *Controller) commitFailure(ctx context.Context, requestID, agentID string) {
	commitCtx := context.WithoutCancel(ctx)
	if _, err := c.store.SetRequestStatus(commitCtx, requestID, store.RequestStatusFailed); err != nil {
		c.logger.Error("failed to mark request failed", "request_id", requestID, "error", err)
	}
	c.releaseAgent(ctx, agentID)
}

// releaseAgent returns a reserved agent to idle with its task cleared.
// Uses the agent id captured at reservation time, never a fresh query.
func (c *Controller) releaseAgent(ctx context.Context, agentID string) {
	commitCtx := context.WithoutCancel(ctx)
	if _, err := c.store.CompareAndSetAgentStatus(commitCtx, agentID, store.AgentStatusProcessing, store.AgentStatusIdle, ""); err != nil {
		c.logger.Error("failed to release agent", "agent_id", agentID, "error", err)
	}
}
