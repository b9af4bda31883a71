// ABOUTME: Store interface and data types for taskdesk persistence
// ABOUTME: Defines Agent, Request structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
// or, for FindIdleAgent, when no agent matches the idle criteria.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional status update loses a race:
// the record exists but its status no longer matches the expected value.
var ErrConflict = errors.New("status conflict")

// Agent status constants
const (
	AgentStatusIdle       = "idle"       // Available for work
	AgentStatusProcessing = "processing" // Bound to exactly one request
	AgentStatusOffline    = "offline"    // Not eligible for assignment
)

// Request status constants. Progression is monotonic:
// pending -> processing -> completed | failed.
const (
	RequestStatusPending    = "pending"
	RequestStatusProcessing = "processing"
	RequestStatusCompleted  = "completed"
	RequestStatusFailed     = "failed"
)

// Agent represents one unit of processing capacity.
type Agent struct {
	ID          string
	Name        string
	Role        string // free-form category, e.g. "ANALYST"
	Status      string // idle, processing, offline
	CurrentTask string // set only while processing
	LastActive  time.Time
	CreatedAt   time.Time
}

// Request represents a unit of work to be executed by exactly one agent.
type Request struct {
	ID          string
	Title       string
	Description string
	Status      string // pending, processing, completed, failed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store defines the interface for agent and request persistence.
//
// CompareAndSetAgentStatus and CompareAndSetRequestStatus are the only
// ways a status may change. Implementations must guarantee that the
// status guard and the update are a single atomic operation; a plain
// read-then-write is a defect.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)

	// FindIdleAgent returns an agent with status idle. If id is non-empty,
	// only that specific agent qualifies; otherwise the oldest-active idle
	// agent is returned. Returns ErrNotFound when no agent matches.
	FindIdleAgent(ctx context.Context, id string) (*Agent, error)

	// CompareAndSetAgentStatus transitions the agent from expected to next
	// status, sets current_task, and stamps last_active. At most one
	// concurrent caller with the same expected status can succeed; losers
	// receive ErrConflict. Returns the agent as of the update.
	CompareAndSetAgentStatus(ctx context.Context, id, expected, next, currentTask string) (*Agent, error)

	// Requests
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListRequests(ctx context.Context, limit int) ([]*Request, error)

	// SetRequestStatus updates the request status and stamps updated_at.
	SetRequestStatus(ctx context.Context, id, status string) (*Request, error)

	// CompareAndSetRequestStatus transitions the request from expected to
	// next status and stamps updated_at. At most one concurrent caller
	// with the same expected status can succeed; losers receive
	// ErrConflict. Returns the request as of the update.
	CompareAndSetRequestStatus(ctx context.Context, id, expected, next string) (*Request, error)

	// Close releases any resources held by the store
	Close() error
}
