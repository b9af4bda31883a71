// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides agent/request persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Serialize writers so concurrent conditional updates queue instead of
	// failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'idle',
			current_task TEXT NOT NULL DEFAULT '',
			last_active DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_agents_status
			ON agents(status);

		CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_requests_status
			ON requests(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateAgent inserts a new agent record
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	query := `
		INSERT INTO agents (id, name, role, status, current_task, last_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Role,
		agent.Status,
		agent.CurrentTask,
		agent.LastActive,
		agent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("agent created", "agent_id", agent.ID, "name", agent.Name)
	return nil
}

// GetAgent retrieves an agent by ID
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	query := `
		SELECT id, name, role, status, current_task, last_active, created_at
		FROM agents WHERE id = ?
	`
	return s.scanAgent(s.db.QueryRowContext(ctx, query, id))
}

// ListAgents returns all agents ordered by creation time
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	query := `
		SELECT id, name, role, status, current_task, last_active, created_at
		FROM agents ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.Status, &a.CurrentTask, &a.LastActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agents = append(agents, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agents: %w", err)
	}
	return agents, nil
}

// FindIdleAgent returns an idle agent. With a non-empty id only that agent
// qualifies; otherwise the least recently active idle agent is returned.
func (s *SQLiteStore) FindIdleAgent(ctx context.Context, id string) (*Agent, error) {
	if id != "" {
		query := `
			SELECT id, name, role, status, current_task, last_active, created_at
			FROM agents WHERE id = ? AND status = ?
		`
		return s.scanAgent(s.db.QueryRowContext(ctx, query, id, AgentStatusIdle))
	}

	query := `
		SELECT id, name, role, status, current_task, last_active, created_at
		FROM agents WHERE status = ?
		ORDER BY last_active, id
		LIMIT 1
	`
	return s.scanAgent(s.db.QueryRowContext(ctx, query, AgentStatusIdle))
}

// CompareAndSetAgentStatus performs the conditional status transition.
// The guard and the update are a single UPDATE statement, so at most one
// concurrent caller with the same expected status observes a row change.
func (s *SQLiteStore) CompareAndSetAgentStatus(ctx context.Context, id, expected, next, currentTask string) (*Agent, error) {
	query := `
		UPDATE agents
		SET status = ?, current_task = ?, last_active = ?
		WHERE id = ? AND status = ?
	`
	res, err := s.db.ExecContext(ctx, query, next, currentTask, time.Now().UTC(), id, expected)
	if err != nil {
		return nil, fmt.Errorf("updating agent status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing agent.
		if _, err := s.GetAgent(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	agent, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("agent status changed",
		"agent_id", id,
		"from", expected,
		"to", next,
		"current_task", currentTask,
	)
	return agent, nil
}

// CreateRequest inserts a new request record
func (s *SQLiteStore) CreateRequest(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO requests (id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.Title,
		req.Description,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}

	s.logger.Debug("request created", "request_id", req.ID, "title", req.Title)
	return nil
}

// GetRequest retrieves a request by ID
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	query := `
		SELECT id, title, description, status, created_at, updated_at
		FROM requests WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)

	var r Request
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning request: %w", err)
	}
	return &r, nil
}

// ListRequests returns requests ordered by most recently updated
func (s *SQLiteStore) ListRequests(ctx context.Context, limit int) ([]*Request, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, title, description, status, created_at, updated_at
		FROM requests ORDER BY updated_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return requests, nil
}

// SetRequestStatus updates the request status and stamps updated_at
func (s *SQLiteStore) SetRequestStatus(ctx context.Context, id, status string) (*Request, error) {
	query := `
		UPDATE requests SET status = ?, updated_at = ? WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating request status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("request status changed", "request_id", id, "status", status)
	return s.GetRequest(ctx, id)
}

// CompareAndSetRequestStatus performs the conditional status transition.
// As with agents, the guard and the update are a single UPDATE statement,
// so concurrent dispatch attempts racing for one pending request produce
// exactly one winner.
func (s *SQLiteStore) CompareAndSetRequestStatus(ctx context.Context, id, expected, next string) (*Request, error) {
	query := `
		UPDATE requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`
	res, err := s.db.ExecContext(ctx, query, next, time.Now().UTC(), id, expected)
	if err != nil {
		return nil, fmt.Errorf("updating request status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing request.
		if _, err := s.GetRequest(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	s.logger.Debug("request status changed",
		"request_id", id,
		"from", expected,
		"to", next,
	)
	return s.GetRequest(ctx, id)
}

// scanAgent scans a single agent row, mapping sql.ErrNoRows to ErrNotFound
func (s *SQLiteStore) scanAgent(row *sql.Row) (*Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Status, &a.CurrentTask, &a.LastActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}
	return &a, nil
}
