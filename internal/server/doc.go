// Package server orchestrates the taskdesk server components.
//
// # Overview
//
// The server package is the central coordinator of the taskdesk server. It
// owns and wires all major components: the SQLite-backed store, the remote
// chat-model executor, the dispatch engine and controller, and the HTTP API
// the dashboard calls.
//
// # Server Struct
//
// The Server struct is the main entry point:
//
//	type Server struct {
//	    config     *config.Config
//	    store      store.Store
//	    controller *dispatch.Controller
//	    httpServer *http.Server
//	    logger     *slog.Logger
//	}
//
// New builds a production Server from configuration; tests wire mock
// dependencies through newWithDeps.
//
// # HTTP API
//
// The server exposes JSON endpoints in api.go:
//
//   - POST /api/dispatch - Assign a request to an agent and execute it
//   - GET  /api/agents - List agents
//   - POST /api/agents - Register an agent
//   - GET  /api/agents/{id} - Fetch one agent
//   - GET  /api/requests - List recent requests
//   - POST /api/requests - Create a pending request
//   - GET  /api/requests/{id} - Fetch one request
//   - GET  /health - Liveness check
//   - GET  /health/ready - Readiness check (store probe)
//
// # Dispatch Error Mapping
//
// Dispatch failures carry a machine-readable reason, mapped onto HTTP
// status codes:
//
//   - RequestNotFound  -> 404
//   - RequestClosed    -> 409
//   - NoAgentAvailable -> 503
//   - ExecutionTimeout -> 504
//   - ExecutionFailure -> 502
//
// Failure bodies keep the same DispatchResponse shape with success=false
// and the reason in the error field, so dashboard clients handle both
// outcomes with one decoder.
//
// # Lifecycle
//
// Run listens on the configured address and serves until the context is
// cancelled, then shuts down gracefully with a fresh five second budget
// and closes the store. Signal handling lives in cmd/taskdesk.
package server
