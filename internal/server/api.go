// ABOUTME: HTTP API handlers exposing dispatch, agent, and request operations
// ABOUTME: JSON request/response surface consumed by the dashboard

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/taskdesk/internal/dispatch"
	"github.com/2389/taskdesk/internal/store"
)

// DispatchRequest is the JSON request body for POST /api/dispatch.
type DispatchRequest struct {
	RequestID      string `json:"request_id"`
	AgentID        string `json:"agent_id,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// DispatchResponse is the JSON response for POST /api/dispatch.
type DispatchResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
}

// CreateAgentRequest is the JSON request body for POST /api/agents.
type CreateAgentRequest struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// AgentResponse is the JSON response shape for agent reads.
type AgentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status"`
	CurrentTask string `json:"current_task,omitempty"`
	LastActive  string `json:"last_active"`
}

// CreateRequestRequest is the JSON request body for POST /api/requests.
type CreateRequestRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// RequestResponse is the JSON response shape for request reads.
type RequestResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at"`
}

// reasonStatusCodes maps dispatch failure reasons to HTTP status codes.
var reasonStatusCodes = map[dispatch.Reason]int{
	dispatch.ReasonRequestNotFound:  http.StatusNotFound,
	dispatch.ReasonRequestClosed:    http.StatusConflict,
	dispatch.ReasonNoAgentAvailable: http.StatusServiceUnavailable,
	dispatch.ReasonExecutionTimeout: http.StatusGatewayTimeout,
	dispatch.ReasonExecutionFailure: http.StatusBadGateway,
}

// handleDispatch handles POST /api/dispatch requests: it runs one full
// dispatch attempt synchronously and reports the terminal outcome.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RequestID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "request_id is required")
		return
	}
	if req.TimeoutSeconds < 0 {
		s.sendJSONError(w, http.StatusBadRequest, "timeout_seconds must not be negative")
		return
	}

	ticket := dispatch.Ticket{
		RequestID: req.RequestID,
		AgentID:   req.AgentID,
		Timeout:   time.Duration(req.TimeoutSeconds) * time.Second,
	}

	result, err := s.controller.Dispatch(r.Context(), ticket)
	if err != nil {
		var dispatchErr *dispatch.Error
		if errors.As(err, &dispatchErr) {
			status, ok := reasonStatusCodes[dispatchErr.Reason]
			if !ok {
				status = http.StatusInternalServerError
			}
			s.writeJSON(w, status, DispatchResponse{
				Success:   false,
				RequestID: dispatchErr.RequestID,
				Error:     string(dispatchErr.Reason),
				Details:   dispatchErr.Detail,
			})
			return
		}

		s.logger.Error("dispatch failed", "request_id", req.RequestID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, DispatchResponse{
		Success:   true,
		RequestID: result.RequestID,
		AgentID:   result.AgentID,
		AgentName: result.AgentName,
		Result:    result.Output,
	})
}

// handleAgents handles GET (list) and POST (create) on /api/agents.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := s.store.ListAgents(r.Context())
		if err != nil {
			s.logger.Error("failed to list agents", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		response := make([]AgentResponse, 0, len(agents))
		for _, a := range agents {
			response = append(response, agentResponse(a))
		}
		s.writeJSON(w, http.StatusOK, response)

	case http.MethodPost:
		var req CreateAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			s.sendJSONError(w, http.StatusBadRequest, "name is required")
			return
		}

		now := time.Now().UTC()
		agent := &store.Agent{
			ID:         uuid.New().String(),
			Name:       req.Name,
			Role:       req.Role,
			Status:     store.AgentStatusIdle,
			LastActive: now,
			CreatedAt:  now,
		}
		if err := s.store.CreateAgent(r.Context(), agent); err != nil {
			s.logger.Error("failed to create agent", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.writeJSON(w, http.StatusCreated, agentResponse(agent))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleAgentByID handles GET /api/agents/{id}.
func (s *Server) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	if id == "" || strings.Contains(id, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	agent, err := s.store.GetAgent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get agent", "agent_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, agentResponse(agent))
}

// handleRequests handles GET (list) and POST (create) on /api/requests.
func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requests, err := s.store.ListRequests(r.Context(), 100)
		if err != nil {
			s.logger.Error("failed to list requests", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		response := make([]RequestResponse, 0, len(requests))
		for _, req := range requests {
			response = append(response, requestResponse(req))
		}
		s.writeJSON(w, http.StatusOK, response)

	case http.MethodPost:
		var req CreateRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Title == "" {
			s.sendJSONError(w, http.StatusBadRequest, "title is required")
			return
		}

		now := time.Now().UTC()
		record := &store.Request{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			Status:      store.RequestStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreateRequest(r.Context(), record); err != nil {
			s.logger.Error("failed to create request", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.writeJSON(w, http.StatusCreated, requestResponse(record))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleRequestByID handles GET /api/requests/{id}.
func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	if id == "" || strings.Contains(id, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	record, err := s.store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get request", "request_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, requestResponse(record))
}

func agentResponse(a *store.Agent) AgentResponse {
	return AgentResponse{
		ID:          a.ID,
		Name:        a.Name,
		Role:        a.Role,
		Status:      a.Status,
		CurrentTask: a.CurrentTask,
		LastActive:  a.LastActive.UTC().Format(time.RFC3339),
	}
}

func requestResponse(r *store.Request) RequestResponse {
	return RequestResponse{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
