// Package server exposes the session manager over HTTP. Routes and
// response shapes follow the service's JSON API: sessions are created and
// closed with immediate responses, queries are submitted fire-and-forget,
// and outcomes are observed by polling the session resource.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/entrhq/websearcher/pkg/logging"
	"github.com/entrhq/websearcher/pkg/session"
)

// Server is the HTTP facade over a session manager.
type Server struct {
	manager *session.Manager
	logger  *logging.Logger
	mux     *http.ServeMux
}

// New creates the HTTP server for manager.
func New(manager *session.Manager, logger *logging.Logger) *Server {
	s := &Server{
		manager: manager,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	s.mux.HandleFunc("POST /sessions/{id}/query", s.handleQuery)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// SessionResponse is the wire form of a session record.
type SessionResponse struct {
	SessionID    string  `json:"session_id"`
	Status       string  `json:"status"`
	PageURL      *string `json:"page_url"`
	CurrentQuery *string `json:"current_query"`
	Result       *string `json:"result"`
	Error        *string `json:"error"`
}

// QueryRequest is the payload for submitting a query.
type QueryRequest struct {
	Question string `json:"question"`
	MaxSteps int    `json:"max_steps"`
}

// QueryResponse acknowledges a dispatched query. Answer is always null
// here; the final answer is retrieved by polling the session.
type QueryResponse struct {
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Answer    *string `json:"answer"`
}

// SessionSummary is the per-session entry in list responses.
type SessionSummary struct {
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	PageURL   *string `json:"page_url"`
}

// ListResponse is the monitoring view of all live sessions.
type ListResponse struct {
	ActiveSessions int              `json:"active_sessions"`
	Sessions       []SessionSummary `json:"sessions"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	timeoutMinutes := 0
	if raw := r.URL.Query().Get("timeout_minutes"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "timeout_minutes must be a positive integer")
			return
		}
		timeoutMinutes = parsed
	}

	rec, err := s.manager.CreateSession(r.Context(), time.Duration(timeoutMinutes)*time.Minute)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create session: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, recordResponse(rec))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.CloseSession(id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Session closed"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recordResponse(rec))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	count, summaries := s.manager.ListSessions()

	resp := ListResponse{
		ActiveSessions: count,
		Sessions:       make([]SessionSummary, 0, len(summaries)),
	}
	for _, sum := range summaries {
		resp.Sessions = append(resp.Sessions, SessionSummary{
			SessionID: sum.ID,
			Status:    string(sum.Status),
			PageURL:   optional(sum.PageURL),
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.MaxSteps < 0 {
		s.writeError(w, http.StatusBadRequest, "max_steps must be a positive integer")
		return
	}

	if err := s.manager.SubmitQuery(id, req.Question, req.MaxSteps); err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, QueryResponse{
		SessionID: id,
		Status:    string(session.StatusProcessing),
	})
}

// writeSessionError maps session-layer errors onto HTTP statuses.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrSessionBusy):
		s.writeError(w, http.StatusConflict, "Session is already processing a query")
	case errors.Is(err, session.ErrSessionClosed):
		s.writeError(w, http.StatusConflict, "Session is closed")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

func recordResponse(rec session.Record) SessionResponse {
	return SessionResponse{
		SessionID:    rec.ID,
		Status:       string(rec.Status),
		PageURL:      optional(rec.PageURL()),
		CurrentQuery: optional(rec.CurrentQuery),
		Result:       optional(rec.Result),
		Error:        optional(rec.Error),
	}
}

// optional maps the record's empty-string "never set" convention onto JSON
// null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("not positive")
	}
	return n, nil
}
