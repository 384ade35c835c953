// Package httpapi is the HTTP edge of the orchestrator: session CRUD, run
// submission, and the progress WebSocket. Handlers stay thin; all research
// semantics live in the workflow and the session store.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/horizon-research/horizon/internal/health"
	"github.com/horizon-research/horizon/internal/models"
	"github.com/horizon-research/horizon/internal/session"
	"github.com/horizon-research/horizon/internal/streaming"
	"github.com/horizon-research/horizon/internal/workflows"
)

// WorkflowStarter is the slice of the Temporal client the server needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Server serves the public API.
type Server struct {
	temporal  WorkflowStarter
	store     session.Store
	hub       *streaming.Hub
	health    *health.Manager
	taskQueue string
	auth      *Authenticator
	logger    *zap.Logger
}

// NewServer wires the API surface. auth and hm may be nil (authentication
// disabled, no dependency probes).
func NewServer(temporal WorkflowStarter, store session.Store, hub *streaming.Hub, hm *health.Manager, taskQueue string, auth *Authenticator, logger *zap.Logger) *Server {
	return &Server{
		temporal:  temporal,
		store:     store,
		hub:       hub,
		health:    hm,
		taskQueue: taskQueue,
		auth:      auth,
		logger:    logger,
	}
}

// Routes returns the routed handler with authentication applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", s.handleAppendMessage)
	mux.HandleFunc("POST /api/v1/research", s.handleStartResearch)
	mux.HandleFunc("GET /api/v1/stream/ws", s.handleWS)

	if s.auth != nil {
		return s.auth.Middleware(mux)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	report, healthy := s.health.Evaluate(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type createSessionRequest struct {
	Title   string              `json:"title"`
	Profile models.UserProfile  `json:"profile"`
	Report  models.ReportConfig `json:"report_config"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = "New Research"
	}
	if req.Report.Template == "" {
		req.Report.Template = models.TemplateSimple
	}
	if req.Report.CitationStyle == "" {
		req.Report.CitationStyle = models.StyleAPA
	}

	sess, err := s.store.CreateSession(r.Context(), uuid.NewString(), req.Title, req.Profile, req.Report)
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("Failed to load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type appendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	id := r.PathValue("id")
	if err := s.store.AppendMessage(r.Context(), id, models.RoleUser, req.Content, nil); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("Failed to append message", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to append message")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type startResearchRequest struct {
	SessionID string              `json:"session_id"`
	Goal      string              `json:"goal"`
	Mode      models.ResearchMode `json:"mode"`
}

type startResearchResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// handleStartResearch submits a run. The workflow ID is derived from the
// session ID, so a second submission while a run is active is rejected
// instead of racing the first.
func (s *Server) handleStartResearch(w http.ResponseWriter, r *http.Request) {
	var req startResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Goal) == "" {
		writeError(w, http.StatusBadRequest, "session_id and goal are required")
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeStandard
	}

	if _, err := s.store.GetSession(r.Context(), req.SessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	run, err := s.temporal.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
		ID:        "research-" + req.SessionID,
		TaskQueue: s.taskQueue,
	}, workflows.ResearchWorkflow, workflows.ResearchInput{
		SessionID: req.SessionID,
		Goal:      req.Goal,
		Mode:      req.Mode,
	})
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			writeError(w, http.StatusConflict, "a research run is already active for this session")
			return
		}
		s.logger.Error("Failed to start research workflow",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to start research")
		return
	}

	s.logger.Info("Research run submitted",
		zap.String("session_id", req.SessionID),
		zap.String("workflow_id", run.GetID()),
		zap.String("mode", string(req.Mode)),
	)
	writeJSON(w, http.StatusAccepted, startResearchResponse{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
