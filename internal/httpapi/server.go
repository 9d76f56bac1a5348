package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/aegis/internal/audit"
	"github.com/antoniostano/aegis/internal/config"
	"github.com/antoniostano/aegis/internal/memory"
	"github.com/antoniostano/aegis/internal/observability"
	"github.com/antoniostano/aegis/internal/orchestrator"
	"github.com/antoniostano/aegis/internal/retrieval"
	"github.com/antoniostano/aegis/internal/session"
)

// TurnRunner executes one user turn through the moderation pipeline.
type TurnRunner interface {
	SubmitTurn(ctx context.Context, sessionID, text string) (orchestrator.Result, error)
}

// AuditReader exposes recent audit records to the read API.
type AuditReader interface {
	Recent(limit int) []audit.Record
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	runner   TurnRunner
	store    memory.Store
	auditor  AuditReader
	seeder   retrieval.Seeder
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(
	cfg config.Config,
	sessions *session.Manager,
	runner TurnRunner,
	store memory.Store,
	auditor AuditReader,
	seeder retrieval.Seeder,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		runner:   runner,
		store:    store,
		auditor:  auditor,
		seeder:   seeder,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same origin
				// unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/session", s.handleCreateSession)
	r.Post("/v1/chat/session/{id}/end", s.handleEndSession)
	r.Post("/v1/chat/session/{id}/turn", s.handleTurn)
	r.Get("/v1/chat/session/{id}/history", s.handleHistory)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/audit/records", s.handleAuditRecords)
	r.Get("/v1/perf/turns", s.handlePerfTurns)
	r.Post("/v1/documents", s.handleSeedDocument)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"retrieval_enabled": s.seeder != nil,
	})
}

type createSessionResponse struct {
	SessionID       string         `json:"session_id"`
	Status          session.Status `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	InactivityTTLMS int64          `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       sess.ID,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

type turnRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.runner.SubmitTurn(r.Context(), id, req.Text)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyInput) {
			respondError(w, http.StatusBadRequest, "empty_text", "turn text is required")
			return
		}
		// The turn is already audited; tell the client to retry.
		respondJSON(w, http.StatusBadGateway, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	// Reading history counts as activity for the inactivity janitor. The
	// session may already be gone; history is still served from the store.
	_ = s.sessions.Touch(id)

	turns, err := s.store.History(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) handleAuditRecords(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "audit read API not configured")
		return
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": s.auditor.Recent(limit),
	})
}

func (s *Server) handlePerfTurns(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.TurnStageSnapshotNow())
}

type seedDocumentRequest struct {
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
}

func (s *Server) handleSeedDocument(w http.ResponseWriter, r *http.Request) {
	if s.seeder == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "retrieval backend does not accept documents")
		return
	}

	var req seedDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_text", "document text is required")
		return
	}

	if err := s.seeder.Add(r.Context(), req.DocID, req.Text); err != nil {
		respondError(w, http.StatusInternalServerError, "seed_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"status": "stored"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
