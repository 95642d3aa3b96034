package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tictacroom/internal/models"
)

// SessionCreator creates live sessions.
type SessionCreator interface {
	Create(ctx context.Context) (string, error)
}

// RecordLister reads durable session records.
type RecordLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.Record, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// healthTimeout bounds all checks of one /health request.
const healthTimeout = 2 * time.Second

// Handler handles HTTP requests
type Handler struct {
	sessions SessionCreator
	records  RecordLister
	checks   map[string]HealthCheck
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(sessions SessionCreator, records RecordLister, logger *zap.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		records:  records,
		checks:   make(map[string]HealthCheck),
		logger:   logger.Named("api"),
	}
}

// RegisterRoutes sets up the routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/api/sessions", h.handleCreateSession)
	r.Get("/api/sessions", h.handleListSessions)
}

// AddHealthCheck registers a dependency probed by /health. Call before serving.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

type healthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{OK: true}
	for name, check := range h.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(h.checks))
		}
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			resp.OK = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	h.respondJSON(w, status, resp)
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// handleCreateSession creates a new empty session
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.respondJSON(w, http.StatusCreated, createSessionResponse{ID: id})
}

// handleListSessions lists the most recent durable records
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.records.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	h.respondJSON(w, http.StatusOK, records)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("encode response failed", zap.Error(err))
	}
}

// CORSMiddleware answers preflight requests and sets CORS headers for the
// allowed origins. "*" allows any origin.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(allowedOrigins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(allowedOrigins, origin):
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "))
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
