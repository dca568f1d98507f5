// Package api provides the Admin HTTP API for trigger and queue management.
//
// All routes are mounted under a configurable prefix (default: /triggers).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/store"
)

// Handler is the root HTTP handler for the trigger admin API.
type Handler struct {
	trigger *trigger.Trigger
	store   store.Store
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewHandler creates a new admin API handler.
func NewHandler(t *trigger.Trigger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		trigger: t,
		store:   t.Store(),
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Event queue
	h.mux.HandleFunc("POST /events", h.createEvent)
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)
	h.mux.HandleFunc("GET /events/{id}/invocations", h.listEventInvocations)

	// Scheduled event queue
	h.mux.HandleFunc("POST /scheduled-events", h.createScheduledEvent)
	h.mux.HandleFunc("GET /scheduled-events", h.listScheduledEvents)
	h.mux.HandleFunc("GET /scheduled-events/{id}", h.getScheduledEvent)
	h.mux.HandleFunc("DELETE /scheduled-events/{id}", h.cancelScheduledEvent)
	h.mux.HandleFunc("GET /scheduled-events/{id}/invocations", h.listScheduledInvocations)

	// Scheduled trigger configuration
	h.mux.HandleFunc("PUT /scheduled-triggers", h.upsertScheduledTrigger)
	h.mux.HandleFunc("GET /scheduled-triggers", h.listScheduledTriggers)
	h.mux.HandleFunc("DELETE /scheduled-triggers/{name}", h.deleteScheduledTrigger)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}
