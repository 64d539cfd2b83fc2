package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

// SessionService is the conversation the API drives.
type SessionService interface {
	Connect(ctx context.Context, profile catalog.Profile) (session.Snapshot, error)
	SelectDatabase(ctx context.Context, name string) (session.Snapshot, error)
	SelectTable(ctx context.Context, name string) (session.Snapshot, error)
	Ask(ctx context.Context, question string) (history.Record, error)
	Snapshot() session.Snapshot
	History() []history.Record
	ClearHistory()
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Session           SessionService
	UI                http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(observability.TraceMiddleware, observability.MetricsMiddleware)
	if deps.Logger != nil {
		r.Use(observability.LoggingMiddleware(deps.Logger))
	}

	r.Get("/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	r.Get("/v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	r.Method(http.MethodGet, "/v1/metrics", promhttp.Handler())

	r.Post("/v1/sql/sanitize", handleSanitize)

	r.Group(func(r chi.Router) {
		r.Use(requireSession(deps.Session))
		h := sessionHandlers{session: deps.Session, logger: observability.LoggerOrDiscard(deps.Logger)}
		r.Get("/v1/session", h.snapshot)
		r.Post("/v1/session/connect", h.connect)
		r.Post("/v1/session/database", h.selectDatabase)
		r.Post("/v1/session/table", h.selectTable)
		r.Post("/v1/questions", h.ask)
		r.Get("/v1/history", h.history)
		r.Delete("/v1/history", h.clearHistory)
	})

	if deps.UI != nil {
		r.Mount("/", deps.UI)
	}
	return r
}

// CheckOracle pings the oracle when it supports it.
func CheckOracle(oracle nl2sql.Oracle) ReadinessCheck {
	pinger, ok := oracle.(nl2sql.Pinger)
	if !ok {
		return nil
	}
	return pinger.Ping
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireSession(svc SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				writeError(r.Context(), w, http.StatusNotImplemented, "SESSION_NOT_CONFIGURED", "session is not configured", false, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type sanitizeRequest struct {
	Text string `json:"text"`
}

func handleSanitize(w http.ResponseWriter, r *http.Request) {
	var request sanitizeRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sql": nl2sql.Sanitize(request.Text)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
