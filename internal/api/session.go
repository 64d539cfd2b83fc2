package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/askdb/askdb/internal/assistant"
	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/session"
)

type connectRequest struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type questionRequest struct {
	Question string `json:"question"`
}

type sessionHandlers struct {
	session SessionService
	logger  *slog.Logger
}

func (h sessionHandlers) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h sessionHandlers) connect(w http.ResponseWriter, r *http.Request) {
	var request connectRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	snapshot, err := h.session.Connect(r.Context(), catalog.Profile{
		Host:     request.Host,
		Port:     request.Port,
		Username: request.Username,
		Password: request.Password,
	})
	if err != nil {
		h.writeSessionError(w, r, err, snapshot)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h sessionHandlers) selectDatabase(w http.ResponseWriter, r *http.Request) {
	var request nameRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	snapshot, err := h.session.SelectDatabase(r.Context(), request.Name)
	if err != nil {
		h.writeSessionError(w, r, err, snapshot)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h sessionHandlers) selectTable(w http.ResponseWriter, r *http.Request) {
	var request nameRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	snapshot, err := h.session.SelectTable(r.Context(), request.Name)
	if err != nil {
		h.writeSessionError(w, r, err, snapshot)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h sessionHandlers) ask(w http.ResponseWriter, r *http.Request) {
	var request questionRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	record, err := h.session.Ask(r.Context(), request.Question)
	if err != nil {
		h.writeSessionError(w, r, err, h.session.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h sessionHandlers) history(w http.ResponseWriter, _ *http.Request) {
	records := h.session.History()
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (h sessionHandlers) clearHistory(w http.ResponseWriter, _ *http.Request) {
	h.session.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// writeSessionError maps session failures onto the error envelope. Catalog
// warnings carry level "warning" and the unchanged session.
func (h sessionHandlers) writeSessionError(w http.ResponseWriter, r *http.Request, err error, snapshot session.Snapshot) {
	ctx := r.Context()
	var (
		connErr *catalog.ConnectivityError
		genErr  *nl2sql.GenerationError
	)
	switch {
	case errors.Is(err, catalog.ErrEmpty):
		writeError(ctx, w, http.StatusUnprocessableEntity, "CATALOG_EMPTY", err.Error(), false, warningContext(snapshot))
	case errors.Is(err, catalog.ErrNotFound):
		writeError(ctx, w, http.StatusUnprocessableEntity, "TABLE_NOT_FOUND", err.Error(), false, warningContext(snapshot))
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, assistant.ErrEmptyQuestion):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), false, nil)
	case errors.Is(err, session.ErrInvalidTransition):
		writeError(ctx, w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), false, map[string]any{"phase": snapshot.Phase})
	case errors.As(err, &connErr):
		writeError(ctx, w, http.StatusBadGateway, "CONNECTIVITY_ERROR", err.Error(), true, map[string]any{"operation": connErr.Op})
	case errors.As(err, &genErr):
		writeError(ctx, w, http.StatusBadGateway, "GENERATION_FAILED", err.Error(), true, nil)
	default:
		h.logger.Error("session request failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "request failed", false, map[string]any{"details": err.Error()})
	}
}

func warningContext(snapshot session.Snapshot) map[string]any {
	return map[string]any{"level": "warning", "session": snapshot}
}
