package ui

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	gomponents "maragu.dev/gomponents"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/session"
)

type Session interface {
	Connect(ctx context.Context, profile catalog.Profile) (session.Snapshot, error)
	SelectDatabase(ctx context.Context, name string) (session.Snapshot, error)
	SelectTable(ctx context.Context, name string) (session.Snapshot, error)
	Ask(ctx context.Context, question string) (history.Record, error)
	Snapshot() session.Snapshot
	History() []history.Record
	ClearHistory()
}

// Handler serves the single-page browser console.
type Handler struct {
	Session     Session
	GridColumns int
	Production  bool
	Logger      *slog.Logger
}

func NewHandler(s Session, cfg config.UIConfig, logger *slog.Logger) *Handler {
	columns := cfg.TableGridColumns
	if columns <= 0 {
		columns = 5
	}
	return &Handler{
		Session:     s,
		GridColumns: columns,
		Production:  cfg.SecureCookies,
		Logger:      observability.LoggerOrDiscard(logger),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Handle("/static/*", http.StripPrefix("/static", staticHandler()))
	r.Group(func(r chi.Router) {
		r.Use(h.IssueFormToken, h.VerifyFormToken)
		r.Get("/", h.Home)
		r.Post("/connect", h.Connect)
		r.Post("/database", h.SelectDatabase)
		r.Post("/table", h.SelectTable)
		r.Post("/ask", h.Ask)
		r.Post("/history/clear", h.ClearHistory)
	})
	return r
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, notice{})
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	profile := catalog.Profile{
		Host:     r.Form.Get("host"),
		Port:     r.Form.Get("port"),
		Username: r.Form.Get("username"),
		Password: r.Form.Get("password"),
	}
	snapshot, err := h.Session.Connect(r.Context(), profile)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, notice{Level: levelInfo, Message: "Connected to " + snapshot.Host + "."})
}

func (h *Handler) SelectDatabase(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	snapshot, err := h.Session.SelectDatabase(r.Context(), r.Form.Get("database"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, notice{Level: levelInfo, Message: "Using database " + snapshot.Context.Database + "."})
}

func (h *Handler) SelectTable(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	snapshot, err := h.Session.SelectTable(r.Context(), r.Form.Get("table"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, notice{Level: levelInfo, Message: "Selected " + snapshot.Context.SchemaName + "." + snapshot.Context.Table + "."})
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	record, err := h.Session.Ask(r.Context(), r.Form.Get("question"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if record.Failed {
		h.render(w, r, http.StatusOK, notice{Level: levelError, Message: record.Summary})
		return
	}
	h.render(w, r, http.StatusOK, notice{})
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.Session.ClearHistory()
	h.render(w, r, http.StatusOK, notice{Level: levelInfo, Message: "History cleared."})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, n notice) {
	model := pageModel{
		Snapshot:    h.Session.Snapshot(),
		History:     history.NewestFirst(h.Session.History()),
		GridColumns: h.GridColumns,
		Notice:      n,
	}
	renderHTML(w, status, consolePage(model, requestFormToken(r)))
}

// renderError keeps the page usable: warnings and failures become a notice
// above the unchanged session.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	n := notice{Level: levelError, Message: err.Error()}
	if catalog.IsWarning(err) {
		n.Level = levelWarning
	} else {
		h.Logger.Warn("ui action failed",
			slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	h.render(w, r, http.StatusOK, n)
}

func parseFormOrRenderBadRequest(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		renderHTML(w, http.StatusBadRequest, errorPage("Bad Request", "Could not read the submitted form."))
		return false
	}
	for key, values := range r.Form {
		if key == "password" {
			continue
		}
		for i := range values {
			r.Form[key][i] = strings.TrimSpace(values[i])
		}
	}
	return true
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}
