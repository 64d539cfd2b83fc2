package ui

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/askdb/askdb/internal/observability"
)

const (
	formTokenCookie = "askdb_csrf"
	formTokenField  = "csrf_token"
	formTokenHeader = "X-CSRF-Token"
	formTokenBytes  = 32
)

type formTokenKey struct{}

// IssueFormToken makes sure the browser holds a form token cookie and exposes
// the token to the page renderer.
func (h *Handler) IssueFormToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := cookieFormToken(r)
		if token == "" {
			fresh, err := newFormToken()
			if err != nil {
				observability.LoggerOrDiscard(h.Logger).Error("issue form token", slog.Any("error", err))
				renderHTML(w, http.StatusInternalServerError, errorPage("askdb is unavailable", "Could not start a console session. Try again."))
				return
			}
			token = fresh
			http.SetCookie(w, &http.Cookie{
				Name:     formTokenCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   h.Production,
				SameSite: http.SameSiteStrictMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), formTokenKey{}, token)))
	})
}

// VerifyFormToken rejects console posts whose csrf_token field (or
// X-CSRF-Token header) does not match the cookie.
func (h *Handler) VerifyFormToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		expected := cookieFormToken(r)
		submitted := strings.TrimSpace(r.Header.Get(formTokenHeader))
		if submitted == "" {
			_ = r.ParseForm()
			submitted = strings.TrimSpace(r.Form.Get(formTokenField))
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) != 1 {
			observability.LoggerOrDiscard(h.Logger).Warn("rejected console form",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("path", r.URL.Path),
				slog.Bool("cookie_present", expected != ""),
			)
			renderHTML(w, http.StatusForbidden, errorPage("Form expired", "Reload the askdb console and submit the form again."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestFormToken is the token the page embeds in every form.
func requestFormToken(r *http.Request) string {
	if token, ok := r.Context().Value(formTokenKey{}).(string); ok && token != "" {
		return token
	}
	return cookieFormToken(r)
}

func formTokenInput(token string) gomponents.Node {
	return html.Input(html.Type("hidden"), html.Name(formTokenField), html.Value(token))
}

func cookieFormToken(r *http.Request) string {
	cookie, err := r.Cookie(formTokenCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func newFormToken() (string, error) {
	raw := make([]byte, formTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
