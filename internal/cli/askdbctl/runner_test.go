package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type capturedRequest struct {
	Method string
	Path   string
	Body   map[string]string
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&got.Body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunRequestCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want capturedRequest
	}{
		{name: "health", args: []string{"health"}, want: capturedRequest{Method: http.MethodGet, Path: "/v1/health"}},
		{name: "ready", args: []string{"ready"}, want: capturedRequest{Method: http.MethodGet, Path: "/v1/ready"}},
		{name: "session", args: []string{"session"}, want: capturedRequest{Method: http.MethodGet, Path: "/v1/session"}},
		{name: "history", args: []string{"history"}, want: capturedRequest{Method: http.MethodGet, Path: "/v1/history"}},
		{name: "clear history", args: []string{"clear-history"}, want: capturedRequest{Method: http.MethodDelete, Path: "/v1/history"}},
		{
			name: "use",
			args: []string{"use", "Sales"},
			want: capturedRequest{Method: http.MethodPost, Path: "/v1/session/database", Body: map[string]string{"name": "Sales"}},
		},
		{
			name: "table",
			args: []string{"table", "Orders"},
			want: capturedRequest{Method: http.MethodPost, Path: "/v1/session/table", Body: map[string]string{"name": "Orders"}},
		},
		{
			name: "ask joins words",
			args: []string{"ask", "how", "many", "orders?"},
			want: capturedRequest{Method: http.MethodPost, Path: "/v1/questions", Body: map[string]string{"question": "how many orders?"}},
		},
		{
			name: "connect",
			args: []string{"connect", "--host", `db1\SQLEXPRESS`, "--port", "1433", "--username", "sa", "--password", "pw"},
			want: capturedRequest{
				Method: http.MethodPost,
				Path:   "/v1/session/connect",
				Body:   map[string]string{"host": `db1\SQLEXPRESS`, "port": "1433", "username": "sa", "password": "pw"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newRecordingServer(t, http.StatusOK, `{"status":"ok"}`)
			var stdout, stderr bytes.Buffer
			args := append([]string{"--base-url", srv.URL}, tc.args...)
			code := Run(context.Background(), args, Options{Stdout: &stdout, Stderr: &stderr, Timeout: 2 * time.Second})
			if code != 0 {
				t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
			}
			if diff := cmp.Diff(tc.want, *got); diff != "" {
				t.Fatalf("request mismatch (-want +got):\n%s", diff)
			}
			if !strings.Contains(stdout.String(), `"status": "ok"`) {
				t.Fatalf("stdout = %q, want pretty JSON", stdout.String())
			}
		})
	}
}

func TestRunConnectReadsPasswordFromStdin(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{}`)
	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"connect", "--host", "db1", "--username", "sa", "--password-stdin",
	}, Options{Stdin: strings.NewReader("s3cret\n")})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.Body["password"] != "s3cret" {
		t.Fatalf("password = %q", got.Body["password"])
	}
}

func TestRunConnectFallsBackToDefaultPassword(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{}`)
	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"connect", "--host", "db1", "--username", "sa",
	}, Options{Password: "from-env"})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.Body["password"] != "from-env" {
		t.Fatalf("password = %q", got.Body["password"])
	}
}

func TestRunReturnsErrorCodeOnHTTPFailure(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusConflict, `{"error_code":"INVALID_TRANSITION"}`)
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "table", "Orders"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "http 409") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"unknown"},
		{"use"},
		{"ask"},
		{"connect", "--host", "db1"},
	}
	for _, args := range tests {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("Run(%q) exit code = %d, want 2 (stderr=%s)", args, code, stderr.String())
		}
	}
}

func TestRunSanitizeIsLocal(t *testing.T) {
	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"sanitize"}, Options{
		Stdin:  strings.NewReader("```sql\nSELECT `Name` FROM Orders\n```"),
		Stdout: &stdout,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got := strings.TrimSpace(stdout.String()); got != "SELECT [Name] FROM Orders" {
		t.Fatalf("sanitize output = %q", got)
	}
}
