package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/session"
)

type fakeSession struct {
	snapshot  session.Snapshot
	records   []history.Record
	err       error
	profile   catalog.Profile
	names     []string
	questions []string
	cleared   bool
}

func (f *fakeSession) Connect(_ context.Context, profile catalog.Profile) (session.Snapshot, error) {
	f.profile = profile
	return f.snapshot, f.err
}

func (f *fakeSession) SelectDatabase(_ context.Context, name string) (session.Snapshot, error) {
	f.names = append(f.names, name)
	return f.snapshot, f.err
}

func (f *fakeSession) SelectTable(_ context.Context, name string) (session.Snapshot, error) {
	f.names = append(f.names, name)
	return f.snapshot, f.err
}

func (f *fakeSession) Ask(_ context.Context, question string) (history.Record, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return history.Record{}, f.err
	}
	record := history.Record{ID: "r1", Question: question, SQL: "SELECT 1", Summary: "One."}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeSession) Snapshot() session.Snapshot { return f.snapshot }

func (f *fakeSession) History() []history.Record { return f.records }

func (f *fakeSession) ClearHistory() {
	f.cleared = true
	f.records = nil
}

func serve(t *testing.T, svc SessionService, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(loadConfig(t), Dependencies{Session: svc})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestConnectPassesProfile(t *testing.T) {
	svc := &fakeSession{snapshot: session.Snapshot{Phase: session.PhaseConnected, Databases: []string{"Shop"}}}
	rr := serve(t, svc, http.MethodPost, "/v1/session/connect", `{"host":"db1\\SQLEXPRESS","port":"1433","username":"sa","password":"pw"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	want := catalog.Profile{Host: `db1\SQLEXPRESS`, Port: "1433", Username: "sa", Password: "pw"}
	if diff := cmp.Diff(want, svc.profile); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
	body := decodeBody(t, rr)
	if body["phase"] != "connected" {
		t.Fatalf("body = %#v", body)
	}
	if strings.Contains(rr.Body.String(), "pw") {
		t.Fatalf("password leaked in response: %s", rr.Body.String())
	}
}

func TestSessionErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		warning bool
	}{
		{name: "empty catalog", err: fmt.Errorf("no tables: %w", catalog.ErrEmpty), status: http.StatusUnprocessableEntity, code: "CATALOG_EMPTY", warning: true},
		{name: "missing table", err: catalog.ErrNotFound, status: http.StatusUnprocessableEntity, code: "TABLE_NOT_FOUND", warning: true},
		{name: "invalid input", err: fmt.Errorf("%w: name required", session.ErrInvalidInput), status: http.StatusBadRequest, code: "INVALID_INPUT"},
		{name: "invalid transition", err: session.ErrInvalidTransition, status: http.StatusConflict, code: "INVALID_TRANSITION"},
		{name: "connectivity", err: &catalog.ConnectivityError{Op: "connect to Shop", Err: errors.New("login failed")}, status: http.StatusBadGateway, code: "CONNECTIVITY_ERROR"},
		{name: "generation", err: &nl2sql.GenerationError{Err: errors.New("timeout")}, status: http.StatusBadGateway, code: "GENERATION_FAILED"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSession{err: tt.err, snapshot: session.Snapshot{Phase: session.PhaseConnected}}
			rr := serve(t, svc, http.MethodPost, "/v1/session/database", `{"name":"Shop"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["error_code"] != tt.code {
				t.Fatalf("error_code = %v", body["error_code"])
			}
			if tt.warning {
				extra, _ := body["context"].(map[string]any)
				if extra["level"] != "warning" || extra["session"] == nil {
					t.Fatalf("warning context = %#v", body["context"])
				}
			}
		})
	}
}

func TestSelectTableForwardsName(t *testing.T) {
	svc := &fakeSession{snapshot: session.Snapshot{Phase: session.PhaseTableSelected}}
	rr := serve(t, svc, http.MethodPost, "/v1/session/table", `{"name":"Orders"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if diff := cmp.Diff([]string{"Orders"}, svc.names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestAskReturnsRecord(t *testing.T) {
	svc := &fakeSession{}
	rr := serve(t, svc, http.MethodPost, "/v1/questions", `{"question":"how many orders"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["id"] != "r1" || body["question"] != "how many orders" {
		t.Fatalf("body = %#v", body)
	}
}

func TestHistoryAndClear(t *testing.T) {
	svc := &fakeSession{records: []history.Record{{ID: "a"}, {ID: "b"}}}
	rr := serve(t, svc, http.MethodGet, "/v1/history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if count := decodeBody(t, rr)["count"]; count != 2.0 {
		t.Fatalf("count = %v", count)
	}

	rr = serve(t, svc, http.MethodDelete, "/v1/history", "")
	if rr.Code != http.StatusNoContent || !svc.cleared {
		t.Fatalf("status = %d cleared = %v", rr.Code, svc.cleared)
	}
}

func TestSessionSnapshotEndpoint(t *testing.T) {
	svc := &fakeSession{snapshot: session.Snapshot{Phase: session.PhaseDisconnected, Databases: []string{}, Tables: []string{}}}
	rr := serve(t, svc, http.MethodGet, "/v1/session", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if phase := decodeBody(t, rr)["phase"]; phase != "disconnected" {
		t.Fatalf("phase = %v", phase)
	}
}
