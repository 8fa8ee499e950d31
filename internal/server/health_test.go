package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakePinger is a scripted dependency probe.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s := newTestServer(t)
	s.pingers = pingers
	return s
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) readinessReport {
	t.Helper()
	var report readinessReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode readiness report: %v", err)
	}
	return report
}

func Test_HandleHealth_AlwaysOK(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("want application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("want status ok, got %q", body["status"])
	}
}

func Test_HandleReady_NoDependenciesIsReady(t *testing.T) {
	t.Parallel()
	s := newReadyTestServer(t)

	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d — body: %s", w.Code, w.Body.String())
	}
	report := decodeReport(t, w)
	if !report.Ready || len(report.Checks) != 0 {
		t.Errorf("want ready with no checks, got %+v", report)
	}
}

func Test_HandleReady_AllProbesPass(t *testing.T) {
	t.Parallel()
	s := newReadyTestServer(t,
		&fakePinger{name: "postgres"},
		&fakePinger{name: "workflow-db"},
		&fakePinger{name: "embedder"},
	)

	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d — body: %s", w.Code, w.Body.String())
	}
	report := decodeReport(t, w)
	if !report.Ready {
		t.Error("want ready:true")
	}
	if len(report.Checks) != 3 {
		t.Fatalf("want 3 checks, got %d", len(report.Checks))
	}
	for _, c := range report.Checks {
		if !c.OK || c.Error != "" {
			t.Errorf("check %q: want ok with no error, got %+v", c.Name, c)
		}
	}
}

func Test_HandleReady_OneFailureIs503(t *testing.T) {
	t.Parallel()
	s := newReadyTestServer(t,
		&fakePinger{name: "workflow-db"},
		&fakePinger{name: "postgres", err: errors.New("connection refused")},
	)

	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d — body: %s", w.Code, w.Body.String())
	}
	report := decodeReport(t, w)
	if report.Ready {
		t.Error("want ready:false")
	}

	var pg *probeResult
	for i := range report.Checks {
		if report.Checks[i].Name == "postgres" {
			pg = &report.Checks[i]
		}
	}
	if pg == nil {
		t.Fatal("postgres check missing from report")
	}
	if pg.OK || pg.Error == "" {
		t.Errorf("failing probe must report ok:false with its error, got %+v", pg)
	}
}

func Test_HandleReady_AllFailuresStillListEveryCheck(t *testing.T) {
	t.Parallel()
	s := newReadyTestServer(t,
		&fakePinger{name: "postgres", err: errors.New("connection refused")},
		&fakePinger{name: "embedder", err: errors.New("dial timeout")},
	)

	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d — body: %s", w.Code, w.Body.String())
	}
	report := decodeReport(t, w)
	if report.Ready || len(report.Checks) != 2 {
		t.Fatalf("want not-ready with 2 checks, got %+v", report)
	}
	for _, c := range report.Checks {
		if c.OK {
			t.Errorf("check %q: want ok:false", c.Name)
		}
	}
}
