package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragline/ragline/internal/generation"
)

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	newServerMetrics(reg)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

// counterValue extracts the value of a counter metric family, optionally
// filtered by one label pair. Returns -1 when the metric is absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func Test_Metrics_QueryOutcomeCounted(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s, deps := newTestServerWith(t, &Config{Registry: reg})
	deps.querier.resp = generation.QueryResponse{Answer: "ok", Degraded: true}

	w := postJSON(t, s.Handler(), "/api/query", generation.QueryRequest{Question: "q"})
	if w.Code != http.StatusOK {
		t.Fatalf("query failed: %d", w.Code)
	}

	got := counterValue(t, reg, "ragline_query_requests_total", "outcome", outcomeDegraded)
	if got != 1 {
		t.Errorf("ragline_query_requests_total{outcome=degraded}: want 1, got %v", got)
	}
}

func Test_Metrics_IngestRunsCounted(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s, _ := newTestServerWith(t, &Config{Registry: reg})

	w := postJSON(t, s.Handler(), "/api/ingest", ingestRequest{Path: t.TempDir()})
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest failed: %d", w.Code)
	}

	got := counterValue(t, reg, "ragline_ingest_runs_total", "", "")
	if got != 1 {
		t.Errorf("ragline_ingest_runs_total: want 1, got %v", got)
	}
}

func Test_Metrics_HTTPRequestsLabelledByHandler(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s, _ := newTestServerWith(t, &Config{Registry: reg})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	got := counterValue(t, reg, "ragline_http_requests_total", labelHandler, "health")
	if got != 1 {
		t.Errorf("ragline_http_requests_total{handler=health}: want 1, got %v", got)
	}
}
