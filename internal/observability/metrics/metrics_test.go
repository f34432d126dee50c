package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware("api", mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/documents/{id}", "404"))
	if got != 2 {
		t.Fatalf("expected 2 requests under the route pattern, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/documents/abc":        "/documents/{id}",
		"/documents/abc/search": "/documents/{id}/search",
		"/summary/abc":          "/summary/{id}",
		"/query":                "/query",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPipelineMetricsRecordsOutcome(t *testing.T) {
	m := NewPipelineMetrics("worker", nil)
	m.ObserveQueueLag(time.Second)
	m.StartDocument()
	m.FinishDocument(domain.StageLoading, time.Second, domain.WrapError(domain.ErrLoadFailure, "load", errors.New("bad pdf")))
	m.StartDocument()
	m.FinishDocument(domain.StageCompleted, time.Second, nil)

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "error", "loading", "load_failure")); got != 1 {
		t.Fatalf("expected one load failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "success", "completed", "")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected nothing in flight, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "docqa_pipeline_queue_lag_seconds") {
		t.Fatalf("expected queue lag in exposition")
	}
}

func TestPipelineMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics("api", reg)
	if m.Handler() != nil {
		t.Fatalf("expected no private handler on a shared registry")
	}
	r := NewResilienceMetrics("api", reg)
	r.OnRetry("ollama.embed", 1)
	r.OnBreakerStateChange("ollama.embed", "closed", "open")

	if got := testutil.ToFloat64(r.breakerState.WithLabelValues("api", "ollama.embed")); got != 2 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}
	if got := testutil.ToFloat64(r.retriesTotal.WithLabelValues("api", "ollama.embed")); got != 1 {
		t.Fatalf("expected one retry, got %v", got)
	}
}
