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

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

var (
	_ ports.SearchObserver = (*RetrievalMetrics)(nil)
	_ ports.AgentObserver  = (*RetrievalMetrics)(nil)
)

func TestMiddlewareCollapsesUnknownPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/v1/search", "/wp-admin", "/etc/passwd"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/search", "418")); got != 1 {
		t.Fatalf("expected one /v1/search sample, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "other", "418")); got != 2 {
		t.Fatalf("expected two collapsed samples, got %v", got)
	}
}

func TestRetrievalMetricsShareServerRegistry(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	retrieval := NewRetrievalMetrics("api", server.Registerer())

	retrieval.ObserveSearchBranch("vector", 0, true, 30*time.Millisecond)
	retrieval.ObserveSearchBranch("lexical", 12, false, 10*time.Millisecond)
	retrieval.ObserveRerank(true)
	retrieval.ObserveAgentRun(domain.AgentStateDone, domain.AgentModeAgent, 3, 2*time.Second)
	retrieval.ObserveToolCall("search_legal_documents", "ok")
	retrieval.ObserveToolCall("", "")

	if got := testutil.ToFloat64(retrieval.branchTotal.WithLabelValues("api", "vector", "true")); got != 1 {
		t.Fatalf("expected degraded vector branch, got %v", got)
	}
	if got := testutil.ToFloat64(retrieval.toolCallsTotal.WithLabelValues("api", "unknown", "unknown")); got != 1 {
		t.Fatalf("expected unknown tool label, got %v", got)
	}

	res := httptest.NewRecorder()
	server.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), "lovdata_agent_runs_total") {
		t.Fatalf("agent metrics not exposed on server registry")
	}
}

func TestWorkerMetricsTrackArchiveOutcome(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartArchive()
	m.FinishArchive("worker", time.Second, 42, nil)
	m.StartArchive()
	m.FinishArchive("worker", time.Second, 0, errors.New("corrupt"))
	m.RecordReindex("worker", nil)

	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected no in-flight archives, got %v", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected one failed archive, got %v", got)
	}
	if got := testutil.CollectAndCount(m.documentsIndexed); got != 1 {
		t.Fatalf("expected one documents histogram series, got %d", got)
	}
}

func TestRetrievalMetricsWithoutRegisterer(t *testing.T) {
	m := NewRetrievalMetrics("mcp", nil)
	m.ObserveRerank(false)
	reg := prometheus.NewRegistry()
	if err := reg.Register(m.rerankTotal); err != nil {
		t.Fatalf("collector should be unregistered: %v", err)
	}
}
