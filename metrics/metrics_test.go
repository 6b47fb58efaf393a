package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_HandlerExposesMetrics(t *testing.T) {
	r := NewRegistry("medledger_test")
	r.LogAppends.Add(3)
	r.CacheHits.Inc()
	r.PolicyDecisions.WithLabelValues("allow").Inc()
	r.VerifyLatency.Observe(0.05)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"medledger_test_merklelog_appends_total 3",
		"medledger_test_policy_cache_hits_total 1",
		`medledger_test_policy_decisions_total{decision="allow"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestRegistry_IndependentInstancesDontCollide(t *testing.T) {
	a := NewRegistry("a")
	b := NewRegistry("b")
	a.LogAppends.Inc()

	aBody := scrape(t, a)
	bBody := scrape(t, b)
	if !strings.Contains(aBody, "a_merklelog_appends_total 1") {
		t.Fatalf("expected a's counter incremented, got:\n%s", aBody)
	}
	if !strings.Contains(bBody, "b_merklelog_appends_total 0") {
		t.Fatalf("expected b's counter to remain zero, got:\n%s", bBody)
	}
}

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}
