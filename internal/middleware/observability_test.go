package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestObservability_UsesRoutePatternForLabels(t *testing.T) {
	pattern := "/test/observability/{id}"
	r := chi.NewRouter()
	r.Use(Observability(zap.NewNop()))
	r.Get(pattern, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, pattern, "204"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/observability/123", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNoContent)
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, pattern, "204"))
	if after != before+1 {
		t.Fatalf("requests counter: got %v, want %v", after, before+1)
	}
	if n := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/test/observability/123", "204")); n != 0 {
		t.Fatalf("raw path should not be used as label, got %v", n)
	}
}

func TestPathPattern_FallsBackToURLPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	if got := pathPattern(req); got != "/plain" {
		t.Fatalf("got %q, want /plain", got)
	}
}
