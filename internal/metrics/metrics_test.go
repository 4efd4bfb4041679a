package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.Login("success")
	m.Login("success")
	m.Login("invalid")
	m.Mutation("field", "applied")
	m.Save("success", 20*time.Millisecond)
	m.SetSessions(3)

	if got := testutil.ToFloat64(m.logins.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful logins, got %v", got)
	}
	if got := testutil.ToFloat64(m.logins.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("expected 1 invalid login, got %v", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("field", "applied")); got != 1 {
		t.Fatalf("expected 1 mutation, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessions); got != 3 {
		t.Fatalf("expected 3 sessions, got %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.Login("success")
	m.Mutation("field", "applied")
	m.Save("failure", time.Second)
	m.ContentLoad("success")
	m.Search("scan")
	m.SetSessions(1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Save("success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `sitecopy_saves_total{outcome="success"} 1`) {
		t.Fatalf("saves counter missing from exposition:\n%s", body)
	}
}
