package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Run("StageCompleted", func(t *testing.T) {
		m := New()

		m.StageCompleted("fetch", 200*time.Millisecond, nil)
		m.StageCompleted("provision", time.Second, errors.New("boom"))

		if got := testutil.CollectAndCount(m.StageDuration); got != 2 {
			t.Errorf("expected 2 stage series, got %d", got)
		}
		if got := testutil.ToFloat64(m.StageErrors.WithLabelValues("provision")); got != 1 {
			t.Errorf("expected 1 provision error, got %v", got)
		}
		if got := testutil.ToFloat64(m.StageErrors.WithLabelValues("fetch")); got != 0 {
			t.Errorf("expected no fetch errors, got %v", got)
		}
	})

	t.Run("RecordSettled", func(t *testing.T) {
		m := New()
		for _, ok := range []bool{true, true, false} {
			m.RecordSettled(ok)
		}

		if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("created")); got != 2 {
			t.Errorf("expected 2 created, got %v", got)
		}
		if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("failed")); got != 1 {
			t.Errorf("expected 1 failed, got %v", got)
		}
	})

	t.Run("RunCompleted", func(t *testing.T) {
		m := New()
		m.RunCompleted("partial")

		if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("partial")); got != 1 {
			t.Errorf("expected 1 partial run, got %v", got)
		}
	})

	t.Run("Requests", func(t *testing.T) {
		m := New()
		m.TrackActiveRequest(true)
		m.TrackActiveRequest(true)
		m.TrackActiveRequest(false)
		m.RecordRequest("GET", "/health", 200, time.Millisecond)

		if got := testutil.ToFloat64(m.ActiveRequests); got != 1 {
			t.Errorf("expected 1 active request, got %v", got)
		}
		if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/health", "200")); got != 1 {
			t.Errorf("expected 1 request, got %v", got)
		}
	})

	t.Run("Handler", func(t *testing.T) {
		m := New()
		m.RunCompleted("succeeded")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), `cloudnote_import_runs_total{outcome="succeeded"} 1`) {
			t.Errorf("expected run counter in exposition, got:\n%s", body)
		}
		if !strings.Contains(string(body), "go_goroutines") {
			t.Error("expected Go collector metrics")
		}
	})

	t.Run("Separate Registries", func(t *testing.T) {
		New()
		New()
	})
}
