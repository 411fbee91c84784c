package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/session"
)

type fakeSource struct {
	snapshot sessiongate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessiongate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

type statefulSource struct {
	fakeSource
	state session.State
}

func (s statefulSource) SessionStoreState() session.State { return s.state }

func TestRenderIncludesStoreStateGauge(t *testing.T) {
	src := statefulSource{
		fakeSource: fakeSource{snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{sessiongate.MetricLoginSuccess: 1},
		}},
		state: session.StateUnavailable,
	}
	out := NewExporterFromSource(src).Render()
	if !strings.Contains(out, "# TYPE sessiongate_session_store_state gauge\n") {
		t.Fatalf("missing store state header:\n%s", out)
	}
	if !strings.Contains(out, "\nsessiongate_session_store_state 2\n") {
		t.Fatalf("expected unavailable state 2:\n%s", out)
	}

	plain := NewExporterFromSource(src.fakeSource).Render()
	if strings.Contains(plain, "sessiongate_session_store_state") {
		t.Fatal("store state gauge rendered for a source without state")
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters:   map[sessiongate.MetricID]uint64{},
			Histograms: map[sessiongate.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{
				sessiongate.MetricLoginSuccess:       7,
				sessiongate.MetricStoreDegradedReads: 3,
			},
			Histograms: map[sessiongate.MetricID][]uint64{
				sessiongate.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"sessiongate_login_success_total 7",
		"sessiongate_store_degraded_reads_total 3",
		"sessiongate_refresh_revoked_total 0",
		"sessiongate_authenticate_latency_seconds_bucket{le=\"0.0005\"} 1",
		"sessiongate_authenticate_latency_seconds_bucket{le=\"0.005\"} 10",
		"sessiongate_authenticate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"sessiongate_authenticate_latency_seconds_count 36",
		"sessiongate_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsHistogramWhenDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters:   map[sessiongate.MetricID]uint64{sessiongate.MetricLogout: 1},
			Histograms: map[sessiongate.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "latency") {
		t.Fatalf("expected no histogram series, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters:   map[sessiongate.MetricID]uint64{sessiongate.MetricLoginSuccess: 1},
			Histograms: map[sessiongate.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{
				sessiongate.MetricLoginSuccess:        1000,
				sessiongate.MetricLoginFailure:        40,
				sessiongate.MetricRefreshSuccess:      800,
				sessiongate.MetricRefreshRevoked:      10,
				sessiongate.MetricAuthenticateSuccess: 90000,
			},
			Histograms: map[sessiongate.MetricID][]uint64{
				sessiongate.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
