package otel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/session"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessiongate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() sessiongate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessiongate.MetricsSnapshot{
		Counters:   make(map[sessiongate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[sessiongate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReaderMeter()

	src := &fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{
				sessiongate.MetricLoginSuccess:   3,
				sessiongate.MetricRefreshRevoked: 2,
			},
			Histograms: map[sessiongate.MetricID][]uint64{
				sessiongate.MetricAuthenticateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("sessiongate-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findSum(rm, "sessiongate_login_success_total"); !ok || v != 3 {
		t.Fatalf("expected login success 3, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "sessiongate_refresh_revoked_total"); !ok || v != 2 {
		t.Fatalf("expected refresh revoked 2, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "sessiongate_audit_dropped_total"); !ok || v != 1 {
		t.Fatalf("expected audit dropped 1, got %d (found=%v)", v, ok)
	}
}

func findGauge(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
				return g.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

type statefulSource struct {
	*fakeSource
	state atomic.Int32
}

func (s *statefulSource) SessionStoreState() session.State { return session.State(s.state.Load()) }

func TestExporterPublishesLatencyBucketsAndCount(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{snapshot: sessiongate.MetricsSnapshot{
		Histograms: map[sessiongate.MetricID][]uint64{
			sessiongate.MetricAuthenticateLatency: {2, 0, 3, 0, 0, 0, 0, 1},
		},
	}}

	exp, err := NewExporterFromSource(provider.Meter("sessiongate-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	want := map[string]int64{
		"sessiongate_authenticate_latency_seconds_bucket_le_0_0005": 2,
		"sessiongate_authenticate_latency_seconds_bucket_le_0_0025": 5,
		"sessiongate_authenticate_latency_seconds_bucket_le_0_25":   5,
		"sessiongate_authenticate_latency_seconds_bucket_le_inf":    6,
		"sessiongate_authenticate_latency_seconds_count":            6,
	}
	for name, v := range want {
		got, ok := findGauge(rm, name)
		if !ok || got != v {
			t.Fatalf("%s: expected %d, got %d (found=%v)", name, v, got, ok)
		}
	}
	if _, ok := findGauge(rm, "sessiongate_session_store_state"); ok {
		t.Fatal("store state gauge published for a source without state")
	}
}

func TestExporterTracksStoreState(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &statefulSource{fakeSource: &fakeSource{}}
	src.state.Store(int32(session.StateConnected))

	exp, err := NewExporterFromSource(provider.Meter("sessiongate-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findGauge(rm, "sessiongate_session_store_state"); !ok || v != int64(session.StateConnected) {
		t.Fatalf("expected connected state, got %d (found=%v)", v, ok)
	}

	src.state.Store(int32(session.StateUnavailable))
	rm = metricdata.ResourceMetrics{}
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findGauge(rm, "sessiongate_session_store_state"); !ok || v != int64(session.StateUnavailable) {
		t.Fatalf("expected unavailable state, got %d (found=%v)", v, ok)
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReaderMeter()

	if _, err := NewExporterFromSource(provider.Meter("sessiongate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("sessiongate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReaderMeter()

	src := &fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{
				sessiongate.MetricLoginSuccess: 1,
			},
			Histograms: map[sessiongate.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("sessiongate-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[sessiongate.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestPushProviderWithoutEndpoint(t *testing.T) {
	p, err := NewPushProvider(context.Background(), "", "sessiongate", 0)
	if err != nil {
		t.Fatalf("NewPushProvider failed: %v", err)
	}
	if p.MeterProvider == nil {
		t.Fatal("expected a meter provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestPushProviderRejectsBadEndpoint(t *testing.T) {
	if _, err := NewPushProvider(context.Background(), "http://", "sessiongate", 0); err == nil {
		t.Fatal("expected error for endpoint without host")
	}
}
