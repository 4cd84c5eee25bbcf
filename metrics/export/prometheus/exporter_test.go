package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/cache"
)

type fakeSource struct {
	snapshot goHMS.MetricsSnapshot
	stats    cache.Stats
	dropped  map[goHMS.EventType]uint64
}

func (f fakeSource) MetricsSnapshot() goHMS.MetricsSnapshot { return f.snapshot }
func (f fakeSource) CacheStats() cache.Stats                { return f.stats }
func (f fakeSource) EventsDroppedByType() map[goHMS.EventType]uint64 {
	return f.dropped
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters:   map[goHMS.MetricID]uint64{},
			Histograms: map[goHMS.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters: map[goHMS.MetricID]uint64{
				goHMS.MetricLoginSuccess: 7,
				goHMS.MetricCacheHit:     3,
			},
			Histograms: map[goHMS.MetricID][]uint64{
				goHMS.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		stats:   cache.Stats{Hits: 3, Misses: 2, Coalesced: 4, Invalidations: 1, Entries: 2},
		dropped: map[goHMS.EventType]uint64{goHMS.EventRefresh: 2, goHMS.EventLoginFailed: 1},
	})

	out := exp.Render()
	for _, want := range []string{
		"hms_login_success_total 7",
		"hms_refresh_failure_total 0",
		`hms_request_latency_seconds_bucket{le="0.005"} 1`,
		`hms_request_latency_seconds_bucket{le="+Inf"} 36`,
		"hms_request_latency_seconds_count 36",
		"# TYPE hms_request_latency_seconds histogram",
		`hms_cache_reads_total{result="hit"} 3`,
		`hms_cache_reads_total{result="miss"} 2`,
		`hms_cache_reads_total{result="stale"} 0`,
		`hms_cache_reads_total{result="coalesced"} 4`,
		"hms_cache_invalidations_total 1",
		"# TYPE hms_cache_entries gauge",
		"hms_cache_entries 2",
		`hms_events_dropped_total{type="login_failed"} 1`,
		`hms_events_dropped_total{type="refresh"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}

	// Cache counters are read from the cache, not duplicated from the snapshot.
	if strings.Contains(out, "hms_cache_hit_total") {
		t.Fatalf("snapshot cache counters must not be rendered, got:\n%s", out)
	}
	if strings.Index(out, `type="login_failed"`) > strings.Index(out, `type="refresh"`) {
		t.Fatalf("dropped events must be sorted by type, got:\n%s", out)
	}
}

func TestRenderCacheWithoutMetrics(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters:   map[goHMS.MetricID]uint64{},
			Histograms: map[goHMS.MetricID][]uint64{},
		},
		stats: cache.Stats{Misses: 1, Entries: 1},
	})

	out := exp.Render()
	if !strings.Contains(out, `hms_cache_reads_total{result="miss"} 1`) {
		t.Fatalf("expected cache section, got:\n%s", out)
	}
	if strings.Contains(out, "hms_login_success_total") {
		t.Fatalf("session counters must be absent when metrics are disabled, got:\n%s", out)
	}
}

func TestRenderFromClient(t *testing.T) {
	client, err := goHMS.New().
		WithBaseURL("http://127.0.0.1:1/api/v1").
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer client.Close()

	out := NewPrometheusExporter(client).Render()
	for _, want := range []string{"hms_login_success_total 0", "hms_cache_entries 0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q from an enabled client, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters:   map[goHMS.MetricID]uint64{goHMS.MetricLoginSuccess: 1},
			Histograms: map[goHMS.MetricID][]uint64{},
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
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters: map[goHMS.MetricID]uint64{
				goHMS.MetricLoginSuccess:   1000,
				goHMS.MetricLoginFailure:   40,
				goHMS.MetricRefreshSuccess: 800,
				goHMS.MetricCacheHit:       5000,
				goHMS.MetricCacheMiss:      600,
			},
			Histograms: map[goHMS.MetricID][]uint64{
				goHMS.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
