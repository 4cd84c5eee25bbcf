package goHMS

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIgnoresUpdates(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricRequestLatency, time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if m.LatencyEnabled() {
		t.Fatal("latency requires metrics to be enabled")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricRequestLatency, time.Second)
	if m.Enabled() || m.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricCacheHit)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricCacheHit); got != 16000 {
		t.Fatalf("cache hits = %d, want 16000", got)
	}
	if got := m.Snapshot().Counters[MetricCacheHit]; got != 16000 {
		t.Fatalf("snapshot cache hits = %d, want 16000", got)
	}
}

func TestMetricsSnapshotOmitsLatencyCounter(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	snap := m.Snapshot()

	if _, ok := snap.Counters[MetricRequestLatency]; ok {
		t.Fatal("latency is a histogram, not a counter")
	}
	if _, ok := snap.Histograms[MetricRequestLatency]; ok {
		t.Fatal("histogram present without EnableLatencyHistograms")
	}
	if len(snap.Counters) != int(metricIDCount)-1 {
		t.Fatalf("counters = %d, want %d", len(snap.Counters), int(metricIDCount)-1)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		2 * time.Millisecond,
		5 * time.Millisecond,
		40 * time.Millisecond,
		300 * time.Millisecond,
		2 * time.Second,
	} {
		m.Observe(MetricRequestLatency, d)
	}
	// Only the latency metric has a histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	got := m.Snapshot().Histograms[MetricRequestLatency]
	want := []uint64{2, 0, 0, 1, 0, 0, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("buckets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buckets = %v, want %v", got, want)
		}
	}
}
