package otel

import (
	"context"
	"maps"
	"sync"
	"testing"

	goHMS "github.com/MrEthical07/goHMS"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goHMS.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goHMS.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goHMS.MetricsSnapshot{
		Counters:   maps.Clone(f.snapshot.Counters),
		Histograms: make(map[goHMS.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// value returns the single int64 data point of the named instrument.
func value(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value
			}
			t.Fatalf("%s has unexpected data type %T", name, m.Data)
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("hms-test")

	src := &fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters: map[goHMS.MetricID]uint64{
				goHMS.MetricLoginSuccess: 3,
				goHMS.MetricCacheMiss:    5,
			},
			Histograms: map[goHMS.MetricID][]uint64{
				goHMS.MetricRequestLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
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

	if got := value(t, rm, "hms_login_success_total"); got != 3 {
		t.Fatalf("login success = %d, want 3", got)
	}
	if got := value(t, rm, "hms_cache_miss_total"); got != 5 {
		t.Fatalf("cache miss = %d, want 5", got)
	}
	if got := value(t, rm, "hms_request_latency_seconds_bucket_le_0_025"); got != 3 {
		t.Fatalf("third bucket = %d, want cumulative 3", got)
	}
	if got := value(t, rm, "hms_request_latency_seconds_count"); got != 8 {
		t.Fatalf("count = %d, want 8", got)
	}
	if got := value(t, rm, "hms_events_dropped_total"); got != 1 {
		t.Fatalf("events dropped = %d, want 1", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("hms-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil client, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("hms-test")

	src := &fakeSource{
		snapshot: goHMS.MetricsSnapshot{
			Counters: map[goHMS.MetricID]uint64{
				goHMS.MetricLoginSuccess: 1,
			},
			Histograms: map[goHMS.MetricID][]uint64{
				goHMS.MetricRequestLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goHMS.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
