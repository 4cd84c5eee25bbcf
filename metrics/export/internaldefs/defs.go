package internaldefs

import (
	goHMS "github.com/MrEthical07/goHMS"
)

// CounterDef maps a client counter to its exported name.
type CounterDef struct {
	ID   goHMS.MetricID
	Name string
	Help string
	// Cache marks counters that mirror cache.Stats. Exporters that read the
	// cache directly skip them.
	Cache bool
}

// HistogramDef maps a client histogram to its exported name.
type HistogramDef struct {
	ID   goHMS.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goHMS.MetricLoginSuccess, Name: "hms_login_success_total", Help: "Successful logins."},
	{ID: goHMS.MetricLoginFailure, Name: "hms_login_failure_total", Help: "Failed logins."},
	{ID: goHMS.MetricRegisterSuccess, Name: "hms_register_success_total", Help: "Successful registrations."},
	{ID: goHMS.MetricRegisterFailure, Name: "hms_register_failure_total", Help: "Failed registrations."},
	{ID: goHMS.MetricRestoreSuccess, Name: "hms_restore_success_total", Help: "Session restores that produced a signed-in user."},
	{ID: goHMS.MetricRestoreUnauthenticated, Name: "hms_restore_unauthenticated_total", Help: "Session restores that ended signed out."},
	{ID: goHMS.MetricRestoreFailure, Name: "hms_restore_failure_total", Help: "Session restores that failed on transport or decoding."},
	{ID: goHMS.MetricRefreshSuccess, Name: "hms_refresh_success_total", Help: "Successful access token refreshes."},
	{ID: goHMS.MetricRefreshFailure, Name: "hms_refresh_failure_total", Help: "Failed access token refreshes."},
	{ID: goHMS.MetricRetryAfterRefresh, Name: "hms_retry_after_refresh_total", Help: "Requests replayed after a refresh."},
	{ID: goHMS.MetricLogout, Name: "hms_logout_total", Help: "Explicit logouts."},
	{ID: goHMS.MetricForcedLogout, Name: "hms_forced_logout_total", Help: "Logouts forced by a rejected refresh."},
	{ID: goHMS.MetricCacheHit, Name: "hms_cache_hit_total", Help: "Reads served fresh from the cache.", Cache: true},
	{ID: goHMS.MetricCacheMiss, Name: "hms_cache_miss_total", Help: "Reads that went to the API.", Cache: true},
	{ID: goHMS.MetricCacheStaleServed, Name: "hms_cache_stale_served_total", Help: "Stale entries returned while a background refetch ran.", Cache: true},
	{ID: goHMS.MetricCacheCoalesced, Name: "hms_cache_coalesced_total", Help: "Reads that joined an in-flight fetch.", Cache: true},
	{ID: goHMS.MetricCacheInvalidation, Name: "hms_cache_invalidation_total", Help: "Cache entries invalidated by mutations.", Cache: true},
	{ID: goHMS.MetricCacheEviction, Name: "hms_cache_eviction_total", Help: "Cache entries evicted after their GC time.", Cache: true},
	{ID: goHMS.MetricReadRetry, Name: "hms_read_retry_total", Help: "Read attempts retried after a transient failure."},
	{ID: goHMS.MetricMutationSuccess, Name: "hms_mutation_success_total", Help: "Successful create, update and delete calls."},
	{ID: goHMS.MetricMutationFailure, Name: "hms_mutation_failure_total", Help: "Failed create, update and delete calls."},
	{ID: goHMS.MetricRateLimited, Name: "hms_rate_limited_total", Help: "Requests refused by the client throttle."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goHMS.MetricRequestLatency, Name: "hms_request_latency_seconds", Help: "HTTP request latency per attempt."},
}

// HistogramBounds are the upper bounds of the client's latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket for exporters that cannot use a label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// EventsDroppedName is the counter for events lost to a full dispatcher queue.
// The Prometheus exporter labels it by event type.
const EventsDroppedName = "hms_events_dropped_total"

// NormalizeBuckets pads or truncates raw to the eight client buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
