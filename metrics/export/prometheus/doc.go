// Package prometheus renders goHMS client metrics in Prometheus text
// exposition format. Counters are named hms_*_total and the one histogram is
// hms_request_latency_seconds.
//
// Cache families (hms_cache_reads_total{result}, hms_cache_entries, ...) are
// read from the client's cache stats rather than the metrics snapshot, so they
// are available with metrics disabled. Dropped events carry a type label.
//
// Callers mount [PrometheusExporter.Handler] themselves; nothing is registered
// globally.
package prometheus
