package prometheus

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/cache"
	"github.com/MrEthical07/goHMS/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads. *goHMS.Client satisfies it.
type MetricsSource interface {
	MetricsSnapshot() goHMS.MetricsSnapshot
	CacheStats() cache.Stats
	EventsDroppedByType() map[goHMS.EventType]uint64
}

// PrometheusExporter renders client metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter that reads from client.
func NewPrometheusExporter(client *goHMS.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics as exposition text.
//
// Session and request counters come from the metrics snapshot and appear only
// when metrics are enabled. The cache section reads cache.Stats, which is
// always maintained, so it appears as soon as the cache has seen a read.
// Render returns "" when there is nothing to report.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	stats := p.source.CacheStats()
	dropped := p.source.EventsDroppedByType()

	enabled := len(snapshot.Counters) > 0 || len(snapshot.Histograms) > 0
	cacheUsed := stats != (cache.Stats{})
	if !enabled && !cacheUsed && len(dropped) == 0 {
		return ""
	}

	w := &expo{}
	w.b.Grow(8192)

	if enabled {
		for _, def := range internaldefs.CounterDefs {
			if def.Cache {
				continue
			}
			w.family(def.Name, def.Help, "counter")
			w.sample(def.Name, "", "", snapshot.Counters[def.ID])
		}
		for _, def := range internaldefs.HistogramDefs {
			w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])))
		}
	}

	w.cache(stats)
	w.dropped(dropped)
	return w.b.String()
}

// expo accumulates exposition text.
type expo struct {
	b strings.Builder
}

func (w *expo) cache(s cache.Stats) {
	const reads = "hms_cache_reads_total"
	w.family(reads, "Cached reads by outcome.", "counter")
	w.sample(reads, "result", "hit", s.Hits)
	w.sample(reads, "result", "miss", s.Misses)
	w.sample(reads, "result", "stale", s.StaleServed)
	w.sample(reads, "result", "coalesced", s.Coalesced)

	w.family("hms_cache_invalidations_total", "Cache invalidations.", "counter")
	w.sample("hms_cache_invalidations_total", "", "", s.Invalidations)

	w.family("hms_cache_evictions_total", "Cache entries evicted after their GC time.", "counter")
	w.sample("hms_cache_evictions_total", "", "", s.Evictions)

	w.family("hms_cache_entries", "Entries currently held by the cache.", "gauge")
	w.sample("hms_cache_entries", "", "", uint64(max(s.Entries, 0)))
}

func (w *expo) dropped(byType map[goHMS.EventType]uint64) {
	name := internaldefs.EventsDroppedName
	w.family(name, "Events dropped because the dispatcher queue was full, by event type.", "counter")

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	slices.Sort(types)
	for _, t := range types {
		w.sample(name, "type", t, byType[goHMS.EventType(t)])
	}
}

func (w *expo) histogram(name, help string, cumulative [8]uint64) {
	w.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", "le", le, cumulative[i])
	}
	w.sample(name+"_count", "", "", cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	w.sample(name+"_sum", "", "", 0)
}

func (w *expo) family(name, help, typ string) {
	w.b.WriteString("# HELP ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(escapeHelp(help))
	w.b.WriteString("\n# TYPE ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(typ)
	w.b.WriteByte('\n')
}

// sample writes one line. An empty label writes the bare name.
func (w *expo) sample(name, label, value string, v uint64) {
	w.b.WriteString(name)
	if label != "" {
		w.b.WriteByte('{')
		w.b.WriteString(label)
		w.b.WriteString(`="`)
		w.b.WriteString(escapeLabel(value))
		w.b.WriteString(`"}`)
	}
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}

func escapeLabel(v string) string {
	v = escapeHelp(v)
	return strings.ReplaceAll(v, `"`, `\"`)
}
