// Package metrics is a minimal Prometheus-text-exposition registry for
// the counters and histograms the ingestion and query paths need —
// ingest throughput, flush duration, cache effectiveness — without
// pulling in the full client_golang dependency tree.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Registry holds every counter, gauge, and histogram the process
// exposes at /metrics.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string]*histogram
	help       map[string]string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*histogram),
		help:       make(map[string]string),
	}
}

// labelKey renders a metric name plus its label set into the flat string
// key the registry's maps are indexed by.
func labelKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `%s="%s"`, k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// IncCounter adds delta to the named counter, creating it at 0 first if
// this is the first observation.
func (r *Registry) IncCounter(name string, labels map[string]string, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[labelKey(name, labels)] += delta
}

// SetGauge sets the named gauge to an absolute value.
func (r *Registry) SetGauge(name string, labels map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[labelKey(name, labels)] = value
}

// defaultBuckets mirrors a typical latency/duration spread in seconds.
var defaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// ObserveHistogram records one sample against the named histogram,
// lazily creating it with defaultBuckets on first use.
func (r *Registry) ObserveHistogram(name string, labels map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := labelKey(name, labels)
	h, ok := r.histograms[key]
	if !ok {
		h = &histogram{buckets: defaultBuckets, counts: make([]uint64, len(defaultBuckets))}
		r.histograms[key] = h
	}
	h.sum += value
	h.total++
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

// Describe attaches a HELP line to name, rendered the next time /metrics
// is scraped.
func (r *Registry) Describe(name, help string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.help[name] = help
}

// Handler serves the registry's current state in Prometheus text
// exposition format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		helped := make(map[string]bool)
		writeHelp := func(key string) {
			name := key
			if i := strings.IndexByte(key, '{'); i >= 0 {
				name = key[:i]
			}
			if help, ok := r.help[name]; ok && !helped[name] {
				helped[name] = true
				fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			}
		}

		for key, v := range r.counters {
			writeHelp(key)
			fmt.Fprintf(w, "%s %g\n", key, v)
		}
		for key, v := range r.gauges {
			writeHelp(key)
			fmt.Fprintf(w, "%s %g\n", key, v)
		}
		for key, h := range r.histograms {
			writeHelp(key)
			cumulative := uint64(0)
			for i, bound := range h.buckets {
				cumulative += h.counts[i]
				fmt.Fprintf(w, "%s_bucket{le=\"%g\"} %d\n", key, bound, cumulative)
			}
			fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", key, h.total)
			fmt.Fprintf(w, "%s_sum %g\n", key, h.sum)
			fmt.Fprintf(w, "%s_count %d\n", key, h.total)
		}
	}
}
