package metrics

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type metricType string

const (
	counterType   metricType = "counter"
	histogramType metricType = "histogram"
)

type descriptor struct {
	Name    string
	Help    string
	Type    metricType
	Buckets []float64
}

type counterSeries struct {
	Labels map[string]string
	Value  uint64
}

type histogramSeries struct {
	Labels       map[string]string
	Count        uint64
	Sum          float64
	BucketCounts []uint64
}

type Registry struct {
	mu         sync.RWMutex
	descs      map[string]descriptor
	counters   map[string]map[string]*counterSeries
	histograms map[string]map[string]*histogramSeries
}

func NewRegistry() *Registry {
	r := &Registry{
		descs:      make(map[string]descriptor),
		counters:   make(map[string]map[string]*counterSeries),
		histograms: make(map[string]map[string]*histogramSeries),
	}
	r.registerDefaults()
	return r
}

var (
	latencyBucketsMS = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
	commandBucketsMS = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000}
)

func (r *Registry) registerDefaults() {
	r.RegisterCounter("brotherbot_command_runs_total", "Total bot commands handled by command and status.")
	r.RegisterHistogram("brotherbot_command_duration_ms", "Bot command handling duration in milliseconds by command.", commandBucketsMS)
	r.RegisterCounter("brotherbot_portal_requests_total", "Total device list requests by HTTP status.")
	r.RegisterHistogram("brotherbot_portal_request_latency_ms", "Device list request latency in milliseconds by HTTP status.", latencyBucketsMS)
	r.RegisterCounter("brotherbot_reauth_total", "Total credential refreshes by trigger and status.")
	r.RegisterCounter("brotherbot_session_acquire_total", "Total browser logins by status.")
	r.RegisterHistogram("brotherbot_session_acquire_latency_ms", "Browser login duration in milliseconds by status.", commandBucketsMS)
	r.RegisterCounter("brotherbot_telegram_requests_total", "Total Telegram Bot API calls by method and status.")
	r.RegisterCounter("brotherbot_telegram_poll_errors_total", "Total failed getUpdates polls.")
}

func (r *Registry) RegisterCounter(name, help string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[name] = descriptor{Name: name, Help: help, Type: counterType}
}

func (r *Registry) RegisterHistogram(name, help string, buckets []float64) {
	cp := append([]float64(nil), buckets...)
	sort.Float64s(cp)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[name] = descriptor{Name: name, Help: help, Type: histogramType, Buckets: cp}
}

func (r *Registry) IncCounter(name string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.descs[name]
	if !ok || desc.Type != counterType {
		return
	}
	seriesMap := r.counters[name]
	if seriesMap == nil {
		seriesMap = make(map[string]*counterSeries)
		r.counters[name] = seriesMap
	}
	key := labelsKey(labels)
	series := seriesMap[key]
	if series == nil {
		series = &counterSeries{Labels: cloneLabels(labels)}
		seriesMap[key] = series
	}
	series.Value++
}

func (r *Registry) ObserveHistogram(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.descs[name]
	if !ok || desc.Type != histogramType {
		return
	}
	seriesMap := r.histograms[name]
	if seriesMap == nil {
		seriesMap = make(map[string]*histogramSeries)
		r.histograms[name] = seriesMap
	}
	key := labelsKey(labels)
	series := seriesMap[key]
	if series == nil {
		series = &histogramSeries{
			Labels:       cloneLabels(labels),
			BucketCounts: make([]uint64, len(desc.Buckets)+1),
		}
		seriesMap[key] = series
	}
	bi := len(desc.Buckets)
	for i, bucket := range desc.Buckets {
		if value <= bucket {
			bi = i
			break
		}
	}
	series.BucketCounts[bi]++
	series.Count++
	series.Sum += value
}

// Observe increments counter and records value in histogram under the same labels.
func (r *Registry) Observe(counter, histogram string, value float64, labels map[string]string) {
	r.IncCounter(counter, labels)
	r.ObserveHistogram(histogram, value, labels)
}

func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}

func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, name := range sortedKeys(r.descs) {
		d := r.descs[name]
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n", name, d.Help, name, d.Type)
		switch d.Type {
		case counterType:
			r.renderCounters(&b, name)
		case histogramType:
			r.renderHistograms(&b, d)
		}
	}
	return b.String()
}

func (r *Registry) renderCounters(b *strings.Builder, name string) {
	series := r.counters[name]
	for _, key := range sortedKeys(series) {
		s := series[key]
		writeMetricLine(b, name, s.Labels, strconv.FormatUint(s.Value, 10))
	}
}

func (r *Registry) renderHistograms(b *strings.Builder, d descriptor) {
	series := r.histograms[d.Name]
	for _, key := range sortedKeys(series) {
		s := series[key]
		var cumulative uint64
		for i, bucketCount := range s.BucketCounts {
			cumulative += bucketCount
			withLE := cloneLabels(s.Labels)
			withLE["le"] = "+Inf"
			if i < len(d.Buckets) {
				withLE["le"] = formatFloat(d.Buckets[i])
			}
			writeMetricLine(b, d.Name+"_bucket", withLE, strconv.FormatUint(cumulative, 10))
		}
		writeMetricLine(b, d.Name+"_sum", s.Labels, formatFloat(s.Sum))
		writeMetricLine(b, d.Name+"_count", s.Labels, strconv.FormatUint(s.Count, 10))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// writeMetricLine emits one sample in text exposition format, labels in key
// order.
func writeMetricLine(b *strings.Builder, name string, labels map[string]string, value string) {
	b.WriteString(name)
	if len(labels) > 0 {
		pairs := make([]string, 0, len(labels))
		for _, key := range sortedKeys(labels) {
			pairs = append(pairs, key+`="`+labelEscaper.Replace(labels[key])+`"`)
		}
		b.WriteString("{" + strings.Join(pairs, ",") + "}")
	}
	b.WriteString(" " + value + "\n")
}

// labelsKey identifies a label set independent of map order. Keys and values
// are separated by bytes that never occur in valid UTF-8 label text.
func labelsKey(labels map[string]string) string {
	var b strings.Builder
	for _, key := range sortedKeys(labels) {
		b.WriteString(key)
		b.WriteByte(0xfe)
		b.WriteString(labels[key])
		b.WriteByte(0xff)
	}
	return b.String()
}

// cloneLabels never returns nil so callers can add "le".
func cloneLabels(in map[string]string) map[string]string {
	out := maps.Clone(in)
	if out == nil {
		out = map[string]string{}
	}
	return out
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewRegistry()
)

func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

func ResetDefaultForTest() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewRegistry()
}
