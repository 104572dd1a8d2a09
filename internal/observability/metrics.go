package observability

import (
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

// Metrics is a small in-process registry rendered in the Prometheus text
// format. All methods are safe on a nil receiver so callers never need to
// check whether metrics are enabled.
type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *Gauge
	queryTotal   *CounterVec
	queryLatency *HistogramVec

	unknownStatus   *CounterVec
	latencyDegraded *Counter

	feedbackEvents *CounterVec
	uploadAccepts  *CounterVec
	uploadFiles    *Counter
	notifyDispatch *CounterVec
	tokenIssued    *Counter
}

var (
	metricsMu      sync.RWMutex
	currentMetrics *Metrics
)

func Current() *Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return currentMetrics
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Init builds the registry and makes it the process-wide current one.
func Init(log *logger.Logger) *Metrics {
	m := NewMetrics()
	metricsMu.Lock()
	currentMetrics = m
	metricsMu.Unlock()
	if log != nil {
		log.Info("metrics registry initialized")
	}
	return m
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests:     NewCounterVec("propvisions_http_requests_total", "HTTP requests by method, route and status.", []string{"method", "route", "status"}),
		apiLatency:      NewHistogramVec("propvisions_http_request_duration_seconds", "HTTP request latency.", []string{"method", "route"}, latencyBuckets),
		apiInflight:     NewGauge("propvisions_http_inflight_requests", "HTTP requests currently being served."),
		queryTotal:      NewCounterVec("propvisions_dashboard_queries_total", "Dashboard list queries by entity and outcome.", []string{"entity", "outcome"}),
		queryLatency:    NewHistogramVec("propvisions_dashboard_query_duration_seconds", "Dashboard list query latency.", []string{"entity"}, latencyBuckets),
		unknownStatus:   NewCounterVec("propvisions_unknown_status_total", "Rows whose status did not normalize to a known value.", []string{"entity", "raw"}),
		latencyDegraded: NewCounter("propvisions_latency_lookup_degraded_total", "Pages served with null latency after a failed stage lookup."),
		feedbackEvents:  NewCounterVec("propvisions_feedback_events_total", "Recorded feedback events.", []string{"module", "kind"}),
		uploadAccepts:   NewCounterVec("propvisions_upload_accepts_total", "Missing-room upload attempts by outcome.", []string{"outcome"}),
		uploadFiles:     NewCounter("propvisions_upload_files_total", "Files stored for missing-room uploads."),
		notifyDispatch:  NewCounterVec("propvisions_notify_dispatch_total", "Upload notifications by sink and outcome.", []string{"sink", "outcome"}),
		tokenIssued:     NewCounter("propvisions_upload_tokens_issued_total", "Upload tokens issued."),
	}
}

func (m *Metrics) families() []*dto.MetricFamily {
	return []*dto.MetricFamily{
		m.apiRequests.family(),
		m.apiLatency.family(),
		m.apiInflight.family(),
		m.queryTotal.family(),
		m.queryLatency.family(),
		m.unknownStatus.family(),
		m.latencyDegraded.family(),
		m.feedbackEvents.family(),
		m.uploadAccepts.family(),
		m.uploadFiles.family(),
		m.notifyDispatch.family(),
		m.tokenIssued.family(),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	_ = m.WritePrometheus(w, format)
}

func (m *Metrics) WritePrometheus(w io.Writer, format expfmt.Format) error {
	if m == nil {
		return nil
	}
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range m.families() {
		// the text encoder rejects families without samples.
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveQuery(entity string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queryTotal.Inc(entity, outcome)
	m.queryLatency.Observe(dur.Seconds(), entity)
}

func (m *Metrics) IncUnknownStatus(entity, raw string) {
	if m == nil {
		return
	}
	m.unknownStatus.Inc(entity, raw)
}

func (m *Metrics) IncLatencyDegraded() {
	if m == nil {
		return
	}
	m.latencyDegraded.Add(1)
}

func (m *Metrics) IncFeedbackEvent(module, kind string) {
	if m == nil {
		return
	}
	m.feedbackEvents.Inc(module, kind)
}

func (m *Metrics) IncUploadAccept(outcome string, files int) {
	if m == nil {
		return
	}
	m.uploadAccepts.Inc(outcome)
	if files > 0 {
		m.uploadFiles.Add(float64(files))
	}
}

func (m *Metrics) IncNotifyDispatch(sink, outcome string) {
	if m == nil {
		return
	}
	m.notifyDispatch.Inc(sink, outcome)
}

func (m *Metrics) IncTokenIssued() {
	if m == nil {
		return
	}
	m.tokenIssued.Add(1)
}

// ---- primitives ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]*labeledValue
}

type labeledValue struct {
	labels []string
	val    float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]*labeledValue{}}
}

func (c *CounterVec) Inc(values ...string) {
	c.Add(1, values...)
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil || v < 0 {
		return
	}
	key := labelKey(values)
	c.mu.Lock()
	lv, ok := c.values[key]
	if !ok {
		lv = &labeledValue{labels: append([]string(nil), values...)}
		c.values[key] = lv
	}
	lv.val += v
	c.mu.Unlock()
}

func (c *CounterVec) Value(values ...string) float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if lv, ok := c.values[labelKey(values)]; ok {
		return lv.val
	}
	return 0
}

func (c *CounterVec) family() *dto.MetricFamily {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mf := newFamily(c.name, c.help, dto.MetricType_COUNTER)
	for _, key := range sortedKeys(c.values) {
		lv := c.values[key]
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   labelPairs(c.labelNames, lv.labels),
			Counter: &dto.Counter{Value: proto.Float64(lv.val)},
		})
	}
	return mf
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Add(v float64) {
	if c == nil || v < 0 {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) family() *dto.MetricFamily {
	mf := newFamily(c.name, c.help, dto.MetricType_COUNTER)
	mf.Metric = []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(c.Value())}}}
	return mf
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Add(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val += v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.val
}

func (g *Gauge) family() *dto.MetricFamily {
	mf := newFamily(g.name, g.help, dto.MetricType_GAUGE)
	mf.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(g.Value())}}}
	return mf
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.Mutex
	series     map[string]*histogram
}

type histogram struct {
	labels []string
	counts []uint64
	count  uint64
	sum    float64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: b, series: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	key := labelKey(values)
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.series[key]
	if !ok {
		s = &histogram{labels: append([]string(nil), values...), counts: make([]uint64, len(h.buckets))}
		h.series[key] = s
	}
	for i, upper := range h.buckets {
		if v <= upper {
			s.counts[i]++
		}
	}
	s.count++
	s.sum += v
}

func (h *HistogramVec) family() *dto.MetricFamily {
	h.mu.Lock()
	defer h.mu.Unlock()
	mf := newFamily(h.name, h.help, dto.MetricType_HISTOGRAM)
	for _, key := range sortedKeys(h.series) {
		s := h.series[key]
		buckets := make([]*dto.Bucket, 0, len(h.buckets))
		for i, upper := range h.buckets {
			buckets = append(buckets, &dto.Bucket{
				UpperBound:      proto.Float64(upper),
				CumulativeCount: proto.Uint64(s.counts[i]),
			})
		}
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: labelPairs(h.labelNames, s.labels),
			Histogram: &dto.Histogram{
				SampleCount: proto.Uint64(s.count),
				SampleSum:   proto.Float64(s.sum),
				Bucket:      buckets,
			},
		})
	}
	return mf
}

func newFamily(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
}

func labelPairs(names, values []string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		out = append(out, &dto.LabelPair{Name: proto.String(n), Value: proto.String(v)})
	}
	return out
}

func labelKey(values []string) string {
	return strings.Join(values, "\x1f")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
