package emitter

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// PrometheusSink registers one vector per distinct metric name the first
// time it is observed, inferring the label set from that call's Tags. All
// later calls for the same name must carry the same tag keys; a mismatch
// is logged at warn and dropped rather than panicking the caller, since
// emission must never fail record processing.
type PrometheusSink struct {
	namespace string
	registry  prometheus.Registerer
	logger    *zap.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labelKeys  map[string][]string

	events *prometheus.CounterVec
}

func NewPrometheusSink(namespace string, registry prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	s := &PrometheusSink{
		namespace:  namespace,
		registry:   registry,
		logger:     logger.With(zap.String("component", "emitter")),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labelKeys:  make(map[string][]string),
	}
	s.events = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total number of emitted incident events, by severity",
	}, []string{"severity"})
	return s
}

func metricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func (s *PrometheusSink) Counter(name string, value float64, tags Tags) {
	keys, vals := sortedTags(tags)
	s.mu.Lock()
	vec, ok := s.counters[name]
	if !ok {
		vec = promauto.With(s.registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      metricName(name),
			Help:      "telemetry pipeline counter",
		}, keys)
		s.counters[name] = vec
		s.labelKeys[name] = keys
	}
	mismatch := !equalKeys(s.labelKeys[name], keys)
	s.mu.Unlock()

	if mismatch {
		s.logger.Warn("counter tag key mismatch, dropped", zap.String("metric", name))
		return
	}
	vec.WithLabelValues(vals...).Add(value)
}

func (s *PrometheusSink) Gauge(name string, value float64, tags Tags) {
	keys, vals := sortedTags(tags)
	s.mu.Lock()
	vec, ok := s.gauges[name]
	if !ok {
		vec = promauto.With(s.registry).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      metricName(name),
			Help:      "telemetry pipeline gauge",
		}, keys)
		s.gauges[name] = vec
		s.labelKeys[name] = keys
	}
	mismatch := !equalKeys(s.labelKeys[name], keys)
	s.mu.Unlock()

	if mismatch {
		s.logger.Warn("gauge tag key mismatch, dropped", zap.String("metric", name))
		return
	}
	vec.WithLabelValues(vals...).Set(value)
}

func (s *PrometheusSink) Histogram(name string, value float64, tags Tags) {
	keys, vals := sortedTags(tags)
	s.mu.Lock()
	vec, ok := s.histograms[name]
	if !ok {
		vec = promauto.With(s.registry).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      metricName(name),
			Help:      "telemetry pipeline histogram",
			Buckets:   prometheus.DefBuckets,
		}, keys)
		s.histograms[name] = vec
		s.labelKeys[name] = keys
	}
	mismatch := !equalKeys(s.labelKeys[name], keys)
	s.mu.Unlock()

	if mismatch {
		s.logger.Warn("histogram tag key mismatch, dropped", zap.String("metric", name))
		return
	}
	vec.WithLabelValues(vals...).Observe(value)
}

func (s *PrometheusSink) Event(title, body string, severity string, tags Tags) {
	s.events.WithLabelValues(severity).Inc()
	s.logger.Info("incident event", zap.String("title", title), zap.String("body", body), zap.String("severity", severity))
}

func sortedTags(tags Tags) (keys, vals []string) {
	keys = make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals = make([]string, len(keys))
	for i, k := range keys {
		vals[i] = tags[k]
	}
	return keys, vals
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
