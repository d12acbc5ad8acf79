package gateway

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records webhook measurements on a private Prometheus registry and
// keeps a few atomic counters for the /status snapshot.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	tokens          *prometheus.CounterVec

	total        atomic.Int64
	failed       atomic.Int64
	completions  atomic.Int64
	totalTokens  atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

// NewMetrics creates the collectors and registers them, with the Go and
// process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Fulfillment requests by outcome.",
		}, []string{"outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_provider_latency_seconds",
			Help:    "Completion call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"result"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_provider_tokens_total",
			Help: "Tokens reported by the provider.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.providerLatency,
		m.tokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackConversations exposes the number of stored users as a gauge.
func (m *Metrics) TrackConversations(store conversation.Store) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "webhook_conversations",
		Help: "Users with a stored conversation.",
	}, func() float64 {
		n, err := store.Len()
		if err != nil {
			return 0
		}
		return float64(n)
	}))
}

// ObserveRequest records a finished fulfillment request.
func (m *Metrics) ObserveRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
	m.total.Add(1)
	if outcome != "ok" {
		m.failed.Add(1)
	}
}

// ObserveProvider records one completion call.
func (m *Metrics) ObserveProvider(d time.Duration, usage provider.TokenUsage, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerLatency.WithLabelValues(result).Observe(d.Seconds())
	if err != nil {
		return
	}
	m.tokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	m.tokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))

	m.completions.Add(1)
	m.totalTokens.Add(int64(usage.TotalTokens))
	m.totalLatency.Add(int64(d))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	completions := m.completions.Load()
	snap := MetricsSnapshot{
		Requests:    m.total.Load(),
		Failures:    m.failed.Load(),
		Completions: completions,
		TotalTokens: m.totalTokens.Load(),
	}
	if completions > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / completions)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests    int64         `json:"requests"`
	Failures    int64         `json:"failures"`
	Completions int64         `json:"completions"`
	TotalTokens int64         `json:"total_tokens"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
}
