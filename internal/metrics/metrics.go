// Package metrics exposes Prometheus instrumentation for ingestion and
// query serving. All recording methods are safe on a nil *Metrics, so
// services can be built without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "devrag"

// Metrics holds the collectors and their registry.
type Metrics struct {
	embedRequests *prometheus.CounterVec
	embeddedTexts prometheus.Counter
	retries       *prometheus.CounterVec

	stageDuration *prometheus.HistogramVec
	queries       *prometheus.CounterVec
	results       prometheus.Histogram
	contextTokens prometheus.Histogram

	documents *prometheus.CounterVec
	chunks    prometheus.Counter
	oversize  prometheus.Counter

	registry *prometheus.Registry
}

// New creates a metrics set registered on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.embedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding requests by outcome",
		},
		[]string{"outcome"},
	)
	m.embeddedTexts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedded_texts_total",
		Help:      "Texts successfully embedded",
	})
	m.retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried calls to external services",
		},
		[]string{"service"},
	)
	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_stage_duration_seconds",
			Help:      "Time spent per query stage",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	m.queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Questions answered by terminal state",
		},
		[]string{"state"},
	)
	m.results = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieved_results",
		Help:      "Results returned per retrieval",
		Buckets:   prometheus.LinearBuckets(0, 2, 11),
	})
	m.contextTokens = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "context_tokens",
		Help:      "Estimated tokens per assembled context",
		Buckets:   prometheus.ExponentialBuckets(250, 2, 8),
	})
	m.documents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_documents_total",
			Help:      "Documents processed by ingestion, by status",
		},
		[]string{"status"},
	)
	m.chunks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "indexed_chunks_total",
		Help:      "Chunks written to the vector index",
	})
	m.oversize = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oversize_chunks_total",
		Help:      "Chunks kept above the size limit to avoid splitting a line",
	})

	m.registry.MustRegister(
		m.embedRequests, m.embeddedTexts, m.retries,
		m.stageDuration, m.queries, m.results, m.contextTokens,
		m.documents, m.chunks, m.oversize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// EmbedRequest records one embedding call.
func (m *Metrics) EmbedRequest(texts int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.embedRequests.WithLabelValues("error").Inc()
		return
	}
	m.embedRequests.WithLabelValues("ok").Inc()
	m.embeddedTexts.Add(float64(texts))
}

// Retry records a retried call.
func (m *Metrics) Retry(service string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(service).Inc()
}

// ObserveStage records the duration of a query stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Query records a finished question by terminal state.
func (m *Metrics) Query(state string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(state).Inc()
}

// Retrieved records the size of a retrieval result.
func (m *Metrics) Retrieved(n int) {
	if m == nil {
		return
	}
	m.results.Observe(float64(n))
}

// ContextTokens records an assembled context size.
func (m *Metrics) ContextTokens(n int) {
	if m == nil {
		return
	}
	m.contextTokens.Observe(float64(n))
}

// Document records an ingestion outcome.
func (m *Metrics) Document(status string, chunks, oversize int) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(status).Inc()
	m.chunks.Add(float64(chunks))
	m.oversize.Add(float64(oversize))
}
