// Package metrics defines the Prometheus collectors for index builds and
// query sessions. Collectors live on a private registry so every tool run
// (and every test) starts from zero.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the indexer and searcher.
type Metrics struct {
	Registry          *prometheus.Registry
	BuildsTotal       *prometheus.CounterVec
	BuildDuration     prometheus.Gauge
	BlocksIndexed     prometheus.Counter
	DocsIndexed       prometheus.Counter
	TermsIndexed      prometheus.Gauge
	MergesTotal       *prometheus.CounterVec
	MergeDuration     prometheus.Histogram
	IndexBytes        prometheus.Gauge
	QueriesTotal      *prometheus.CounterVec
	QueryLatency      *prometheus.HistogramVec
	QueryResultsCount prometheus.Histogram
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
}

// New creates all collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsbi_builds_total",
				Help: "Index builds by status (ok, error).",
			},
			[]string{"status"},
		),
		BuildDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsbi_build_duration_seconds",
				Help: "Wall time of the last index build.",
			},
		),
		BlocksIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_blocks_indexed_total",
				Help: "Blocks scanned and written as block index files.",
			},
		),
		DocsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_docs_indexed_total",
				Help: "Documents assigned a doc id.",
			},
		),
		TermsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsbi_terms",
				Help: "Distinct terms in the term dictionary.",
			},
		),
		MergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsbi_merges_total",
				Help: "Pairwise block merges by kind (intermediate, final).",
			},
			[]string{"kind"},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bsbi_merge_duration_seconds",
				Help:    "Duration of a single pairwise merge.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		IndexBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsbi_index_bytes",
				Help: "Size of the final corpus index file.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsbi_queries_total",
				Help: "Queries by result type (hit, empty, unknown_term, error).",
			},
			[]string{"result_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bsbi_query_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bsbi_query_results_count",
				Help:    "Number of documents returned per query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_cache_hits_total",
				Help: "Query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_cache_misses_total",
				Help: "Query cache misses.",
			},
		),
	}

	m.Registry.MustRegister(
		m.BuildsTotal,
		m.BuildDuration,
		m.BlocksIndexed,
		m.DocsIndexed,
		m.TermsIndexed,
		m.MergesTotal,
		m.MergeDuration,
		m.IndexBytes,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
