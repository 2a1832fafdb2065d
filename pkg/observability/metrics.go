package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vector database.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Build metrics
	BuildsTotal       prometheus.Counter
	BuildDuration     prometheus.Histogram
	BuildVectorsTotal prometheus.Counter
	BuildPartitions   prometheus.Gauge
	KMeansIterations  *prometheus.HistogramVec

	// Query metrics
	QueriesTotal           prometheus.Counter
	QueryLatency           prometheus.Histogram
	QueryPartitionsScanned prometheus.Histogram
	QueryResultSize        prometheus.Histogram
	AttributeLookups       prometheus.Counter

	// Async engine metrics
	CellLoadsTotal   *prometheus.CounterVec
	CellLoadDuration *prometheus.HistogramVec
	CellCacheHits    *prometheus.CounterVec
	PollRounds       prometheus.Histogram

	// Storage metrics
	FilesRead        *prometheus.CounterVec
	BytesRead        prometheus.Counter
	HashVerifyFailed prometheus.Counter

	// Cache metrics (generic request-scoped cache, e.g. rate limiter state)
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
	CPUUsage        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectordb_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectordb_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectordb_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		BuildsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_builds_total",
				Help: "Total number of index builds completed",
			},
		),
		BuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectordb_build_duration_seconds",
				Help:    "Index build duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),
		BuildVectorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_build_vectors_total",
				Help: "Total number of vectors added across all builds",
			},
		),
		BuildPartitions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectordb_build_partitions",
				Help: "Number of coarse partitions in the most recently built index",
			},
		),
		KMeansIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectordb_kmeans_iterations",
				Help:    "Number of Lloyd iterations until convergence, by clustering stage",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"stage"},
		),

		QueriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_queries_total",
				Help: "Total number of query operations",
			},
		),
		QueryLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectordb_query_latency_seconds",
				Help:    "Query latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		QueryPartitionsScanned: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectordb_query_partitions_scanned",
				Help:    "Number of partitions scanned per query (nprobe)",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
			},
		),
		QueryResultSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectordb_query_result_size",
				Help:    "Number of results returned by a query",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
			},
		),
		AttributeLookups: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_attribute_lookups_total",
				Help: "Total number of GetAttribute calls",
			},
		),

		CellLoadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectordb_cell_loads_total",
				Help: "Total number of async OnceCell loads started, by artifact kind",
			},
			[]string{"kind"},
		),
		CellLoadDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectordb_cell_load_duration_seconds",
				Help:    "Duration of an async OnceCell load, by artifact kind",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"kind"},
		),
		CellCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectordb_cell_cache_hits_total",
				Help: "Total number of async OnceCell polls that observed an already-completed load, by artifact kind",
			},
			[]string{"kind"},
		),
		PollRounds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectordb_query_future_poll_rounds",
				Help:    "Number of forward-progress rounds a QueryFuture.Poll loop executed before blocking",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),

		FilesRead: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectordb_files_read_total",
				Help: "Total number of content-addressed files opened, by kind",
			},
			[]string{"kind"},
		),
		BytesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_bytes_read_total",
				Help: "Total number of uncompressed bytes read from content-addressed storage",
			},
		),
		HashVerifyFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_hash_verify_failed_total",
				Help: "Total number of content-addressed reads that failed SHA-256 verification",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectordb_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectordb_cache_size",
				Help: "Current number of entries in cache",
			},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectordb_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectordb_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
		CPUUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectordb_cpu_usage",
				Help: "CPU usage percentage",
			},
		),
	}

	return m
}

// RecordRequest records a request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordBuild records a completed index build.
func (m *Metrics) RecordBuild(duration time.Duration, numVectors, numPartitions int) {
	m.BuildsTotal.Inc()
	m.BuildDuration.Observe(duration.Seconds())
	m.BuildVectorsTotal.Add(float64(numVectors))
	m.BuildPartitions.Set(float64(numPartitions))
}

// RecordKMeansIterations records how many Lloyd iterations a
// clustering stage (e.g. "coarse" or "subspace") took to converge.
func (m *Metrics) RecordKMeansIterations(stage string, iterations int) {
	m.KMeansIterations.WithLabelValues(stage).Observe(float64(iterations))
}

// RecordQuery records a completed query operation.
func (m *Metrics) RecordQuery(duration time.Duration, nprobe, resultSize int) {
	m.QueriesTotal.Inc()
	m.QueryLatency.Observe(duration.Seconds())
	m.QueryPartitionsScanned.Observe(float64(nprobe))
	m.QueryResultSize.Observe(float64(resultSize))
}

// RecordAttributeLookup records a GetAttribute call.
func (m *Metrics) RecordAttributeLookup() {
	m.AttributeLookups.Inc()
}

// RecordCellLoad records an async OnceCell load starting and
// completing, by artifact kind ("centroids", "codebook", "partition",
// "attributes_log").
func (m *Metrics) RecordCellLoad(kind string, duration time.Duration) {
	m.CellLoadsTotal.WithLabelValues(kind).Inc()
	m.CellLoadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCellCacheHit records a Poll/Wait call that observed an
// already-completed cell rather than starting a new load.
func (m *Metrics) RecordCellCacheHit(kind string) {
	m.CellCacheHits.WithLabelValues(kind).Inc()
}

// RecordPollRounds records how many forward-progress rounds a
// QueryFuture's Poll loop ran through before yielding control back to
// the caller.
func (m *Metrics) RecordPollRounds(rounds int) {
	m.PollRounds.Observe(float64(rounds))
}

// RecordFileRead records a content-addressed file open, by kind
// ("manifest", "centroids", "codebook", "partition", "attributes_log").
func (m *Metrics) RecordFileRead(kind string, bytes int) {
	m.FilesRead.WithLabelValues(kind).Inc()
	m.BytesRead.Add(float64(bytes))
}

// RecordHashVerifyFailure records a content-addressed read whose
// payload did not hash to the expected digest.
func (m *Metrics) RecordHashVerifyFailure() {
	m.HashVerifyFailed.Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateCacheSize updates cache size.
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// UpdateGoroutineCount updates goroutine count.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates memory usage.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateCPUUsage updates CPU usage.
func (m *Metrics) UpdateCPUUsage(percentage float64) {
	m.CPUUsage.Set(percentage)
}
