// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	FilesProcessed      *prometheus.CounterVec
	RowsSkipped         *prometheus.CounterVec
	ContractsPersisted  prometheus.Counter
	ContractsFailed     prometheus.Counter
	ObligationsDerived  *prometheus.CounterVec
	UnrecognizedEnums   *prometheus.CounterVec
	FileProcessDuration prometheus.Histogram

	// Resolution metrics
	ResolutionCalls *prometheus.CounterVec

	// Risk metrics
	RiskScores        *prometheus.HistogramVec
	AssessmentsTotal  *prometheus.CounterVec
	CacheInvalidation prometheus.Counter

	// Narrative metrics
	NarrativeOutcomes *prometheus.CounterVec
	NarrativeLatency  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Feed metrics
	FeedClients prometheus.Gauge

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulSweep     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "swap_risk_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "files_processed_total",
			Help:      "Total number of input files processed by status",
		}, []string{"status"}),
		RowsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_skipped_total",
			Help:      "Total number of input rows skipped by reason",
		}, []string{"reason"}),
		ContractsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "contracts_persisted_total",
			Help:      "Total number of contracts saved with their derived rows",
		}),
		ContractsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "contracts_failed_total",
			Help:      "Total number of contracts whose save was rolled back",
		}),
		ObligationsDerived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derivation",
			Name:      "obligations_total",
			Help:      "Total number of obligations derived by type",
		}, []string{"type"}),
		UnrecognizedEnums: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "unrecognized_values_total",
			Help:      "Total number of enum values replaced by their default",
		}, []string{"field"}),
		FileProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "file_duration_seconds",
			Help:      "Time to normalize, derive and persist one file",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		// Resolution metrics
		ResolutionCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "calls_total",
			Help:      "Entity resolution calls by kind and outcome",
		}, []string{"kind", "outcome"}),

		// Risk metrics
		RiskScores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "score",
			Help:      "Distribution of composite risk scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"subject_kind"}),
		AssessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total number of risk assessments by subject kind and level",
		}, []string{"subject_kind", "level"}),
		CacheInvalidation: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exposure",
			Name:      "cache_invalidations_total",
			Help:      "Total number of contract snapshot invalidations",
		}),

		// Narrative metrics
		NarrativeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narrative",
			Name:      "requests_total",
			Help:      "Narrative generation requests by outcome",
		}, []string{"outcome"}),
		NarrativeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "narrative",
			Name:      "latency_seconds",
			Help:      "Narrative generation latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		// Feed metrics
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Number of connected websocket clients",
		}),

		// Health metrics
		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful file ingestion",
		}),
		LastSuccessfulSweep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last completed assessment sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordFile records the outcome of one processed file.
func RecordFile(status string, d time.Duration) {
	DefaultMetrics.FilesProcessed.WithLabelValues(status).Inc()
	DefaultMetrics.FileProcessDuration.Observe(d.Seconds())
	if status == "ok" {
		DefaultMetrics.LastSuccessfulIngestion.SetToCurrentTime()
	}
}

// RecordSkippedRow increments the skipped row counter.
func RecordSkippedRow(reason string) {
	DefaultMetrics.RowsSkipped.WithLabelValues(reason).Inc()
}

// RecordUnrecognized counts an enum value that fell back to its default.
func RecordUnrecognized(field string) {
	DefaultMetrics.UnrecognizedEnums.WithLabelValues(field).Inc()
}

// RecordContract records a contract save.
func RecordContract(err error) {
	if err != nil {
		DefaultMetrics.ContractsFailed.Inc()
		return
	}
	DefaultMetrics.ContractsPersisted.Inc()
}

// RecordObligation increments the derived obligation counter.
func RecordObligation(obligationType string) {
	DefaultMetrics.ObligationsDerived.WithLabelValues(obligationType).Inc()
}

// RecordResolution records one entity resolution call.
func RecordResolution(kind, outcome string) {
	DefaultMetrics.ResolutionCalls.WithLabelValues(kind, outcome).Inc()
}

// RecordAssessment records a scored subject.
func RecordAssessment(subjectKind, level string, score float64) {
	DefaultMetrics.RiskScores.WithLabelValues(subjectKind).Observe(score)
	DefaultMetrics.AssessmentsTotal.WithLabelValues(subjectKind, level).Inc()
}

// RecordInvalidation increments the cache invalidation counter.
func RecordInvalidation() {
	DefaultMetrics.CacheInvalidation.Inc()
}

// RecordNarrative records a narrative request outcome.
func RecordNarrative(outcome string, d time.Duration) {
	DefaultMetrics.NarrativeOutcomes.WithLabelValues(outcome).Inc()
	DefaultMetrics.NarrativeLatency.Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, d time.Duration, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordHTTPRequest records one served API request.
func RecordHTTPRequest(route, method string, code int, d time.Duration) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// SetFeedClients updates the connected websocket client gauge.
func SetFeedClients(n int) {
	DefaultMetrics.FeedClients.Set(float64(n))
}

// RecordSweep marks a completed assessment sweep.
func RecordSweep() {
	DefaultMetrics.LastSuccessfulSweep.SetToCurrentTime()
}
