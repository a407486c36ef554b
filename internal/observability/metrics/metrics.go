package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "broker_pricing_"

	resultSuccess  = "success"
	resultError    = "error"
	resultRejected = "rejected"
)

var (
	registerOnce sync.Once

	importTotal   *prometheus.CounterVec
	importLatency *prometheus.HistogramVec
	importMeters  prometheus.Histogram

	rowsDropped *prometheus.CounterVec

	priceTotal   *prometheus.CounterVec
	priceLatency *prometheus.HistogramVec
	termsFailed  prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	upliftEdits *prometheus.CounterVec
)

// SessionCounter reports the number of live pricing sessions.
type SessionCounter interface {
	Count() int
}

// Init registers pricing metrics. When sessions is non-nil a gauge tracks the
// number of live sessions.
func Init(sessions SessionCounter) {
	registerOnce.Do(func() {
		importTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_total",
				Help: "Total tender imports by result",
			},
			[]string{"result"},
		)
		importLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "import_latency_seconds",
				Help:    "Tender import latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		importMeters = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "import_meters",
				Help:    "Meters per imported tender",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)

		rowsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_dropped_total",
				Help: "Total tender rows dropped or flagged by reason",
			},
			[]string{"reason"},
		)

		priceTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "price_total",
				Help: "Total pricing runs by result",
			},
			[]string{"result"},
		)
		priceLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "price_latency_seconds",
				Help:    "Pricing run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		termsFailed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "terms_failed_total",
				Help: "Total contract terms that could not be priced",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total broker output exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Broker output export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		upliftEdits = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "uplift_edits_total",
				Help: "Total uplift edits by scope",
			},
			[]string{"scope"},
		)

		prometheus.MustRegister(
			importTotal,
			importLatency,
			importMeters,
			rowsDropped,
			priceTotal,
			priceLatency,
			termsFailed,
			exportTotal,
			exportLatency,
			upliftEdits,
		)

		if sessions != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "active_sessions",
					Help: "Pricing sessions currently held in memory",
				},
				func() float64 { return float64(sessions.Count()) },
			))
		}
	})
}

// ObserveImport records import latency and result.
func ObserveImport(result string, meters int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if importTotal != nil {
		importTotal.WithLabelValues(result).Inc()
	}
	if importLatency != nil {
		importLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if importMeters != nil && result == resultSuccess {
		importMeters.Observe(float64(meters))
	}
}

// AddRowsDropped increments the dropped row counter by count.
func AddRowsDropped(reason string, count int) {
	if count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	if rowsDropped != nil {
		rowsDropped.WithLabelValues(reason).Add(float64(count))
	}
}

// ObservePrice records pricing latency, result and failed terms.
func ObservePrice(result string, failedTerms int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if priceTotal != nil {
		priceTotal.WithLabelValues(result).Inc()
	}
	if priceLatency != nil {
		priceLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if termsFailed != nil && failedTerms > 0 {
		termsFailed.Add(float64(failedTerms))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncUpliftEdit increments the uplift edit counter.
func IncUpliftEdit(scope string) {
	if scope == "" {
		scope = "unknown"
	}
	if upliftEdits != nil {
		upliftEdits.WithLabelValues(scope).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultRejected = resultRejected

	UpliftScopeSession = "session"
	UpliftScopeMeter   = "meter"
)
