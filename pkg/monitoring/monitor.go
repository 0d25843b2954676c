package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cohort_aggregation_duration_seconds",
			Help:    "Duration of cohort distribution operations",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "status"},
	)

	AggregationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohort_aggregation_conflicts_total",
			Help: "Compare-and-swap conflicts on cohort distributions",
		},
		[]string{"operation"},
	)

	AggregationRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohort_aggregation_retries_total",
			Help: "Retried cohort distribution operations",
		},
		[]string{"operation"},
	)

	AssessmentsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessments_submitted_total",
			Help: "Rubric assessments saved",
		},
		[]string{"test_type"},
	)

	InvariantViolations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cohort_distribution_invariant_violations",
			Help: "Cohort distributions failing the counting invariant at the last audit",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AggregationDuration,
			AggregationConflicts,
			AggregationRetries,
			AssessmentsSubmitted,
			InvariantViolations,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// AggregatorMetrics records cohort aggregator events in the collectors above.
type AggregatorMetrics struct{}

func (AggregatorMetrics) ObserveOperation(name, status string, dur time.Duration) {
	AggregationDuration.WithLabelValues(name, status).Observe(dur.Seconds())
}

func (AggregatorMetrics) IncConflict(name string) {
	AggregationConflicts.WithLabelValues(name).Inc()
}

func (AggregatorMetrics) IncRetry(name string) {
	AggregationRetries.WithLabelValues(name).Inc()
}

func (AggregatorMetrics) IncSubmitted(testType string) {
	AssessmentsSubmitted.WithLabelValues(testType).Inc()
}

func (AggregatorMetrics) SetInvariantViolations(n int) {
	InvariantViolations.Set(float64(n))
}
