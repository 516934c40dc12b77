package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cset_bake"

// Metrics holds the Prometheus counters, histograms, and gauges for recipe
// execution and the bake worker.
type Metrics struct {
	// Executor metrics.
	StepsExecuted *prometheus.CounterVec   // labels: operator
	StepErrors    *prometheus.CounterVec   // labels: operator
	StepDuration  *prometheus.HistogramVec // labels: operator
	Recipes       *prometheus.CounterVec   // labels: outcome={succeeded,failed}

	// Worker metrics.
	RequestsConsumed prometheus.Counter
	ResultsProduced  prometheus.Counter
	BakeErrors       prometheus.Counter
	WorkerRunning    prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	StatisticsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

var (
	stepBuckets  = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300}
	batchBuckets = []float64{1, 5, 10, 20, 30, 40, 50, 75, 100}
	cycleBuckets = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}
)

func newMetrics() *Metrics {
	return &Metrics{
		StepsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_executed_total",
			Help:      "Operator invocations that returned a result.",
		}, []string{"operator"}),
		StepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Operator invocations that returned an error.",
		}, []string{"operator"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Operator invocation duration in seconds.",
			Buckets:   stepBuckets,
		}, []string{"operator"}),
		Recipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipes_total",
			Help:      "Recipe executions by outcome.",
		}, []string{"outcome"}),
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_consumed_total",
			Help:      "Total bake requests read from the request topic.",
		}),
		ResultsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_produced_total",
			Help:      "Total bake results written to the result topic.",
		}),
		BakeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bake_errors_total",
			Help:      "Total requests that could not be parsed or whose recipe failed.",
		}),
		WorkerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 when the bake worker is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   batchBuckets,
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-bake-publish cycle.",
			Buckets:   cycleBuckets,
		}),
		StatisticsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statistics_published_total",
			Help:      "Statistics events written to the statistics topic by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StepsExecuted,
		m.StepErrors,
		m.StepDuration,
		m.Recipes,
		m.RequestsConsumed,
		m.ResultsProduced,
		m.BakeErrors,
		m.WorkerRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.StatisticsPublished,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry registers the metrics on reg, for one-shot processes
// that push a private registry to a Pushgateway.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
