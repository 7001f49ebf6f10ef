package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pool's operation instrumentation.
type Metrics struct {
	swapDuration     *prometheus.HistogramVec
	swapSteps        prometheus.Histogram
	ticksCrossed     prometheus.Counter
	mintTotal        prometheus.Counter
	burnTotal        prometheus.Counter
	collectTotal     prometheus.Counter
	flashTotal       prometheus.Counter
	operationErrors  *prometheus.CounterVec
	observationCount prometheus.Gauge
}

// NewMetrics constructs and registers the pool metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		swapDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "swap_duration_seconds",
			Help:      "Wall time of swap execution.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"direction"}),
		swapSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "swap_steps",
			Help:      "Number of bounded steps executed per swap.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ticksCrossed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "ticks_crossed_total",
			Help:      "Initialized ticks crossed by swaps.",
		}),
		mintTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "mint_total",
			Help:      "Successful mint operations.",
		}),
		burnTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "burn_total",
			Help:      "Successful burn operations.",
		}),
		collectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "collect_total",
			Help:      "Successful collect operations.",
		}),
		flashTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "flash_total",
			Help:      "Successful flash loans.",
		}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "operation_errors_total",
			Help:      "Failed operations by entry point.",
		}, []string{"operation"}),
		observationCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clmm",
			Subsystem: "pool",
			Name:      "observation_cardinality",
			Help:      "Current oracle observation cardinality.",
		}),
	}

	reg.MustRegister(
		m.swapDuration,
		m.swapSteps,
		m.ticksCrossed,
		m.mintTotal,
		m.burnTotal,
		m.collectTotal,
		m.flashTotal,
		m.operationErrors,
		m.observationCount,
	)
	return m
}
