// Package metrics exposes Prometheus metrics and the /healthz status of the
// signal bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peceto"

// Metrics holds all Prometheus metrics for the signal bot.
type Metrics struct {
	// Poll cycle
	CyclesTotal      prometheus.Counter
	CycleErrors      *prometheus.CounterVec // labels: stage=fetch|series|evaluate
	FetchDur         prometheus.Histogram
	ComputeDur       prometheus.Histogram
	LastClose        prometheus.Gauge
	LastRSI          prometheus.Gauge
	InsufficientData prometheus.Counter

	// Signals
	SignalsTotal   *prometheus.CounterVec // labels: type, outcome
	SignalStrength *prometheus.GaugeVec   // labels: type

	// Notification
	NotifyFailures  prometheus.Counter
	DispatchPending prometheus.Gauge

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisSkippedWrites       prometheus.Counter

	// Chart stream
	ChartClients prometheus.Gauge
}

// NewMetrics creates all metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles started",
		}),
		CycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_errors_total",
			Help:      "Poll cycles that failed, by stage",
		}, []string{"stage"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Kline fetch latency",
			Buckets:   prometheus.DefBuckets,
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Indicator computation latency per cycle",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		LastClose: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_close",
			Help:      "Close price of the latest bar",
		}),
		LastRSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_rsi",
			Help:      "RSI of the latest bar",
		}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_data_total",
			Help:      "Cycles skipped because the latest rows were not warm",
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Fired signals by type and outcome (delivered, suppressed, dropped, failed)",
		}, []string{"type", "outcome"}),
		SignalStrength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_strength",
			Help:      "Strength of the latest evaluation, by type",
		}, []string{"type"}),

		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Alerts that exhausted their delivery retries",
		}),
		DispatchPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_pending",
			Help:      "Alerts waiting in the dispatcher queue",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redis_circuit_breaker_state",
			Help:      "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_circuit_breaker_trips_total",
			Help:      "Times the Redis circuit breaker opened",
		}),
		RedisSkippedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_skipped_writes_total",
			Help:      "Redis writes rejected by the open circuit breaker",
		}),

		ChartClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chart_clients",
			Help:      "Connected chart websocket clients",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleErrors,
		m.FetchDur,
		m.ComputeDur,
		m.LastClose,
		m.LastRSI,
		m.InsufficientData,
		m.SignalsTotal,
		m.SignalStrength,
		m.NotifyFailures,
		m.DispatchPending,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisSkippedWrites,
		m.ChartClients,
	)

	return m
}

// ObserveSignal counts one fired signal with its outcome.
func (m *Metrics) ObserveSignal(signalType, outcome string) {
	m.SignalsTotal.WithLabelValues(signalType, outcome).Inc()
}

// ObserveBreaker records a Redis circuit breaker transition.
func (m *Metrics) ObserveBreaker(to int) {
	m.RedisCircuitBreakerState.Set(float64(to))
	if to == 1 {
		m.RedisCircuitBreakerTrips.Inc()
	}
}
