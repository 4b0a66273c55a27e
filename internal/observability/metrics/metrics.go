package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landledger_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	landRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_land_registrations_total",
		Help: "Count of land registration attempts by result",
	}, []string{"result"})

	verificationStages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_verification_stages_total",
		Help: "Count of verification stage runs by stage and outcome",
	}, []string{"stage", "outcome"})

	verificationStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landledger_verification_stage_duration_seconds",
		Help:    "Duration of verification stage executions",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 30},
	}, []string{"stage"})

	activeVerifications = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "landledger_active_verification_tasks",
		Help: "Number of verification tasks currently running",
	})

	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_transfers_total",
		Help: "Count of ownership transfer attempts by result",
	}, []string{"result"})

	janitorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_janitor_pruned_total",
		Help: "Count of records pruned by the background janitor",
	}, []string{"kind"})

	faultInjections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_verification_faults_injected_total",
		Help: "Count of verification stage failures injected for resilience testing",
	}, []string{"stage"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "landledger_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half open, 2 open)",
	}, []string{"name"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLandRegistration counts a registration attempt
func ObserveLandRegistration(result string) {
	landRegistrations.WithLabelValues(result).Inc()
}

// ObserveVerificationStage records the outcome and duration of one stage run
func ObserveVerificationStage(stage, outcome string, duration time.Duration) {
	verificationStages.WithLabelValues(stage, outcome).Inc()
	verificationStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// IncrementActiveVerifications increments the running task gauge.
func IncrementActiveVerifications() {
	activeVerifications.Inc()
}

// DecrementActiveVerifications decrements the running task gauge.
func DecrementActiveVerifications() {
	activeVerifications.Dec()
}

// ObserveTransfer counts a transfer attempt
func ObserveTransfer(result string) {
	transfersTotal.WithLabelValues(result).Inc()
}

// ObserveJanitor adds pruned records of the given kind.
func ObserveJanitor(kind string, count int) {
	if count <= 0 {
		return
	}
	janitorRuns.WithLabelValues(kind).Add(float64(count))
}

// ObserveFaultInjection counts an injected stage failure
func ObserveFaultInjection(stage string) {
	faultInjections.WithLabelValues(stage).Inc()
}

// ObserveBreakerState publishes the current state of a named circuit breaker
func ObserveBreakerState(name, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	breakerState.WithLabelValues(name).Set(v)
}
