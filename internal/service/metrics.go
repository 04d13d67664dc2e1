package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Metric names.
	MetricNameTicks             = "valwatcher_ticks_total"
	MetricNameValidators        = "valwatcher_validators_total"
	MetricNameCommissionEvents  = "valwatcher_commission_events_total"
	MetricNameDelinquencyAlerts = "valwatcher_delinquency_alerts_total"
	MetricNameDeliveryFailures  = "valwatcher_delivery_failures_total"
	MetricNameMevSourceErrors   = "valwatcher_mev_source_errors_total"

	// Labels.
	MetricLabelResult         = "result"
	MetricLabelMetric         = "metric"
	MetricLabelClassification = "classification"

	// Tick results.
	MetricTickCompleted = "completed"
	MetricTickFailed    = "failed"
	MetricTickLocked    = "locked"

	// Validator results.
	MetricValidatorProcessed = "processed"
	MetricValidatorSkipped   = "skipped"
	MetricValidatorFailed    = "failed"
)

// Metrics holds the watcher's prometheus collectors.
type Metrics struct {
	Ticks             *prometheus.CounterVec
	Validators        *prometheus.CounterVec
	CommissionEvents  *prometheus.CounterVec
	DelinquencyAlerts prometheus.Counter
	DeliveryFailures  prometheus.Counter
	MevSourceErrors   prometheus.Counter
}

// NewMetrics creates the collectors but does not auto-register them.
func NewMetrics() *Metrics {
	return &Metrics{
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNameTicks,
				Help: "Number of check ticks by result",
			},
			[]string{MetricLabelResult},
		),
		Validators: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNameValidators,
				Help: "Number of per-validator processing outcomes",
			},
			[]string{MetricLabelResult},
		),
		CommissionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNameCommissionEvents,
				Help: "Number of commission events recorded",
			},
			[]string{MetricLabelMetric, MetricLabelClassification},
		),
		DelinquencyAlerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricNameDelinquencyAlerts,
				Help: "Number of delinquency alerts raised",
			},
		),
		DeliveryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricNameDeliveryFailures,
				Help: "Number of notification deliveries that failed",
			},
		),
		MevSourceErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricNameMevSourceErrors,
				Help: "Number of ticks that ran without MEV commissions",
			},
		),
	}
}

// Register all metrics with the provided registry.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.Ticks,
		m.Validators,
		m.CommissionEvents,
		m.DelinquencyAlerts,
		m.DeliveryFailures,
		m.MevSourceErrors,
	)
}
