// Package metrics exposes Prometheus collectors for the command engine and
// the scheduler loop.
//
// All methods are safe on a nil *Metrics, so components can run without
// instrumentation in tests and in the CLI.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "graylogic_scheduler_"

	// Command sources.
	SourceImmediate = "immediate"
	SourceScheduled = "scheduled"

	// Outcome labels.
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics bundles the scheduler's collectors.
type Metrics struct {
	commandsTotal   *prometheus.CounterVec
	submittedTotal  prometheus.Counter
	rejectedTotal   *prometheus.CounterVec
	cancelledTotal  prometheus.Counter
	cyclesTotal     prometheus.Counter
	cycleErrors     prometheus.Counter
	cycleDuration   prometheus.Histogram
	invalidDueTotal prometheus.Counter
	pendingEntries  prometheus.Gauge
	droppedEvents   *prometheus.CounterVec
}

// New constructs the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total executed commands by source and result",
			},
			[]string{"source", "result"},
		),
		submittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "schedules_submitted_total",
			Help: "Total deferred commands accepted into the store",
		}),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "schedules_rejected_total",
				Help: "Total deferred commands rejected by reason",
			},
			[]string{"reason"},
		),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "schedules_cancelled_total",
			Help: "Total cancel requests",
		}),
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "cycles_total",
			Help: "Total scheduler cycles",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "cycle_errors_total",
			Help: "Total store errors seen by the scheduler loop",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "cycle_duration_seconds",
			Help:    "Scheduler cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		invalidDueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "invalid_due_total",
			Help: "Pending entries skipped because their due time does not parse",
		}),
		pendingEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "pending_entries",
			Help: "Pending entries seen by the last scheduler cycle",
		}),
		droppedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_dropped_total",
				Help: "Events dropped because a sink queue was full",
			},
			[]string{"sink"},
		),
	}
	reg.MustRegister(
		m.commandsTotal,
		m.submittedTotal,
		m.rejectedTotal,
		m.cancelledTotal,
		m.cyclesTotal,
		m.cycleErrors,
		m.cycleDuration,
		m.invalidDueTotal,
		m.pendingEntries,
		m.droppedEvents,
	)
	return m
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// ObserveCommand records one executor outcome.
func (m *Metrics) ObserveCommand(source string, ok bool) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(source, result(ok)).Inc()
}

// IncSubmitted counts a deferred command written to the store.
func (m *Metrics) IncSubmitted() {
	if m == nil {
		return
	}
	m.submittedTotal.Inc()
}

// IncRejected counts a deferred command refused before persistence.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

// IncCancelled counts a cancel request.
func (m *Metrics) IncCancelled() {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
}

// ObserveCycle records one scheduler pass.
func (m *Metrics) ObserveCycle(pending, invalid int, duration time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.pendingEntries.Set(float64(pending))
	m.invalidDueTotal.Add(float64(invalid))
	m.cycleDuration.Observe(duration.Seconds())
}

// IncCycleError counts a store failure inside the scheduler loop.
func (m *Metrics) IncCycleError() {
	if m == nil {
		return
	}
	m.cycleErrors.Inc()
}

// IncDroppedEvent counts an event a sink could not accept.
func (m *Metrics) IncDroppedEvent(sink string) {
	if m == nil {
		return
	}
	m.droppedEvents.WithLabelValues(sink).Inc()
}
