package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// value gathers reg and returns the counter or gauge value of the series
// name whose labels include want.
func value(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != metricPrefix+name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, want)
	return 0
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCommand(SourceScheduled, true)
	m.ObserveCommand(SourceScheduled, false)
	m.ObserveCommand(SourceScheduled, false)
	m.IncSubmitted()
	m.IncRejected("past_due")
	m.IncCancelled()
	m.IncCycleError()
	m.IncDroppedEvent("mqtt")
	m.ObserveCycle(3, 1, 5*time.Millisecond)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"commands_total", map[string]string{"source": SourceScheduled, "result": ResultFailure}, 2},
		{"commands_total", map[string]string{"source": SourceScheduled, "result": ResultSuccess}, 1},
		{"schedules_submitted_total", nil, 1},
		{"schedules_rejected_total", map[string]string{"reason": "past_due"}, 1},
		{"schedules_cancelled_total", nil, 1},
		{"cycles_total", nil, 1},
		{"cycle_errors_total", nil, 1},
		{"pending_entries", nil, 3},
		{"invalid_due_total", nil, 1},
		{"events_dropped_total", map[string]string{"sink": "mqtt"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value(t, reg, tt.name, tt.labels); got != tt.want {
				t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
			}
		})
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCommand(SourceImmediate, true)
	m.IncSubmitted()
	m.IncRejected("x")
	m.IncCancelled()
	m.ObserveCycle(0, 0, 0)
	m.IncCycleError()
	m.IncDroppedEvent("ws")
}
