package events

import (
	"context"
	"time"
)

// TelemetryWriter is the subset of *influxdb.Client the telemetry sink uses.
type TelemetryWriter interface {
	WriteDeviceState(deviceID, deviceType, status string, temperature *int, source string, ts time.Time)
	WriteCommand(deviceID, action, source string, ok bool, scheduleID int64, ts time.Time)
}

// TelemetrySink records device states and scheduled executions as
// time-series points.
type TelemetrySink struct {
	writer TelemetryWriter
}

// NewTelemetrySink wraps w.
func NewTelemetrySink(w TelemetryWriter) *TelemetrySink {
	return &TelemetrySink{writer: w}
}

// Name implements Sink.
func (s *TelemetrySink) Name() string { return "influxdb" }

// Handle implements Sink. Writes are buffered by the writer, so Handle
// never reports an error.
func (s *TelemetrySink) Handle(_ context.Context, evt Event) error {
	switch p := evt.Payload.(type) {
	case DeviceState:
		s.writer.WriteDeviceState(p.DeviceID, p.Type, p.Status, p.Temperature, p.Source, evt.Timestamp)
	case ScheduleChange:
		switch evt.Type {
		case TypeScheduleExecuted:
			s.writer.WriteCommand(p.DeviceID, p.Action, SourceScheduled, true, p.ScheduleID, evt.Timestamp)
		case TypeScheduleFailed:
			s.writer.WriteCommand(p.DeviceID, p.Action, SourceScheduled, false, p.ScheduleID, evt.Timestamp)
		}
	}
	return nil
}
