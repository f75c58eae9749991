package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// MockSink records events and can be made to block or fail.
type MockSink struct {
	name    string
	mu      sync.Mutex
	events  []Event
	block   chan struct{}
	err     error
	panicOn string
}

func (m *MockSink) Name() string { return m.name }

func (m *MockSink) Handle(_ context.Context, evt Event) error {
	if m.block != nil {
		<-m.block
	}
	if m.panicOn != "" && evt.Type == m.panicOn {
		panic("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

func (m *MockSink) received() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func TestDispatcher_FanOut(t *testing.T) {
	a := &MockSink{name: "a"}
	b := &MockSink{name: "b", err: errors.New("sink down")}

	d := NewDispatcher(8)
	d.AddSink(a)
	d.AddSink(b)
	d.Start(context.Background())

	d.Publish(ScheduleCancelled(1))
	d.Publish(ScheduleCancelled(2))
	d.Close()

	for _, s := range []*MockSink{a, b} {
		got := s.received()
		if len(got) != 2 {
			t.Fatalf("sink %s received %d events, want 2", s.name, len(got))
		}
		if got[0].Payload.(ScheduleChange).ScheduleID != 1 {
			t.Errorf("sink %s order wrong: %+v", s.name, got)
		}
	}
}

func TestDispatcher_PublishNeverBlocks(t *testing.T) {
	slow := &MockSink{name: "slow", block: make(chan struct{})}

	d := NewDispatcher(2)
	d.AddSink(slow)
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Publish(ScheduleCancelled(int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled sink")
	}

	close(slow.block)
	d.Close()

	if n := len(slow.received()); n >= 50 || n == 0 {
		t.Errorf("slow sink received %d events, want some dropped", n)
	}
}

func TestDispatcher_SinkPanicIsContained(t *testing.T) {
	s := &MockSink{name: "flaky", panicOn: TypeScheduleCreated}

	d := NewDispatcher(8)
	d.AddSink(s)
	d.Start(context.Background())

	d.Publish(ScheduleCreated(1, command.New("light_1", "on", ""), "2026-01-01T00:00:00"))
	d.Publish(ScheduleCancelled(1))
	d.Close()

	got := s.received()
	if len(got) != 1 || got[0].Type != TypeScheduleCancelled {
		t.Errorf("received = %+v, want only the cancel event", got)
	}
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	s := &MockSink{name: "s"}
	d := NewDispatcher(1)
	d.AddSink(s)
	d.Start(context.Background())
	d.Close()

	d.Publish(ScheduleCancelled(1))
	d.Close()

	if len(s.received()) != 0 {
		t.Error("event delivered after Close")
	}
}

func TestEventConstructors(t *testing.T) {
	temp := 25
	dev := device.Device{ID: "thermostat_1", Name: "Thermostat", Type: device.TypeThermostat, Status: device.StatusOn, Temperature: &temp}

	evt := DeviceStateChanged(dev, SourceScheduled)
	if evt.ID == "" || evt.Type != TypeDeviceStateChanged {
		t.Fatalf("event = %+v", evt)
	}
	state := evt.Payload.(DeviceState)
	temp = 0
	if state.Temperature == nil || *state.Temperature != 25 {
		t.Errorf("payload shares temperature pointer with snapshot")
	}

	entry := schedule.Entry{ID: 7, Command: command.New("thermostat_1", "set_temp", "warm"), DueRaw: "2026-01-01T00:00:00"}
	res := command.Result{Message: "Invalid temperature value", Err: command.ErrInvalidValue}
	failed := ScheduleFailed(entry, res).Payload.(ScheduleChange)
	if failed.ScheduleID != 7 || failed.Error == "" || failed.Message != res.Message {
		t.Errorf("ScheduleFailed payload = %+v", failed)
	}

	if a, b := ScheduleCancelled(1), ScheduleCancelled(1); a.ID == b.ID {
		t.Error("event IDs not unique")
	}
}

type writeCall struct {
	kind     string
	deviceID string
	ok       bool
}

// MockTelemetryWriter records telemetry writes.
type MockTelemetryWriter struct {
	mu    sync.Mutex
	calls []writeCall
}

func (m *MockTelemetryWriter) WriteDeviceState(deviceID, _, _ string, _ *int, _ string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, writeCall{kind: "state", deviceID: deviceID, ok: true})
}

func (m *MockTelemetryWriter) WriteCommand(deviceID, _, _ string, ok bool, _ int64, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, writeCall{kind: "command", deviceID: deviceID, ok: ok})
}

func TestTelemetrySink(t *testing.T) {
	w := &MockTelemetryWriter{}
	sink := NewTelemetrySink(w)
	ctx := context.Background()

	dev := device.Device{ID: "light_1", Name: "Living Room Light", Type: device.TypeSwitch, Status: device.StatusOn}
	entry := schedule.Entry{ID: 3, Command: command.New("light_1", "on", "")}

	sink.Handle(ctx, DeviceStateChanged(dev, SourceImmediate))
	sink.Handle(ctx, ScheduleExecuted(entry, command.Result{OK: true}))
	sink.Handle(ctx, ScheduleFailed(entry, command.Result{Err: command.ErrInvalidValue}))
	sink.Handle(ctx, ScheduleCancelled(3))

	want := []writeCall{
		{"state", "light_1", true},
		{"command", "light_1", true},
		{"command", "light_1", false},
	}
	if len(w.calls) != len(want) {
		t.Fatalf("writes = %+v, want %+v", w.calls, want)
	}
	for i := range want {
		if w.calls[i] != want[i] {
			t.Errorf("write[%d] = %+v, want %+v", i, w.calls[i], want[i])
		}
	}
}
