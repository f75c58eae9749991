package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-scheduler/internal/events"
)

// Sources recorded for schedule events.
const (
	SourceEngine    = "engine"
	SourceScheduler = "scheduler"
)

// Sink records every engine event as an audit log entry.
// It implements events.Sink.
type Sink struct {
	repo Repository
}

// NewSink creates a sink writing to repo.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// Name implements events.Sink.
func (s *Sink) Name() string { return "audit" }

// Handle implements events.Sink. Unknown payloads are ignored.
func (s *Sink) Handle(ctx context.Context, evt events.Event) error {
	entry, ok := fromEvent(evt)
	if !ok {
		return nil
	}
	return s.repo.Create(ctx, entry)
}

// fromEvent maps an event onto an audit entry. The action is the event
// type without its entity prefix, e.g. "schedule.executed" -> "executed".
func fromEvent(evt events.Event) (*AuditLog, bool) {
	_, action, found := strings.Cut(evt.Type, ".")
	if !found {
		action = evt.Type
	}

	entry := &AuditLog{
		ID:        evt.ID,
		Action:    action,
		CreatedAt: evt.Timestamp,
	}

	switch p := evt.Payload.(type) {
	case events.DeviceState:
		entry.EntityType = EntityDevice
		entry.EntityID = p.DeviceID
		entry.Source = p.Source
		entry.Details = map[string]any{"status": p.Status}
		if p.Temperature != nil {
			entry.Details["temperature"] = *p.Temperature
		}
	case events.ScheduleChange:
		entry.EntityType = EntitySchedule
		entry.EntityID = strconv.FormatInt(p.ScheduleID, 10)
		entry.Source = SourceEngine
		if evt.Type == events.TypeScheduleExecuted || evt.Type == events.TypeScheduleFailed {
			entry.Source = SourceScheduler
		}
		entry.Details = scheduleDetails(p)
	default:
		return nil, false
	}
	return entry, true
}

func scheduleDetails(p events.ScheduleChange) map[string]any {
	d := make(map[string]any)
	set := func(k, v string) {
		if v != "" {
			d[k] = v
		}
	}
	set("device_id", p.DeviceID)
	set("action", p.Action)
	set("schedule_time", p.DueAt)
	set("message", p.Message)
	set("error", p.Error)
	if p.Value != nil {
		d["value"] = *p.Value
	}
	if len(d) == 0 {
		return nil
	}
	return d
}
