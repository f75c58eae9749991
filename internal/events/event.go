package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// Event types.
const (
	TypeDeviceStateChanged = "device.state_changed"
	TypeScheduleCreated    = "schedule.created"
	TypeScheduleExecuted   = "schedule.executed"
	TypeScheduleFailed     = "schedule.failed"
	TypeScheduleCancelled  = "schedule.cancelled"
)

// Command sources carried in DeviceState.Source.
const (
	SourceImmediate = "immediate"
	SourceScheduled = "scheduled"
)

// Event is one notification fanned out to every sink.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DeviceState is the payload of TypeDeviceStateChanged.
type DeviceState struct {
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Temperature *int      `json:"temperature,omitempty"`
	Source      string    `json:"source"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScheduleChange is the payload of every schedule.* event.
type ScheduleChange struct {
	ScheduleID int64   `json:"schedule_id"`
	DeviceID   string  `json:"device_id,omitempty"`
	Action     string  `json:"action,omitempty"`
	Value      *string `json:"value,omitempty"`
	DueAt      string  `json:"schedule_time,omitempty"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func newEvent(typ string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// DeviceStateChanged builds an event from a post-mutation snapshot.
func DeviceStateChanged(d device.Device, source string) Event {
	return newEvent(TypeDeviceStateChanged, DeviceState{
		DeviceID:    d.ID,
		Name:        d.Name,
		Type:        string(d.Type),
		Status:      d.Status,
		Temperature: d.Clone().Temperature,
		Source:      source,
		UpdatedAt:   d.UpdatedAt,
	})
}

// ScheduleCreated builds the event for a newly stored entry.
func ScheduleCreated(id int64, cmd command.Command, dueRaw string) Event {
	return newEvent(TypeScheduleCreated, ScheduleChange{
		ScheduleID: id,
		DeviceID:   cmd.DeviceID,
		Action:     cmd.Action,
		Value:      cmd.Value,
		DueAt:      dueRaw,
	})
}

// ScheduleExecuted builds the event for an entry the loop ran successfully.
func ScheduleExecuted(e schedule.Entry, res command.Result) Event {
	return newEvent(TypeScheduleExecuted, scheduleChange(e, res))
}

// ScheduleFailed builds the event for a failed attempt. The entry stays pending.
func ScheduleFailed(e schedule.Entry, res command.Result) Event {
	return newEvent(TypeScheduleFailed, scheduleChange(e, res))
}

// ScheduleCancelled builds the event for a cancel request.
func ScheduleCancelled(id int64) Event {
	return newEvent(TypeScheduleCancelled, ScheduleChange{ScheduleID: id})
}

func scheduleChange(e schedule.Entry, res command.Result) ScheduleChange {
	sc := ScheduleChange{
		ScheduleID: e.ID,
		DeviceID:   e.Command.DeviceID,
		Action:     e.Command.Action,
		Value:      e.Command.Value,
		DueAt:      e.DueRaw,
		Message:    res.Message,
	}
	if res.Err != nil {
		sc.Error = res.Err.Error()
	}
	return sc
}
