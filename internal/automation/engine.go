package automation

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/events"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// unknownDeviceName labels pending entries whose device is not in the registry.
const unknownDeviceName = "Unknown Device"

// DeviceRegistry is the interface the engine needs from the device package.
type DeviceRegistry interface {
	Get(id string) (device.Device, error)
	List() []device.Device
}

// CommandExecutor runs a command against the registry.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd command.Command) command.Result
}

// Publisher receives engine events. *events.Dispatcher satisfies it.
// Publish must not block.
type Publisher interface {
	Publish(evt events.Event)
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) {}

// DeviceView is one device as reported by ListDevices.
type DeviceView struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Temperature *int   `json:"temperature,omitempty"`
}

// PendingView is one pending entry joined with its device name.
type PendingView struct {
	ID         int64   `json:"id"`
	DeviceID   string  `json:"device_id"`
	DeviceName string  `json:"device_name"`
	Action     string  `json:"action"`
	Value      *string `json:"value"`
	DueAt      string  `json:"schedule_time"`
}

// Engine is the single entry point for submitting, listing and cancelling
// commands. It is the only writer to the schedule store; the scheduler
// loop only marks entries executed.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	devices   DeviceRegistry
	executor  CommandExecutor
	store     schedule.Store
	loc       *time.Location
	now       func() time.Time
	publisher Publisher
	metrics   *metrics.Metrics
	logger    Logger
}

// Config holds the engine's dependencies. Publisher, Metrics and Logger
// may be nil.
type Config struct {
	Devices  DeviceRegistry
	Executor CommandExecutor
	Store    schedule.Store

	// Location is the zone naive due-time strings are read in.
	// Nil means time.Local.
	Location *time.Location

	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    Logger
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		devices:   cfg.Devices,
		executor:  cfg.Executor,
		store:     cfg.Store,
		loc:       cfg.Location,
		now:       time.Now,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.publisher == nil {
		e.publisher = noopPublisher{}
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	return e
}

// SetClock replaces the time source used for the past-due check.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Location returns the zone due-time strings are interpreted in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// SubmitNow executes cmd synchronously.
func (e *Engine) SubmitNow(ctx context.Context, cmd command.Command) command.Result {
	res := e.executor.Execute(ctx, cmd)
	e.metrics.ObserveCommand(metrics.SourceImmediate, res.OK)

	if !res.OK {
		e.logger.Debug("command rejected",
			"device_id", cmd.DeviceID,
			"action", cmd.Action,
			"error", res.Err,
		)
		return res
	}

	e.logger.Info("command executed",
		"device_id", cmd.DeviceID,
		"action", cmd.Action,
		"message", res.Message,
	)
	e.publisher.Publish(events.DeviceStateChanged(res.Device, events.SourceImmediate))
	return res
}

// SubmitLater stores cmd for execution at dueAt and returns the entry ID.
//
// dueAt is truncated to whole seconds, the precision it is stored at, and
// must then be strictly after now, otherwise ErrRejectedPastDue is
// returned and nothing is written. The command itself is not validated;
// an invalid command fails when it comes due and is retried every cycle.
// Store failures are returned wrapped in schedule.ErrPersistence.
func (e *Engine) SubmitLater(ctx context.Context, cmd command.Command, dueAt time.Time) (int64, error) {
	dueAt = dueAt.Truncate(time.Second)
	if !dueAt.After(e.now()) {
		e.metrics.IncRejected("past_due")
		return 0, ErrRejectedPastDue
	}

	id, err := e.store.Append(ctx, cmd, dueAt)
	if err != nil {
		e.logger.Error("storing schedule", "device_id", cmd.DeviceID, "error", err)
		return 0, err
	}

	due := schedule.FormatDue(dueAt, e.loc)
	e.metrics.IncSubmitted()
	e.logger.Info("command scheduled",
		"schedule_id", id,
		"device_id", cmd.DeviceID,
		"action", cmd.Action,
		"schedule_time", due,
	)
	e.publisher.Publish(events.ScheduleCreated(id, cmd, due))
	return id, nil
}

// SubmitLaterString parses due with ParseDueTime and calls SubmitLater.
func (e *Engine) SubmitLaterString(ctx context.Context, cmd command.Command, due string) (int64, error) {
	dueAt, err := ParseDueTime(due, e.loc)
	if err != nil {
		e.metrics.IncRejected("invalid_time")
		return 0, err
	}
	return e.SubmitLater(ctx, cmd, dueAt)
}

// ListDevices returns every device keyed by ID.
func (e *Engine) ListDevices(_ context.Context) map[string]DeviceView {
	list := e.devices.List()
	out := make(map[string]DeviceView, len(list))
	for _, d := range list {
		out[d.ID] = DeviceView{
			Name:        d.Name,
			Status:      d.Status,
			Temperature: d.Temperature,
		}
	}
	return out
}

// ListPending returns the pending entries in execution order, each joined
// with its device name.
func (e *Engine) ListPending(ctx context.Context) ([]PendingView, error) {
	entries, err := e.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]PendingView, 0, len(entries))
	for _, entry := range entries {
		name := unknownDeviceName
		if d, err := e.devices.Get(entry.Command.DeviceID); err == nil {
			name = d.Name
		}
		views = append(views, PendingView{
			ID:         entry.ID,
			DeviceID:   entry.Command.DeviceID,
			DeviceName: name,
			Action:     entry.Command.Action,
			Value:      entry.Command.Value,
			DueAt:      entry.DueRaw,
		})
	}
	return views, nil
}

// Cancel deletes the entry with the given ID. Unknown IDs and already
// executed entries succeed silently; only store failures are returned.
func (e *Engine) Cancel(ctx context.Context, id int64) error {
	if err := e.store.Remove(ctx, id); err != nil {
		e.logger.Error("cancelling schedule", "schedule_id", id, "error", err)
		return err
	}

	e.metrics.IncCancelled()
	e.logger.Info("schedule cancelled", "schedule_id", id)
	e.publisher.Publish(events.ScheduleCancelled(id))
	return nil
}

// EntryExecuted publishes the scheduler loop's successes.
// It implements schedule.Observer.
func (e *Engine) EntryExecuted(entry schedule.Entry, res command.Result) {
	e.publisher.Publish(events.DeviceStateChanged(res.Device, events.SourceScheduled))
	e.publisher.Publish(events.ScheduleExecuted(entry, res))
}

// EntryFailed publishes the scheduler loop's failed attempts.
// It implements schedule.Observer.
func (e *Engine) EntryFailed(entry schedule.Entry, res command.Result) {
	e.publisher.Publish(events.ScheduleFailed(entry, res))
}
