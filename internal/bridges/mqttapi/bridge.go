package mqttapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/automation"
	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/events"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// commandTimeout bounds one inbound command, including the store write.
const commandTimeout = 10 * time.Second

// Engine is the subset of *automation.Engine the bridge drives.
type Engine interface {
	SubmitNow(ctx context.Context, cmd command.Command) command.Result
	SubmitLaterString(ctx context.Context, cmd command.Command, due string) (int64, error)
}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the Bridge.
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

// Bridge exposes the engine over MQTT.
//
// Inbound: commands on graylogic/scheduler/command/+ are executed or
// scheduled and answered on the matching result topic.
// Outbound: as an events.Sink it publishes retained device state and
// schedule events.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	engine Engine
	mqtt   MQTTClient
	qos    byte
	topics mqtt.Topics

	mu     sync.RWMutex
	ctx    context.Context
	logger Logger
}

// NewBridge creates a bridge. qos applies to every publish and the
// command subscription.
func NewBridge(engine Engine, client MQTTClient, qos byte) *Bridge {
	return &Bridge{
		engine: engine,
		mqtt:   client,
		qos:    qos,
		ctx:    context.Background(),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

func (b *Bridge) log() Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger
}

// Start subscribes to the command topics. Commands in flight are
// cancelled when ctx ends.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.mqtt.Subscribe(b.topics.AllCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	b.log().Info("MQTT command bridge started", "topic", b.topics.AllCommands())
	return nil
}

func (b *Bridge) baseContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// handleCommand is the subscription handler for command topics.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, ok := mqtt.ParseCommandTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	msg, err := parseCommand(payload)
	if err != nil {
		b.publishResult(ResultMessage{
			DeviceID: deviceID,
			Status:   StatusError,
			Message:  err.Error(),
			Code:     CodeInvalidPayload,
		})
		return err
	}

	value, err := msg.ValueString()
	if err != nil {
		b.publishResult(ResultMessage{
			CommandID: msg.ID,
			DeviceID:  deviceID,
			Status:    StatusError,
			Message:   err.Error(),
			Code:      CodeInvalidPayload,
		})
		return err
	}
	cmd := command.Command{DeviceID: deviceID, Action: msg.Action, Value: value}

	ctx, cancel := context.WithTimeout(b.baseContext(), commandTimeout)
	defer cancel()

	b.log().Debug("MQTT command received", "command_id", msg.ID, "device_id", deviceID, "action", msg.Action)

	if strings.TrimSpace(msg.ScheduleTime) != "" {
		b.publishResult(b.schedule(ctx, msg, cmd))
		return nil
	}
	b.publishResult(b.execute(ctx, msg, cmd))
	return nil
}

func (b *Bridge) execute(ctx context.Context, msg CommandMessage, cmd command.Command) ResultMessage {
	res := b.engine.SubmitNow(ctx, cmd)
	out := ResultMessage{
		CommandID: msg.ID,
		DeviceID:  cmd.DeviceID,
		Message:   res.Message,
	}
	if !res.OK {
		out.Status = StatusError
		out.Code = errorCode(res.Err)
		return out
	}
	out.Status = StatusSuccess
	state := stateFromDevice(res.Device, events.SourceImmediate)
	out.DeviceState = &state
	return out
}

func (b *Bridge) schedule(ctx context.Context, msg CommandMessage, cmd command.Command) ResultMessage {
	out := ResultMessage{CommandID: msg.ID, DeviceID: cmd.DeviceID}

	id, err := b.engine.SubmitLaterString(ctx, cmd, msg.ScheduleTime)
	if err != nil {
		out.Status = StatusError
		out.Code = errorCode(err)
		out.Message = err.Error()
		return out
	}
	out.Status = StatusSuccess
	out.Message = "Task scheduled successfully!"
	out.ScheduleID = id
	return out
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, command.ErrDeviceNotFound):
		return CodeDeviceNotFound
	case errors.Is(err, command.ErrUnknownAction):
		return CodeUnknownAction
	case errors.Is(err, command.ErrUnsupportedAction):
		return CodeUnsupportedAction
	case errors.Is(err, command.ErrInvalidValue):
		return CodeInvalidValue
	case errors.Is(err, automation.ErrRejectedPastDue):
		return CodeRejectedPastDue
	case errors.Is(err, automation.ErrInvalidDueTime):
		return CodeInvalidDueTime
	case errors.Is(err, schedule.ErrPersistence):
		return CodePersistence
	default:
		return ""
	}
}

func stateFromDevice(d device.Device, source string) StateMessage {
	return StateMessage{
		DeviceID:    d.ID,
		Name:        d.Name,
		Type:        string(d.Type),
		Status:      d.Status,
		Temperature: d.Clone().Temperature,
		Source:      source,
		Timestamp:   d.UpdatedAt,
	}
}

func (b *Bridge) publishResult(res ResultMessage) {
	res.Timestamp = time.Now().UTC()
	b.publishJSON(b.topics.Result(res.DeviceID), res, false)
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log().Error("failed to marshal MQTT payload", "topic", topic, "error", err)
		return err
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.log().Warn("failed to publish MQTT message", "topic", topic, "error", err)
		return err
	}
	return nil
}

// Name implements events.Sink.
func (b *Bridge) Name() string { return "mqtt" }

// Handle implements events.Sink. Device state is published retained;
// schedule events go to event/{created,executed,failed,cancelled}.
func (b *Bridge) Handle(_ context.Context, evt events.Event) error {
	switch p := evt.Payload.(type) {
	case events.DeviceState:
		state := StateMessage{
			DeviceID:    p.DeviceID,
			Name:        p.Name,
			Type:        p.Type,
			Status:      p.Status,
			Temperature: p.Temperature,
			Source:      p.Source,
			Timestamp:   p.UpdatedAt,
		}
		return b.publishJSON(b.topics.DeviceState(p.DeviceID), state, true)
	case events.ScheduleChange:
		name := strings.TrimPrefix(evt.Type, "schedule.")
		return b.publishJSON(b.topics.Event(name), evt, false)
	default:
		return nil
	}
}
