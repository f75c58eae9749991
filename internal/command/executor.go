package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-scheduler/internal/device"
)

// Result messages. They match what operators and the HTTP surface have
// always shown, so keep the wording stable.
const (
	msgDeviceNotFound    = "Device not found"
	msgUnknownAction     = "Invalid action"
	msgUnsupportedAction = "Invalid action for this device"
	msgInvalidTemp       = "Invalid temperature value"
	msgUnexpectedValue   = "Value not accepted for this action"
)

// Registry is the subset of device.Registry the executor needs.
type Registry interface {
	Get(id string) (device.Device, error)
	Apply(id string, mutation device.Mutation) (device.Device, error)
}

// Logger defines the logging interface used by the Executor.
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

// Result is the outcome of one execution.
type Result struct {
	OK      bool
	Message string

	// Device is the post-mutation snapshot. Zero on failure.
	Device device.Device

	// Err is one of the package sentinels, nil on success.
	Err error
}

func failure(err error, msg string) Result {
	return Result{OK: false, Message: msg, Err: err}
}

// Executor validates commands against device capabilities and applies
// them to the registry. It never retries.
type Executor struct {
	registry Registry
	logger   Logger
}

// NewExecutor creates an executor bound to registry.
func NewExecutor(registry Registry) *Executor {
	return &Executor{registry: registry, logger: noopLogger{}}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// Execute applies cmd to its device.
//
// Checks run in a fixed order: device, action token, type capability,
// value. The first failing check decides the error. A successful command
// performs exactly one registry mutation.
func (e *Executor) Execute(_ context.Context, cmd Command) Result {
	dev, err := e.registry.Get(cmd.DeviceID)
	if err != nil {
		return failure(fmt.Errorf("%w: %q", ErrDeviceNotFound, cmd.DeviceID), msgDeviceNotFound)
	}

	action, ok := NormalizeAction(cmd.Action)
	if !ok {
		return failure(fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action), msgUnknownAction)
	}

	var (
		mutation device.Mutation
		message  string
	)

	switch action {
	case ActionOn, ActionOff:
		status := device.StatusOn
		word := "ON"
		if action == ActionOff {
			status = device.StatusOff
			word = "OFF"
		}
		mutation = func(d *device.Device) { d.Status = status }
		message = fmt.Sprintf("%s turned %s", dev.Name, word)

	case ActionLock, ActionUnlock:
		if dev.Type != device.TypeLock {
			return failure(fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, action, dev.Type), msgUnsupportedAction)
		}
		status := device.StatusLocked
		if action == ActionUnlock {
			status = device.StatusUnlocked
		}
		mutation = func(d *device.Device) { d.Status = status }
		message = fmt.Sprintf("%s %s", dev.Name, status)

	case ActionSetTemp:
		if dev.Type != device.TypeThermostat {
			return failure(fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, action, dev.Type), msgUnsupportedAction)
		}
		if !cmd.HasValue() {
			return failure(fmt.Errorf("%w: temperature is required", ErrInvalidValue), msgInvalidTemp)
		}
		temp, err := strconv.Atoi(strings.TrimSpace(*cmd.Value))
		if err != nil {
			return failure(fmt.Errorf("%w: temperature %q is not an integer", ErrInvalidValue, *cmd.Value), msgInvalidTemp)
		}
		mutation = func(d *device.Device) {
			d.Status = device.StatusOn
			d.Temperature = &temp
		}
		message = fmt.Sprintf("%s set to %d°C", dev.Name, temp)
	}

	if !action.TakesValue() && cmd.HasValue() {
		return failure(fmt.Errorf("%w: %s takes no value", ErrInvalidValue, action), msgUnexpectedValue)
	}

	updated, err := e.registry.Apply(dev.ID, mutation)
	if err != nil {
		// Devices are never removed, so this only happens with a
		// misbehaving Registry implementation.
		return failure(fmt.Errorf("%w: %q", ErrDeviceNotFound, cmd.DeviceID), msgDeviceNotFound)
	}

	e.logger.Debug("command applied", "device_id", dev.ID, "action", string(action), "status", updated.Status)
	return Result{OK: true, Message: message, Device: updated}
}
