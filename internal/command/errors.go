package command

import (
	"errors"

	"github.com/nerrad567/gray-logic-scheduler/internal/device"
)

// Command errors. Every failed Result carries one of these in Err.
var (
	// ErrDeviceNotFound is returned when the target device does not exist.
	// It is the device package's sentinel so errors.Is works across both.
	ErrDeviceNotFound = device.ErrDeviceNotFound

	// ErrUnknownAction is returned for an action token outside the vocabulary.
	ErrUnknownAction = errors.New("command: unknown action")

	// ErrUnsupportedAction is returned when the action is known but not
	// legal for the device's type.
	ErrUnsupportedAction = errors.New("command: action not supported by device")

	// ErrInvalidValue is returned when a value is missing, unparsable,
	// or supplied to an action that takes none.
	ErrInvalidValue = errors.New("command: invalid value")
)
