package device

import (
	"fmt"
	"slices"
	"time"
)

// Type is the fixed capability class of a device. It decides which
// commands the device accepts.
type Type string

const (
	TypeSwitch     Type = "switch"
	TypeLock       Type = "lock"
	TypeThermostat Type = "thermostat"
)

// Status values. Which ones are legal depends on the device type.
const (
	StatusOn       = "on"
	StatusOff      = "off"
	StatusLocked   = "locked"
	StatusUnlocked = "unlocked"
)

// legalStatuses maps each device type to the statuses it may hold.
// Locks accept on/off because power commands are legal for every type.
var legalStatuses = map[Type][]string{
	TypeSwitch:     {StatusOn, StatusOff},
	TypeLock:       {StatusLocked, StatusUnlocked, StatusOn, StatusOff},
	TypeThermostat: {StatusOn, StatusOff},
}

// AllTypes returns every known device type.
func AllTypes() []Type {
	return []Type{TypeSwitch, TypeLock, TypeThermostat}
}

// LegalStatuses returns the statuses a device of type t may hold.
func LegalStatuses(t Type) []string {
	return slices.Clone(legalStatuses[t])
}

// IsValid reports whether t is a known device type.
func (t Type) IsValid() bool {
	_, ok := legalStatuses[t]
	return ok
}

// Device is the in-memory state of one simulated device.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Status string `json:"status"`

	// Temperature is the thermostat set point in degrees Celsius.
	// Nil for every other device type.
	Temperature *int `json:"temperature,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns an independent copy of d.
func (d Device) Clone() Device {
	if d.Temperature != nil {
		t := *d.Temperature
		d.Temperature = &t
	}
	return d
}

// Validate checks identity, type and that Status is legal for the type.
func (d Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: device %q: name is required", ErrInvalidDevice, d.ID)
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("%w: device %q: unknown type %q", ErrInvalidDevice, d.ID, d.Type)
	}
	if !slices.Contains(legalStatuses[d.Type], d.Status) {
		return fmt.Errorf("%w: device %q: status %q not legal for %s", ErrInvalidStatus, d.ID, d.Status, d.Type)
	}
	if d.Temperature != nil && d.Type != TypeThermostat {
		return fmt.Errorf("%w: device %q: only thermostats carry a temperature", ErrInvalidDevice, d.ID)
	}
	return nil
}
