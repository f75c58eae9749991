package device

import (
	"fmt"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
)

// defaultThermostatTemperature is the set point the built-in thermostat starts at.
const defaultThermostatTemperature = 22

// DefaultCatalog returns the devices a fresh process starts with.
func DefaultCatalog() []Device {
	temp := defaultThermostatTemperature
	return []Device{
		{ID: "light_1", Name: "Living Room Light", Type: TypeSwitch, Status: StatusOff},
		{ID: "fan_1", Name: "Bedroom Fan", Type: TypeSwitch, Status: StatusOff},
		{ID: "door_lock_1", Name: "Front Door Lock", Type: TypeLock, Status: StatusLocked},
		{ID: "thermostat_1", Name: "Thermostat", Type: TypeThermostat, Status: StatusOff, Temperature: &temp},
	}
}

// CatalogFromConfig converts the devices section of config.yaml.
// An empty section yields DefaultCatalog. A device without a status
// starts "off", or "locked" for locks.
func CatalogFromConfig(entries []config.DeviceConfig) ([]Device, error) {
	if len(entries) == 0 {
		return DefaultCatalog(), nil
	}

	devices := make([]Device, 0, len(entries))
	for _, e := range entries {
		d := Device{
			ID:     e.ID,
			Name:   e.Name,
			Type:   Type(e.Type),
			Status: e.Status,
		}
		if e.Temperature != nil {
			t := *e.Temperature
			d.Temperature = &t
		}
		if d.Status == "" {
			d.Status = StatusOff
			if d.Type == TypeLock {
				d.Status = StatusLocked
			}
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, nil
}
