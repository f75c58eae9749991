package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Mutation changes a device in place. It receives a private copy; the
// registry publishes the copy only after the mutation returns.
type Mutation func(d *Device)

// Registry holds the live state of every device.
//
// It is a pure state holder: Apply does not judge whether a mutation is
// legal, that is the command executor's job. One lock guards the whole map,
// so two mutations never interleave, even on different fields of the same
// device. Every value handed out is a copy.
//
// All public methods are thread-safe.
type Registry struct {
	devices map[string]*Device
	mu      sync.RWMutex
	now     func() time.Time
	logger  Logger
}

// NewRegistry creates a registry seeded with the given catalog.
// Each device is validated; duplicate IDs are rejected.
func NewRegistry(catalog []Device) (*Registry, error) {
	r := &Registry{
		devices: make(map[string]*Device, len(catalog)),
		now:     time.Now,
		logger:  noopLogger{},
	}

	for _, d := range catalog {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.devices[d.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDeviceExists, d.ID)
		}
		cpy := d.Clone()
		r.devices[d.ID] = &cpy
	}

	return r, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Get returns a snapshot of the device with the given ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return d.Clone(), nil
}

// Apply runs mutation against the device and returns the post-mutation snapshot.
//
// The mutation works on a copy that replaces the stored device in a single
// step, so readers never observe a half-applied change. ID and Type are
// restored after the mutation; they are fixed for the device's lifetime.
func (r *Registry) Apply(id string, mutation Mutation) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}

	updated := current.Clone()
	mutation(&updated)
	updated.ID = current.ID
	updated.Type = current.Type
	updated.UpdatedAt = r.now().UTC()

	r.devices[id] = &updated

	r.logger.Debug("device state updated", "id", id, "status", updated.Status)
	return updated.Clone(), nil
}

// List returns snapshots of all devices ordered by ID.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d.Clone())
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// Count returns the number of devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stats summarises the registry for monitoring.
type Stats struct {
	TotalDevices int
	ByType       map[Type]int
	ByStatus     map[string]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.devices),
		ByType:       make(map[Type]int),
		ByStatus:     make(map[string]int),
	}
	for _, d := range r.devices {
		stats.ByType[d.Type]++
		stats.ByStatus[d.Status]++
	}
	return stats
}
