// Package command models device commands and executes them against the
// device registry.
//
// Action tokens are the ones persisted in the schedules table: on, off,
// locked, unlocked and set_temp. Longer spellings such as power-on or
// set-attribute are accepted and normalised by NormalizeAction.
//
// Capability rules:
//
//	on, off           any device
//	locked, unlocked  locks only
//	set_temp          thermostats only, integer value, forces status on
//
// A failed Execute leaves the registry untouched and reports one of
// ErrDeviceNotFound, ErrUnknownAction, ErrUnsupportedAction or
// ErrInvalidValue in Result.Err.
package command
