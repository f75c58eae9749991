// Package automation provides the Engine, the facade every outer surface
// (HTTP, MQTT, CLI) goes through.
//
// The Engine composes the device registry, the command executor and the
// schedule store:
//
//	SubmitNow          execute immediately and return the result
//	SubmitLater        persist for later; due time must be in the future
//	ListDevices        current device states
//	ListPending        pending entries with device names
//	Cancel             delete an entry; idempotent
//
// It also implements schedule.Observer so the scheduler loop's outcomes
// reach the same event publisher as immediate commands.
//
// # Due times
//
// Due times are naive local times in the engine's Location. ParseDueTime
// accepts ISO-8601 at minute or second precision:
//
//	eng.SubmitLaterString(ctx, command.New("light_1", "on", ""), "2026-06-01T07:30")
package automation
