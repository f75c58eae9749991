// Package mqttapi bridges the scheduler engine to MQTT.
//
// Commands arrive on graylogic/scheduler/command/{device_id}:
//
//	{"action": "set_temp", "value": 25}
//	{"action": "on", "schedule_time": "2026-06-01T07:30"}
//
// Each command is answered on graylogic/scheduler/result/{device_id} with
// the same status and message the HTTP API returns. Device state changes
// are published retained on graylogic/scheduler/device/{device_id}/state,
// and schedule lifecycle events on graylogic/scheduler/event/{name}.
package mqttapi
