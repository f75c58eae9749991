// Package events fans engine notifications out to the outer surfaces
// (MQTT, WebSocket, InfluxDB).
//
// The engine and the scheduler loop publish through Dispatcher.Publish,
// which never blocks: a slow or disconnected sink loses events rather
// than stalling command execution.
package events
