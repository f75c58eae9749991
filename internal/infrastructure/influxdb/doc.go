// Package influxdb records scheduler telemetry in InfluxDB v2 using
// github.com/influxdata/influxdb-client-go/v2.
//
// Two measurements are written:
//
//	device_state       tags device_id,type,source   fields status,temperature_c
//	command_execution  tags device_id,action,source,result  fields ok,schedule_id
//
// Writes are batched and non-blocking (batch_size, flush_interval from
// config.yaml). Telemetry is optional: with influxdb.enabled false,
// Connect returns ErrDisabled and the caller runs without it.
package influxdb
