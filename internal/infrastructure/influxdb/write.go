package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState = "device_state"
	MeasurementCommand     = "command_execution"
)

// WriteDeviceState records a device's state after a successful command.
func (c *Client) WriteDeviceState(deviceID, deviceType, status string, temperature *int, source string, ts time.Time) {
	p := write.NewPointWithMeasurement(MeasurementDeviceState).
		AddTag("device_id", deviceID).
		AddTag("type", deviceType).
		AddTag("source", source).
		AddField("status", status).
		SetTime(ts)
	if temperature != nil {
		p.AddField("temperature_c", *temperature)
	}
	c.write(p)
}

// WriteCommand records one execution attempt. scheduleID is 0 for
// immediate commands.
func (c *Client) WriteCommand(deviceID, action, source string, ok bool, scheduleID int64, ts time.Time) {
	result := "success"
	if !ok {
		result = "failure"
	}
	p := write.NewPointWithMeasurement(MeasurementCommand).
		AddTag("device_id", deviceID).
		AddTag("action", action).
		AddTag("source", source).
		AddTag("result", result).
		AddField("ok", ok).
		SetTime(ts)
	if scheduleID > 0 {
		p.AddField("schedule_id", scheduleID)
	}
	c.write(p)
}

func (c *Client) write(p *write.Point) {
	if c.IsConnected() {
		c.writer.WritePoint(p)
	}
}
