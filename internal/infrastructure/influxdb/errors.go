package influxdb

import "errors"

// Errors returned by the client. Write failures are asynchronous and go
// to the SetOnError callback instead.
var (
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrUnhealthy        = errors.New("influxdb: server not healthy")
)
