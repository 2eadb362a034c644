package influxdb

import "errors"

// Sentinel errors returned by Connect.
var (
	ErrDisabled         = errors.New("influxdb: disabled")
	ErrConnectionFailed = errors.New("influxdb: connect")
)
