// Package influxdb records scene rotation metrics in InfluxDB v2.
//
// Three measurements are written:
//
//	scene_switches    tags: group, scene, ok   fields: latency_ms, count
//	rotation_state    tags: group             fields: running, interval_ms
//	rotation_errors   tags: kind              fields: count
//
// Writes go through the client's non-blocking, batched write API; a slow or
// absent InfluxDB never delays a scene switch. Async write failures are
// delivered to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	executor.SetMetrics(client)
package influxdb
