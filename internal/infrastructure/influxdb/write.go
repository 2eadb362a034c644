package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the rotator.
const (
	measurementSwitches = "scene_switches"
	measurementRotation = "rotation_state"
	measurementErrors   = "rotation_errors"
)

// RecordSwitch writes one switch attempt. group is empty for manual switches.
// It implements rotation.MetricsRecorder.
func (c *Client) RecordSwitch(group, scene string, ok bool, latency time.Duration) {
	tags := map[string]string{"scene": scene, "ok": strconv.FormatBool(ok)}
	withGroup(tags, group)
	c.write(measurementSwitches, tags, map[string]any{
		"latency_ms": float64(latency.Microseconds()) / 1000,
		"count":      1,
	})
}

// WriteRotationState writes the scheduler run state and interval.
func (c *Client) WriteRotationState(running bool, interval time.Duration, activeGroup string) {
	tags := map[string]string{}
	withGroup(tags, activeGroup)
	c.write(measurementRotation, tags, map[string]any{
		"running":     running,
		"interval_ms": interval.Milliseconds(),
	})
}

// WriteError counts one reported failure of the given kind.
func (c *Client) WriteError(kind string) {
	c.write(measurementErrors, map[string]string{"kind": kind}, map[string]any{"count": 1})
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func withGroup(tags map[string]string, group string) {
	if group != "" {
		tags["group"] = group
	}
}
