package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the service.
const (
	MeasurementFanPresence    = "fan_presence"
	MeasurementSensorConflict = "sensor_conflict"
	MeasurementSensorFailure  = "sensor_failure"
	MeasurementUpdateFailure  = "inventory_update_failure"
)

// WriteFanPresence records a confirmed presence transition.
//
//	client.WriteFanPresence("/system/chassis/motherboard/fan0", "Fan 0", true)
func (c *Client) WriteFanPresence(fanPath, name string, present bool) {
	c.writePoint(fanPresencePoint(fanPath, name, present, time.Now()))
}

// WriteSensorConflict records one sensor disagreeing with its fan's vote.
func (c *Client) WriteSensorConflict(fanPath, sensor string, reading, vote bool) {
	c.writePoint(sensorConflictPoint(fanPath, sensor, reading, vote, time.Now()))
}

// WriteSensorFailure records a sensor that could not start or was failed
// by its redundancy policy. reason is a short tag such as "start" or "fail".
func (c *Client) WriteSensorFailure(fanPath, sensor, reason string) {
	c.writePoint(sensorFailurePoint(fanPath, sensor, reason, time.Now()))
}

// WriteUpdateFailure records an abandoned inventory update attempt.
// kind is the failure class ("resolution_failed" or "call_rejected").
func (c *Client) WriteUpdateFailure(fanPath, kind string, err error) {
	c.writePoint(updateFailurePoint(fanPath, kind, err, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func fanPresencePoint(fanPath, name string, present bool, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementFanPresence,
		map[string]string{"fan_path": fanPath, "fan": name},
		map[string]any{"present": boolValue(present)},
		ts,
	)
}

func sensorConflictPoint(fanPath, sensor string, reading, vote bool, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensorConflict,
		map[string]string{"fan_path": fanPath, "sensor": sensor},
		map[string]any{"reading": boolValue(reading), "vote": boolValue(vote)},
		ts,
	)
}

func sensorFailurePoint(fanPath, sensor, reason string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensorFailure,
		map[string]string{"fan_path": fanPath, "sensor": sensor, "reason": reason},
		map[string]any{"count": int64(1)},
		ts,
	)
}

func updateFailurePoint(fanPath, kind string, err error, ts time.Time) *write.Point {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return write.NewPoint(
		MeasurementUpdateFailure,
		map[string]string{"fan_path": fanPath, "kind": kind},
		map[string]any{"count": int64(1), "error": msg},
		ts,
	)
}
