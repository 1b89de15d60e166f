// Package influxdb records fan presence telemetry in InfluxDB 2.x.
//
// Measurements:
//   - fan_presence: confirmed transitions (tags fan_path, fan; field present 0/1)
//   - sensor_conflict: a sensor disagreeing with the vote (tags fan_path, sensor)
//   - sensor_failure: start failures and policy-failed sensors
//   - inventory_update_failure: abandoned inventory updates by failure kind
//
// Telemetry is optional. Connect returns ErrDisabled when the influxdb
// section is disabled, and every Write method is a no-op on a closed client.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	client.WriteFanPresence("/system/chassis/motherboard/fan0", "Fan 0", true)
package influxdb
