// Package influxdb provides InfluxDB connectivity for Gray Logic Motion.
//
// It wraps the official influxdb-client-go v2 library and records lighting
// controller telemetry: one lighting_transition point per committed state
// change and one lighting_timer point per timer arm. Dashboards use these to
// chart room occupancy and how far backoff stretched the delay.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.TransitionObserved("hallway", "idle", "active_timer", "sensor_on")
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are delivered to the SetOnError callback.
package influxdb
