package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this service.
const (
	MeasurementTransition = "lighting_transition"
	MeasurementTimer      = "lighting_timer"
)

// TransitionObserved records a committed controller transition.
//
// Tags carry the controller name, source and destination state and the
// trigger, so occupancy per room can be derived by grouping on
// to_state over time.
//
// Example:
//
//	client.TransitionObserved("hallway", "idle", "active_timer", "sensor_on")
func (c *Client) TransitionObserved(controller, from, to, trigger string) {
	active := 0
	if to == "active_timer" || to == "active_stay_on" {
		active = 1
	}
	c.WritePoint(MeasurementTransition,
		map[string]string{
			"controller": controller,
			"from_state": from,
			"to_state":   to,
			"trigger":    trigger,
		},
		map[string]any{
			"active": active,
		},
	)
}

// TimerArmed records the delay a controller timer was armed with.
//
// Parameters:
//   - controller: Controller name
//   - delaySeconds: Working delay after backoff
//   - resetCount: Number of re-arms since the controller became active
func (c *Client) TimerArmed(controller string, delaySeconds float64, resetCount int) {
	c.WritePoint(MeasurementTimer,
		map[string]string{
			"controller": controller,
		},
		map[string]any{
			"delay_seconds": delaySeconds,
			"reset_count":   resetCount,
		},
	)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || c.writeAPI == nil {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
