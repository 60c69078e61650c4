package lighting

import (
	"context"
	"time"
)

// ResetEvent is the event that forces a controller back to idle. Its data
// must carry "entity_id" set to the controller name or its status entity ID.
const ResetEvent = "lightingsm-reset"

// HandleSensorChange routes a sensor entity update.
//
// An "on" state fires sensor_on. For duration sensors an "off" state fires
// sensor_off_duration; event sensors fire sensor_off, which the table ignores.
// sensor_on and sensor_off_duration record the sensor as last_triggered_by.
// States in neither vocabulary are dropped.
func (c *Controller) HandleSensorChange(ctx context.Context, ch StateChange) {
	m := c.settings.Matcher

	var trig Trigger
	switch {
	case m.IsOn(ClassSensor, ch.New):
		trig = TriggerSensorOn
	case m.IsOff(ClassSensor, ch.New) && c.settings.SensorType == SensorDuration:
		trig = TriggerSensorOffDuration
	case m.IsOff(ClassSensor, ch.New):
		c.handle(ctx, TriggerSensorOff, ch.EntityID, nil)
		return
	default:
		c.logger.Debug("sensor state not in vocabulary",
			"controller", c.settings.Name,
			"entity_id", ch.EntityID,
			"state", ch.New,
		)
		return
	}

	c.handle(ctx, trig, ch.EntityID, func(st *Status, _ time.Time) {
		st.LastTriggeredBy = ptr(ch.EntityID)
	})
}

// HandleOverrideChange routes an override entity update.
//
// An "on" state disables the controller and records the override. An "off"
// state enables it again, but only once no override entity reports "on".
func (c *Controller) HandleOverrideChange(ctx context.Context, ch StateChange) {
	m := c.settings.Matcher

	switch {
	case m.IsOn(ClassOverride, ch.New):
		c.handle(ctx, TriggerDisable, ch.EntityID, func(st *Status, now time.Time) {
			st.DisabledBy = ptr(ch.EntityID)
			st.DisabledAt = ptr(now)
		})
	case m.IsOff(ClassOverride, ch.New):
		if c.anyOn(ctx, ClassOverride, c.settings.OverrideEntities) {
			c.logger.Debug("override cleared but another is still on",
				"controller", c.settings.Name,
				"entity_id", ch.EntityID,
			)
			return
		}
		c.handle(ctx, TriggerEnable, ch.EntityID, nil)
	}
}

// HandleEvent routes a named platform event. Only ResetEvent addressed to
// this controller has an effect.
func (c *Controller) HandleEvent(ctx context.Context, event string, data map[string]any) {
	if event != ResetEvent || !c.addressedBy(data) {
		return
	}
	c.ForceReset(ctx, "event")
}

func (c *Controller) addressedBy(data map[string]any) bool {
	target, _ := data["entity_id"].(string)
	return target != "" && (target == c.settings.Name || target == c.settings.EntityID())
}
