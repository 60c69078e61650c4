package lighting

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

func TestHandleSensorChange_UnknownStateDropped(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "unavailable")
	assertState(t, h.ctrl, StateIdle)
	if n := h.platform.StatusCount(); n != 0 {
		t.Errorf("status publications = %d, want 0", n)
	}
	if st := h.ctrl.Status(); st.LastTriggeredBy != nil {
		t.Errorf("last_triggered_by = %v, want unset", *st.LastTriggeredBy)
	}
}

func TestHandleSensorChange_CustomVocabulary(t *testing.T) {
	cfg := testConfig()
	cfg.SensorStatesOn = config.StringList{"motion"}
	cfg.SensorStatesOff = config.StringList{"clear"}
	cfg.SensorTypeDuration = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateIdle)

	h.sensor(sensorID, "motion")
	assertState(t, h.ctrl, StateActiveTimer)

	// Still occupied when the timer runs out.
	h.clock.Advance(180 * time.Second)
	assertState(t, h.ctrl, StateActiveTimer)

	h.sensor(sensorID, "clear")
	assertState(t, h.ctrl, StateIdle)
}

func TestHandleSensorChange_EventSensorIgnoresDurationOff(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")
	h.ctrl.timer.cancel()

	// An event sensor never fires sensor_off_duration, even with no live timer.
	h.sensor(sensorID, "off")
	assertState(t, h.ctrl, StateActiveTimer)
}

func TestHandleOverrideChange_UnknownStateIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.Overrides = config.StringList{"input_boolean.party"}
	h := newHarness(t, cfg)

	h.override("input_boolean.party", "unknown")
	assertState(t, h.ctrl, StateIdle)
}

func TestHandleOverrideChange_DisableWhileDisabledUpdatesAttribution(t *testing.T) {
	cfg := testConfig()
	cfg.Overrides = config.StringList{"input_boolean.a", "input_boolean.b"}
	h := newHarness(t, cfg)

	h.override("input_boolean.a", "on")
	h.override("input_boolean.b", "on")
	assertState(t, h.ctrl, StateDisabled)

	st := h.ctrl.Status()
	if st.DisabledBy == nil || *st.DisabledBy != "input_boolean.b" {
		t.Errorf("disabled_by = %v, want input_boolean.b", st.DisabledBy)
	}
	if recs := h.recorder.Records(); len(recs) != 1 {
		t.Errorf("records = %d, want 1", len(recs))
	}
}

func TestHandleEvent_Reset(t *testing.T) {
	tests := []struct {
		name      string
		event     string
		data      map[string]any
		wantReset bool
	}{
		{"status entity id", ResetEvent, map[string]any{"entity_id": "lightingsm.hallway"}, true},
		{"bare name", ResetEvent, map[string]any{"entity_id": "hallway"}, true},
		{"other controller", ResetEvent, map[string]any{"entity_id": "lightingsm.kitchen"}, false},
		{"missing entity", ResetEvent, map[string]any{}, false},
		{"non string entity", ResetEvent, map[string]any{"entity_id": 7}, false},
		{"other event", "something-else", map[string]any{"entity_id": "hallway"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			h.sensor(sensorID, "on")

			h.ctrl.HandleEvent(context.Background(), tt.event, tt.data)

			want := StateActiveTimer
			if tt.wantReset {
				want = StateIdle
			}
			assertState(t, h.ctrl, want)
		})
	}
}
