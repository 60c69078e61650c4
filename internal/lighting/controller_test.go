package lighting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const (
	lightID  = "light.hallway"
	sensorID = "binary_sensor.hallway_motion"
)

func assertState(t *testing.T, c *Controller, want State) {
	t.Helper()
	if got := c.State(); got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func assertCalls(t *testing.T, got []platformCall, want ...platformCall) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].Op != want[i].Op || got[i].EntityID != want[i].EntityID {
			t.Errorf("call[%d] = %s %s, want %s %s", i, got[i].Op, got[i].EntityID, want[i].Op, want[i].EntityID)
		}
	}
}

// ─── Scenario ──────────────────────────────────────────────────────

func TestController_EventSensorScenario(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveTimer)
	assertCalls(t, h.platform.Calls(), platformCall{Op: "turn_on", EntityID: lightID})

	st := h.ctrl.Status()
	if st.Delay == nil || *st.Delay != 180 {
		t.Errorf("delay = %v, want 180", st.Delay)
	}
	if st.ExpiresAt == nil || !st.ExpiresAt.Equal(testEpoch.Add(180*time.Second)) {
		t.Errorf("expires_at = %v, want %v", st.ExpiresAt, testEpoch.Add(180*time.Second))
	}
	if st.LastTriggeredBy == nil || *st.LastTriggeredBy != sensorID {
		t.Errorf("last_triggered_by = %v, want %s", st.LastTriggeredBy, sensorID)
	}

	h.platform.ClearCalls()
	h.sensor(sensorID, "off")
	assertState(t, h.ctrl, StateActiveTimer)
	if calls := h.platform.Calls(); len(calls) != 0 {
		t.Errorf("event sensor off produced calls %+v", calls)
	}

	h.clock.Advance(179 * time.Second)
	assertState(t, h.ctrl, StateActiveTimer)

	h.clock.Advance(1 * time.Second)
	assertState(t, h.ctrl, StateIdle)
	assertCalls(t, h.platform.Calls(), platformCall{Op: "turn_off", EntityID: lightID})

	last := h.platform.LastStatus()
	if last.EntityID != "lightingsm.hallway" || last.State != "idle" {
		t.Errorf("published status = %s %s, want lightingsm.hallway idle", last.EntityID, last.State)
	}
	for _, attr := range []string{"reset_count", "reset_at", "expires_at", "delay", "disabled_by", "disabled_at", "service_data", "night_mode"} {
		if v, ok := last.Attributes[attr]; !ok || v != nil {
			t.Errorf("attribute %s = %v, want null", attr, v)
		}
	}
	if last.Attributes["last_triggered_by"] != sensorID {
		t.Errorf("last_triggered_by = %v, want kept after idle", last.Attributes["last_triggered_by"])
	}
}

// ─── Properties ────────────────────────────────────────────────────

func TestController_SingleLiveTimer(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff = true
	h := newHarness(t, cfg)

	for i := 0; i < 10; i++ {
		h.sensor(sensorID, "on")
		if n := h.clock.Pending(); n != 1 {
			t.Fatalf("pending timers after trigger #%d = %d, want 1", i+1, n)
		}
		h.clock.Advance(10 * time.Second)
	}
	assertState(t, h.ctrl, StateActiveTimer)
}

func TestController_BackoffGrowth(t *testing.T) {
	cfg := testConfig()
	cfg.Delay = floatPtr(100)
	cfg.Backoff = true
	cfg.BackoffFactor = floatPtr(1.1)
	cfg.BackoffMax = floatPtr(300)
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	want := []float64{110.0, 121.0, 133.1}
	for i, w := range want {
		h.sensor(sensorID, "on")
		st := h.ctrl.Status()
		if st.Delay == nil || *st.Delay != w {
			t.Errorf("delay after reset #%d = %v, want %v", i+1, st.Delay, w)
		}
		if st.ResetCount == nil || *st.ResetCount != i+1 {
			t.Errorf("reset_count after reset #%d = %v, want %d", i+1, st.ResetCount, i+1)
		}
		if st.ResetAt == nil {
			t.Errorf("reset_at not set after reset #%d", i+1)
		}
	}

	h.telemetry.mu.Lock()
	delays := append([]float64(nil), h.telemetry.delays...)
	h.telemetry.mu.Unlock()
	if len(delays) != 4 || delays[0] != 100 || delays[3] != 133.1 {
		t.Errorf("telemetry delays = %v, want [100 110 121 133.1]", delays)
	}
}

func TestController_BackoffResetsOnReentry(t *testing.T) {
	cfg := testConfig()
	cfg.Delay = floatPtr(100)
	cfg.Backoff = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	h.sensor(sensorID, "on")
	h.sensor(sensorID, "on")
	if st := h.ctrl.Status(); *st.Delay != 121 {
		t.Fatalf("delay = %v, want 121", *st.Delay)
	}

	h.clock.Advance(time.Hour)
	assertState(t, h.ctrl, StateIdle)

	h.sensor(sensorID, "on")
	st := h.ctrl.Status()
	if *st.Delay != 100 {
		t.Errorf("delay after re-entry = %v, want base 100", *st.Delay)
	}
	if st.ResetCount != nil {
		t.Errorf("reset_count after re-entry = %v, want null", *st.ResetCount)
	}
	if h.ctrl.timer.count != 0 {
		t.Errorf("backoff count = %d, want 0", h.ctrl.timer.count)
	}
}

func TestController_DurationSensor(t *testing.T) {
	cfg := testConfig()
	cfg.SensorTypeDuration = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveTimer)

	// Timer expires while the room is still occupied.
	h.clock.Advance(180 * time.Second)
	assertState(t, h.ctrl, StateActiveTimer)
	if !h.ctrl.timer.expired() {
		t.Fatal("timer should have expired")
	}

	h.platform.ClearCalls()
	h.sensor(sensorID, "off")
	assertState(t, h.ctrl, StateIdle)
	assertCalls(t, h.platform.Calls(), platformCall{Op: "turn_off", EntityID: lightID})
}

func TestController_DurationSensorOffBeforeExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.SensorTypeDuration = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	h.sensor(sensorID, "off")
	assertState(t, h.ctrl, StateActiveTimer)

	// Sensor is off when the timer runs out.
	h.clock.Advance(180 * time.Second)
	assertState(t, h.ctrl, StateIdle)
}

func TestController_SensorOffWhileExpiryReadsGuards(t *testing.T) {
	cfg := testConfig()
	cfg.SensorTypeDuration = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveTimer)
	h.platform.ClearCalls()

	// The expiry reads "on", then the sensor clears before expiry takes the
	// FSM lock. The off update sees a live timer and does nothing.
	h.platform.onNextRead(func(string) {
		h.sensor(sensorID, "off")
	})
	h.clock.Advance(180 * time.Second)

	assertState(t, h.ctrl, StateIdle)
	assertCalls(t, h.platform.Calls(), platformCall{Op: "turn_off", EntityID: lightID})
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.clock.Pending())
	}
}

func TestController_DurationSensorRetriggerAfterExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.SensorTypeDuration = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	h.clock.Advance(180 * time.Second)
	assertState(t, h.ctrl, StateActiveTimer)

	h.sensor(sensorID, "on")
	if h.ctrl.timer.expired() {
		t.Fatal("retrigger should re-arm the timer")
	}
	h.sensor(sensorID, "off")
	assertState(t, h.ctrl, StateActiveTimer)
}

func TestController_OverridePrecedence(t *testing.T) {
	cfg := testConfig()
	cfg.Overrides = []string{"input_boolean.party"}
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	h.clock.Advance(60 * time.Second)

	h.platform.ClearCalls()
	h.override("input_boolean.party", "on")
	assertState(t, h.ctrl, StateDisabled)
	assertCalls(t, h.platform.Calls(), platformCall{Op: "turn_off", EntityID: lightID})

	st := h.ctrl.Status()
	if st.DisabledBy == nil || *st.DisabledBy != "input_boolean.party" {
		t.Errorf("disabled_by = %v, want input_boolean.party", st.DisabledBy)
	}
	if st.DisabledAt == nil || !st.DisabledAt.Equal(testEpoch.Add(60*time.Second)) {
		t.Errorf("disabled_at = %v", st.DisabledAt)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0 after disable", h.clock.Pending())
	}

	// Motion and time are ignored while disabled.
	h.sensor(sensorID, "on")
	h.clock.Advance(time.Hour)
	assertState(t, h.ctrl, StateDisabled)

	h.override("input_boolean.party", "off")
	assertState(t, h.ctrl, StateIdle)
	st = h.ctrl.Status()
	if st.DisabledBy != nil || st.DisabledAt != nil {
		t.Errorf("disabled attributes not cleared: %v %v", st.DisabledBy, st.DisabledAt)
	}
}

func TestController_OverrideWaitsForAllOff(t *testing.T) {
	cfg := testConfig()
	cfg.Overrides = []string{"input_boolean.a", "input_boolean.b"}
	h := newHarness(t, cfg)

	h.override("input_boolean.a", "on")
	h.override("input_boolean.b", "on")
	assertState(t, h.ctrl, StateDisabled)

	h.override("input_boolean.a", "off")
	assertState(t, h.ctrl, StateDisabled)

	h.override("input_boolean.b", "off")
	assertState(t, h.ctrl, StateIdle)
}

func TestController_StayOnSink(t *testing.T) {
	cfg := testConfig()
	cfg.Stay = true
	cfg.Overrides = []string{"input_boolean.party"}
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveStayOn)
	if h.clock.Pending() != 1 {
		t.Errorf("stay-on should still arm the timer, pending = %d", h.clock.Pending())
	}

	h.sensor(sensorID, "off")
	h.clock.Advance(24 * time.Hour)
	h.sensor(sensorID, "on")
	h.sensor(sensorID, "off")
	assertState(t, h.ctrl, StateActiveStayOn)

	h.override("input_boolean.party", "on")
	assertState(t, h.ctrl, StateDisabled)
}

// ─── Entry / Exit Actions ──────────────────────────────────────────

func TestController_ServiceDataAndNightMode(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceData = map[string]any{"brightness": 255}
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	calls := h.platform.Calls()
	if len(calls) != 1 || calls[0].Data["brightness"] != 255 {
		t.Fatalf("calls = %+v, want turn_on with brightness 255", calls)
	}
	st := h.ctrl.Status()
	if st.NightMode == nil || *st.NightMode {
		t.Errorf("night_mode = %v, want false at noon", st.NightMode)
	}
	if st.ServiceData["brightness"] != 255 {
		t.Errorf("service_data = %v", st.ServiceData)
	}

	// Mutating what the platform received must not affect the controller.
	calls[0].Data["brightness"] = 0
	h.ctrl.ForceReset(context.Background(), "test")
	h.platform.ClearCalls()
	h.sensor(sensorID, "on")
	if got := h.platform.Calls()[0].Data["brightness"]; got != 255 {
		t.Errorf("second turn_on brightness = %v, want 255", got)
	}
}

func TestController_NightParams(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceData = map[string]any{"brightness": 255}
	cfg.NightMode = &nightModeNoon
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	st := h.ctrl.Status()
	if st.NightMode == nil || !*st.NightMode {
		t.Fatalf("night_mode = %v, want true", st.NightMode)
	}
	if *st.Delay != 30 {
		t.Errorf("delay = %v, want night 30", *st.Delay)
	}
	if got := h.platform.Calls()[0].Data["brightness"]; got != 10 {
		t.Errorf("brightness = %v, want night 10", got)
	}
}

func TestController_NoServiceDataSendsNil(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")
	if data := h.platform.Calls()[0].Data; data != nil {
		t.Errorf("turn_on data = %v, want nil", data)
	}
}

func TestController_OffEntities(t *testing.T) {
	cfg := testConfig()
	cfg.EntityOff = []string{"scene.hallway_dim"}
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	h.platform.ClearCalls()
	h.clock.Advance(180 * time.Second)

	assertState(t, h.ctrl, StateIdle)
	assertCalls(t, h.platform.Calls(), platformCall{Op: "turn_on", EntityID: "scene.hallway_dim"})
}

func TestController_MultipleControlEntities(t *testing.T) {
	cfg := testConfig()
	cfg.Entities = []string{"light.b", "light.c"}
	cfg.EntityOn = []string{"switch.fan"}
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	assertCalls(t, h.platform.Calls(),
		platformCall{Op: "turn_on", EntityID: lightID},
		platformCall{Op: "turn_on", EntityID: "light.b"},
		platformCall{Op: "turn_on", EntityID: "light.c"},
		platformCall{Op: "turn_on", EntityID: "switch.fan"},
	)
}

func TestController_StateEntitiesOnBlocksActivation(t *testing.T) {
	h := newHarness(t, testConfig())
	h.platform.set(lightID, "on")

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateIdle)
	if calls := h.platform.Calls(); len(calls) != 0 {
		t.Errorf("calls = %+v, want none", calls)
	}
}

// ─── Failure Handling ──────────────────────────────────────────────

func TestController_ReadErrorTreatedAsOff(t *testing.T) {
	h := newHarness(t, testConfig())
	h.platform.readErr[lightID] = errors.New("bridge offline")

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveTimer)
}

func TestController_CommandFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, testConfig())
	h.platform.commandErr = errors.New("publish failed")

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveTimer)

	h.telemetry.mu.Lock()
	failures := append([]string(nil), h.telemetry.failures...)
	h.telemetry.mu.Unlock()
	if len(failures) != 1 || failures[0] != lightID {
		t.Errorf("command failures = %v, want [%s]", failures, lightID)
	}

	h.clock.Advance(180 * time.Second)
	assertState(t, h.ctrl, StateIdle)
}

func TestController_RecorderFailureIgnored(t *testing.T) {
	h := newHarness(t, testConfig())
	h.recorder.err = errors.New("disk full")

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveTimer)
}

func TestController_StaleTimerIgnored(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")
	first := h.clock.timerAt(0)
	h.sensor(sensorID, "on")

	first()
	assertState(t, h.ctrl, StateActiveTimer)
	if h.ctrl.timer.expired() {
		t.Error("stale callback consumed the live timer")
	}
}

// ─── Concurrency ───────────────────────────────────────────────────

func TestController_ConcurrentTriggers(t *testing.T) {
	const override = "input_boolean.party"
	cfg := testConfig()
	cfg.SensorTypeDuration = true
	cfg.Backoff = true
	cfg.Overrides = []string{override}
	h := newHarness(t, cfg)
	ctx := context.Background()

	const rounds = 200
	var wg sync.WaitGroup
	run := func(fn func(i int)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				fn(i)
			}
		}()
	}

	run(func(i int) {
		if i%2 == 0 {
			h.sensor(sensorID, "on")
		} else {
			h.sensor(sensorID, "off")
		}
	})
	run(func(i int) {
		if i%3 == 0 {
			h.override(override, "on")
		} else {
			h.override(override, "off")
		}
	})
	run(func(i int) {
		if i%25 == 0 {
			h.ctrl.ForceReset(ctx, "api")
		}
	})
	run(func(int) {
		h.clock.Advance(time.Minute)
	})
	run(func(int) {
		_ = h.ctrl.Status()
		h.ctrl.PublishStatus(ctx)
	})
	wg.Wait()

	if n := h.clock.Pending(); n > 1 {
		t.Errorf("pending timers = %d, want at most 1", n)
	}

	// Records leave in evaluation order, so each one starts where the
	// previous one ended.
	recs := h.recorder.Records()
	if len(recs) == 0 {
		t.Fatal("no transitions recorded")
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].From != recs[i-1].To {
			t.Fatalf("record %d from %s, previous ended in %s", i, recs[i].From, recs[i-1].To)
		}
	}

	h.ctrl.ForceReset(ctx, "api")
	assertState(t, h.ctrl, StateIdle)
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("pending timers after reset = %d, want 0", n)
	}
	if got := h.platform.LastStatus().State; got != "idle" {
		t.Errorf("last published state = %s, want idle", got)
	}
}

// ─── Forced Reset ──────────────────────────────────────────────────

func TestController_ForceReset(t *testing.T) {
	cfg := testConfig()
	cfg.Stay = true
	h := newHarness(t, cfg)

	h.sensor(sensorID, "on")
	assertState(t, h.ctrl, StateActiveStayOn)
	h.platform.ClearCalls()

	h.ctrl.ForceReset(context.Background(), "api")
	assertState(t, h.ctrl, StateIdle)
	if calls := h.platform.Calls(); len(calls) != 0 {
		t.Errorf("forced reset sent commands %+v", calls)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.clock.Pending())
	}

	recs := h.recorder.Records()
	last := recs[len(recs)-1]
	if last.Trigger != TriggerForcedReset || last.From != "active_stay_on" || last.To != "idle" || last.TriggeredBy != "api" {
		t.Errorf("last record = %+v", last)
	}

	// The old timer must not fire into the fresh idle state.
	h.clock.Advance(time.Hour)
	assertState(t, h.ctrl, StateIdle)
}

// ─── Observability ─────────────────────────────────────────────────

func TestController_HistoryAndTelemetry(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")
	h.clock.Advance(180 * time.Second)

	recs := h.recorder.Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].From != "idle" || recs[0].To != "active_timer" || recs[0].Trigger != "sensor_on" || recs[0].TriggeredBy != sensorID {
		t.Errorf("record[0] = %+v", recs[0])
	}
	if recs[0].Delay == nil || *recs[0].Delay != 180 {
		t.Errorf("record[0].Delay = %v, want 180", recs[0].Delay)
	}
	if recs[1].To != "idle" || recs[1].Trigger != "timer_expires" || recs[1].TriggeredBy != "timer" {
		t.Errorf("record[1] = %+v", recs[1])
	}
	if !recs[1].OccurredAt.Equal(testEpoch.Add(180 * time.Second)) {
		t.Errorf("record[1].OccurredAt = %v", recs[1].OccurredAt)
	}

	h.telemetry.mu.Lock()
	defer h.telemetry.mu.Unlock()
	want := []string{"idle>active_timer:sensor_on", "active_timer>idle:timer_expires"}
	if len(h.telemetry.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", h.telemetry.transitions, want)
	}
	for i := range want {
		if h.telemetry.transitions[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, h.telemetry.transitions[i], want[i])
		}
	}
	if n := len(h.telemetry.states); n == 0 || h.telemetry.states[n-1] != "idle" {
		t.Errorf("state observations = %v, want ending in idle", h.telemetry.states)
	}
}

func TestController_BroadcastsStatus(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")

	h.hub.mu.Lock()
	defer h.hub.mu.Unlock()
	if len(h.hub.channels) == 0 || h.hub.channels[0] != StatusChannel {
		t.Fatalf("channels = %v, want %s", h.hub.channels, StatusChannel)
	}
	st, ok := h.hub.payloads[len(h.hub.payloads)-1].(Status)
	if !ok || st.State != "active_timer" {
		t.Errorf("payload = %+v, want active_timer status", h.hub.payloads[len(h.hub.payloads)-1])
	}
}

func TestController_IgnoredTriggerPublishesNothing(t *testing.T) {
	h := newHarness(t, testConfig())

	step := h.ctrl.Fire(context.Background(), TriggerTimerExpires, "test")
	if step.Handled() {
		t.Errorf("Fire(timer_expires) in idle = %+v, want no-op", step)
	}
	if n := h.platform.StatusCount(); n != 0 {
		t.Errorf("status publications = %d, want 0", n)
	}
}

func TestController_PublishStatus(t *testing.T) {
	h := newHarness(t, testConfig())

	h.ctrl.PublishStatus(context.Background())
	last := h.platform.LastStatus()
	if last.State != "idle" {
		t.Errorf("state = %q, want idle", last.State)
	}
	controls, ok := last.Attributes["control_entities"].([]string)
	if !ok || len(controls) != 1 || controls[0] != lightID {
		t.Errorf("control_entities = %v", last.Attributes["control_entities"])
	}
}

func TestController_StopCancelsTimer(t *testing.T) {
	h := newHarness(t, testConfig())

	h.sensor(sensorID, "on")
	h.ctrl.Stop()
	h.clock.Advance(time.Hour)
	assertState(t, h.ctrl, StateActiveTimer)
}
