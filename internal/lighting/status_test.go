package lighting

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatus_Attributes(t *testing.T) {
	settings, err := NewSettings(testConfig(), time.UTC)
	if err != nil {
		t.Fatalf("NewSettings() error = %v", err)
	}

	st := newStatus(settings)
	st.ResetCount = ptr(2)
	st.ExpiresAt = ptr(time.Date(2026, 10, 19, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60)))
	st.Delay = ptr(133.1)
	st.NightMode = ptr(false)
	st.ServiceData = map[string]any{"brightness": 40}

	attrs := st.Attributes()

	if attrs["reset_count"] != 2 {
		t.Errorf("reset_count = %v, want 2", attrs["reset_count"])
	}
	if attrs["expires_at"] != "2026-10-19T12:00:00Z" {
		t.Errorf("expires_at = %v, want UTC RFC 3339", attrs["expires_at"])
	}
	if attrs["delay"] != 133.1 {
		t.Errorf("delay = %v, want 133.1", attrs["delay"])
	}
	if attrs["night_mode"] != false {
		t.Errorf("night_mode = %v, want false", attrs["night_mode"])
	}
	if attrs["reset_at"] != nil || attrs["disabled_by"] != nil || attrs["last_triggered_at"] != nil {
		t.Errorf("unset attributes should be nil: %v", attrs)
	}

	// The map is a copy.
	attrs["service_data"].(map[string]any)["brightness"] = 1
	if st.ServiceData["brightness"] != 40 {
		t.Error("Attributes shares the service data map")
	}
}

func TestStatus_ClearTransientKeepsLastTriggered(t *testing.T) {
	st := Status{
		ResetCount:      ptr(1),
		Delay:           ptr(10.0),
		DisabledBy:      ptr("input_boolean.a"),
		ServiceData:     map[string]any{"x": 1},
		NightMode:       ptr(true),
		LastTriggeredBy: ptr("binary_sensor.a"),
		LastTriggeredAt: ptr(testEpoch),
	}
	st.clearTransient()

	if st.ResetCount != nil || st.Delay != nil || st.DisabledBy != nil || st.ServiceData != nil || st.NightMode != nil {
		t.Errorf("transient fields not cleared: %+v", st)
	}
	if st.LastTriggeredBy == nil || st.LastTriggeredAt == nil {
		t.Error("last triggered fields should survive")
	}
}

func TestStatus_JSONNulls(t *testing.T) {
	settings, err := NewSettings(testConfig(), time.UTC)
	if err != nil {
		t.Fatalf("NewSettings() error = %v", err)
	}

	data, err := json.Marshal(newStatus(settings))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := decoded["expires_at"]; !ok || v != nil {
		t.Errorf("expires_at = %v, want explicit null", v)
	}
	if decoded["state"] != "idle" || decoded["entity_id"] != "lightingsm.hallway" {
		t.Errorf("decoded = %v", decoded)
	}
}
