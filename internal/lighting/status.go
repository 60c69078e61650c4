package lighting

import (
	"maps"
	"time"
)

// Status is the externally visible state of a controller.
//
// Nil fields are published as null. The transient fields are cleared on
// every entry into idle; LastTriggeredBy and LastTriggeredAt survive.
type Status struct {
	Controller string `json:"controller"`
	EntityID   string `json:"entity_id"`
	State      string `json:"state"`

	ResetCount      *int           `json:"reset_count"`
	ResetAt         *time.Time     `json:"reset_at"`
	ExpiresAt       *time.Time     `json:"expires_at"`
	Delay           *float64       `json:"delay"`
	DisabledBy      *string        `json:"disabled_by"`
	DisabledAt      *time.Time     `json:"disabled_at"`
	ServiceData     map[string]any `json:"service_data"`
	NightMode       *bool          `json:"night_mode"`
	LastTriggeredBy *string        `json:"last_triggered_by"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at"`

	ControlEntities  []string `json:"control_entities"`
	StateEntities    []string `json:"state_entities"`
	SensorEntities   []string `json:"sensor_entities"`
	OffEntities      []string `json:"off_entities"`
	OverrideEntities []string `json:"override_entities"`
}

func newStatus(s *Settings) Status {
	return Status{
		Controller:       s.Name,
		EntityID:         s.EntityID(),
		State:            StateIdle.String(),
		ControlEntities:  s.ControlEntities,
		StateEntities:    s.StateEntities,
		SensorEntities:   s.SensorEntities,
		OffEntities:      s.OffEntities,
		OverrideEntities: s.OverrideEntities,
	}
}

func (s *Status) clearTransient() {
	s.ResetCount = nil
	s.ResetAt = nil
	s.ExpiresAt = nil
	s.Delay = nil
	s.DisabledBy = nil
	s.DisabledAt = nil
	s.ServiceData = nil
	s.NightMode = nil
}

// clone copies the status so it can leave the controller lock. Entity lists
// are shared because Settings never changes them.
func (s Status) clone() Status {
	s.ServiceData = maps.Clone(s.ServiceData)
	return s
}

// Attributes renders the status as a flat attribute map for PublishStatus.
// Timestamps are RFC 3339 strings in UTC.
func (s Status) Attributes() map[string]any {
	return map[string]any{
		"reset_count":       intOrNil(s.ResetCount),
		"reset_at":          timeOrNil(s.ResetAt),
		"expires_at":        timeOrNil(s.ExpiresAt),
		"delay":             floatOrNil(s.Delay),
		"disabled_by":       stringOrNil(s.DisabledBy),
		"disabled_at":       timeOrNil(s.DisabledAt),
		"service_data":      mapOrNil(s.ServiceData),
		"night_mode":        boolOrNil(s.NightMode),
		"last_triggered_by": stringOrNil(s.LastTriggeredBy),
		"last_triggered_at": timeOrNil(s.LastTriggeredAt),
		"control_entities":  s.ControlEntities,
		"state_entities":    s.StateEntities,
		"sensor_entities":   s.SensorEntities,
		"off_entities":      s.OffEntities,
		"override_entities": s.OverrideEntities,
	}
}

func ptr[T any](v T) *T { return &v }

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolOrNil(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func timeOrNil(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339)
}

func mapOrNil(v map[string]any) any {
	if v == nil {
		return nil
	}
	return maps.Clone(v)
}
