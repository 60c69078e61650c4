package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LightingConfig holds every motion lighting controller definition.
type LightingConfig struct {
	Controllers []ControllerConfig `yaml:"controllers"`
}

// ControllerConfig describes one motion lighting rule.
//
// Entity lists accept either a single string or a YAML sequence, so
// "sensor: binary_sensor.hall" and "sensors: [a, b]" are both valid.
// Pointer fields distinguish "not set" from an explicit zero so that
// defaults are applied by the lighting package.
type ControllerConfig struct {
	Name string `yaml:"name"`

	Entity        StringList `yaml:"entity"`
	Entities      StringList `yaml:"entities"`
	EntityOn      StringList `yaml:"entity_on"`
	EntityOff     StringList `yaml:"entity_off"`
	StateEntities StringList `yaml:"state_entities"`
	Sensor        StringList `yaml:"sensor"`
	Sensors       StringList `yaml:"sensors"`
	Overrides     StringList `yaml:"overrides"`

	// Delay is the timer length in seconds. Default 180.
	Delay       *float64         `yaml:"delay"`
	ServiceData map[string]any   `yaml:"service_data"`
	NightMode   *NightModeConfig `yaml:"night_mode"`

	Stay               bool     `yaml:"stay"`
	Backoff            bool     `yaml:"backoff"`
	BackoffFactor      *float64 `yaml:"backoff_factor"`
	BackoffMax         *float64 `yaml:"backoff_max"`
	SensorTypeDuration bool     `yaml:"sensor_type_duration"`

	// Per entity class vocabulary overrides. Each replaces the default
	// list for its class.
	ControlStatesOn   StringList `yaml:"control_states_on"`
	ControlStatesOff  StringList `yaml:"control_states_off"`
	SensorStatesOn    StringList `yaml:"sensor_states_on"`
	SensorStatesOff   StringList `yaml:"sensor_states_off"`
	OverrideStatesOn  StringList `yaml:"override_states_on"`
	OverrideStatesOff StringList `yaml:"override_states_off"`
	StateStatesOn     StringList `yaml:"state_states_on"`
	StateStatesOff    StringList `yaml:"state_states_off"`

	// StateStringsOn and StateStringsOff extend every class.
	StateStringsOn  StringList `yaml:"state_strings_on"`
	StateStringsOff StringList `yaml:"state_strings_off"`

	// Draw writes the controller's state graph in DOT format at startup.
	Draw bool `yaml:"draw"`
}

// NightModeConfig overrides the delay and service data during a
// time-of-day window. Times are "HH:MM" or "HH:MM:SS" in the site timezone.
type NightModeConfig struct {
	Delay       *float64       `yaml:"delay"`
	ServiceData map[string]any `yaml:"service_data"`
	StartTime   string         `yaml:"start_time"`
	EndTime     string         `yaml:"end_time"`
}

// ControlEntities returns entity, entities and entity_on in that order.
// Duplicates are not removed here.
func (c ControllerConfig) ControlEntities() []string {
	out := make([]string, 0, len(c.Entity)+len(c.Entities)+len(c.EntityOn))
	out = append(out, c.Entity...)
	out = append(out, c.Entities...)
	out = append(out, c.EntityOn...)
	return out
}

// SensorEntities returns sensor followed by sensors.
func (c ControllerConfig) SensorEntities() []string {
	out := make([]string, 0, len(c.Sensor)+len(c.Sensors))
	out = append(out, c.Sensor...)
	out = append(out, c.Sensors...)
	return out
}

func (l LightingConfig) validate() []string {
	var errs []string
	seen := make(map[string]bool, len(l.Controllers))

	for i, c := range l.Controllers {
		prefix := fmt.Sprintf("lighting.controllers[%d]", i)
		if c.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else {
			if seen[c.Name] {
				errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, c.Name))
			}
			seen[c.Name] = true
		}
		if len(c.ControlEntities()) == 0 {
			errs = append(errs, prefix+" needs at least one of entity, entities or entity_on")
		}
		if c.Delay != nil && *c.Delay < 0 {
			errs = append(errs, prefix+".delay must not be negative")
		}
		if c.BackoffMax != nil && *c.BackoffMax <= 0 {
			errs = append(errs, prefix+".backoff_max must be positive")
		}
		if c.BackoffFactor != nil && *c.BackoffFactor <= 0 {
			errs = append(errs, prefix+".backoff_factor must be positive")
		}
		if c.NightMode != nil && c.NightMode.Delay != nil && *c.NightMode.Delay < 0 {
			errs = append(errs, prefix+".night_mode.delay must not be negative")
		}
	}

	return errs
}

// StringList is a list of strings that also accepts a single scalar in YAML.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = nil
			return nil
		}
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}
