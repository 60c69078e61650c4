package lighting

import "github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"

// EntityClass identifies which role an entity plays for a controller.
// Each class carries its own on/off vocabulary.
type EntityClass int

// Entity classes.
const (
	ClassControl EntityClass = iota
	ClassSensor
	ClassOverride
	ClassState
)

// String returns the configuration name of the class.
func (c EntityClass) String() string {
	switch c {
	case ClassControl:
		return "control"
	case ClassSensor:
		return "sensor"
	case ClassOverride:
		return "override"
	case ClassState:
		return "state"
	default:
		return "unknown"
	}
}

// Default vocabularies used when a class has no override.
var (
	DefaultStatesOn  = []string{"on", "playing", "home"}
	DefaultStatesOff = []string{"off", "idle", "paused", "away"}
)

type vocabulary struct {
	on  map[string]struct{}
	off map[string]struct{}
}

// Matcher decides whether a raw entity state string means "on" or "off" for
// a given entity class. Matching is exact and case sensitive. A state that is
// in neither list is neither on nor off.
//
// A Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	classes map[EntityClass]vocabulary
}

// NewMatcher builds a Matcher from a controller definition.
//
// A non-empty <class>_states_on/off list replaces the default for that class.
// state_strings_on/off are then appended to every class.
func NewMatcher(cfg config.ControllerConfig) Matcher {
	overrides := map[EntityClass][2][]string{
		ClassControl:  {cfg.ControlStatesOn, cfg.ControlStatesOff},
		ClassSensor:   {cfg.SensorStatesOn, cfg.SensorStatesOff},
		ClassOverride: {cfg.OverrideStatesOn, cfg.OverrideStatesOff},
		ClassState:    {cfg.StateStatesOn, cfg.StateStatesOff},
	}

	m := Matcher{classes: make(map[EntityClass]vocabulary, len(overrides))}
	for class, lists := range overrides {
		on, off := lists[0], lists[1]
		if len(on) == 0 {
			on = DefaultStatesOn
		}
		if len(off) == 0 {
			off = DefaultStatesOff
		}
		m.classes[class] = vocabulary{
			on:  toSet(on, cfg.StateStringsOn),
			off: toSet(off, cfg.StateStringsOff),
		}
	}
	return m
}

// DefaultMatcher returns a Matcher using only the default vocabularies.
func DefaultMatcher() Matcher {
	return NewMatcher(config.ControllerConfig{})
}

// IsOn reports whether state is in the "on" vocabulary of class.
func (m Matcher) IsOn(class EntityClass, state string) bool {
	_, ok := m.classes[class].on[state]
	return ok
}

// IsOff reports whether state is in the "off" vocabulary of class.
func (m Matcher) IsOff(class EntityClass, state string) bool {
	_, ok := m.classes[class].off[state]
	return ok
}

func toSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			set[s] = struct{}{}
		}
	}
	return set
}
