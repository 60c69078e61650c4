package lighting

import (
	"fmt"
	"maps"
	"time"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

// BackoffSettings controls how retriggers stretch the timer.
type BackoffSettings struct {
	Enabled bool
	Factor  float64
	Max     float64
}

// Settings is the resolved, immutable definition of one controller.
type Settings struct {
	Name string

	ControlEntities  []string
	StateEntities    []string
	SensorEntities   []string
	OffEntities      []string
	OverrideEntities []string

	SensorType SensorType
	StayOn     bool
	Backoff    BackoffSettings
	Resolver   Resolver
	Matcher    Matcher
	Draw       bool

	// Warnings lists configuration problems that were tolerated.
	Warnings []string
}

// EntityID returns the status entity ID of the controller, "lightingsm.<name>".
func (s *Settings) EntityID() string {
	return StatusEntityID(s.Name)
}

// StatusEntityID returns the status entity ID for a controller name.
func StatusEntityID(name string) string {
	return "lightingsm." + name
}

// NewSettings resolves a controller definition.
//
// Entity lists are de-duplicated in order. State entities default to the
// control entities. Night mode inherits delay and service data from the day
// parameters and is dropped, with a warning, when its window is incomplete or
// unparseable.
//
// Parameters:
//   - cfg: Controller definition from the configuration file
//   - loc: Site timezone used for the night window (nil means UTC)
//
// Returns:
//   - *Settings: Immutable settings for NewController
//   - error: ErrInvalidSettings when the name or control entities are missing
func NewSettings(cfg config.ControllerConfig, loc *time.Location) (*Settings, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSettings)
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &Settings{
		Name:             cfg.Name,
		ControlEntities:  dedupe(cfg.ControlEntities()),
		StateEntities:    dedupe(cfg.StateEntities),
		SensorEntities:   dedupe(cfg.SensorEntities()),
		OffEntities:      dedupe(cfg.EntityOff),
		OverrideEntities: dedupe(cfg.Overrides),
		StayOn:           cfg.Stay,
		Matcher:          NewMatcher(cfg),
		Draw:             cfg.Draw,
	}
	if len(s.ControlEntities) == 0 {
		return nil, fmt.Errorf("%w: controller %q has no control entities", ErrInvalidSettings, cfg.Name)
	}
	if len(s.StateEntities) == 0 {
		s.StateEntities = append([]string(nil), s.ControlEntities...)
	}
	if len(s.SensorEntities) == 0 {
		s.warn("no sensors configured; the controller can only be driven by overrides and resets")
	}
	if cfg.SensorTypeDuration {
		s.SensorType = SensorDuration
	}

	s.Backoff = BackoffSettings{
		Enabled: cfg.Backoff,
		Factor:  floatOr(cfg.BackoffFactor, DefaultBackoffFactor),
		Max:     floatOr(cfg.BackoffMax, DefaultBackoffMax),
	}
	if s.Backoff.Enabled && s.Backoff.Factor < 1 {
		s.warn(fmt.Sprintf("backoff_factor %.2f is below 1; delays will shrink on retrigger", s.Backoff.Factor))
	}

	day := Params{
		Delay:       floatOr(cfg.Delay, DefaultDelay),
		ServiceData: maps.Clone(cfg.ServiceData),
	}
	s.Resolver = Resolver{Day: day, Night: day, Location: loc}
	if cfg.NightMode != nil {
		s.applyNightMode(*cfg.NightMode, day)
	}

	return s, nil
}

func (s *Settings) applyNightMode(nm config.NightModeConfig, day Params) {
	if nm.StartTime == "" || nm.EndTime == "" {
		s.warn("night_mode requires start_time and end_time; night mode disabled")
		return
	}
	start, err := ParseTimeOfDay(nm.StartTime)
	if err != nil {
		s.warn(fmt.Sprintf("night_mode.start_time: %v; night mode disabled", err))
		return
	}
	end, err := ParseTimeOfDay(nm.EndTime)
	if err != nil {
		s.warn(fmt.Sprintf("night_mode.end_time: %v; night mode disabled", err))
		return
	}

	night := Params{
		Delay:       floatOr(nm.Delay, day.Delay),
		ServiceData: maps.Clone(day.ServiceData),
	}
	if nm.ServiceData != nil {
		night.ServiceData = maps.Clone(nm.ServiceData)
	}
	s.Resolver.Night = night
	s.Resolver.Window = &NightWindow{Start: start, End: end}
}

func (s *Settings) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
