package lighting

// State is a controller state. The zero value is StateIdle.
type State int

// Controller states. StateActiveTimer and StateActiveStayOn are the two
// substates of "active" and share its entry and exit actions.
const (
	StateIdle State = iota
	StateDisabled
	StateActiveTimer
	StateActiveStayOn
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateDisabled:     "disabled",
	StateActiveTimer:  "active_timer",
	StateActiveStayOn: "active_stay_on",
}

// String returns the published name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsActive reports whether s is one of the active substates.
func (s State) IsActive() bool {
	return s == StateActiveTimer || s == StateActiveStayOn
}

// Trigger is an input to the state machine.
type Trigger int

// Triggers.
const (
	TriggerDisable Trigger = iota
	TriggerEnable
	TriggerSensorOn
	TriggerSensorOff
	TriggerSensorOffDuration
	TriggerTimerExpires
)

var triggerNames = [...]string{
	TriggerDisable:           "disable",
	TriggerEnable:            "enable",
	TriggerSensorOn:          "sensor_on",
	TriggerSensorOff:         "sensor_off",
	TriggerSensorOffDuration: "sensor_off_duration",
	TriggerTimerExpires:      "timer_expires",
}

// TriggerForcedReset names the out-of-table reset in history and telemetry.
const TriggerForcedReset = "reset"

// String returns the snake_case name of the trigger.
func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}

// Step is the outcome of evaluating one trigger.
type Step struct {
	From State
	To   State

	// Changed is true when a transition with a destination was taken.
	// Entry and exit actions run only for changed steps.
	Changed bool

	// ResetTimer is true for the internal retrigger of active_timer.
	ResetTimer bool
}

// Handled reports whether the trigger had any effect.
func (s Step) Handled() bool {
	return s.Changed || s.ResetTimer
}

// Transition evaluates trigger t in state s under guards g. It is total:
// every (state, trigger) pair yields a Step, and pairs without a table entry
// yield a no-op Step with To == From.
func Transition(s State, t Trigger, g Guards) Step {
	noop := Step{From: s, To: s}
	move := func(to State) Step {
		return Step{From: s, To: to, Changed: true}
	}

	if t == TriggerDisable {
		if s == StateDisabled {
			return noop
		}
		return move(StateDisabled)
	}

	switch s {
	case StateIdle:
		if t == TriggerSensorOn && isStateEntitiesOff(g) {
			if willStayOn(g) {
				return move(StateActiveStayOn)
			}
			return move(StateActiveTimer)
		}

	case StateDisabled:
		if t == TriggerEnable {
			return move(StateIdle)
		}

	case StateActiveTimer:
		switch t {
		case TriggerSensorOn:
			return Step{From: s, To: s, ResetTimer: true}
		case TriggerSensorOffDuration:
			if isTimerExpired(g) {
				return move(StateIdle)
			}
		case TriggerTimerExpires:
			if isEventSensor(g) {
				return move(StateIdle)
			}
			if isDurationSensor(g) && isSensorOff(g) {
				return move(StateIdle)
			}
		}

	case StateActiveStayOn:
		// Only disable or a forced reset leave stay-on.
	}

	return noop
}
