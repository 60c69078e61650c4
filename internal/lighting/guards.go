package lighting

// SensorType selects how sensor "off" reports are treated.
type SensorType int

const (
	// SensorEvent sensors only ever report motion; the timer alone ends activity.
	SensorEvent SensorType = iota
	// SensorDuration sensors stay "on" while occupied and report "off" when clear.
	SensorDuration
)

// String returns "event" or "duration".
func (s SensorType) String() string {
	if s == SensorDuration {
		return "duration"
	}
	return "event"
}

// Guards is an immutable snapshot of everything a transition may depend on.
// The controller builds a fresh one for every trigger.
type Guards struct {
	StayOn          bool
	SensorType      SensorType
	TimerExpired    bool // no timer is live
	SensorOn        bool // at least one sensor reports on
	StateEntitiesOn bool // at least one state entity reports on
}

func willStayOn(g Guards) bool         { return g.StayOn }
func isEventSensor(g Guards) bool      { return g.SensorType == SensorEvent }
func isDurationSensor(g Guards) bool   { return g.SensorType == SensorDuration }
func isTimerExpired(g Guards) bool     { return g.TimerExpired }
func isSensorOff(g Guards) bool        { return !g.SensorOn }
func isStateEntitiesOff(g Guards) bool { return !g.StateEntitiesOn }
