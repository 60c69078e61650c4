package lighting

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Params are the light parameters applied on entry into active.
type Params struct {
	// Delay is the base timer length in seconds.
	Delay float64
	// ServiceData is passed with every turn-on command. Nil means none.
	ServiceData map[string]any
}

// clone returns a copy whose ServiceData may be handed to collaborators.
func (p Params) clone() Params {
	return Params{Delay: p.Delay, ServiceData: maps.Clone(p.ServiceData)}
}

// NightWindow is a time-of-day interval [Start, End) measured from local
// midnight. A window whose End is before its Start wraps past midnight.
// Equal Start and End describe an empty window.
type NightWindow struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether t falls inside the window, using t's own location.
func (w NightWindow) Contains(t time.Time) bool {
	tod := sinceMidnight(t)
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return tod >= w.Start && tod < w.End
	default:
		return tod >= w.Start || tod < w.End
	}
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}

	limits := []int{24, 60, 60}
	units := []time.Duration{time.Hour, time.Minute, time.Second}

	var total time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] || len(p) > 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

// Resolver chooses between day and night parameters.
type Resolver struct {
	Day   Params
	Night Params

	// Window is nil when night mode is not configured.
	Window   *NightWindow
	Location *time.Location
}

// Resolve returns the parameters that apply at now, and whether they are the
// night parameters. The returned ServiceData is a private copy.
func (r Resolver) Resolve(now time.Time) (Params, bool) {
	if r.Window == nil {
		return r.Day.clone(), false
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	if r.Window.Contains(now.In(loc)) {
		return r.Night.clone(), true
	}
	return r.Day.clone(), false
}
