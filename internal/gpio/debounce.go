package gpio

import "time"

// debouncer tracks one line and reports stable transitions.
//
// A level must hold for the debounce duration before it becomes stable. The
// first stable level is the baseline and is reported as a transition too,
// so the platform learns the initial sensor state.
type debouncer struct {
	duration     time.Duration
	stable       bool
	baselined    bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
}

// process feeds one sample and reports (level, true) once a level other
// than the stable one has held for the debounce duration. The level becomes
// stable only on commit; until then it is reported again on every sample.
func (d *debouncer) process(active bool, now time.Time) (bool, bool) {
	if d.baselined && active == d.stable {
		d.hasPending = false
		return false, false
	}

	if !d.hasPending || d.pending != active {
		d.pending = active
		d.hasPending = true
		d.pendingSince = now
		if d.duration > 0 {
			return false, false
		}
	}

	if now.Sub(d.pendingSince) < d.duration {
		return false, false
	}
	return active, true
}

// commit makes level the stable level.
func (d *debouncer) commit(level bool) {
	d.stable = level
	d.baselined = true
	d.hasPending = false
}
