package lighting

import (
	"math"
	"time"
)

// Backoff defaults.
const (
	DefaultDelay         = 180.0
	DefaultBackoffFactor = 1.1
	DefaultBackoffMax    = 300.0
)

// backoffTimer is the single timer owned by a controller.
//
// All methods must be called with the controller's FSM lock held. The expiry
// callback receives the generation it was armed with; the controller passes
// it back through fire, which rejects anything but the current live timer.
type backoffTimer struct {
	clock    Clock
	onExpire func(gen uint64)

	backoff bool
	factor  float64
	max     float64

	count     int     // resets since entering active
	delay     float64 // current working delay in seconds
	gen       uint64
	handle    Stopper
	live      bool
	expiresAt time.Time
	capped    bool // last reset hit max
}

func newBackoffTimer(clock Clock, b BackoffSettings, onExpire func(gen uint64)) *backoffTimer {
	return &backoffTimer{
		clock:    clock,
		onExpire: onExpire,
		backoff:  b.Enabled,
		factor:   b.Factor,
		max:      b.Max,
	}
}

// arm cancels any live timer and starts a new one. The delay is base when no
// reset has happened since entering active, otherwise the previous working
// delay multiplied by the factor, rounded to 2 decimals and capped at max.
// It returns the delay used.
func (t *backoffTimer) arm(base float64) float64 {
	t.cancel()

	t.capped = false
	if t.count == 0 {
		t.delay = base
	} else {
		next := round2(t.delay * t.factor)
		if next > t.max {
			next = t.max
			t.capped = true
		}
		t.delay = next
	}

	t.gen++
	gen := t.gen
	d := time.Duration(t.delay * float64(time.Second))
	t.live = true
	t.expiresAt = t.clock.Now().Add(d)
	t.handle = t.clock.AfterFunc(d, func() { t.onExpire(gen) })

	return t.delay
}

// cancel stops the live timer, if any. Any callback already in flight is
// invalidated by the generation bump.
func (t *backoffTimer) cancel() {
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	if t.live {
		t.gen++
	}
	t.live = false
	t.expiresAt = time.Time{}
}

// reset restarts the timer after a retrigger. The reset count only grows when
// backoff is enabled, so without backoff every arm uses base.
func (t *backoffTimer) reset(base float64) float64 {
	t.cancel()
	if t.backoff {
		t.count++
	}
	return t.arm(base)
}

// restart clears the reset count on fresh entry into active.
func (t *backoffTimer) restart() {
	t.count = 0
}

// expired reports whether no timer is live.
func (t *backoffTimer) expired() bool {
	return !t.live
}

// fire consumes the expiry of generation gen. It reports false for stale or
// cancelled timers.
func (t *backoffTimer) fire(gen uint64) bool {
	if !t.live || gen != t.gen {
		return false
	}
	t.live = false
	t.handle = nil
	t.expiresAt = time.Time{}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
