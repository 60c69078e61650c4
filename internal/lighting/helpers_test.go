package lighting

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

// ─── Fake Clock ────────────────────────────────────────────────────

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// Advance moves time forward, running due callbacks in order without
// holding the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
		var due *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = t
				break
			}
		}
		if due == nil {
			break
		}
		due.fired = true
		c.now = due.at
		c.mu.Unlock()
		due.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// timerAt returns the callback of the i-th scheduled timer, for replaying
// stale expiries.
func (c *fakeClock) timerAt(i int) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i].f
}

// ─── Mock Platform ─────────────────────────────────────────────────

type platformCall struct {
	Op       string // turn_on, turn_off
	EntityID string
	Data     map[string]any
}

type publishedStatus struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

type mockPlatform struct {
	mu         sync.Mutex
	states     map[string]string
	readErr    map[string]error
	commandErr error
	calls      []platformCall
	statuses   []publishedStatus
	subs       map[string][]func(StateChange)
	events     map[string][]func(map[string]any)

	// afterRead, when set, runs once after the next GetState returns its
	// value, outside the platform lock.
	afterRead func(entityID string)
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		states:  make(map[string]string),
		readErr: make(map[string]error),
		subs:    make(map[string][]func(StateChange)),
		events:  make(map[string][]func(map[string]any)),
	}
}

func (p *mockPlatform) GetState(_ context.Context, entityID string) (string, error) {
	p.mu.Lock()
	hook := p.afterRead
	p.afterRead = nil
	err := p.readErr[entityID]
	s, ok := p.states[entityID]
	p.mu.Unlock()

	if hook != nil {
		defer hook(entityID)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("unknown entity")
	}
	return s, nil
}

// onNextRead installs a one-shot hook run after the next GetState.
func (p *mockPlatform) onNextRead(fn func(entityID string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.afterRead = fn
}

func (p *mockPlatform) TurnOn(_ context.Context, entityID string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, platformCall{Op: "turn_on", EntityID: entityID, Data: data})
	return p.commandErr
}

func (p *mockPlatform) TurnOff(_ context.Context, entityID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, platformCall{Op: "turn_off", EntityID: entityID})
	return p.commandErr
}

func (p *mockPlatform) PublishStatus(_ context.Context, entityID, state string, attrs map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, publishedStatus{EntityID: entityID, State: state, Attributes: attrs})
	return nil
}

func (p *mockPlatform) Subscribe(entityID string, fn func(StateChange)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[entityID] = append(p.subs[entityID], fn)
	return nil
}

func (p *mockPlatform) SubscribeEvent(event string, fn func(map[string]any)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[event] = append(p.events[event], fn)
	return nil
}

// set stores a state without notifying subscribers.
func (p *mockPlatform) set(entityID, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[entityID] = state
}

// change stores a state and notifies subscribers, as a bridge update would.
func (p *mockPlatform) change(entityID, state string) {
	p.mu.Lock()
	old := p.states[entityID]
	p.states[entityID] = state
	subs := append([]func(StateChange){}, p.subs[entityID]...)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(StateChange{EntityID: entityID, Old: old, New: state})
	}
}

func (p *mockPlatform) emit(event string, data map[string]any) {
	p.mu.Lock()
	subs := append([]func(map[string]any){}, p.events[event]...)
	p.mu.Unlock()
	for _, fn := range subs {
		fn(data)
	}
}

func (p *mockPlatform) Calls() []platformCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformCall(nil), p.calls...)
}

func (p *mockPlatform) ClearCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func (p *mockPlatform) LastStatus() publishedStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return publishedStatus{}
	}
	return p.statuses[len(p.statuses)-1]
}

func (p *mockPlatform) StatusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statuses)
}

// ─── Mock Telemetry / Recorder / Hub ───────────────────────────────

type mockTelemetry struct {
	mu          sync.Mutex
	transitions []string
	delays      []float64
	failures    []string
	states      []string
}

func (t *mockTelemetry) TransitionObserved(_, from, to, trigger string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitions = append(t.transitions, from+">"+to+":"+trigger)
}

func (t *mockTelemetry) TimerArmed(_ string, delay float64, _ int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delays = append(t.delays, delay)
}

func (t *mockTelemetry) CommandFailed(_, entityID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, entityID)
}

func (t *mockTelemetry) SetState(_, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = append(t.states, state)
}

type mockRecorder struct {
	mu      sync.Mutex
	records []TransitionRecord
	err     error
}

func (r *mockRecorder) Record(_ context.Context, rec TransitionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *mockRecorder) Records() []TransitionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransitionRecord(nil), r.records...)
}

type mockHub struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (h *mockHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel)
	h.payloads = append(h.payloads, payload)
}

// ─── Fixtures ──────────────────────────────────────────────────────

var testEpoch = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }

func testConfig() config.ControllerConfig {
	return config.ControllerConfig{
		Name:   "hallway",
		Entity: config.StringList{"light.hallway"},
		Sensor: config.StringList{"binary_sensor.hallway_motion"},
		Delay:  floatPtr(180),
	}
}

type harness struct {
	ctrl      *Controller
	platform  *mockPlatform
	clock     *fakeClock
	telemetry *mockTelemetry
	recorder  *mockRecorder
	hub       *mockHub
}

func newHarness(t testing.TB, cfg config.ControllerConfig) *harness {
	t.Helper()

	settings, err := NewSettings(cfg, time.UTC)
	if err != nil {
		t.Fatalf("NewSettings() error = %v", err)
	}

	h := &harness{
		platform:  newMockPlatform(),
		clock:     newFakeClock(testEpoch),
		telemetry: &mockTelemetry{},
		recorder:  &mockRecorder{},
		hub:       &mockHub{},
	}
	for _, id := range settings.ControlEntities {
		h.platform.set(id, "off")
	}
	for _, id := range settings.StateEntities {
		h.platform.set(id, "off")
	}
	for _, id := range settings.SensorEntities {
		h.platform.set(id, "off")
	}
	for _, id := range settings.OverrideEntities {
		h.platform.set(id, "off")
	}

	h.ctrl = NewController(settings, Deps{
		Platform:    h.platform,
		Clock:       h.clock,
		Recorder:    h.recorder,
		Telemetry:   []Telemetry{h.telemetry},
		Broadcaster: h.hub,
	})
	return h
}

// sensor delivers a sensor update through the router.
func (h *harness) sensor(id, state string) {
	h.platform.set(id, state)
	h.ctrl.HandleSensorChange(context.Background(), StateChange{EntityID: id, New: state})
}

// override delivers an override update through the router.
func (h *harness) override(id, state string) {
	h.platform.set(id, state)
	h.ctrl.HandleOverrideChange(context.Background(), StateChange{EntityID: id, New: state})
}

// nightModeNoon puts testEpoch inside the night window.
var nightModeNoon = config.NightModeConfig{
	Delay:       floatPtr(30),
	ServiceData: map[string]any{"brightness": 10},
	StartTime:   "11:00",
	EndTime:     "13:00",
}
