package gpio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

// ─── Test Helpers ───────────────────────────────────────────────────

type injected struct {
	entityID string
	state    string
	publish  bool
}

type mockInjector struct {
	mu    sync.Mutex
	calls []injected
	err   error
}

func (m *mockInjector) Inject(entityID, state string, publish bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, injected{entityID, state, publish})
	return nil
}

func (m *mockInjector) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockInjector) Calls() []injected {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]injected(nil), m.calls...)
}

type mockLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *mockLogger) Warns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns
}

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func gpioConfig(debounceMs int, sensors ...string) config.GPIOConfig {
	cfg := config.GPIOConfig{Enabled: true, Chip: "gpiochip0", Debounce: debounceMs}
	for i, id := range sensors {
		cfg.Sensors = append(cfg.Sensors, config.GPIOSensorConfig{EntityID: id, Line: 17 + i})
	}
	return cfg
}

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// sample feeds d and commits any reported level.
func sample(d *debouncer, active bool, now time.Time) (bool, bool) {
	state, changed := d.process(active, now)
	if changed {
		d.commit(state)
	}
	return state, changed
}

// ─── Debounce ───────────────────────────────────────────────────────

func TestDebouncer_Baseline(t *testing.T) {
	d := debouncer{duration: 50 * time.Millisecond}

	if _, changed := sample(&d, false, at(0)); changed {
		t.Fatal("first sample should not be stable yet")
	}
	state, changed := sample(&d, false, at(50))
	if !changed || state {
		t.Fatalf("process() = (%v, %v), want baseline (false, true)", state, changed)
	}
	if _, changed := sample(&d, false, at(100)); changed {
		t.Error("unchanged level should not report a transition")
	}
}

func TestDebouncer_IgnoresGlitch(t *testing.T) {
	d := debouncer{duration: 50 * time.Millisecond}
	sample(&d, false, at(0))
	sample(&d, false, at(50))

	if _, changed := sample(&d, true, at(100)); changed {
		t.Fatal("rising edge reported before debounce elapsed")
	}
	if _, changed := sample(&d, false, at(120)); changed {
		t.Fatal("glitch back to stable level reported")
	}
	if _, changed := sample(&d, true, at(130)); changed {
		t.Fatal("new pending level reported immediately")
	}
	if _, changed := sample(&d, true, at(160)); changed {
		t.Fatal("pending timer should restart after a glitch")
	}
	state, changed := sample(&d, true, at(180))
	if !changed || !state {
		t.Fatalf("process() = (%v, %v), want (true, true)", state, changed)
	}
}

func TestDebouncer_ZeroDuration(t *testing.T) {
	d := debouncer{}

	state, changed := sample(&d, true, at(0))
	if !changed || !state {
		t.Fatalf("process() = (%v, %v), want (true, true)", state, changed)
	}
	state, changed = sample(&d, false, at(1))
	if !changed || state {
		t.Fatalf("process() = (%v, %v), want (false, true)", state, changed)
	}
}

func TestDebouncer_UncommittedLevelReportedAgain(t *testing.T) {
	d := debouncer{duration: 50 * time.Millisecond}
	sample(&d, false, at(0))
	sample(&d, false, at(50))

	d.process(true, at(100))
	if state, changed := d.process(true, at(150)); !changed || !state {
		t.Fatalf("process() = (%v, %v), want (true, true)", state, changed)
	}
	if state, changed := d.process(true, at(200)); !changed || !state {
		t.Fatalf("uncommitted level: process() = (%v, %v), want (true, true)", state, changed)
	}

	d.commit(true)
	if _, changed := d.process(true, at(250)); changed {
		t.Error("committed level reported again")
	}
}

// ─── Watcher ────────────────────────────────────────────────────────

func TestWatcher_InjectsStableChanges(t *testing.T) {
	reader := NewFakeReader(
		[]bool{false, true},
		[]bool{false, true},
		[]bool{true, true},
		[]bool{true, false},
		[]bool{true, false},
	)
	inj := &mockInjector{}
	w := NewWatcher(reader, gpioConfig(50, "binary_sensor.hall", "binary_sensor.porch"), inj, &mockLogger{}, true)

	for i := 0; i < 5; i++ {
		if err := w.Step(at(i * 50)); err != nil {
			t.Fatalf("Step(%d) error = %v", i, err)
		}
	}

	want := []injected{
		{"binary_sensor.hall", StateOff, true},
		{"binary_sensor.porch", StateOn, true},
		{"binary_sensor.hall", StateOn, true},
		{"binary_sensor.porch", StateOff, true},
	}
	got := inj.Calls()
	if len(got) != len(want) {
		t.Fatalf("injected %d states, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWatcher_LineCountMismatch(t *testing.T) {
	reader := NewFakeReader([]bool{true})
	w := NewWatcher(reader, gpioConfig(0, "a", "b"), &mockInjector{}, &mockLogger{}, false)

	if err := w.Step(at(0)); err == nil {
		t.Fatal("Step() should fail when the reader returns the wrong number of lines")
	}
}

func TestWatcher_ReadError(t *testing.T) {
	reader := NewFakeReader([]bool{true})
	reader.ReadError = errors.New("device busy")
	w := NewWatcher(reader, gpioConfig(0, "a"), &mockInjector{}, &mockLogger{}, false)

	if err := w.Step(at(0)); err == nil {
		t.Fatal("Step() should return the read error")
	}
}

func TestWatcher_InjectErrorLogged(t *testing.T) {
	reader := NewFakeReader([]bool{true})
	logger := &mockLogger{}
	w := NewWatcher(reader, gpioConfig(0, "a"), &mockInjector{err: errors.New("unknown entity")}, logger, false)

	if err := w.Step(at(0)); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if logger.Warns() != 1 {
		t.Errorf("warnings = %d, want 1", logger.Warns())
	}
}

func TestWatcher_RetriesFailedInject(t *testing.T) {
	reader := NewFakeReader([]bool{true})
	inj := &mockInjector{err: errors.New("delivery queue full")}
	logger := &mockLogger{}
	w := NewWatcher(reader, gpioConfig(0, "binary_sensor.hall"), inj, logger, false)

	if err := w.Step(at(0)); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(inj.Calls()) != 0 {
		t.Fatalf("injected = %+v, want none while failing", inj.Calls())
	}

	inj.setErr(nil)
	if err := w.Step(at(1)); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if err := w.Step(at(2)); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	want := []injected{{"binary_sensor.hall", StateOn, false}}
	if got := inj.Calls(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("injected = %+v, want %+v", got, want)
	}
	if logger.Warns() != 1 {
		t.Errorf("warnings = %d, want 1", logger.Warns())
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	reader := NewFakeReader([]bool{true})
	inj := &mockInjector{}
	w := NewWatcher(reader, gpioConfig(0, "a"), inj, &mockLogger{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, ticks) }()

	ticks <- at(0)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if got := inj.Calls(); len(got) != 1 || got[0].state != StateOn {
		t.Errorf("injected = %+v, want one on state", got)
	}
}

// ─── Fake Reader ────────────────────────────────────────────────────

func TestFakeReader_RepeatsLastSample(t *testing.T) {
	r := NewFakeReader([]bool{false}, []bool{true})
	r.Read()
	r.Read()
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !got[0] {
		t.Error("last sample should repeat")
	}
	if err := r.Close(); err != nil || !r.Closed {
		t.Error("Close() should mark the reader closed")
	}
}
