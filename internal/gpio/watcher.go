package gpio

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

// Injector receives debounced sensor states.
type Injector interface {
	Inject(entityID, state string, publish bool) error
}

// Logger defines the logging interface used by the watcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Watcher polls a Reader and injects state changes for each sensor.
type Watcher struct {
	reader   Reader
	sensors  []config.GPIOSensorConfig
	lines    []debouncer
	injector Injector
	logger   Logger
	publish  bool
}

// NewWatcher creates a watcher for cfg.Sensors. With publish set, each
// change is also published on the entity's MQTT state topic.
func NewWatcher(reader Reader, cfg config.GPIOConfig, injector Injector, logger Logger, publish bool) *Watcher {
	debounce := time.Duration(cfg.Debounce) * time.Millisecond
	lines := make([]debouncer, len(cfg.Sensors))
	for i := range lines {
		lines[i].duration = debounce
	}
	return &Watcher{
		reader:   reader,
		sensors:  cfg.Sensors,
		lines:    lines,
		injector: injector,
		logger:   logger,
		publish:  publish,
	}
}

// Run samples the reader on every tick until ctx is cancelled.
// Read errors are logged and the loop continues.
func (w *Watcher) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticks:
			if err := w.Step(now); err != nil {
				w.logger.Warn("gpio sample failed", "error", err)
			}
		}
	}
}

// Step reads one sample and injects any debounced transitions. A transition
// whose injection fails stays pending and is injected again on the next step.
func (w *Watcher) Step(now time.Time) error {
	values, err := w.reader.Read()
	if err != nil {
		return err
	}
	if len(values) != len(w.sensors) {
		return fmt.Errorf("gpio: read %d lines, want %d", len(values), len(w.sensors))
	}

	for i, active := range values {
		state, changed := w.lines[i].process(active, now)
		if !changed {
			continue
		}
		entityID := w.sensors[i].EntityID
		value := StateOff
		if state {
			value = StateOn
		}
		if err := w.injector.Inject(entityID, value, w.publish); err != nil {
			w.logger.Warn("injecting gpio state failed", "entity_id", entityID, "error", err)
			continue
		}
		w.lines[i].commit(state)
		w.logger.Info("gpio sensor changed", "entity_id", entityID, "state", value)
	}
	return nil
}
