package lighting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

// Manager owns every controller and wires them to platform subscriptions.
//
// Thread Safety: all methods are safe for concurrent use. Controllers must be
// added before Start.
type Manager struct {
	sub    Subscriber
	logger Logger

	mu          sync.RWMutex
	controllers map[string]*Controller
	order       []string
	started     bool
}

// NewManager creates an empty manager.
func NewManager(sub Subscriber, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		sub:         sub,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Build creates a controller for every definition, logging settings warnings.
//
// Parameters:
//   - defs: Controller definitions from the lighting configuration section
//   - loc: Site timezone for night mode windows
//   - deps: Collaborators shared by every controller
//
// Returns:
//   - error: The first invalid definition or duplicate name
func (m *Manager) Build(defs []config.ControllerConfig, loc *time.Location, deps Deps) error {
	for _, def := range defs {
		settings, err := NewSettings(def, loc)
		if err != nil {
			return err
		}
		for _, w := range settings.Warnings {
			m.logger.Warn("lighting controller configuration", "controller", settings.Name, "warning", w)
		}
		if err := m.Add(NewController(settings, deps)); err != nil {
			return err
		}
	}
	return nil
}

// Add registers a controller.
func (m *Manager) Add(c *Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if _, exists := m.controllers[c.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateController, c.Name())
	}
	m.controllers[c.Name()] = c
	m.order = append(m.order, c.Name())
	return nil
}

// Start publishes every controller's initial status and subscribes to its
// sensors, overrides and the reset event. Timer callbacks use ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	controllers := m.listLocked()
	m.mu.Unlock()

	for _, c := range controllers {
		c.Bind(ctx)
		c.PublishStatus(ctx)

		for _, id := range c.settings.SensorEntities {
			if err := m.sub.Subscribe(id, func(ch StateChange) { c.HandleSensorChange(ctx, ch) }); err != nil {
				return fmt.Errorf("subscribing sensor %s for %s: %w", id, c.Name(), err)
			}
		}
		for _, id := range c.settings.OverrideEntities {
			if err := m.sub.Subscribe(id, func(ch StateChange) { c.HandleOverrideChange(ctx, ch) }); err != nil {
				return fmt.Errorf("subscribing override %s for %s: %w", id, c.Name(), err)
			}
		}

		m.logger.Info("lighting controller started",
			"controller", c.Name(),
			"sensors", len(c.settings.SensorEntities),
			"controls", len(c.settings.ControlEntities),
			"sensor_type", c.settings.SensorType.String(),
			"stay_on", c.settings.StayOn,
		)
	}

	if err := m.sub.SubscribeEvent(ResetEvent, func(data map[string]any) {
		for _, c := range controllers {
			c.HandleEvent(ctx, ResetEvent, data)
		}
	}); err != nil {
		return fmt.Errorf("subscribing %s event: %w", ResetEvent, err)
	}

	return nil
}

// Stop cancels every live timer. Controller states are left as they are.
func (m *Manager) Stop() {
	for _, c := range m.List() {
		c.Stop()
	}
}

// Get returns the controller with the given name.
func (m *Manager) Get(name string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.controllers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrControllerNotFound, name)
	}
	return c, nil
}

// List returns controllers in definition order.
func (m *Manager) List() []*Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

func (m *Manager) listLocked() []*Controller {
	out := make([]*Controller, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.controllers[name])
	}
	return out
}

// Statuses returns a status snapshot of every controller in definition order.
func (m *Manager) Statuses() []Status {
	controllers := m.List()
	out := make([]Status, 0, len(controllers))
	for _, c := range controllers {
		out = append(out, c.Status())
	}
	return out
}

// Reset forces the named controller back to idle.
func (m *Manager) Reset(ctx context.Context, name, origin string) error {
	c, err := m.Get(name)
	if err != nil {
		return err
	}
	c.ForceReset(ctx, origin)
	return nil
}
