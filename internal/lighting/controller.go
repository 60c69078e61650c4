package lighting

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Logger defines the logging interface used by controllers and the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateChange is an entity state update delivered by the platform.
type StateChange struct {
	EntityID string
	Old      string
	New      string
	At       time.Time
}

// Platform is what a controller needs from the home automation platform.
type Platform interface {
	// GetState returns the last known raw state of an entity.
	GetState(ctx context.Context, entityID string) (string, error)

	// TurnOn switches an entity on. serviceData may be nil.
	TurnOn(ctx context.Context, entityID string, serviceData map[string]any) error

	// TurnOff switches an entity off.
	TurnOff(ctx context.Context, entityID string) error

	// PublishStatus publishes the controller status entity.
	PublishStatus(ctx context.Context, entityID, state string, attributes map[string]any) error
}

// Subscriber delivers entity changes and named events.
type Subscriber interface {
	Subscribe(entityID string, fn func(StateChange)) error
	SubscribeEvent(event string, fn func(data map[string]any)) error
}

// Telemetry receives transition and timer observations.
// Implementations must not block.
type Telemetry interface {
	TransitionObserved(controller, from, to, trigger string)
	TimerArmed(controller string, delaySeconds float64, resetCount int)
}

// Optional Telemetry extensions, detected by type assertion.
type (
	commandFailureObserver interface {
		CommandFailed(controller, entityID string)
	}
	stateObserver interface {
		SetState(controller, state string)
	}
)

// Broadcaster is the interface for pushing status to WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// StatusChannel is the WebSocket channel controller statuses are broadcast on.
const StatusChannel = "controller.status"

// Deps are the collaborators of a controller. Only Platform is required.
type Deps struct {
	Platform    Platform
	Clock       Clock
	Recorder    Recorder
	Telemetry   []Telemetry
	Broadcaster Broadcaster
	Logger      Logger
}

// Controller is one motion lighting state machine.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Controller struct {
	settings  *Settings
	platform  Platform
	clock     Clock
	recorder  Recorder
	telemetry []Telemetry
	hub       Broadcaster
	logger    Logger

	mu     sync.Mutex
	state  State
	timer  *backoffTimer
	params Params
	status Status
	runCtx context.Context

	// seq counts triggers evaluated by handle. The timer callback re-reads
	// its guards when seq moves while it is reading them.
	seq uint64

	// dispatchMu is taken before mu is released so that effects leave in
	// the order their triggers were evaluated.
	dispatchMu sync.Mutex
}

type command struct {
	entityID string
	on       bool
	data     map[string]any
}

type effects struct {
	commands []command
	records  []TransitionRecord
	armed    *float64
	resets   int
	publish  bool
	status   Status
}

// NewController creates a controller in the idle state.
func NewController(settings *Settings, deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	c := &Controller{
		settings:  settings,
		platform:  deps.Platform,
		clock:     deps.Clock,
		recorder:  deps.Recorder,
		telemetry: deps.Telemetry,
		hub:       deps.Broadcaster,
		logger:    deps.Logger,
		state:     StateIdle,
		status:    newStatus(settings),
		runCtx:    context.Background(),
	}
	c.timer = newBackoffTimer(deps.Clock, settings.Backoff, c.onTimer)
	return c
}

// Name returns the controller name.
func (c *Controller) Name() string {
	return c.settings.Name
}

// Settings returns the immutable controller settings.
func (c *Controller) Settings() *Settings {
	return c.settings
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a copy of the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.clone()
}

// Bind sets the context used for work started by the timer.
func (c *Controller) Bind(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
}

// Stop cancels the live timer without changing state.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.timer.cancel()
	c.status.ExpiresAt = nil
	c.mu.Unlock()
}

// PublishStatus publishes the current status without evaluating a trigger.
func (c *Controller) PublishStatus(ctx context.Context) {
	c.mu.Lock()
	c.unlockAndDispatch(ctx, &effects{publish: true})
}

// Fire evaluates a trigger with a fresh guard snapshot. origin is recorded
// in history as the cause of any resulting transition.
func (c *Controller) Fire(ctx context.Context, trig Trigger, origin string) Step {
	return c.handle(ctx, trig, origin, nil)
}

// ForceReset puts the controller in idle without consulting the transition
// table. The timer is cancelled and transient attributes cleared. No commands
// are sent, so lights keep whatever state they are in.
func (c *Controller) ForceReset(ctx context.Context, origin string) {
	c.mu.Lock()
	now := c.clock.Now()
	from := c.state

	c.timer.cancel()
	c.state = StateIdle
	c.status.State = StateIdle.String()
	c.status.clearTransient()

	fx := &effects{publish: true}
	fx.records = append(fx.records, c.record(from, StateIdle, TriggerForcedReset, origin, now))
	c.logger.Info("lighting controller reset",
		"controller", c.settings.Name,
		"from", from.String(),
		"origin", origin,
	)
	c.unlockAndDispatch(ctx, fx)
}

// handle snapshots entity states, then evaluates trig under the FSM lock.
// annotate, when set, updates the status before evaluation.
func (c *Controller) handle(ctx context.Context, trig Trigger, origin string, annotate func(st *Status, now time.Time)) Step {
	g := c.snapshot(ctx, trig)

	c.mu.Lock()
	c.seq++
	now := c.clock.Now()
	fx := &effects{}
	if annotate != nil {
		annotate(&c.status, now)
		fx.publish = true
	}
	st := c.step(trig, g, origin, now, fx)
	c.unlockAndDispatch(ctx, fx)
	return st
}

// onTimer is the expiry callback of the backoff timer.
//
// The sensor guard is read without mu held. The read is repeated until no
// trigger was evaluated meanwhile, so expiry never pairs with a sensor state
// older than the last handled update.
func (c *Controller) onTimer(gen uint64) {
	c.mu.Lock()
	ctx := c.runCtx
	var g Guards
	for {
		seq := c.seq
		c.mu.Unlock()
		g = c.snapshot(ctx, TriggerTimerExpires)
		c.mu.Lock()
		if c.seq == seq {
			break
		}
	}

	if !c.timer.fire(gen) {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	c.status.ExpiresAt = nil
	fx := &effects{publish: true}
	c.step(TriggerTimerExpires, g, "timer", now, fx)
	c.unlockAndDispatch(ctx, fx)
}

// snapshot reads the entity states the guards of trig depend on. It must be
// called without holding mu.
func (c *Controller) snapshot(ctx context.Context, trig Trigger) Guards {
	var g Guards
	switch trig {
	case TriggerSensorOn:
		g.StateEntitiesOn = c.anyOn(ctx, ClassState, c.settings.StateEntities)
	case TriggerSensorOffDuration, TriggerTimerExpires:
		g.SensorOn = c.anyOn(ctx, ClassSensor, c.settings.SensorEntities)
	}
	return g
}

func (c *Controller) anyOn(ctx context.Context, class EntityClass, entities []string) bool {
	for _, id := range entities {
		state, err := c.platform.GetState(ctx, id)
		if err != nil {
			c.logger.Warn("reading entity state failed, treating as off",
				"controller", c.settings.Name,
				"entity_id", id,
				"error", err,
			)
			continue
		}
		if c.settings.Matcher.IsOn(class, state) {
			return true
		}
	}
	return false
}

// step evaluates one trigger and applies entry and exit actions.
// Caller must hold mu.
func (c *Controller) step(trig Trigger, g Guards, origin string, now time.Time, fx *effects) Step {
	g.StayOn = c.settings.StayOn
	g.SensorType = c.settings.SensorType
	g.TimerExpired = c.timer.expired()

	st := Transition(c.state, trig, g)
	if !st.Handled() {
		c.logger.Debug("trigger ignored",
			"controller", c.settings.Name,
			"state", c.state.String(),
			"trigger", trig.String(),
		)
		return st
	}
	fx.publish = true

	if st.ResetTimer {
		c.resetTimer(now, fx)
		return st
	}

	if st.From.IsActive() && !st.To.IsActive() {
		c.exitActive(fx)
	}
	c.state = st.To
	c.status.State = st.To.String()
	switch {
	case st.To == StateIdle:
		c.status.clearTransient()
	case st.To.IsActive() && !st.From.IsActive():
		c.enterActive(now, fx)
	}

	fx.records = append(fx.records, c.record(st.From, st.To, trig.String(), origin, now))
	c.logger.Info("lighting transition",
		"controller", c.settings.Name,
		"from", st.From.String(),
		"to", st.To.String(),
		"trigger", trig.String(),
		"origin", origin,
	)
	return st
}

func (c *Controller) enterActive(now time.Time, fx *effects) {
	c.timer.restart()

	params, night := c.settings.Resolver.Resolve(now)
	c.params = params
	c.status.ServiceData = maps.Clone(params.ServiceData)
	c.status.NightMode = ptr(night)
	c.status.LastTriggeredAt = ptr(now)

	c.armed(c.timer.arm(params.Delay), fx)

	for _, id := range c.settings.ControlEntities {
		fx.commands = append(fx.commands, command{entityID: id, on: true, data: params.ServiceData})
	}
}

func (c *Controller) exitActive(fx *effects) {
	c.timer.cancel()
	c.status.ExpiresAt = nil

	if len(c.settings.OffEntities) > 0 {
		for _, id := range c.settings.OffEntities {
			fx.commands = append(fx.commands, command{entityID: id, on: true})
		}
		return
	}
	for _, id := range c.settings.ControlEntities {
		fx.commands = append(fx.commands, command{entityID: id})
	}
}

func (c *Controller) resetTimer(now time.Time, fx *effects) {
	delay := c.timer.reset(c.params.Delay)
	if c.settings.Backoff.Enabled {
		c.status.ResetCount = ptr(c.timer.count)
		c.status.ResetAt = ptr(now)
	}
	if c.timer.capped {
		c.logger.Info("max backoff reached",
			"controller", c.settings.Name,
			"delay", delay,
		)
	}
	c.armed(delay, fx)
}

func (c *Controller) armed(delay float64, fx *effects) {
	c.status.Delay = ptr(delay)
	c.status.ExpiresAt = ptr(c.timer.expiresAt)
	fx.armed = ptr(delay)
	fx.resets = c.timer.count
}

func (c *Controller) record(from, to State, trigger, origin string, now time.Time) TransitionRecord {
	rec := TransitionRecord{
		Controller:  c.settings.Name,
		From:        from.String(),
		To:          to.String(),
		Trigger:     trigger,
		TriggeredBy: origin,
		ResetCount:  c.timer.count,
		OccurredAt:  now,
	}
	if c.status.Delay != nil {
		rec.Delay = ptr(*c.status.Delay)
	}
	if c.status.NightMode != nil {
		rec.NightMode = *c.status.NightMode
	}
	return rec
}

// unlockAndDispatch releases mu and dispatches fx. Caller must hold mu.
func (c *Controller) unlockAndDispatch(ctx context.Context, fx *effects) {
	if fx.publish {
		fx.status = c.status.clone()
	}
	c.dispatchMu.Lock()
	c.mu.Unlock()
	defer c.dispatchMu.Unlock()

	c.dispatch(ctx, fx)
}

func (c *Controller) dispatch(ctx context.Context, fx *effects) {
	name := c.settings.Name
	ctx = WithController(ctx, name)

	for _, cmd := range fx.commands {
		var err error
		if cmd.on {
			err = c.platform.TurnOn(ctx, cmd.entityID, maps.Clone(cmd.data))
		} else {
			err = c.platform.TurnOff(ctx, cmd.entityID)
		}
		if err != nil {
			c.logger.Warn("lighting command failed",
				"controller", name,
				"entity_id", cmd.entityID,
				"turn_on", cmd.on,
				"error", err,
			)
			for _, t := range c.telemetry {
				if obs, ok := t.(commandFailureObserver); ok {
					obs.CommandFailed(name, cmd.entityID)
				}
			}
		}
	}

	if fx.publish {
		if err := c.platform.PublishStatus(ctx, fx.status.EntityID, fx.status.State, fx.status.Attributes()); err != nil {
			c.logger.Warn("publishing controller status failed",
				"controller", name,
				"error", err,
			)
		}
		if c.hub != nil {
			c.hub.Broadcast(StatusChannel, fx.status)
		}
		for _, t := range c.telemetry {
			if obs, ok := t.(stateObserver); ok {
				obs.SetState(name, fx.status.State)
			}
		}
	}

	for _, rec := range fx.records {
		if c.recorder != nil {
			if err := c.recorder.Record(ctx, rec); err != nil {
				c.logger.Warn("recording transition failed",
					"controller", name,
					"error", err,
				)
			}
		}
		for _, t := range c.telemetry {
			t.TransitionObserved(name, rec.From, rec.To, rec.Trigger)
		}
	}

	if fx.armed != nil {
		for _, t := range c.telemetry {
			t.TimerArmed(name, *fx.armed, fx.resets)
		}
	}
}
