package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-motion/internal/lighting"
)

// maxQueuedEvents bounds events waiting for the worker. State changes are
// merged per entity and need no bound.
const maxQueuedEvents = 256

// Broker is the subset of the MQTT client the platform needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Logger defines the logging interface used by the platform.
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

// UpdateObserver counts entity updates by source ("mqtt", "gpio").
type UpdateObserver interface {
	EntityUpdate(source string)
}

type entityState struct {
	state string
	at    time.Time
}

// delivery is one queued state change or event.
type delivery struct {
	change lighting.StateChange
	event  string
	data   map[string]any
}

// MQTT implements lighting.Platform and lighting.Subscriber over the
// Gray Logic MQTT topics.
//
// Thread Safety: all methods are safe for concurrent use.
type MQTT struct {
	broker   Broker
	logger   Logger
	observer UpdateObserver
	now      func() time.Time

	mu     sync.RWMutex
	states map[string]entityState
	subs   map[string][]func(lighting.StateChange)
	events map[string][]func(map[string]any)

	qmu     sync.Mutex
	pending []delivery
	index   map[string]int // entity ID to its position in pending
	nevents int
	wake    chan struct{}

	started bool
	done    chan struct{}
}

// NewMQTT creates an MQTT platform. Call Start before use.
func NewMQTT(broker Broker, logger Logger) *MQTT {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTT{
		broker: broker,
		logger: logger,
		now:    time.Now,
		states: make(map[string]entityState),
		subs:   make(map[string][]func(lighting.StateChange)),
		events: make(map[string][]func(map[string]any)),
		index:  make(map[string]int),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// SetUpdateObserver registers a counter for entity updates.
func (p *MQTT) SetUpdateObserver(o UpdateObserver) {
	p.mu.Lock()
	p.observer = o
	p.mu.Unlock()
}

// Start subscribes to every entity state and event topic and runs the
// delivery worker until ctx is cancelled.
func (p *MQTT) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	topics := mqtt.Topics{}
	qos := p.broker.QoS()
	if err := p.broker.Subscribe(topics.AllEntityStates(), qos, p.handleState); err != nil {
		return fmt.Errorf("subscribing entity states: %w", err)
	}
	if err := p.broker.Subscribe(topics.AllCoreEvents(), qos, p.handleEvent); err != nil {
		return fmt.Errorf("subscribing events: %w", err)
	}

	go p.run(ctx)
	return nil
}

// Done is closed when the delivery worker has exited.
func (p *MQTT) Done() <-chan struct{} {
	return p.done
}

func (p *MQTT) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			for _, d := range p.drain() {
				p.deliver(d)
			}
		}
	}
}

// drain takes every queued delivery in arrival order.
func (p *MQTT) drain() []delivery {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	out := p.pending
	p.pending = nil
	p.nevents = 0
	clear(p.index)
	return out
}

func (p *MQTT) deliver(d delivery) {
	p.mu.RLock()
	var stateSubs []func(lighting.StateChange)
	var eventSubs []func(map[string]any)
	if d.event != "" {
		eventSubs = append(eventSubs, p.events[d.event]...)
	} else {
		stateSubs = append(stateSubs, p.subs[d.change.EntityID]...)
	}
	p.mu.RUnlock()

	for _, fn := range stateSubs {
		fn(d.change)
	}
	for _, fn := range eventSubs {
		fn(d.data)
	}
}

// enqueueChange queues a state change. A change for an entity that is
// still waiting is merged into it: the first Old is kept and New becomes the
// latest state, so the newest state always reaches subscribers.
func (p *MQTT) enqueueChange(ch lighting.StateChange) {
	p.qmu.Lock()
	if i, ok := p.index[ch.EntityID]; ok {
		p.pending[i].change.New = ch.New
		p.pending[i].change.At = ch.At
	} else {
		p.index[ch.EntityID] = len(p.pending)
		p.pending = append(p.pending, delivery{change: ch})
	}
	p.qmu.Unlock()
	p.signal()
}

func (p *MQTT) enqueueEvent(event string, data map[string]any) error {
	p.qmu.Lock()
	if p.nevents >= maxQueuedEvents {
		p.qmu.Unlock()
		return ErrQueueFull
	}
	p.nevents++
	p.pending = append(p.pending, delivery{event: event, data: data})
	p.qmu.Unlock()
	p.signal()
	return nil
}

func (p *MQTT) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// handleState feeds the state cache from graylogic/state/+/+.
func (p *MQTT) handleState(msg mqtt.Message) error {
	entityID, ok := mqtt.EntityIDFromStateTopic(msg.Topic)
	if !ok {
		return fmt.Errorf("%w: unexpected state topic %s", ErrInvalidPayload, msg.Topic)
	}
	state, err := parseState(msg.Payload)
	if err != nil {
		return fmt.Errorf("entity %s: %w", entityID, err)
	}
	return p.update(entityID, state, msg.Retained, "mqtt")
}

// handleEvent forwards graylogic/core/event/+ to event subscribers.
func (p *MQTT) handleEvent(msg mqtt.Message) error {
	if msg.Retained {
		return nil
	}
	event, ok := mqtt.EventFromTopic(msg.Topic)
	if !ok {
		return fmt.Errorf("%w: unexpected event topic %s", ErrInvalidPayload, msg.Topic)
	}
	data, err := parseEvent(event, msg.Payload)
	if err != nil {
		return err
	}

	p.mu.RLock()
	_, wanted := p.events[event]
	p.mu.RUnlock()
	if !wanted {
		return nil
	}
	return p.enqueueEvent(event, data)
}

// update stores a state and queues a change notification when the state
// string differs from the cached one. Seed updates only fill the cache.
func (p *MQTT) update(entityID, state string, seed bool, source string) error {
	p.mu.Lock()
	prev, known := p.states[entityID]
	p.states[entityID] = entityState{state: state, at: p.now()}
	observer := p.observer
	_, wanted := p.subs[entityID]
	p.mu.Unlock()

	if observer != nil {
		observer.EntityUpdate(source)
	}

	if seed || (known && prev.state == state) || !wanted {
		return nil
	}
	p.enqueueChange(lighting.StateChange{
		EntityID: entityID,
		Old:      prev.state,
		New:      state,
		At:       p.now(),
	})
	return nil
}

// Inject records a state that did not arrive over MQTT, such as a local
// GPIO sensor, and notifies subscribers. When publish is true the state is
// also published, retained, on the entity's state topic.
func (p *MQTT) Inject(entityID, state string, publish bool) error {
	if publish {
		topic, err := mqtt.EntityStateTopic(entityID)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(StateMessage{EntityID: entityID, State: state, Timestamp: p.now().UTC()})
		if err != nil {
			return fmt.Errorf("marshalling state: %w", err)
		}
		if err := p.broker.Publish(topic, payload, p.broker.QoS(), true); err != nil {
			return fmt.Errorf("publishing state of %s: %w", entityID, err)
		}
	}
	return p.update(entityID, state, false, "gpio")
}

// GetState returns the last known state of an entity.
func (p *MQTT) GetState(ctx context.Context, entityID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.states[entityID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	return s.state, nil
}

// TurnOn sends a turn_on command with optional service data.
func (p *MQTT) TurnOn(ctx context.Context, entityID string, serviceData map[string]any) error {
	return p.command(ctx, entityID, CommandTurnOn, serviceData)
}

// TurnOff sends a turn_off command.
func (p *MQTT) TurnOff(ctx context.Context, entityID string) error {
	return p.command(ctx, entityID, CommandTurnOff, nil)
}

func (p *MQTT) command(ctx context.Context, entityID, command string, params map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic, err := mqtt.EntityCommandTopic(entityID)
	if err != nil {
		return err
	}

	msg := CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  p.now().UTC(),
		EntityID:   entityID,
		Command:    command,
		Parameters: params,
		Source:     commandSource(ctx),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	if err := p.broker.Publish(topic, payload, p.broker.QoS(), false); err != nil {
		return fmt.Errorf("sending %s to %s: %w", command, entityID, err)
	}
	p.logger.Debug("command sent", "entity_id", entityID, "command", command, "command_id", msg.ID)
	return nil
}

// PublishStatus publishes a retained controller status. entityID must be
// "lightingsm.<name>".
func (p *MQTT) PublishStatus(ctx context.Context, entityID, state string, attributes map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := strings.CutPrefix(entityID, mqtt.StatusDomain+".")
	if !ok || name == "" {
		return fmt.Errorf("%w: %q", mqtt.ErrInvalidEntityID, entityID)
	}

	payload, err := json.Marshal(StatusMessage{
		EntityID:   entityID,
		State:      state,
		Attributes: attributes,
		Timestamp:  p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}
	return p.broker.Publish(mqtt.Topics{}.ControllerStatus(name), payload, p.broker.QoS(), true)
}

// PublishEvent publishes a named event, e.g. lightingsm-reset.
func (p *MQTT) PublishEvent(ctx context.Context, event string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(EventMessage{Event: event, Data: data, Timestamp: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	return p.broker.Publish(mqtt.Topics{}.CoreEvent(event), payload, p.broker.QoS(), false)
}

// Subscribe registers fn for state changes of entityID.
func (p *MQTT) Subscribe(entityID string, fn func(lighting.StateChange)) error {
	if _, _, ok := mqtt.SplitEntityID(entityID); !ok {
		return fmt.Errorf("%w: %q", mqtt.ErrInvalidEntityID, entityID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[entityID] = append(p.subs[entityID], fn)
	return nil
}

// SubscribeEvent registers fn for a named event.
func (p *MQTT) SubscribeEvent(event string, fn func(map[string]any)) error {
	if event == "" {
		return fmt.Errorf("%w: empty event name", ErrInvalidPayload)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[event] = append(p.events[event], fn)
	return nil
}

func commandSource(ctx context.Context) string {
	if name, ok := lighting.ControllerFromContext(ctx); ok {
		return mqtt.StatusDomain + ":" + name
	}
	return mqtt.StatusDomain
}
