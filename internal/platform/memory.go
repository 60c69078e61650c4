package platform

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/nerrad567/gray-logic-motion/internal/lighting"
)

// Command is a command recorded by the memory platform.
type Command struct {
	EntityID   string
	Command    string
	Parameters map[string]any
	Controller string
}

// Status is a controller status recorded by the memory platform.
type Status struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// Memory implements lighting.Platform and lighting.Subscriber in process.
//
// Commands optionally echo back into entity state, so a dry run behaves like
// a bridge that confirms every command. Callbacks run synchronously on the
// goroutine that called SetState or Emit.
//
// Thread Safety: all methods are safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	states   map[string]string
	subs     map[string][]func(lighting.StateChange)
	events   map[string][]func(map[string]any)
	commands []Command
	statuses map[string]Status
	echo     bool
}

// NewMemory creates an empty in-memory platform. With echo set, turn_on and
// turn_off also update the entity state (without notifying subscribers).
func NewMemory(echo bool) *Memory {
	return &Memory{
		states:   make(map[string]string),
		subs:     make(map[string][]func(lighting.StateChange)),
		events:   make(map[string][]func(map[string]any)),
		statuses: make(map[string]Status),
		echo:     echo,
	}
}

// GetState returns the stored state of an entity.
func (m *Memory) GetState(_ context.Context, entityID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[entityID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	return s, nil
}

// TurnOn records a turn_on command.
func (m *Memory) TurnOn(ctx context.Context, entityID string, serviceData map[string]any) error {
	m.record(ctx, entityID, CommandTurnOn, serviceData, "on")
	return nil
}

// TurnOff records a turn_off command.
func (m *Memory) TurnOff(ctx context.Context, entityID string) error {
	m.record(ctx, entityID, CommandTurnOff, nil, "off")
	return nil
}

func (m *Memory) record(ctx context.Context, entityID, command string, params map[string]any, state string) {
	controller, _ := lighting.ControllerFromContext(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, Command{
		EntityID:   entityID,
		Command:    command,
		Parameters: maps.Clone(params),
		Controller: controller,
	})
	if m.echo {
		m.states[entityID] = state
	}
}

// PublishStatus stores the latest status of a controller.
func (m *Memory) PublishStatus(_ context.Context, entityID, state string, attributes map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[entityID] = Status{EntityID: entityID, State: state, Attributes: attributes}
	return nil
}

// Subscribe registers fn for state changes of entityID.
func (m *Memory) Subscribe(entityID string, fn func(lighting.StateChange)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[entityID] = append(m.subs[entityID], fn)
	return nil
}

// SubscribeEvent registers fn for a named event.
func (m *Memory) SubscribeEvent(event string, fn func(map[string]any)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event] = append(m.events[event], fn)
	return nil
}

// SetState stores a state and notifies subscribers when it changed.
func (m *Memory) SetState(entityID, state string) {
	m.mu.Lock()
	old, known := m.states[entityID]
	m.states[entityID] = state
	subs := append([]func(lighting.StateChange){}, m.subs[entityID]...)
	m.mu.Unlock()

	if known && old == state {
		return
	}
	for _, fn := range subs {
		fn(lighting.StateChange{EntityID: entityID, Old: old, New: state})
	}
}

// Seed stores a state without notifying anyone.
func (m *Memory) Seed(entityID, state string) {
	m.mu.Lock()
	m.states[entityID] = state
	m.mu.Unlock()
}

// Inject stores a state from a local source and notifies subscribers.
// publish is ignored.
func (m *Memory) Inject(entityID, state string, _ bool) error {
	m.SetState(entityID, state)
	return nil
}

// Emit delivers an event to its subscribers.
func (m *Memory) Emit(event string, data map[string]any) {
	m.mu.Lock()
	subs := append([]func(map[string]any){}, m.events[event]...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(data)
	}
}

// PublishEvent emits an event locally.
func (m *Memory) PublishEvent(_ context.Context, event string, data map[string]any) error {
	m.Emit(event, data)
	return nil
}

// Commands returns every recorded command in order.
func (m *Memory) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.commands...)
}

// Status returns the latest published status of a controller entity.
func (m *Memory) Status(entityID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[entityID]
	return s, ok
}
