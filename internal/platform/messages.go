package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Command names sent to bridges.
const (
	CommandTurnOn  = "turn_on"
	CommandTurnOff = "turn_off"
)

// CommandMessage is sent to a bridge to switch an entity.
// Topic: graylogic/command/{domain}/{object}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgements.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// EntityID is the "domain.object" identifier of the target.
	EntityID string `json:"entity_id"`

	// Command is turn_on or turn_off.
	Command string `json:"command"`

	// Parameters carries the controller's service data, e.g. {"brightness": 80}.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source identifies the controller, e.g. "lightingsm:hallway".
	Source string `json:"source"`
}

// StateMessage is published by bridges when an entity changes.
// Topic: graylogic/state/{domain}/{object}
//
// Bridges that cannot produce JSON may publish the bare state string instead.
type StateMessage struct {
	EntityID  string         `json:"entity_id,omitempty"`
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Attrs     map[string]any `json:"attributes,omitempty"`
}

// StatusMessage is the retained status of a lighting controller.
// Topic: graylogic/core/lightingsm/{name}/status
type StatusMessage struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
	Timestamp  time.Time      `json:"timestamp"`
}

// EventMessage is a named event with free-form data.
// Topic: graylogic/core/event/{event}
type EventMessage struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// parseState extracts the state string from a state topic payload.
// Accepted forms are a StateMessage object, a JSON string and a bare string.
func parseState(payload []byte) (string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty state payload", ErrInvalidPayload)
	}

	switch trimmed[0] {
	case '{':
		var msg StateMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if msg.State == "" {
			return "", fmt.Errorf("%w: state field missing", ErrInvalidPayload)
		}
		return msg.State, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return s, nil
	default:
		return strings.TrimSpace(string(trimmed)), nil
	}
}

// parseEvent decodes an event payload. The data object may be sent bare or
// wrapped in an EventMessage.
func parseEvent(event string, payload []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: event %s: %w", ErrInvalidPayload, event, err)
	}
	if data, ok := raw["data"].(map[string]any); ok {
		if name, _ := raw["event"].(string); name == "" || name == event {
			return data, nil
		}
	}
	return raw, nil
}
