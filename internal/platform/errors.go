package platform

import "errors"

// Domain-specific errors for the platform layer.
var (
	// ErrUnknownEntity is returned when no state has been seen for an entity.
	ErrUnknownEntity = errors.New("platform: unknown entity")

	// ErrInvalidPayload is returned when a state or event payload cannot be parsed.
	ErrInvalidPayload = errors.New("platform: invalid payload")

	// ErrNotStarted is returned when the MQTT platform is used before Start.
	ErrNotStarted = errors.New("platform: not started")

	// ErrQueueFull is returned when the delivery queue cannot accept an event.
	ErrQueueFull = errors.New("platform: delivery queue full")
)
