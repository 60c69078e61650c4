package lighting

import "errors"

// Domain-specific errors for lighting control.
var (
	// ErrControllerNotFound is returned when no controller has the given name.
	ErrControllerNotFound = errors.New("lighting: controller not found")

	// ErrInvalidSettings is returned when a controller definition cannot be used.
	ErrInvalidSettings = errors.New("lighting: invalid settings")

	// ErrInvalidTimeOfDay is returned for night mode times that are not HH:MM or HH:MM:SS.
	ErrInvalidTimeOfDay = errors.New("lighting: invalid time of day")

	// ErrDuplicateController is returned when two controllers share a name.
	ErrDuplicateController = errors.New("lighting: duplicate controller")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("lighting: manager already started")
)
