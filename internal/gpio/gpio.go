// Package gpio feeds locally wired motion sensors into the platform.
//
// The real implementation uses the Linux GPIO character device. The fake
// implementation allows testing without hardware. Each configured line is
// polled, debounced and reported as an entity state of "on" or "off", so a
// PIR wired to a GPIO pin drives controllers exactly like an MQTT sensor.
package gpio

import "time"

// Reader reads GPIO input states.
type Reader interface {
	// Read returns the logical state of every configured line, in
	// configuration order. true means active (motion detected).
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPollInterval is how often lines are sampled.
const DefaultPollInterval = 50 * time.Millisecond

// Entity states reported for GPIO sensors.
const (
	StateOn  = "on"
	StateOff = "off"
)
