//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
)

// RealReader reads GPIO from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	lines     []*gpiocdev.Line
	activeLow []bool
}

// NewRealReader requests every configured sensor line as an input.
func NewRealReader(cfg config.GPIOConfig) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	r := &RealReader{chip: chip}
	for _, s := range cfg.Sensors {
		// Pull-down matches the Pi boot default; active-low sensors are
		// expected to have their own pull-up.
		line, err := chip.RequestLine(s.Line, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request line %d for %s: %w", s.Line, s.EntityID, err)
		}
		r.lines = append(r.lines, line)
		r.activeLow = append(r.activeLow, s.ActiveLow)
	}

	return r, nil
}

// Read returns the logical state of each line.
func (r *RealReader) Read() ([]bool, error) {
	out := make([]bool, len(r.lines))
	for i, line := range r.lines {
		raw, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", i, err)
		}
		active := raw == 1
		if r.activeLow[i] {
			active = !active
		}
		out[i] = active
	}
	return out, nil
}

// Close releases every line and the chip.
func (r *RealReader) Close() error {
	var errs []error
	for _, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}
