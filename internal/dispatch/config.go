// Package dispatch transmits finalized samples off the producer's goroutine
// and tracks them until they complete.
package dispatch

import "errors"

// DefaultMaxConcurrent is the default number of transmissions allowed on the
// wire at once.
const DefaultMaxConcurrent = 8

// Config holds the configuration for the Dispatcher.
type Config struct {
	// MaxConcurrent bounds simultaneous transmissions. Extra sends wait on
	// their own goroutine. Default: 8.
	MaxConcurrent int64
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return errors.New("dispatch: config: MaxConcurrent must be at least 1")
	}
	return nil
}
