// Package measure drives measurements: it opens and closes root and nested
// scopes per execution context, feeds events into the aggregator and hands
// finalized samples to the dispatcher.
package measure

import (
	"errors"

	"github.com/plexsphere/plexapm/internal/aggregate"
)

// Config holds the configuration for the Tracker.
type Config struct {
	// AppRoot is the application's source root. Locations under it are
	// preferred and reported relative to it.
	AppRoot string

	// TopN bounds the queries and views kept per sample. Default: 25.
	TopN int

	// MeaninglessQueries add to runtime but not to call counts.
	// Default: BEGIN, COMMIT.
	MeaninglessQueries []string
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.TopN == 0 {
		c.TopN = aggregate.DefaultTopN
	}
	if c.MeaninglessQueries == nil {
		c.MeaninglessQueries = aggregate.DefaultMeaninglessCommands
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.TopN < 1 {
		return errors.New("measure: config: TopN must be at least 1")
	}
	return nil
}
