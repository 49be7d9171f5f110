package insight

import (
	"fmt"
	"time"

	"github.com/c360studio/chronos/config"
)

// Config holds the trajectory insight processor configuration.
type Config struct {
	// CollectionWindow is both the quiet period after the last flight
	// arrival before a batch is analyzed and the analysis time window.
	CollectionWindow time.Duration `json:"collection_window"`
	// SampleStep is the trajectory sampling interval.
	SampleStep time.Duration `json:"sample_step"`
	// SolutionMode selects the solution generator: deterministic or
	// delegated.
	SolutionMode string `json:"solution_mode"`
	// Distributed suppresses in-process solution generation; the
	// coordinator fans problems out to task agents instead.
	Distributed bool `json:"distributed"`
	// QueueSize bounds the inbound flight queue.
	QueueSize int `json:"queue_size"`
}

// DefaultConfig returns the default insight configuration.
func DefaultConfig() Config {
	return Config{
		CollectionWindow: 60 * time.Second,
		SampleStep:       60 * time.Second,
		SolutionMode:     config.ModeDeterministic,
		QueueSize:        256,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CollectionWindow <= 0 {
		return fmt.Errorf("collection_window must be positive, got %s", c.CollectionWindow)
	}
	if c.SampleStep <= 0 {
		return fmt.Errorf("sample_step must be positive, got %s", c.SampleStep)
	}
	switch c.SolutionMode {
	case config.ModeDeterministic, config.ModeDelegated:
	default:
		return fmt.Errorf("unknown solution_mode %q", c.SolutionMode)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	return nil
}
