package coordinator

import (
	"fmt"
	"time"

	"github.com/c360studio/chronos/config"
)

// Config holds coordinator processor configuration.
type Config struct {
	// RecoveryMode selects the plan strategy: deterministic, delegated, or
	// consensus.
	RecoveryMode string `json:"recovery_mode"`

	// SolutionMode selects the in-process solution generator: deterministic
	// or delegated.
	SolutionMode string `json:"solution_mode"`

	// Distributed fans conflicts and hotspots out to task agents instead of
	// generating solutions in-process.
	Distributed bool `json:"distributed"`

	// DemoAutoApply automatically applies every proposed solution.
	DemoAutoApply bool `json:"demo_auto_apply"`

	// MergeDebounce is the quiet period after the last partial solution
	// before merging.
	MergeDebounce time.Duration `json:"merge_debounce"`

	// WorkerPoolSize bounds concurrent plan generations.
	WorkerPoolSize int `json:"worker_pool_size"`

	// QueueSize bounds the inbound event channel.
	QueueSize int `json:"queue_size"`
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		RecoveryMode:   config.ModeDeterministic,
		SolutionMode:   config.ModeDeterministic,
		DemoAutoApply:  true,
		MergeDebounce:  2 * time.Second,
		WorkerPoolSize: 4,
		QueueSize:      256,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.RecoveryMode {
	case config.ModeDeterministic, config.ModeDelegated, config.ModeConsensus:
	default:
		return fmt.Errorf("invalid recovery_mode %q", c.RecoveryMode)
	}
	switch c.SolutionMode {
	case config.ModeDeterministic, config.ModeDelegated:
	default:
		return fmt.Errorf("invalid solution_mode %q", c.SolutionMode)
	}
	if c.MergeDebounce <= 0 {
		return fmt.Errorf("merge_debounce must be positive")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	return nil
}
