package component

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Runner supervises a set of components: initializes and starts them in
// registration order, stops them in reverse order.
type Runner struct {
	logger     *slog.Logger
	components []Component
}

// NewRunner creates a runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Add registers a component. Not safe to call after Start.
func (r *Runner) Add(c Component) {
	r.components = append(r.components, c)
}

// Start initializes and starts all components. On failure, components
// already started are stopped before the error is returned.
func (r *Runner) Start(ctx context.Context) error {
	var started []Component

	for _, c := range r.components {
		meta := c.Meta()
		if err := c.Initialize(); err != nil {
			r.stopAll(started)
			return fmt.Errorf("initialize %s: %w", meta.Name, err)
		}
		if err := c.Start(ctx); err != nil {
			r.stopAll(started)
			return fmt.Errorf("start %s: %w", meta.Name, err)
		}
		started = append(started, c)
		r.logger.Info("Component started", "name", meta.Name, "type", meta.Type)
	}

	return nil
}

// Stop stops all components in reverse order.
func (r *Runner) Stop(timeout time.Duration) {
	for i := len(r.components) - 1; i >= 0; i-- {
		c := r.components[i]
		if err := c.Stop(timeout); err != nil {
			r.logger.Warn("Component stop failed", "name", c.Meta().Name, "error", err)
		}
	}
}

func (r *Runner) stopAll(started []Component) {
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(5 * time.Second); err != nil {
			r.logger.Warn("Component stop failed during rollback",
				"name", started[i].Meta().Name, "error", err)
		}
	}
}

// Healthy reports whether every registered component is healthy.
func (r *Runner) Healthy() bool {
	for _, c := range r.components {
		if !c.Health().Healthy {
			return false
		}
	}
	return true
}
