// Package component defines the lifecycle contract shared by chronos
// processors and the runner that supervises them.
package component

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/chronos/natsbus"
)

// Component is the lifecycle every processor implements.
type Component interface {
	// Initialize prepares the component before Start. It must not block.
	Initialize() error

	// Start begins processing. It returns once background work is running;
	// the context cancels all of it.
	Start(ctx context.Context) error

	// Stop gracefully stops the component within the given timeout.
	Stop(timeout time.Duration) error

	// Meta returns static component metadata.
	Meta() Metadata

	// Health returns the current health status.
	Health() HealthStatus
}

// Metadata describes a component.
type Metadata struct {
	Name        string
	Type        string
	Description string
	Version     string
}

// HealthStatus is a point-in-time health snapshot.
type HealthStatus struct {
	Healthy    bool
	LastCheck  time.Time
	ErrorCount int
	Uptime     time.Duration
	Status     string
}

// Dependencies carries the shared infrastructure injected into components.
type Dependencies struct {
	Bus    *natsbus.Client
	Logger *slog.Logger
}

// GetLogger returns the configured logger, falling back to slog.Default.
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
