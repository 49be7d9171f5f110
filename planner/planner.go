// Package planner generates recovery plans for power grid failures using
// pluggable decision strategies.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/metrics"
)

// Strategy names.
const (
	StrategyRules     = "RULES_ENGINE"
	StrategyDelegated = "SINGLE_LLM"
	StrategyConsensus = "AGENTIC_MESH"
)

// Input is a triggering power event enriched with crisis context.
type Input struct {
	Event   event.Envelope
	Reading event.PowerReading
	Context *event.ContextSnapshot
}

// Result is a strategy's plan plus decision provenance.
type Result struct {
	StrategyName       string             `json:"framework_name"`
	Plan               event.RecoveryPlan `json:"plan_output"`
	ExecutionTime      time.Duration      `json:"-"`
	ExecutionTimeMS    float64            `json:"execution_time_ms"`
	ActionCount        int                `json:"number_of_actions"`
	PriorityViolations []string           `json:"priority_violations"`
	Confidence         float64            `json:"confidence_score"`
	Metadata           map[string]any     `json:"metadata,omitempty"`
}

// Strategy produces a recovery plan for a triggering event.
type Strategy interface {
	Name() string
	GeneratePlan(ctx context.Context, in Input) (*Result, error)
}

// Selector holds the configured strategies and applies the fallback chain:
// the selected strategy, then the deterministic rules, then a direct model
// call. Exhausting the chain is a hard failure.
type Selector struct {
	strategies map[string]Strategy
	mode       string
	logger     *slog.Logger
}

// NewSelector builds a selector. mode must name one of the given strategies.
func NewSelector(mode string, strategies []Strategy, logger *slog.Logger) (*Selector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	if _, ok := byName[mode]; !ok {
		return nil, fmt.Errorf("strategy %s is not enabled", mode)
	}

	return &Selector{strategies: byName, mode: mode, logger: logger}, nil
}

// Mode returns the selected strategy name.
func (s *Selector) Mode() string {
	return s.mode
}

// Generate runs the fallback chain for the input.
func (s *Selector) Generate(ctx context.Context, in Input) (*Result, error) {
	chain := []string{s.mode}
	if s.mode != StrategyRules {
		chain = append(chain, StrategyRules)
	}
	if s.mode != StrategyDelegated {
		chain = append(chain, StrategyDelegated)
	}

	var lastErr error
	for i, name := range chain {
		strategy, ok := s.strategies[name]
		if !ok {
			continue
		}

		result, err := strategy.GeneratePlan(ctx, in)
		if err == nil {
			if i > 0 {
				result.Metadata["fallback_from"] = chain[0]
			}
			metrics.PlansGenerated.WithLabelValues(name).Inc()
			return result, nil
		}

		lastErr = err
		metrics.StrategyFallbacks.WithLabelValues(name).Inc()
		s.logger.Warn("Strategy failed, falling back",
			"strategy", name,
			"event_id", in.Event.EventID,
			"error", err)
	}

	return nil, fmt.Errorf("all strategies failed for event %s: %w", in.Event.EventID, lastErr)
}

// newPlanID builds ids like RP-RULES-2026-3F2A91BC.
func newPlanID(kind string) string {
	short := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("RP-%s-%d-%s", kind, time.Now().UTC().Year(), short)
}

// displayName renders a sector id as a readable plan name fragment,
// e.g. "sector-4" becomes "Sector 4".
func displayName(sectorID string) string {
	if sectorID == "" {
		sectorID = "unknown"
	}
	words := strings.Split(strings.ReplaceAll(sectorID, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// assignWorkers maps severity to the worker roster the plan is routed to.
func assignWorkers(severity event.Severity) []string {
	switch severity {
	case event.SeverityCritical:
		return []string{"agent-001", "agent-002", "agent-003"}
	case event.SeverityModerate:
		return []string{"agent-001", "agent-002"}
	default:
		return []string{"agent-001"}
	}
}

// checkPriorityViolations flags critical events whose plans lack an
// immediate or emergency step.
func checkPriorityViolations(steps []string, severity event.Severity) []string {
	violations := []string{}
	if severity != event.SeverityCritical {
		return violations
	}
	for _, step := range steps {
		lower := strings.ToLower(step)
		if strings.Contains(lower, "immediate") || strings.Contains(lower, "emergency") {
			return violations
		}
	}
	return append(violations, "Critical event missing immediate action step")
}
