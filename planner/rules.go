package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/chronos/event"
)

// RulesStrategy generates plans from deterministic voltage and load rules.
// It has no external dependencies and never fails.
type RulesStrategy struct{}

// NewRulesStrategy creates the deterministic rules strategy.
func NewRulesStrategy() *RulesStrategy {
	return &RulesStrategy{}
}

// Name returns the strategy identifier.
func (s *RulesStrategy) Name() string {
	return StrategyRules
}

// GeneratePlan applies the voltage and load rule bands to the reading.
func (s *RulesStrategy) GeneratePlan(_ context.Context, in Input) (*Result, error) {
	start := time.Now()

	voltage := in.Reading.Voltage
	load := in.Reading.Load
	steps, hours, rule := rulesFor(voltage, load)

	plan := event.RecoveryPlan{
		PlanID:              newPlanID("RULES"),
		PlanName:            fmt.Sprintf("%s Recovery Plan (Rules-Based)", displayName(in.Event.SectorID)),
		Status:              "draft",
		Steps:               steps,
		EstimatedCompletion: time.Now().UTC().Add(time.Duration(hours * float64(time.Hour))),
		AssignedWorkers:     assignWorkers(in.Event.Severity),
		Reasoning: fmt.Sprintf("Rules-based decision: voltage=%gV, load=%g%%, severity=%s",
			voltage, load, in.Event.Severity),
		CrisisContext:    in.Context,
		TriggerEventType: in.Event.Source,
		TriggerEventID:   in.Event.EventID,
	}

	elapsed := time.Since(start)
	return &Result{
		StrategyName:       StrategyRules,
		Plan:               plan,
		ExecutionTime:      elapsed,
		ExecutionTimeMS:    float64(elapsed.Microseconds()) / 1000,
		ActionCount:        len(steps),
		PriorityViolations: []string{},
		Confidence:         1.0,
		Metadata: map[string]any{
			"rule_applied":  rule,
			"deterministic": true,
		},
	}, nil
}

// rulesFor maps a reading to recovery steps, estimated hours, and the rule
// name. Bands are evaluated in order; the first match wins.
func rulesFor(voltage, load float64) ([]string, float64, string) {
	switch {
	case voltage < 10:
		return []string{
			"Immediate safety shutdown of affected sector",
			"Activate emergency backup power",
			"Notify emergency response team",
			"Isolate sector from grid",
			"Begin damage assessment",
			"Coordinate restoration with maintenance",
		}, 4.0, "critical_voltage_shutdown"
	case voltage < 50:
		return []string{
			"Assess circuit integrity",
			"Isolate affected circuits",
			"Activate backup power systems",
			"Verify backup system operation",
			"Restore primary power gradually",
			"Monitor system stability",
		}, 2.5, "low_voltage_recovery"
	case voltage < 90:
		return []string{
			"Monitor power levels continuously",
			"Investigate voltage fluctuation cause",
			"Apply voltage regulation",
			"Verify system returns to normal",
		}, 1.0, "voltage_regulation"
	case load > 80:
		return []string{
			"Monitor load levels",
			"Distribute load across sectors",
			"Activate additional capacity if available",
			"Verify load balancing",
		}, 0.5, "load_balancing"
	default:
		return []string{
			"Continue normal operation monitoring",
			"Log event for analysis",
		}, 0.0, "normal_operation"
	}
}
