package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/llm"
)

func powerInput(severity event.Severity, voltage, load float64) Input {
	env := event.New("power.failure", severity, "sector-4", "grid anomaly")
	return Input{
		Event:   env,
		Reading: event.PowerReading{Voltage: voltage, Load: load},
	}
}

// stubModel fakes the model collaborator.
type stubModel struct {
	plan modelPlan
	err  error
}

func (m *stubModel) CompleteJSON(_ context.Context, _ llm.Request, out any) error {
	if m.err != nil {
		return m.err
	}
	*(out.(*modelPlan)) = m.plan
	return nil
}

func TestRulesVoltageBands(t *testing.T) {
	tests := []struct {
		name      string
		voltage   float64
		load      float64
		rule      string
		hoursStep string
		steps     int
	}{
		{"critical shutdown", 5, 0, "critical_voltage_shutdown", "Immediate safety shutdown of affected sector", 6},
		{"standard recovery", 30, 0, "low_voltage_recovery", "Assess circuit integrity", 6},
		{"regulation", 60, 0, "voltage_regulation", "Monitor power levels continuously", 4},
		{"capacity", 120, 95, "load_balancing", "Monitor load levels", 4},
		{"normal", 120, 40, "normal_operation", "Continue normal operation monitoring", 2},
	}

	s := NewRulesStrategy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityWarning, tt.voltage, tt.load))
			require.NoError(t, err)
			assert.Equal(t, tt.rule, res.Metadata["rule_applied"])
			assert.Len(t, res.Plan.Steps, tt.steps)
			assert.Equal(t, tt.hoursStep, res.Plan.Steps[0])
			assert.Equal(t, 1.0, res.Confidence)
			assert.Equal(t, "draft", res.Plan.Status)
		})
	}
}

func TestRulesIsTotal(t *testing.T) {
	// Any reading yields a plan, including zero values and extremes.
	s := NewRulesStrategy()
	for _, v := range []float64{-5, 0, 9.99, 10, 49.9, 89.9, 90, 1000} {
		res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityInfo, v, 0))
		require.NoError(t, err)
		assert.NotEmpty(t, res.Plan.Steps)
		assert.NotEmpty(t, res.Plan.PlanID)
	}
}

func TestRulesPlanIDFormat(t *testing.T) {
	s := NewRulesStrategy()
	res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityCritical, 5, 0))
	require.NoError(t, err)
	assert.Regexp(t, `^RP-RULES-\d{4}-[0-9A-F]{8}$`, res.Plan.PlanID)
	assert.Equal(t, []string{"agent-001", "agent-002", "agent-003"}, res.Plan.AssignedWorkers)
}

func TestDelegatedUsesModelOutput(t *testing.T) {
	model := &stubModel{plan: modelPlan{
		PlanName:  "Sector 4 Power Restoration Plan",
		Steps:     []string{"Check breakers", "Restore feed", "Verify voltage"},
		Reasoning: "Standard restoration",
	}}
	s := NewDelegatedStrategy(model, nil)

	res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityWarning, 45, 50))
	require.NoError(t, err)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, "Sector 4 Power Restoration Plan", res.Plan.PlanName)
	assert.Len(t, res.Plan.Steps, 3)
	assert.Equal(t, false, res.Metadata["fallback_used"])
}

func TestDelegatedFallsBackOnModelError(t *testing.T) {
	s := NewDelegatedStrategy(&stubModel{err: errors.New("connection refused")}, nil)

	res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityCritical, 5, 90))
	require.NoError(t, err, "model failure must not propagate")
	assert.Equal(t, 0.5, res.Confidence)
	assert.True(t, strings.HasPrefix(res.Plan.PlanID, "RP-LLM-FALLBACK-"))
	assert.Equal(t, []string{"Assess situation", "Apply standard recovery procedures", "Monitor system status"}, res.Plan.Steps)
	assert.Equal(t, true, res.Metadata["fallback_used"])
}

func TestConsensusNonCriticalUsesFixedSteps(t *testing.T) {
	s := NewConsensusStrategy(&stubModel{err: errors.New("should not be called")}, nil)

	res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityWarning, 45, 50))
	require.NoError(t, err)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, consensusSteps(), res.Plan.Steps)
	assert.Equal(t, false, res.Metadata["llm_escalated"])
	assert.Regexp(t, `^RP-MESH-\d{4}-[0-9A-F]{8}$`, res.Plan.PlanID)
}

func TestConsensusEscalatesForCritical(t *testing.T) {
	model := &stubModel{plan: modelPlan{
		Steps: []string{"Immediate shutdown", "Dispatch crew", "Restore backup"},
	}}
	s := NewConsensusStrategy(model, nil)

	res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityCritical, 5, 90))
	require.NoError(t, err)
	assert.Equal(t, true, res.Metadata["llm_escalated"])
	assert.Equal(t, []string{"Immediate shutdown", "Dispatch crew", "Restore backup"}, res.Plan.Steps)
	assert.Empty(t, res.PriorityViolations)
}

func TestConsensusEscalationFailureFallsBackToConsensus(t *testing.T) {
	s := NewConsensusStrategy(&stubModel{err: errors.New("timeout")}, nil)

	res, err := s.GeneratePlan(context.Background(), powerInput(event.SeverityCritical, 5, 90))
	require.NoError(t, err)
	assert.Equal(t, consensusSteps(), res.Plan.Steps)
	assert.Equal(t, false, res.Metadata["llm_escalated"])
	// Consensus steps carry no immediate action for a critical event.
	assert.Equal(t, []string{"Critical event missing immediate action step"}, res.PriorityViolations)
}

// failingStrategy always errors, for exercising the fallback chain.
type failingStrategy struct{ name string }

func (f *failingStrategy) Name() string { return f.name }
func (f *failingStrategy) GeneratePlan(context.Context, Input) (*Result, error) {
	return nil, errors.New("strategy down")
}

func TestSelectorFallsBackToRules(t *testing.T) {
	sel, err := NewSelector(StrategyConsensus, []Strategy{
		&failingStrategy{name: StrategyConsensus},
		NewRulesStrategy(),
	}, nil)
	require.NoError(t, err)

	res, err := sel.Generate(context.Background(), powerInput(event.SeverityWarning, 45, 50))
	require.NoError(t, err)
	assert.Equal(t, StrategyRules, res.StrategyName)
	assert.Equal(t, StrategyConsensus, res.Metadata["fallback_from"])
}

func TestSelectorHardFailure(t *testing.T) {
	sel, err := NewSelector(StrategyRules, []Strategy{
		&failingStrategy{name: StrategyRules},
	}, nil)
	require.NoError(t, err)

	_, err = sel.Generate(context.Background(), powerInput(event.SeverityWarning, 45, 50))
	assert.Error(t, err)
}

func TestSelectorRejectsDisabledMode(t *testing.T) {
	_, err := NewSelector(StrategyConsensus, []Strategy{NewRulesStrategy()}, nil)
	assert.Error(t, err)
}
