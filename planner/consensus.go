package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/llm"
)

// ConsensusStrategy simulates multi-agent coordination: three concurrent
// sub-assessments feed either a fixed consensus plan or, for critical
// events, an escalated model call.
type ConsensusStrategy struct {
	model  PlanModel
	logger *slog.Logger
}

// NewConsensusStrategy creates the multi-agent consensus strategy. model may
// be nil, in which case escalation always falls back to consensus steps.
func NewConsensusStrategy(model PlanModel, logger *slog.Logger) *ConsensusStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsensusStrategy{model: model, logger: logger}
}

// Name returns the strategy identifier.
func (s *ConsensusStrategy) Name() string {
	return StrategyConsensus
}

// assessment is one sub-agent's contribution to the consensus.
type assessment struct {
	AgentID string         `json:"agent_id"`
	Fields  map[string]any `json:"fields"`
}

// GeneratePlan coordinates the sub-assessments and builds the plan.
func (s *ConsensusStrategy) GeneratePlan(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	var situation, resources, coordination assessment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		situation = assessSituation(gctx, in)
		return nil
	})
	g.Go(func() error {
		resources = checkResources(gctx, in.Event.SectorID)
		return nil
	})
	g.Go(func() error {
		coordination = coordinateSectors(gctx, in.Event.SectorID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	escalate := in.Event.Severity == event.SeverityCritical || in.Reading.Voltage < 10

	var steps []string
	var reasoning string
	escalated := false
	if escalate {
		steps, reasoning, escalated = s.escalate(ctx, in, situation)
	}
	if len(steps) == 0 {
		steps = consensusSteps()
		reasoning = "Multi-agent consensus decision"
	}

	plan := event.RecoveryPlan{
		PlanID:              newPlanID("MESH"),
		PlanName:            fmt.Sprintf("%s Recovery Plan (Agentic Mesh)", displayName(in.Event.SectorID)),
		Status:              "draft",
		Steps:               steps,
		EstimatedCompletion: time.Now().UTC().Add(150 * time.Minute),
		AssignedWorkers:     []string{"agent-001", "agent-002", "agent-003"},
		Reasoning:           reasoning,
		CrisisContext:       in.Context,
		TriggerEventType:    in.Event.Source,
		TriggerEventID:      in.Event.EventID,
	}

	elapsed := time.Since(start)
	return &Result{
		StrategyName:       StrategyConsensus,
		Plan:               plan,
		ExecutionTime:      elapsed,
		ExecutionTimeMS:    float64(elapsed.Microseconds()) / 1000,
		ActionCount:        len(steps),
		PriorityViolations: checkPriorityViolations(steps, in.Event.Severity),
		Confidence:         0.9,
		Metadata: map[string]any{
			"agents_involved":   3,
			"llm_escalated":     escalated,
			"consensus_reached": true,
			"assessments": map[string]assessment{
				"assessment_agent":   situation,
				"resource_agent":     resources,
				"coordination_agent": coordination,
			},
		},
	}, nil
}

// escalate asks the model for steps. A failed escalation reports empty
// steps so the caller uses the consensus fallback.
func (s *ConsensusStrategy) escalate(ctx context.Context, in Input, situation assessment) ([]string, string, bool) {
	if s.model == nil {
		return nil, "", false
	}

	var out modelPlan
	prompt := fmt.Sprintf(planPrompt, fmt.Sprintf(
		`{"event_id": %q, "sector_id": %q, "severity": %q, "voltage": %g, "load": %g, "risk_level": %q}`,
		in.Event.EventID, in.Event.SectorID, in.Event.Severity,
		in.Reading.Voltage, in.Reading.Load, situation.Fields["risk_level"]))
	err := s.model.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	}, &out)
	if err != nil {
		s.logger.Warn("Model escalation failed, using agent consensus",
			"event_id", in.Event.EventID,
			"error", err)
		return nil, "", false
	}

	reasoning := fmt.Sprintf("Model escalation based on agent assessment: risk_level=%v",
		situation.Fields["risk_level"])
	return out.Steps, reasoning, true
}

func assessSituation(_ context.Context, in Input) assessment {
	return assessment{
		AgentID: "agent-001",
		Fields: map[string]any{
			"assessment": "Situation analyzed",
			"risk_level": string(in.Event.Severity),
		},
	}
}

func checkResources(_ context.Context, _ string) assessment {
	return assessment{
		AgentID: "agent-002",
		Fields: map[string]any{
			"resources_available": true,
			"backup_power":        "operational",
		},
	}
}

func coordinateSectors(_ context.Context, _ string) assessment {
	return assessment{
		AgentID: "agent-003",
		Fields: map[string]any{
			"coordination_status": "sectors_notified",
			"load_redistribution": "possible",
		},
	}
}

func consensusSteps() []string {
	return []string{
		"Multi-agent assessment complete",
		"Verify resource availability",
		"Coordinate with other sectors",
		"Execute recovery procedures",
		"Monitor and validate restoration",
	}
}
