package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/llm"
)

// PlanModel is the single model operation the delegated strategies need.
// *llm.Client satisfies it.
type PlanModel interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// DelegatedStrategy sends the whole decision to the model in a single call.
// Model failures yield an operational low-confidence fallback plan rather
// than an error.
type DelegatedStrategy struct {
	model  PlanModel
	logger *slog.Logger
}

// NewDelegatedStrategy creates the single-call model strategy.
func NewDelegatedStrategy(model PlanModel, logger *slog.Logger) *DelegatedStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &DelegatedStrategy{model: model, logger: logger}
}

// Name returns the strategy identifier.
func (s *DelegatedStrategy) Name() string {
	return StrategyDelegated
}

// modelPlan is the JSON shape requested from the model.
type modelPlan struct {
	PlanID              string   `json:"plan_id"`
	PlanName            string   `json:"plan_name"`
	Status              string   `json:"status"`
	Steps               []string `json:"steps"`
	EstimatedCompletion string   `json:"estimated_completion"`
	AssignedAgents      []string `json:"assigned_agents"`
	Reasoning           string   `json:"reasoning"`
}

const planPrompt = `You are a crisis management assistant for a digital twin crisis system.

Analyze the following power failure event and generate a recovery plan. Return ONLY valid JSON, no other text.

Power Failure Event:
%s

Generate a recovery plan with the following structure:
{
  "plan_id": "RP-YYYY-NNN",
  "plan_name": "Descriptive name for the recovery plan",
  "status": "draft",
  "steps": ["Step 1 description", "Step 2 description", "..."],
  "estimated_completion": "ISO 8601 timestamp",
  "assigned_agents": ["agent-001", "agent-002"],
  "reasoning": "One sentence explaining the decision"
}

Guidelines:
- Create 3-6 recovery steps based on the event severity and details
- Steps should be actionable and sequential
- Estimated completion should be realistic (1-4 hours for most cases, longer for critical failures)
- Use agent IDs in format "agent-XXX" where XXX is a 3-digit number
- Consider voltage, load, and backup status when creating steps

Return ONLY the JSON object, no markdown, no code blocks, no explanations.`

// GeneratePlan asks the model for a complete plan.
func (s *DelegatedStrategy) GeneratePlan(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	if s.model == nil {
		return s.fallback(in, start), nil
	}

	eventJSON, err := json.MarshalIndent(delegationView(in), "", "  ")
	if err != nil {
		return s.fallback(in, start), nil
	}

	var out modelPlan
	err = s.model.CompleteJSON(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(planPrompt, eventJSON)},
		},
	}, &out)
	if err != nil {
		s.logger.Warn("Model plan generation failed, using fallback",
			"event_id", in.Event.EventID,
			"error", err)
		return s.fallback(in, start), nil
	}

	plan := s.toRecoveryPlan(out, in)
	elapsed := time.Since(start)
	return &Result{
		StrategyName:       StrategyDelegated,
		Plan:               plan,
		ExecutionTime:      elapsed,
		ExecutionTimeMS:    float64(elapsed.Microseconds()) / 1000,
		ActionCount:        len(plan.Steps),
		PriorityViolations: []string{},
		Confidence:         0.8,
		Metadata: map[string]any{
			"single_shot":   true,
			"fallback_used": false,
		},
	}, nil
}

// delegationView is the event context handed to the model.
func delegationView(in Input) map[string]any {
	view := map[string]any{
		"event_id":  in.Event.EventID,
		"source":    in.Event.Source,
		"severity":  in.Event.Severity,
		"sector_id": in.Event.SectorID,
		"summary":   in.Event.Summary,
		"details":   in.Reading,
	}
	if in.Context != nil {
		view["priorities"] = in.Context.Priorities
	}
	return view
}

// toRecoveryPlan normalizes the model output into a publishable plan.
// Identifier, status, and worker assignment stay under local control.
func (s *DelegatedStrategy) toRecoveryPlan(out modelPlan, in Input) event.RecoveryPlan {
	completion, err := time.Parse(time.RFC3339, out.EstimatedCompletion)
	if err != nil {
		completion = time.Now().UTC().Add(2 * time.Hour)
	}

	name := out.PlanName
	if name == "" {
		name = fmt.Sprintf("%s Recovery Plan", displayName(in.Event.SectorID))
	}
	steps := out.Steps
	if len(steps) == 0 {
		steps = fallbackSteps()
	}
	workers := out.AssignedAgents
	if len(workers) == 0 {
		workers = assignWorkers(in.Event.Severity)
	}
	reasoning := out.Reasoning
	if reasoning == "" {
		reasoning = "Model-delegated recovery decision"
	}

	return event.RecoveryPlan{
		PlanID:              newPlanID("LLM"),
		PlanName:            name,
		Status:              "draft",
		Steps:               steps,
		EstimatedCompletion: completion,
		AssignedWorkers:     workers,
		Reasoning:           reasoning,
		CrisisContext:       in.Context,
		TriggerEventType:    in.Event.Source,
		TriggerEventID:      in.Event.EventID,
	}
}

// fallback builds the canned plan used when the model is unavailable.
func (s *DelegatedStrategy) fallback(in Input, start time.Time) *Result {
	steps := fallbackSteps()
	plan := event.RecoveryPlan{
		PlanID:              fmt.Sprintf("RP-LLM-FALLBACK-%d", time.Now().UTC().Year()),
		PlanName:            fmt.Sprintf("%s Recovery Plan (Fallback)", displayName(in.Event.SectorID)),
		Status:              "draft",
		Steps:               steps,
		EstimatedCompletion: time.Now().UTC().Add(2 * time.Hour),
		AssignedWorkers:     []string{"agent-001"},
		Reasoning:           "Model unavailable, using fallback plan",
		CrisisContext:       in.Context,
		TriggerEventType:    in.Event.Source,
		TriggerEventID:      in.Event.EventID,
	}

	elapsed := time.Since(start)
	return &Result{
		StrategyName:       StrategyDelegated,
		Plan:               plan,
		ExecutionTime:      elapsed,
		ExecutionTimeMS:    float64(elapsed.Microseconds()) / 1000,
		ActionCount:        len(steps),
		PriorityViolations: []string{},
		Confidence:         0.5,
		Metadata: map[string]any{
			"single_shot":   true,
			"fallback_used": true,
		},
	}
}

func fallbackSteps() []string {
	return []string{
		"Assess situation",
		"Apply standard recovery procedures",
		"Monitor system status",
	}
}
