package trajectory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/llm"
)

// Solution heuristics.
const (
	maxAltitudeFt     = 41000
	minSpeedKt        = 300
	conflictClimbFt   = 2000
	conflictSlowKt    = 15
	hotspotSlowKt     = 20
	hotspotMaxFlights = 3
)

// SolutionModel is the model operation the delegated generator needs.
// *llm.Client satisfies it.
type SolutionModel interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// Generator proposes mitigation solutions for detected conflicts and
// hotspots. With a nil model it always uses the deterministic heuristics.
type Generator struct {
	model  SolutionModel
	logger *slog.Logger
}

// NewGenerator creates a solution generator. model may be nil.
func NewGenerator(model SolutionModel, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, logger: logger}
}

// Generate proposes solutions for the analysis result. The delegated path
// falls back to the deterministic heuristics on any model failure.
func (g *Generator) Generate(ctx context.Context, res Result, flights []event.Flight, delegated bool) []event.Solution {
	if delegated && g.model != nil {
		solutions, err := g.generateDelegated(ctx, res, flights)
		if err == nil {
			return solutions
		}
		g.logger.Warn("Model solution generation failed, using heuristics", "error", err)
	}
	return GenerateRules(res, flights)
}

// GenerateRules applies the deterministic mitigation heuristics: climb the
// first conflicting flight, slow the second, shift departure when the
// conflict window is known, and slow up to three hotspot flights.
func GenerateRules(res Result, flights []event.Flight) []event.Solution {
	solutions := []event.Solution{}

	byID := make(map[string]event.Flight, len(flights))
	for _, f := range flights {
		byID[normalize(f).FlightID] = normalize(f)
	}

	for _, conflict := range res.Conflicts {
		if len(conflict.FlightIDs) < 2 {
			continue
		}

		first := lookupFlight(byID, conflict.FlightIDs[0])
		second := lookupFlight(byID, conflict.FlightIDs[1])

		actions := []event.ProposedAction{
			{
				FlightID:      first.FlightID,
				Action:        "altitude_change",
				NewAltitudeFt: math.Min(first.AltitudeFt+conflictClimbFt, maxAltitudeFt),
				DelayMinutes:  0,
				Reasoning:     "Increase altitude to create vertical separation",
			},
			{
				FlightID:         second.FlightID,
				Action:           "speed_change",
				SpeedChangeKnots: -conflictSlowKt,
				NewSpeedKt:       math.Max(second.SpeedKt-conflictSlowKt, minSpeedKt),
				DelayMinutes:     0,
				Reasoning:        "Reduce speed to create temporal separation",
			},
		}
		if !conflict.ConflictTime.IsZero() {
			actions = append(actions, event.ProposedAction{
				FlightID:     first.FlightID,
				Action:       "departure_shift",
				DelayMinutes: 5,
				Reasoning:    "Shift departure time to avoid conflict window",
			})
		}

		totalDelay := 0
		for _, a := range actions {
			totalDelay += a.DelayMinutes
		}

		solutions = append(solutions, event.Solution{
			SolutionID:      "SOL-RULES-" + shortID(),
			SolutionType:    "multi_action",
			ProblemID:       conflict.ConflictID,
			AffectedFlights: conflict.FlightIDs,
			ProposedActions: actions,
			EstimatedImpact: event.Impact{
				TotalDelayMinutes:  totalDelay,
				FuelImpactPercent:  1.5,
				AffectedPassengers: len(conflict.FlightIDs) * 150,
			},
			ConfidenceScore:  0.85,
			GeneratedBy:      "rules-engine",
			RequiresApproval: true,
		})
	}

	for _, hotspot := range res.Hotspots {
		if len(hotspot.AffectedFlights) == 0 {
			continue
		}

		targets := hotspot.AffectedFlights
		if len(targets) > hotspotMaxFlights {
			targets = targets[:hotspotMaxFlights]
		}

		actions := make([]event.ProposedAction, 0, len(targets))
		for _, id := range targets {
			f := lookupFlight(byID, id)
			actions = append(actions, event.ProposedAction{
				FlightID:         id,
				Action:           "speed_reduction",
				SpeedChangeKnots: -hotspotSlowKt,
				NewSpeedKt:       math.Max(f.SpeedKt-hotspotSlowKt, minSpeedKt),
				DelayMinutes:     2,
				Reasoning:        "Reduce speed to decrease hotspot density",
			})
		}

		solutions = append(solutions, event.Solution{
			SolutionID:      "SOL-RULES-" + shortID(),
			SolutionType:    "speed_adjustment",
			ProblemID:       hotspot.HotspotID,
			AffectedFlights: targets,
			ProposedActions: actions,
			EstimatedImpact: event.Impact{
				TotalDelayMinutes:  2,
				FuelImpactPercent:  1.0,
				AffectedPassengers: len(targets) * 150,
			},
			ConfidenceScore:  0.80,
			GeneratedBy:      "rules-engine",
			RequiresApproval: false,
		})
	}

	return solutions
}

func lookupFlight(byID map[string]event.Flight, id string) event.Flight {
	if f, ok := byID[id]; ok {
		return f
	}
	return event.Flight{FlightID: id, AltitudeFt: defaultAltitudeFt, SpeedKt: defaultSpeedKt}
}

const solutionPrompt = `You are an air traffic control assistant. Analyze the following airspace conflicts and hotspots, and generate solutions.

Return ONLY valid JSON, no other text. Use this exact structure:

{
  "solutions": [
    {
      "solution_id": "SOL-LLM-XXXXX",
      "solution_type": "altitude_change|speed_change|departure_shift|reroute|multi_action",
      "problem_id": "conflict_id or hotspot_id",
      "affected_flights": ["FLT-XXX", "FLT-YYY"],
      "proposed_actions": [
        {
          "flight_id": "FLT-XXX",
          "action": "altitude_change|speed_change|departure_shift|reroute",
          "new_altitude": 37000,
          "speed_change_knots": -15,
          "delay_minutes": 5,
          "new_waypoints": ["WP1", "WP2"],
          "reasoning": "Brief explanation"
        }
      ],
      "estimated_impact": {
        "total_delay_minutes": 5,
        "fuel_impact_percent": 2.0,
        "affected_passengers": 300
      },
      "confidence_score": 0.85,
      "requires_approval": true
    }
  ]
}

Airspace Situation:
%s

Generate solutions for all conflicts and hotspots. Prioritize safety and minimize delays.`

// generateDelegated sends problem summaries to the model and validates the
// returned solutions.
func (g *Generator) generateDelegated(ctx context.Context, res Result, flights []event.Flight) ([]event.Solution, error) {
	situation := map[string]any{
		"conflicts":    res.Conflicts,
		"hotspots":     res.Hotspots,
		"trajectories": flights,
	}
	situationJSON, err := json.MarshalIndent(situation, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal airspace situation: %w", err)
	}

	temp := 0.3
	var out struct {
		Solutions []event.Solution `json:"solutions"`
	}
	err = g.model.CompleteJSON(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(solutionPrompt, situationJSON)}},
		Temperature: &temp,
		MaxTokens:   2000,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Solutions) == 0 {
		return nil, fmt.Errorf("model returned no solutions")
	}

	for i := range out.Solutions {
		out.Solutions[i].GeneratedBy = "llm"
		if out.Solutions[i].SolutionID == "" {
			out.Solutions[i].SolutionID = "SOL-LLM-" + shortID()
		}
	}
	return out.Solutions, nil
}
