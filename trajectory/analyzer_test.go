package trajectory

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/llm"
)

func flight(id string, route []string, altitude, speed float64, departure time.Time) event.Flight {
	return event.Flight{
		FlightID:      id,
		Route:         route,
		AltitudeFt:    altitude,
		SpeedKt:       speed,
		DepartureTime: departure,
	}
}

func TestConflictDetectedForCloseAltitudesSharedOrigin(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "BOS"}, 35000, 450, dep),
		flight("FLT-002", []string{"JFK", "ORD"}, 36500, 440, dep.Add(10*time.Minute)),
	}

	res := Analyzer{}.Analyze(flights)
	require.Len(t, res.Conflicts, 1)

	c := res.Conflicts[0]
	assert.ElementsMatch(t, []string{"FLT-001", "FLT-002"}, c.FlightIDs)
	assert.Equal(t, "separation", c.ConflictType)

	wantSep := math.Round(1500/feetPerNM*100) / 100
	assert.Equal(t, wantSep, c.MinSeparationNM)
	assert.Equal(t, "high", c.SeverityLevel)
	assert.Equal(t, requiredSeparationNM, c.ReqSeparationNM)
	assert.Equal(t, dep.Add(10*time.Minute), c.ConflictTime)
}

func TestNoConflictWhenAltitudesFarApart(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "BOS"}, 31000, 450, dep),
		flight("FLT-002", []string{"JFK", "ORD"}, 36000, 440, dep.Add(10*time.Minute)),
	}

	res := Analyzer{}.Analyze(flights)
	assert.Empty(t, res.Conflicts)
}

func TestNoConflictWhenDeparturesFarApart(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "BOS"}, 35000, 450, dep),
		flight("FLT-002", []string{"JFK", "ORD"}, 35500, 440, dep.Add(2*time.Hour)),
	}

	res := Analyzer{}.Analyze(flights)
	assert.Empty(t, res.Conflicts)
}

func TestConflictViaSharedWaypoint(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "ALB", "BOS"}, 35000, 450, dep),
		flight("FLT-002", []string{"PHL", "ALB", "ORD"}, 35800, 440, dep.Add(30*time.Minute)),
	}

	res := Analyzer{}.Analyze(flights)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "high", res.Conflicts[0].SeverityLevel)
}

func TestHotspotCountsAllGroupMembers(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	const n = 4
	flights := make([]event.Flight, n)
	for i := 0; i < n; i++ {
		// Spread altitudes so the pairwise conflict detector stays quiet.
		flights[i] = flight(
			"FLT-00"+string(rune('1'+i)),
			[]string{"LAX", "SFO"},
			30000+float64(i)*3000,
			420,
			dep.Add(time.Duration(i)*5*time.Minute),
		)
	}

	res := Analyzer{}.Analyze(flights)
	require.Len(t, res.Hotspots, 1)

	h := res.Hotspots[0]
	assert.Equal(t, n, h.CurrentCount)
	assert.Len(t, h.AffectedFlights, n)
	assert.Equal(t, float64(n), h.Density)
	assert.Equal(t, "high", h.Severity)
	assert.Equal(t, dep, h.StartTime)
	assert.Equal(t, dep.Add(15*time.Minute).Add(time.Hour), h.EndTime)
	assert.Contains(t, h.Description, "LAX")
}

func TestSingleFlightNoHotspot(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	res := Analyzer{}.Analyze([]event.Flight{
		flight("FLT-001", []string{"LAX", "SFO"}, 35000, 450, dep),
	})
	assert.Empty(t, res.Hotspots)
	assert.Empty(t, res.Conflicts)
}

func TestViolations(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	flights := []event.Flight{
		flight("FLT-LOW", []string{"JFK", "BOS"}, 8000, 450, dep),
		flight("FLT-FAST", []string{"LAX", "SFO"}, 35000, 520, dep),
		flight("FLT-OK", []string{"ORD", "DEN"}, 35000, 450, dep),
	}

	res := Analyzer{}.Analyze(flights)
	require.Len(t, res.Violations, 2)

	byType := map[string]event.Violation{}
	for _, v := range res.Violations {
		byType[v.ViolationType] = v
	}
	assert.Equal(t, "FLT-LOW", byType["altitude"].FlightID)
	assert.Equal(t, float64(minAltitudeFt), byType["altitude"].Threshold)
	assert.Equal(t, "FLT-FAST", byType["speed"].FlightID)
	assert.Equal(t, float64(maxSpeedKt), byType["speed"].Threshold)
}

func TestDefaultsApplied(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	// No altitude or speed: defaults keep the flight clear of violations.
	res := Analyzer{}.Analyze([]event.Flight{
		flight("FLT-001", []string{"JFK", "BOS"}, 0, 0, dep),
	})
	assert.Empty(t, res.Violations)
	assert.Equal(t, 1, res.Summary.TotalFlights)
}

func TestRulesSolutionsForConflict(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	// Distinct origins with a shared mid-route waypoint: a conflict
	// without a congestion hotspot.
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "MDW", "BOS"}, 40000, 450, dep),
		flight("FLT-002", []string{"LGA", "MDW", "ORD"}, 39000, 310, dep.Add(10*time.Minute)),
	}

	res := Analyzer{}.Analyze(flights)
	require.Len(t, res.Conflicts, 1)
	require.Empty(t, res.Hotspots)

	solutions := GenerateRules(res, flights)
	require.Len(t, solutions, 1)

	sol := solutions[0]
	assert.Equal(t, "multi_action", sol.SolutionType)
	assert.Equal(t, res.Conflicts[0].ConflictID, sol.ProblemID)
	require.Len(t, sol.ProposedActions, 3)

	climb := sol.ProposedActions[0]
	assert.Equal(t, "altitude_change", climb.Action)
	assert.Equal(t, float64(maxAltitudeFt), climb.NewAltitudeFt, "altitude capped at FL410")

	slow := sol.ProposedActions[1]
	assert.Equal(t, "speed_change", slow.Action)
	assert.Equal(t, float64(minSpeedKt), slow.NewSpeedKt, "speed floored at 300kt")

	shift := sol.ProposedActions[2]
	assert.Equal(t, "departure_shift", shift.Action)
	assert.Equal(t, 5, shift.DelayMinutes)

	assert.Equal(t, 5, sol.EstimatedImpact.TotalDelayMinutes)
	assert.Equal(t, 300, sol.EstimatedImpact.AffectedPassengers)
	assert.True(t, sol.RequiresApproval)
}

func TestRulesSolutionsSharedOrigin(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	// A shared origin raises a separation conflict and a congestion
	// hotspot; each gets its own solution.
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "BOS"}, 40000, 450, dep),
		flight("FLT-002", []string{"JFK", "ORD"}, 39000, 310, dep.Add(10*time.Minute)),
	}

	res := Analyzer{}.Analyze(flights)
	require.Len(t, res.Conflicts, 1)
	require.Len(t, res.Hotspots, 1)

	solutions := GenerateRules(res, flights)
	require.Len(t, solutions, 2)
	assert.Equal(t, "multi_action", solutions[0].SolutionType)
	assert.Equal(t, res.Conflicts[0].ConflictID, solutions[0].ProblemID)
	assert.Equal(t, "speed_adjustment", solutions[1].SolutionType)
	assert.Equal(t, res.Hotspots[0].HotspotID, solutions[1].ProblemID)
}

func TestRulesSolutionsForHotspotLimitsFlights(t *testing.T) {
	hotspot := event.Hotspot{
		HotspotID:       "HOTSPOT-TEST",
		AffectedFlights: []string{"FLT-001", "FLT-002", "FLT-003", "FLT-004", "FLT-005"},
	}

	solutions := GenerateRules(Result{Hotspots: []event.Hotspot{hotspot}}, nil)
	require.Len(t, solutions, 1)

	sol := solutions[0]
	assert.Equal(t, "speed_adjustment", sol.SolutionType)
	assert.Len(t, sol.AffectedFlights, 3)
	assert.Len(t, sol.ProposedActions, 3)
	for _, a := range sol.ProposedActions {
		assert.Equal(t, "speed_reduction", a.Action)
		assert.Equal(t, float64(-hotspotSlowKt), a.SpeedChangeKnots)
	}
	assert.False(t, sol.RequiresApproval)
	assert.Equal(t, 450, sol.EstimatedImpact.AffectedPassengers)
}

// stubSolutionModel fakes the delegated solution model.
type stubSolutionModel struct {
	solutions []event.Solution
	err       error
}

func (m *stubSolutionModel) CompleteJSON(_ context.Context, _ llm.Request, out any) error {
	if m.err != nil {
		return m.err
	}
	raw, err := json.Marshal(map[string]any{"solutions": m.solutions})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func TestGeneratorDelegatedFallsBackToRules(t *testing.T) {
	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	flights := []event.Flight{
		flight("FLT-001", []string{"JFK", "BOS"}, 35000, 450, dep),
		flight("FLT-002", []string{"JFK", "ORD"}, 36000, 440, dep.Add(10*time.Minute)),
	}
	res := Analyzer{}.Analyze(flights)
	require.NotEmpty(t, res.Conflicts)

	g := NewGenerator(&stubSolutionModel{err: errors.New("model down")}, nil)
	solutions := g.Generate(context.Background(), res, flights, true)
	require.NotEmpty(t, solutions)
	assert.Equal(t, "rules-engine", solutions[0].GeneratedBy)
}

func TestGeneratorDelegatedUsesModelOutput(t *testing.T) {
	model := &stubSolutionModel{solutions: []event.Solution{{
		SolutionType:    "altitude_change",
		ProblemID:       "CONF-X",
		AffectedFlights: []string{"FLT-001"},
	}}}

	g := NewGenerator(model, nil)
	solutions := g.Generate(context.Background(), Result{}, nil, true)
	require.Len(t, solutions, 1)
	assert.Equal(t, "llm", solutions[0].GeneratedBy)
	assert.NotEmpty(t, solutions[0].SolutionID)
}
