package coordinator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/chronos/event"
)

func TestCrisisContextPowerStateKeepsLatestPerSector(t *testing.T) {
	ctx := newCrisisContext()

	first := event.New("grid-monitor", event.SeverityWarning, "sector-7", "voltage sag")
	second := event.New("grid-monitor", event.SeverityCritical, "sector-7", "voltage collapse")
	ctx.updatePower(first)
	ctx.updatePower(second)

	require.Len(t, ctx.powerState, 1)
	assert.Equal(t, second.EventID, ctx.powerState["sector-7"].EventID)
	assert.Equal(t, event.SeverityCritical, ctx.powerState["sector-7"].Severity)
}

func TestCrisisContextConflictRingBounded(t *testing.T) {
	ctx := newCrisisContext()

	for i := 0; i < airspaceHistory+5; i++ {
		env := event.New("insight", event.SeverityWarning, "airspace-sector-1",
			fmt.Sprintf("conflict %d", i))
		ctx.updateConflict(env)
	}

	require.Len(t, ctx.conflicts, airspaceHistory)
	assert.Equal(t, fmt.Sprintf("conflict %d", airspaceHistory+4),
		ctx.conflicts[len(ctx.conflicts)-1].Summary)
	assert.Equal(t, "conflict 5", ctx.conflicts[0].Summary)
}

func TestCrisisContextPrioritiesAppendOnce(t *testing.T) {
	ctx := newCrisisContext()

	hospital := event.New("grid-monitor", event.SeverityWarning, "hospital-district-3", "power failure")
	ctx.updatePriorities(hospital)
	ctx.updatePriorities(hospital)

	assert.Equal(t, []string{"hospital-district-3"}, ctx.priorities.Hospitals)

	// Keyword match on the summary, not just the sector id.
	medevac := event.New("insight", event.SeverityWarning, "sector-2", "Medevac helicopter inbound")
	ctx.updatePriorities(medevac)
	assert.Equal(t, []string{"sector-2"}, ctx.priorities.Medevac)

	airport := event.New("grid-monitor", event.SeverityCritical, "KORD-substation", "outage")
	ctx.updatePriorities(airport)
	assert.Equal(t, []string{"kord-substation"}, ctx.priorities.Airport)
}

func TestCrisisContextSnapshotIsolation(t *testing.T) {
	ctx := newCrisisContext()
	ctx.updatePower(event.New("grid-monitor", event.SeverityWarning, "sector-1", "sag"))
	ctx.updateConflict(event.New("insight", event.SeverityWarning, "airspace-sector-1", "conflict"))
	ctx.updatePriorities(event.New("grid-monitor", event.SeverityWarning, "airport-west", "outage"))

	snap := ctx.snapshot()

	ctx.updatePower(event.New("grid-monitor", event.SeverityCritical, "sector-9", "collapse"))
	ctx.updateConflict(event.New("insight", event.SeverityCritical, "airspace-sector-1", "another conflict"))
	ctx.updatePriorities(event.New("grid-monitor", event.SeverityWarning, "hospital-east", "outage"))

	assert.Len(t, snap.PowerState, 1)
	assert.Len(t, snap.AirspaceState.Conflicts, 1)
	assert.Empty(t, snap.Priorities.Hospitals)
	assert.Equal(t, []string{"airport-west"}, snap.Priorities.Airport)
}

func TestIsAirportRegion(t *testing.T) {
	assert.True(t, isAirportRegion("KJFK-terminal-area"))
	assert.True(t, isAirportRegion("runway-sector-9"))
	assert.False(t, isAirportRegion("residential-district-2"))
}
