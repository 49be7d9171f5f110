package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/chronos/event"
)

func conflictEvent(severity event.Severity, level string) event.Envelope {
	return event.New("insight", severity, "airspace-sector-1", "conflict detected").
		WithDetails(event.Conflict{
			ConflictID:    "CONF-TEST0001",
			SeverityLevel: level,
		})
}

func TestShouldTriggerPlanConflict(t *testing.T) {
	tests := []struct {
		name     string
		severity event.Severity
		level    string
		want     bool
	}{
		{"warning envelope high level", event.SeverityWarning, "high", true},
		{"critical envelope critical level", event.SeverityCritical, "critical", true},
		{"moderate envelope high level", event.SeverityModerate, "HIGH", true},
		{"info envelope high level", event.SeverityInfo, "high", false},
		{"warning envelope medium level", event.SeverityWarning, "medium", false},
		{"warning envelope low level", event.SeverityWarning, "low", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := conflictEvent(tt.severity, tt.level)
			assert.Equal(t, tt.want, shouldTriggerPlan(env, kindAirspaceConflict))
		})
	}
}

func TestShouldTriggerPlanConflictWithoutDetails(t *testing.T) {
	env := event.New("insight", event.SeverityCritical, "airspace-sector-1", "conflict detected")
	assert.False(t, shouldTriggerPlan(env, kindAirspaceConflict))
}

func TestShouldTriggerPlanPowerFailure(t *testing.T) {
	critical := event.New("grid-monitor", event.SeverityCritical, "sector-5", "voltage collapse")
	assert.True(t, shouldTriggerPlan(critical, kindPowerFailure))

	airportWarning := event.New("grid-monitor", event.SeverityWarning, "KORD-substation", "voltage sag")
	assert.True(t, shouldTriggerPlan(airportWarning, kindPowerFailure))

	residentialWarning := event.New("grid-monitor", event.SeverityWarning, "residential-2", "voltage sag")
	assert.False(t, shouldTriggerPlan(residentialWarning, kindPowerFailure))
}

func TestShouldTriggerPlanUnknownKind(t *testing.T) {
	env := event.New("grid-monitor", event.SeverityCritical, "sector-5", "voltage collapse")
	assert.False(t, shouldTriggerPlan(env, "weather_cell"))
}
