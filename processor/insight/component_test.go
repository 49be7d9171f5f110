// Package insight tests cover configuration validation, flight collection
// and dedup, severity mapping, geo overlay construction, and report
// assembly. Flows that need a running NATS server (batch publishing,
// ledger-backed suppression end to end) are integration concerns and not
// exercised here.
package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/chronos/component"
	"github.com/c360studio/chronos/config"
	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/trajectory"
)

func newTestComponent(t *testing.T) *Component {
	t.Helper()
	c, err := NewComponent(DefaultConfig(), trajectory.NewGenerator(nil, nil), nil, component.Dependencies{})
	require.NoError(t, err)
	return c
}

func TestNewComponentValidation(t *testing.T) {
	gen := trajectory.NewGenerator(nil, nil)

	_, err := NewComponent(DefaultConfig(), nil, nil, component.Dependencies{})
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.SolutionMode = "autopilot"
	_, err = NewComponent(bad, gen, nil, component.Dependencies{})
	assert.Error(t, err)

	// Zero values fall back to defaults.
	c, err := NewComponent(Config{}, gen, nil, component.Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, c.config.CollectionWindow)
	assert.Equal(t, config.ModeDeterministic, c.config.SolutionMode)
}

func TestStartWithoutBusFails(t *testing.T) {
	c := newTestComponent(t)
	err := c.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Health().Healthy)
}

func flightEvent(correlationID, flightID, planID string) event.Envelope {
	return event.New("flight-parser", event.SeverityInfo, sectorID, "flight parsed").
		WithDetails(event.Flight{FlightID: flightID, PlanID: planID}).
		Correlate(correlationID)
}

func TestCollectDeduplicatesFlights(t *testing.T) {
	c := newTestComponent(t)
	ctx := context.Background()

	c.collect(ctx, flightEvent("corr-1", "UA100", "PLAN-1"))
	c.collect(ctx, flightEvent("corr-1", "UA100", "PLAN-1"))
	c.collect(ctx, flightEvent("corr-1", "DL200", ""))

	col := c.collections["corr-1"]
	require.NotNil(t, col)
	defer col.timer.Stop()

	assert.Len(t, col.flights, 2)
	assert.Equal(t, "PLAN-1", col.planID)
	assert.Equal(t, int64(2), c.flightsCollected.Load())
}

func TestCollectSkipsMissingCorrelation(t *testing.T) {
	c := newTestComponent(t)

	env := event.New("flight-parser", event.SeverityInfo, sectorID, "flight parsed").
		WithDetails(event.Flight{FlightID: "UA100"})
	c.collect(context.Background(), env)

	assert.Empty(t, c.collections)
}

func TestCollectSeparatesCorrelations(t *testing.T) {
	c := newTestComponent(t)
	ctx := context.Background()

	c.collect(ctx, flightEvent("corr-a", "UA100", ""))
	c.collect(ctx, flightEvent("corr-b", "UA100", ""))

	require.Len(t, c.collections, 2)
	for _, col := range c.collections {
		col.timer.Stop()
		assert.Len(t, col.flights, 1)
	}
}

func TestAnalysisSeverity(t *testing.T) {
	assert.Equal(t, event.SeverityWarning, analysisSeverity("high"))
	assert.Equal(t, event.SeverityWarning, analysisSeverity("CRITICAL"))
	assert.Equal(t, event.SeverityInfo, analysisSeverity("medium"))
	assert.Equal(t, event.SeverityInfo, analysisSeverity("low"))
	assert.Equal(t, event.SeverityInfo, analysisSeverity(""))
}

func TestGeoSeverity(t *testing.T) {
	assert.Equal(t, event.SeverityModerate, geoSeverity("high"))
	assert.Equal(t, event.SeverityWarning, geoSeverity("medium"))
	assert.Equal(t, event.SeverityInfo, geoSeverity("low"))
}

func TestGeoIncidentFromConflict(t *testing.T) {
	c := newTestComponent(t)

	conflict := event.Conflict{
		ConflictID:    "CONF-ABCD1234",
		SeverityLevel: "high",
		FlightIDs:     []string{"UA100", "DL200", "AA300", "SW400"},
		Location:      event.Location{Latitude: 39.8283, Longitude: -98.5795},
	}
	env := c.geoIncident(conflict, "corr-1")

	assert.Equal(t, event.SeverityModerate, env.Severity)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Contains(t, env.Summary, "(+1 more)")

	var incident event.GeoIncident
	require.NoError(t, env.DecodeDetails(&incident))
	assert.Equal(t, "GEO-CONF-ABCD1234", incident.ID)
	assert.Equal(t, "Point", incident.Geometry.Type)
	assert.Equal(t, []float64{-98.5795, 39.8283}, incident.Geometry.Coordinates)
	assert.Equal(t, "#FF0000", incident.Style.Color)
	assert.InDelta(t, 0.7, incident.Style.Opacity, 1e-9)
	assert.Equal(t, "airspace_conflict", incident.IncidentType)
	assert.Equal(t, "active", incident.Status)
}

func TestGeoRiskAreaRadius(t *testing.T) {
	c := newTestComponent(t)

	tests := []struct {
		name       string
		hotspot    event.Hotspot
		wantRadius float64
	}{
		{
			name: "regional capped at 30km",
			hotspot: event.Hotspot{
				HotspotID: "HOTSPOT-1",
				Severity:  "high",
				Location:  event.Location{RadiusNM: 25},
			},
			wantRadius: 30000,
		},
		{
			name: "regional by flight count",
			hotspot: event.Hotspot{
				HotspotID:    "HOTSPOT-2",
				Severity:     "low",
				CurrentCount: 5,
				Location:     event.Location{RadiusNM: 5},
			},
			wantRadius: 10000,
		},
		{
			name: "local capped at 5km",
			hotspot: event.Hotspot{
				HotspotID: "HOTSPOT-3",
				Severity:  "low",
				Density:   0.3,
				Location:  event.Location{RadiusNM: 25},
			},
			wantRadius: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := c.geoRiskArea(tt.hotspot, "corr-1")

			var area event.GeoRiskArea
			require.NoError(t, env.DecodeDetails(&area))
			assert.Equal(t, "GEO-"+tt.hotspot.HotspotID, area.ID)
			assert.Equal(t, "Circle", area.Geometry.Type)
			assert.InDelta(t, tt.wantRadius, area.Geometry.RadiusMeters, 1e-9)
			assert.InDelta(t, 0.35, area.Style.Opacity, 1e-9)
			assert.Equal(t, "airspace_congestion", area.RiskType)
		})
	}
}

func TestBuildReport(t *testing.T) {
	summary := trajectory.Summary{
		TotalFlights:      4,
		ConflictsDetected: 1,
		HotspotsDetected:  1,
		SolutionsProposed: 2,
	}
	report := buildReport("PLAN-1", summary,
		[]string{"CONF-1"}, []string{"HOTSPOT-1"}, []string{"SOL-1", "SOL-2"})

	assert.Regexp(t, `^RPT-\d{8}-[0-9A-F]{8}$`, report.ReportID)
	assert.Equal(t, "trajectory_analysis", report.ReportType)
	assert.Equal(t, "/reports/"+report.ReportID+".json", report.ReportURL)
	assert.Equal(t, 4, report.TotalFlights)
	assert.Equal(t, 2, report.SolutionsProposed)
	assert.Equal(t, []string{"CONF-1"}, report.ConflictRefs)
	assert.True(t, report.PeriodEnd.After(report.PeriodStart))
}

func TestStopWhenNotRunning(t *testing.T) {
	c := newTestComponent(t)
	assert.NoError(t, c.Stop(time.Second))
}

func TestMetaAndHealth(t *testing.T) {
	c := newTestComponent(t)

	meta := c.Meta()
	assert.Equal(t, "trajectory-insight", meta.Name)
	assert.Equal(t, "processor", meta.Type)

	health := c.Health()
	assert.False(t, health.Healthy)
	assert.Equal(t, "stopped", health.Status)
}
