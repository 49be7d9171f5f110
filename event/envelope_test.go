package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeUnmarshalDefaultsSeverity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Severity
	}{
		{
			name: "missing severity defaults to info",
			raw:  `{"event_id":"e1","sector_id":"grid-sector-4"}`,
			want: SeverityInfo,
		},
		{
			name: "unknown severity defaults to info",
			raw:  `{"event_id":"e2","severity":"catastrophic"}`,
			want: SeverityInfo,
		},
		{
			name: "legacy error level defaults to info",
			raw:  `{"event_id":"e3","severity":"error"}`,
			want: SeverityInfo,
		},
		{
			name: "critical preserved",
			raw:  `{"event_id":"e4","severity":"critical"}`,
			want: SeverityCritical,
		},
		{
			name: "moderate preserved",
			raw:  `{"event_id":"e5","severity":"moderate"}`,
			want: SeverityModerate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Envelope
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &e))
			assert.Equal(t, tt.want, e.Severity)
		})
	}
}

func TestEnvelopeUnmarshalGeneratesEventID(t *testing.T) {
	var e Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"severity":"info"}`), &e))
	assert.NotEmpty(t, e.EventID)
}

func TestNewEnvelope(t *testing.T) {
	e := New("coordinator", SeverityWarning, "grid-sector-7", "voltage sag")

	assert.NotEmpty(t, e.EventID)
	assert.WithinDuration(t, time.Now(), e.Timestamp, 5*time.Second)
	assert.Equal(t, "coordinator", e.Source)
	assert.Equal(t, SeverityWarning, e.Severity)
	assert.Equal(t, "grid-sector-7", e.SectorID)

	// Invalid severities are normalized at construction too.
	e2 := New("coordinator", Severity("bogus"), "s", "")
	assert.Equal(t, SeverityInfo, e2.Severity)
}

func TestEnvelopeDetailsRoundTrip(t *testing.T) {
	reading := PowerReading{Voltage: 42.5, Load: 61}
	e := New("grid-sim", SeverityModerate, "grid-sector-2", "low voltage").WithDetails(reading)

	var got PowerReading
	require.NoError(t, e.DecodeDetails(&got))
	assert.Equal(t, reading, got)
}

func TestEnvelopeDecodeEmptyDetails(t *testing.T) {
	var got PowerReading
	e := New("grid-sim", SeverityInfo, "s", "")
	require.NoError(t, e.DecodeDetails(&got))
	assert.Zero(t, got.Voltage)
}

func TestPartialSolutionValidate(t *testing.T) {
	p := PartialSolution{AgentName: "deconflict-agent"}
	assert.Error(t, p.Validate())

	p.TaskID = "TASK-DECONF-AB12CD34"
	assert.NoError(t, p.Validate())
}
