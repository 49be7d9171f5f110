// Package event defines the shared event envelope, severity levels, and
// topic catalogue used by all chronos processors. Every message on the bus
// is an Envelope whose Details field carries a topic-specific payload.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity is the envelope severity level.
type Severity string

// Envelope severity levels, ordered from least to most urgent.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a recognized severity level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityModerate, SeverityCritical:
		return true
	}
	return false
}

// Envelope is the common wire format for all chronos events. Producers may
// omit fields; consumers must tolerate that. Severity defaults to info when
// absent or unrecognized; malformed events are normalized, never rejected.
type Envelope struct {
	EventID       string          `json:"event_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Severity      Severity        `json:"severity"`
	SectorID      string          `json:"sector_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

// New creates an envelope with a fresh event ID and the current timestamp.
func New(source string, severity Severity, sectorID, summary string) Envelope {
	if !severity.Valid() {
		severity = SeverityInfo
	}
	return Envelope{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Severity:  severity,
		SectorID:  sectorID,
		Summary:   summary,
	}
}

// UnmarshalJSON decodes an envelope and normalizes missing fields: an absent
// or unknown severity becomes info, and an absent event ID is generated.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Envelope(raw)
	if !e.Severity.Valid() {
		e.Severity = SeverityInfo
	}
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	return nil
}

// WithDetails marshals v into the envelope's Details field. Marshal errors
// leave Details untouched; payload types here marshal without error.
func (e Envelope) WithDetails(v any) Envelope {
	data, err := json.Marshal(v)
	if err != nil {
		return e
	}
	e.Details = data
	return e
}

// DecodeDetails unmarshals the envelope's Details field into v.
func (e Envelope) DecodeDetails(v any) error {
	if len(e.Details) == 0 {
		return nil
	}
	return json.Unmarshal(e.Details, v)
}

// Correlate sets the correlation ID and returns the envelope.
func (e Envelope) Correlate(correlationID string) Envelope {
	e.CorrelationID = correlationID
	return e
}
