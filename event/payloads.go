package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Flight is the payload of airspace.flight.parsed events.
type Flight struct {
	FlightID      string    `json:"flight_id"`
	Callsign      string    `json:"callsign,omitempty"`
	AircraftType  string    `json:"aircraft_type,omitempty"`
	Origin        string    `json:"origin,omitempty"`
	Destination   string    `json:"destination,omitempty"`
	DepartureTime time.Time `json:"departure_time,omitempty"`
	ArrivalTime   time.Time `json:"arrival_time,omitempty"`
	Route         []string  `json:"route,omitempty"`
	AltitudeFt    float64   `json:"altitude,omitempty"`
	SpeedKt       float64   `json:"speed,omitempty"`
	PlanID        string    `json:"plan_id,omitempty"`
}

// Validate checks the minimum fields a flight needs for analysis.
func (f *Flight) Validate() error {
	if f.FlightID == "" {
		return fmt.Errorf("flight_id is required")
	}
	return nil
}

// Location is a point in the airspace.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeFt float64 `json:"altitude,omitempty"`
	RadiusNM   float64 `json:"radius_nm,omitempty"`
}

// Conflict is the payload of airspace.conflict.detected events: a pair of
// flights violating the minimum separation standard.
type Conflict struct {
	ConflictID      string    `json:"conflict_id"`
	ConflictType    string    `json:"conflict_type"`
	SeverityLevel   string    `json:"severity_level"`
	FlightIDs       []string  `json:"flight_ids"`
	Location        Location  `json:"conflict_location"`
	ConflictTime    time.Time `json:"conflict_time"`
	MinSeparationNM float64   `json:"minimum_separation"`
	ReqSeparationNM float64   `json:"required_separation"`
	DurationSec     float64   `json:"conflict_duration"`
	DetectionMethod string    `json:"detection_method"`
}

// Hotspot is the payload of airspace.hotspot.detected events: a
// spatio-temporal cluster of flights exceeding a density threshold.
type Hotspot struct {
	HotspotID       string    `json:"hotspot_id"`
	HotspotType     string    `json:"hotspot_type"`
	Location        Location  `json:"location"`
	AffectedFlights []string  `json:"affected_flights"`
	Severity        string    `json:"severity"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Density         float64   `json:"density"`
	CapacityLimit   int       `json:"capacity_limit"`
	CurrentCount    int       `json:"current_count"`
	Description     string    `json:"description,omitempty"`
}

// Violation is a per-flight rule violation found during trajectory analysis.
type Violation struct {
	ViolationID   string  `json:"violation_id"`
	FlightID      string  `json:"flight_id"`
	ViolationType string  `json:"violation_type"`
	Severity      string  `json:"severity"`
	Description   string  `json:"description"`
	Value         float64 `json:"value"`
	Threshold     float64 `json:"threshold"`
}

// ProposedAction is one mitigation action within a solution.
type ProposedAction struct {
	FlightID         string   `json:"flight_id"`
	Action           string   `json:"action"`
	NewWaypoints     []string `json:"new_waypoints,omitempty"`
	NewAltitudeFt    float64  `json:"new_altitude,omitempty"`
	SpeedChangeKnots float64  `json:"speed_change_knots,omitempty"`
	NewSpeedKt       float64  `json:"new_speed,omitempty"`
	DelayMinutes     int      `json:"delay_minutes"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// Impact estimates the operational cost of applying a solution.
type Impact struct {
	TotalDelayMinutes  int     `json:"total_delay_minutes"`
	FuelImpactPercent  float64 `json:"fuel_impact_percent"`
	AffectedPassengers int     `json:"affected_passengers"`
}

// Solution is the payload of airspace.solution.proposed events.
type Solution struct {
	SolutionID       string           `json:"solution_id"`
	SolutionType     string           `json:"solution_type"`
	ProblemID        string           `json:"problem_id,omitempty"`
	AffectedFlights  []string         `json:"affected_flights"`
	ProposedActions  []ProposedAction `json:"proposed_actions"`
	EstimatedImpact  Impact           `json:"estimated_impact"`
	ConfidenceScore  float64          `json:"confidence_score"`
	GeneratedBy      string           `json:"generated_by"`
	RequiresApproval bool             `json:"requires_approval"`
	Contributors     []string         `json:"contributors,omitempty"`
}

// PartialSolution is one contributor's proposal for a dispatched task,
// delivered on chronos.tasks.airspace.partial_solution.
type PartialSolution struct {
	TaskID          string           `json:"task_id"`
	AgentName       string           `json:"agent_name"`
	SolutionType    string           `json:"solution_type,omitempty"`
	ProblemID       string           `json:"problem_id,omitempty"`
	AffectedFlights []string         `json:"affected_flights,omitempty"`
	ProposedActions []ProposedAction `json:"proposed_actions,omitempty"`
	ConfidenceScore float64          `json:"confidence_score"`
}

// Validate checks the fields the aggregator depends on.
func (p *PartialSolution) Validate() error {
	if p.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	return nil
}

// TaskAssignment is the payload of chronos.tasks.airspace.* fan-out events.
// Exactly one of Conflict or Hotspot is set, matching TaskType.
type TaskAssignment struct {
	TaskID    string    `json:"task_id"`
	TaskType  string    `json:"task_type"`
	Conflict  *Conflict `json:"conflict,omitempty"`
	Hotspot   *Hotspot  `json:"hotspot,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PowerReading holds the grid telemetry carried by power.failure events.
type PowerReading struct {
	Voltage float64 `json:"voltage"`
	Load    float64 `json:"load"`
}

// StateRecord is the per-event snapshot retained in crisis context state.
type StateRecord struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  Severity        `json:"severity"`
	Summary   string          `json:"summary,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// AirspaceSnapshot holds the retained conflict and hotspot history.
type AirspaceSnapshot struct {
	Conflicts []StateRecord `json:"conflicts"`
	Hotspots  []StateRecord `json:"hotspots"`
}

// PrioritySets lists sectors hosting priority facilities. Sets are
// append-once: a sector is never removed for the process lifetime.
type PrioritySets struct {
	Hospitals []string `json:"hospitals"`
	Airport   []string `json:"airport"`
	Medevac   []string `json:"medevac"`
}

// ContextSnapshot is the crisis context attached to generated plans.
type ContextSnapshot struct {
	PowerState    map[string]StateRecord `json:"power_state"`
	AirspaceState AirspaceSnapshot       `json:"airspace_state"`
	Priorities    PrioritySets           `json:"priorities"`
	Timestamp     time.Time              `json:"context_timestamp"`
}

// RecoveryPlan is the payload of recovery.plan events. Plans are immutable
// once published; PlanID is globally unique.
type RecoveryPlan struct {
	PlanID              string           `json:"plan_id"`
	PlanName            string           `json:"plan_name"`
	Status              string           `json:"status"`
	Steps               []string         `json:"steps"`
	EstimatedCompletion time.Time        `json:"estimated_completion"`
	AssignedWorkers     []string         `json:"assigned_workers"`
	Reasoning           string           `json:"reasoning"`
	CrisisContext       *ContextSnapshot `json:"crisis_context,omitempty"`
	TriggerEventType    string           `json:"trigger_event_type,omitempty"`
	TriggerEventID      string           `json:"trigger_event_id,omitempty"`
}

// SystemAction is the payload of system.action events published alongside
// every recovery plan.
type SystemAction struct {
	ActionType    string   `json:"action_type"`
	PlanID        string   `json:"plan_id"`
	PlanName      string   `json:"plan_name"`
	Executor      string   `json:"executor"`
	RecoveryMode  string   `json:"recovery_mode"`
	Status        string   `json:"status"`
	RelatedEvents []string `json:"related_events,omitempty"`
}

// Mitigation is the payload of airspace.mitigation.applied events.
type Mitigation struct {
	MitigationID    string           `json:"mitigation_id"`
	SolutionID      string           `json:"solution_id"`
	SolutionType    string           `json:"solution_type,omitempty"`
	AppliedAt       time.Time        `json:"applied_at"`
	AppliedBy       string           `json:"applied_by"`
	DemoMode        bool             `json:"demo_mode"`
	AffectedFlights []string         `json:"affected_flights,omitempty"`
	ProposedActions []ProposedAction `json:"proposed_actions,omitempty"`
}

// Geometry describes a geo overlay shape. Coordinates are [lon, lat].
type Geometry struct {
	Type         string    `json:"type"`
	Coordinates  []float64 `json:"coordinates"`
	RadiusMeters float64   `json:"radius_meters,omitempty"`
}

// Style controls how the dashboard renders a geo overlay.
type Style struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Outline bool    `json:"outline"`
}

// GeoIncident is the payload of geo.incident events.
type GeoIncident struct {
	ID           string   `json:"id"`
	Geometry     Geometry `json:"geometry"`
	Style        Style    `json:"style"`
	IncidentType string   `json:"incident_type"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
}

// GeoRiskArea is the payload of geo.risk_area events.
type GeoRiskArea struct {
	ID          string   `json:"id"`
	Geometry    Geometry `json:"geometry"`
	Style       Style    `json:"style"`
	RiskLevel   string   `json:"risk_level"`
	RiskType    string   `json:"risk_type"`
	Description string   `json:"description"`
}

// Report is the payload of airspace.report.ready events.
type Report struct {
	ReportID          string    `json:"report_id"`
	ReportType        string    `json:"report_type"`
	PeriodStart       time.Time `json:"report_period_start"`
	PeriodEnd         time.Time `json:"report_period_end"`
	ReportURL         string    `json:"report_url"`
	ReportFormat      string    `json:"report_format"`
	TotalFlights      int       `json:"total_flights"`
	ConflictsDetected int       `json:"conflicts_detected"`
	HotspotsDetected  int       `json:"hotspots_detected"`
	SolutionsProposed int       `json:"solutions_proposed"`
	GeneratedBy       string    `json:"generated_by"`
	ConflictRefs      []string  `json:"conflict_references,omitempty"`
	HotspotRefs       []string  `json:"hotspot_references,omitempty"`
	SolutionRefs      []string  `json:"solution_references,omitempty"`
}
