package event

// Topic catalogue. The transport guarantees at-least-once delivery and
// per-topic ordering per producer; nothing here assumes more than that.
const (
	// Grid and recovery topics.
	TopicPowerFailure = "chronos.events.power.failure"
	TopicRecoveryPlan = "chronos.events.recovery.plan"
	TopicSystemAction = "chronos.events.system.action"

	// Airspace topics.
	TopicFlightParsed      = "chronos.events.airspace.flight.parsed"
	TopicConflictDetected  = "chronos.events.airspace.conflict.detected"
	TopicHotspotDetected   = "chronos.events.airspace.hotspot.detected"
	TopicSolutionProposed  = "chronos.events.airspace.solution.proposed"
	TopicMitigationApplied = "chronos.events.airspace.mitigation.applied"
	TopicReportReady       = "chronos.events.airspace.report.ready"

	// Task fan-out topics consumed by remote task agents.
	TopicTaskDeconflict        = "chronos.tasks.airspace.deconflict"
	TopicTaskHotspotMitigation = "chronos.tasks.airspace.hotspot_mitigation"
	TopicTaskPartialSolution   = "chronos.tasks.airspace.partial_solution"

	// Geospatial overlay topics consumed by the dashboard.
	TopicGeoIncident = "chronos.events.geo.incident"
	TopicGeoRiskArea = "chronos.events.geo.risk_area"
)
