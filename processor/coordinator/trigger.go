package coordinator

import (
	"strings"

	"github.com/c360studio/chronos/event"
)

// Trigger event kinds.
const (
	kindPowerFailure     = "power_failure"
	kindAirspaceConflict = "airspace_conflict"
)

// shouldTriggerPlan decides whether an event starts recovery planning.
//
// A conflict triggers when its envelope severity is warning or above AND the
// conflict's own severity level is high or critical. A power failure
// triggers when it is critical anywhere, or at any severity in an airport
// region.
func shouldTriggerPlan(env event.Envelope, kind string) bool {
	switch kind {
	case kindAirspaceConflict:
		switch env.Severity {
		case event.SeverityWarning, event.SeverityModerate, event.SeverityCritical:
		default:
			return false
		}
		var conflict event.Conflict
		if err := env.DecodeDetails(&conflict); err != nil {
			return false
		}
		level := strings.ToLower(conflict.SeverityLevel)
		return level == "high" || level == "critical"

	case kindPowerFailure:
		if env.Severity == event.SeverityCritical {
			return true
		}
		return isAirportRegion(env.SectorID)
	}

	return false
}
