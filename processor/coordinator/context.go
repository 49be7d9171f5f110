package coordinator

import (
	"strings"
	"time"

	"github.com/c360studio/chronos/event"
)

// Retained history depth for airspace conflicts and hotspots.
const airspaceHistory = 10

// Sector or summary keywords that mark priority facilities.
var (
	airportKeywords = []string{
		"airport", "terminal", "runway", "tower",
		"kord", "kjfk", "klax", "kdfw", "kmia", "ksea",
	}
	hospitalKeywords = []string{"hospital", "medical", "clinic", "emergency"}
	medevacKeywords  = []string{"medevac", "helicopter", "ambulance"}
)

// crisisContext fuses power and airspace events into the shared situation
// picture attached to recovery plans. It is owned by the orchestration
// goroutine and never accessed concurrently.
type crisisContext struct {
	powerState  map[string]event.StateRecord
	conflicts   []event.StateRecord
	hotspots    []event.StateRecord
	priorities  event.PrioritySets
	lastUpdated time.Time
}

func newCrisisContext() *crisisContext {
	return &crisisContext{
		powerState: make(map[string]event.StateRecord),
		priorities: event.PrioritySets{
			Hospitals: []string{},
			Airport:   []string{},
			Medevac:   []string{},
		},
	}
}

func record(env event.Envelope) event.StateRecord {
	return event.StateRecord{
		EventID:   env.EventID,
		Timestamp: env.Timestamp,
		Severity:  env.Severity,
		Summary:   env.Summary,
		Details:   env.Details,
	}
}

// updatePower keeps the latest reading per sector.
func (c *crisisContext) updatePower(env event.Envelope) {
	sector := env.SectorID
	if sector == "" {
		sector = "unknown"
	}
	c.powerState[sector] = record(env)
	c.lastUpdated = time.Now().UTC()
}

// updateConflict appends to the conflict ring, keeping the latest entries.
func (c *crisisContext) updateConflict(env event.Envelope) {
	c.conflicts = appendBounded(c.conflicts, record(env))
	c.lastUpdated = time.Now().UTC()
}

// updateHotspot appends to the hotspot ring, keeping the latest entries.
func (c *crisisContext) updateHotspot(env event.Envelope) {
	c.hotspots = appendBounded(c.hotspots, record(env))
	c.lastUpdated = time.Now().UTC()
}

func appendBounded(records []event.StateRecord, r event.StateRecord) []event.StateRecord {
	records = append(records, r)
	if len(records) > airspaceHistory {
		records = records[len(records)-airspaceHistory:]
	}
	return records
}

// updatePriorities marks the event's sector as a priority facility when its
// id or summary matches a facility keyword. Sets grow monotonically.
func (c *crisisContext) updatePriorities(env event.Envelope) {
	sector := strings.ToLower(env.SectorID)
	summary := strings.ToLower(env.Summary)

	if matchesAny(sector, summary, hospitalKeywords) {
		c.priorities.Hospitals = appendOnce(c.priorities.Hospitals, sector)
	}
	if matchesAny(sector, summary, airportKeywords) {
		c.priorities.Airport = appendOnce(c.priorities.Airport, sector)
	}
	if matchesAny(sector, summary, medevacKeywords) {
		c.priorities.Medevac = appendOnce(c.priorities.Medevac, sector)
	}
}

func matchesAny(sector, summary string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(sector, kw) || strings.Contains(summary, kw) {
			return true
		}
	}
	return false
}

func appendOnce(set []string, sector string) []string {
	for _, s := range set {
		if s == sector {
			return set
		}
	}
	return append(set, sector)
}

// snapshot deep-copies the context for attachment to a plan, so later
// updates cannot mutate a published plan.
func (c *crisisContext) snapshot() *event.ContextSnapshot {
	power := make(map[string]event.StateRecord, len(c.powerState))
	for k, v := range c.powerState {
		power[k] = v
	}

	return &event.ContextSnapshot{
		PowerState: power,
		AirspaceState: event.AirspaceSnapshot{
			Conflicts: append([]event.StateRecord(nil), c.conflicts...),
			Hotspots:  append([]event.StateRecord(nil), c.hotspots...),
		},
		Priorities: event.PrioritySets{
			Hospitals: append([]string(nil), c.priorities.Hospitals...),
			Airport:   append([]string(nil), c.priorities.Airport...),
			Medevac:   append([]string(nil), c.priorities.Medevac...),
		},
		Timestamp: c.lastUpdated,
	}
}

// isAirportRegion reports whether a sector id names an airport region.
func isAirportRegion(sectorID string) bool {
	lower := strings.ToLower(sectorID)
	for _, kw := range airportKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
