// Package trajectory analyzes batches of flight plans for separation
// conflicts, congestion hotspots, and rule violations, and proposes
// mitigation solutions.
package trajectory

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/chronos/event"
)

// Defaults applied to flights that omit trajectory fields.
const (
	defaultAltitudeFt = 35000
	defaultSpeedKt    = 450
)

// Detection thresholds.
const (
	altitudeProximityFt  = 2000
	departureOverlap     = time.Hour
	requiredSeparationNM = 5.0
	feetPerNM            = 6076.12
	minAltitudeFt        = 10000
	maxSpeedKt           = 500
	hotspotMinFlights    = 2
	hotspotCapacity      = 50
)

// Summary holds batch-level analysis statistics.
type Summary struct {
	TotalFlights       int       `json:"total_flights"`
	ConflictsDetected  int       `json:"conflicts_detected"`
	HotspotsDetected   int       `json:"hotspots_detected"`
	ViolationsDetected int       `json:"violations_detected"`
	SolutionsProposed  int       `json:"solutions_proposed"`
	AnalysisTimestamp  time.Time `json:"analysis_timestamp"`
	WindowSeconds      int       `json:"plan_window_seconds"`
	SampleStepSeconds  int       `json:"sample_step_seconds"`
}

// Result is the outcome of analyzing one flight batch.
type Result struct {
	Conflicts  []event.Conflict  `json:"conflicts"`
	Hotspots   []event.Hotspot   `json:"hotspots"`
	Violations []event.Violation `json:"violations"`
	Summary    Summary           `json:"summary"`
}

// Analyzer detects conflicts, hotspots, and violations in flight batches.
// The zero value uses a one hour window and one minute sample step.
type Analyzer struct {
	Window     time.Duration
	SampleStep time.Duration
}

func (a Analyzer) window() time.Duration {
	if a.Window <= 0 {
		return time.Hour
	}
	return a.Window
}

func (a Analyzer) sampleStep() time.Duration {
	if a.SampleStep <= 0 {
		return time.Minute
	}
	return a.SampleStep
}

// Analyze runs all detectors over the batch. It is a pure function of its
// input and the clock.
func (a Analyzer) Analyze(flights []event.Flight) Result {
	normalized := make([]event.Flight, len(flights))
	for i, f := range flights {
		normalized[i] = normalize(f)
	}

	conflicts := a.detectConflicts(normalized)
	hotspots := a.detectHotspots(normalized)
	violations := detectViolations(normalized)

	return Result{
		Conflicts:  conflicts,
		Hotspots:   hotspots,
		Violations: violations,
		Summary: Summary{
			TotalFlights:       len(flights),
			ConflictsDetected:  len(conflicts),
			HotspotsDetected:   len(hotspots),
			ViolationsDetected: len(violations),
			AnalysisTimestamp:  time.Now().UTC(),
			WindowSeconds:      int(a.window().Seconds()),
			SampleStepSeconds:  int(a.sampleStep().Seconds()),
		},
	}
}

func normalize(f event.Flight) event.Flight {
	if f.FlightID == "" {
		f.FlightID = "FLT-" + shortID()
	}
	if f.AltitudeFt == 0 {
		f.AltitudeFt = defaultAltitudeFt
	}
	if f.SpeedKt == 0 {
		f.SpeedKt = defaultSpeedKt
	}
	return f
}

// detectConflicts checks every unordered pair for route overlap at close
// altitude with departures inside the overlap window.
func (a Analyzer) detectConflicts(flights []event.Flight) []event.Conflict {
	conflicts := []event.Conflict{}

	for i := range flights {
		for j := i + 1; j < len(flights); j++ {
			f1, f2 := flights[i], flights[j]

			altDiff := math.Abs(f1.AltitudeFt - f2.AltitudeFt)
			if altDiff >= altitudeProximityFt {
				continue
			}
			if !routesOverlap(f1.Route, f2.Route) && !sharesOrigin(f1.Route, f2.Route) {
				continue
			}
			if f1.DepartureTime.IsZero() || f2.DepartureTime.IsZero() {
				continue
			}
			timeDiff := f1.DepartureTime.Sub(f2.DepartureTime)
			if timeDiff < 0 {
				timeDiff = -timeDiff
			}
			if timeDiff >= departureOverlap {
				continue
			}

			minSep := round2(altDiff / feetPerNM)
			conflictTime := f1.DepartureTime
			if f2.DepartureTime.After(conflictTime) {
				conflictTime = f2.DepartureTime
			}

			conflicts = append(conflicts, event.Conflict{
				ConflictID:    "CONF-" + shortID(),
				ConflictType:  "separation",
				SeverityLevel: separationSeverity(minSep),
				FlightIDs:     []string{f1.FlightID, f2.FlightID},
				Location: event.Location{
					Latitude:   39.8283,
					Longitude:  -98.5795,
					AltitudeFt: (f1.AltitudeFt + f2.AltitudeFt) / 2,
				},
				ConflictTime:    conflictTime,
				MinSeparationNM: minSep,
				ReqSeparationNM: requiredSeparationNM,
				DurationSec:     120,
				DetectionMethod: "trajectory-intersection",
			})
		}
	}

	return conflicts
}

// detectHotspots groups flights by first waypoint and reports groups whose
// density exceeds the congestion thresholds.
func (a Analyzer) detectHotspots(flights []event.Flight) []event.Hotspot {
	hotspots := []event.Hotspot{}
	if len(flights) < hotspotMinFlights {
		return hotspots
	}

	groups := make(map[string][]event.Flight)
	for _, f := range flights {
		if len(f.Route) < 2 {
			continue
		}
		groups[f.Route[0]] = append(groups[f.Route[0]], f)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	windowHours := a.window().Hours()
	if windowHours < 1 {
		windowHours = 1
	}

	for _, key := range keys {
		members := groups[key]
		if len(members) < hotspotMinFlights {
			continue
		}

		var start, end time.Time
		for _, f := range members {
			if f.DepartureTime.IsZero() {
				continue
			}
			if start.IsZero() || f.DepartureTime.Before(start) {
				start = f.DepartureTime
			}
			if end.IsZero() || f.DepartureTime.After(end) {
				end = f.DepartureTime
			}
		}
		if start.IsZero() {
			continue
		}

		ids := make([]string, len(members))
		for i, f := range members {
			ids[i] = f.FlightID
		}

		density := round2(float64(len(members)) / windowHours)

		hotspots = append(hotspots, event.Hotspot{
			HotspotID:   "HOTSPOT-" + shortID(),
			HotspotType: "congestion",
			Location: event.Location{
				Latitude:   40.7128,
				Longitude:  -74.0060,
				AltitudeFt: 30000,
				RadiusNM:   25,
			},
			AffectedFlights: ids,
			Severity:        densitySeverity(density),
			StartTime:       start,
			EndTime:         end.Add(a.window()),
			Density:         density,
			CapacityLimit:   hotspotCapacity,
			CurrentCount:    len(members),
			Description:     fmt.Sprintf("High traffic congestion near %s", key),
		})
	}

	return hotspots
}

func detectViolations(flights []event.Flight) []event.Violation {
	violations := []event.Violation{}

	for _, f := range flights {
		if f.AltitudeFt < minAltitudeFt {
			violations = append(violations, event.Violation{
				ViolationID:   "VIOL-" + shortID(),
				FlightID:      f.FlightID,
				ViolationType: "altitude",
				Severity:      "warning",
				Description:   fmt.Sprintf("Flight %s below minimum altitude", f.FlightID),
				Value:         f.AltitudeFt,
				Threshold:     minAltitudeFt,
			})
		}
		if f.SpeedKt > maxSpeedKt {
			violations = append(violations, event.Violation{
				ViolationID:   "VIOL-" + shortID(),
				FlightID:      f.FlightID,
				ViolationType: "speed",
				Severity:      "warning",
				Description:   fmt.Sprintf("Flight %s exceeds speed limit", f.FlightID),
				Value:         f.SpeedKt,
				Threshold:     maxSpeedKt,
			})
		}
	}

	return violations
}

func routesOverlap(r1, r2 []string) bool {
	if len(r1) == 0 || len(r2) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(r1))
	for _, wp := range r1 {
		set[wp] = struct{}{}
	}
	for _, wp := range r2 {
		if _, ok := set[wp]; ok {
			return true
		}
	}

	// Adjacent routes: matching endpoints count as overlap.
	if len(r1) >= 2 && len(r2) >= 2 {
		if r1[0] == r2[0] || r1[len(r1)-1] == r2[len(r2)-1] {
			return true
		}
	}

	return false
}

func sharesOrigin(r1, r2 []string) bool {
	return len(r1) > 0 && len(r2) > 0 && r1[0] == r2[0]
}

func separationSeverity(minSepNM float64) string {
	switch {
	case minSepNM < 2.0:
		return "high"
	case minSepNM < 3.0:
		return "medium"
	default:
		return "low"
	}
}

func densitySeverity(density float64) string {
	switch {
	case density > 0.8:
		return "high"
	case density > 0.5:
		return "medium"
	default:
		return "low"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func shortID() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
