// Package insight implements the trajectory insight processor: it collects
// parsed flights per correlation, analyzes each batch for conflicts,
// hotspots, and violations, and publishes the findings with geo overlays
// and a summary report. A plan ledger keeps replayed batches from being
// published twice.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360studio/chronos/component"
	"github.com/c360studio/chronos/config"
	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/metrics"
	"github.com/c360studio/chronos/natsbus"
	"github.com/c360studio/chronos/trajectory"
)

const sourceName = "trajectory-insight"

// Sector id stamped on all published analysis events.
const sectorID = "airspace-sector-1"

// planLedger is the idempotency surface the processor needs. A nil ledger
// disables the check; every batch is then processed.
type planLedger interface {
	AlreadyProcessed(ctx context.Context, planID string) bool
	MarkProcessed(ctx context.Context, planID string) error
}

// collection accumulates the flights that share a correlation id.
type collection struct {
	correlationID string
	planID        string
	flights       []event.Flight
	seen          map[string]struct{}
	timer         *time.Timer
}

// Component is the trajectory insight processor. The collection table is
// owned by a single goroutine; batch analysis and publishing run on worker
// goroutines over data removed from the table first.
type Component struct {
	name      string
	config    Config
	bus       *natsbus.Client
	logger    *slog.Logger
	analyzer  trajectory.Analyzer
	generator *trajectory.Generator
	ledger    planLedger

	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	sub       *nats.Subscription

	in          chan event.Envelope
	readyCh     chan string
	collections map[string]*collection

	flightsCollected  atomic.Int64
	batchesAnalyzed   atomic.Int64
	batchesSuppressed atomic.Int64
	eventsPublished   atomic.Int64
	errorCount        atomic.Int64
}

// NewComponent creates the insight processor. generator is required; lg may
// be nil to disable idempotency tracking.
func NewComponent(cfg Config, generator *trajectory.Generator, lg planLedger, deps component.Dependencies) (*Component, error) {
	defaults := DefaultConfig()
	if cfg.CollectionWindow == 0 {
		cfg.CollectionWindow = defaults.CollectionWindow
	}
	if cfg.SampleStep == 0 {
		cfg.SampleStep = defaults.SampleStep
	}
	if cfg.SolutionMode == "" {
		cfg.SolutionMode = defaults.SolutionMode
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if generator == nil {
		return nil, fmt.Errorf("solution generator required")
	}

	return &Component{
		name:   "trajectory-insight",
		config: cfg,
		bus:    deps.Bus,
		logger: deps.GetLogger(),
		analyzer: trajectory.Analyzer{
			Window:     cfg.CollectionWindow,
			SampleStep: cfg.SampleStep,
		},
		generator:   generator,
		ledger:      lg,
		in:          make(chan event.Envelope, cfg.QueueSize),
		readyCh:     make(chan string, cfg.QueueSize),
		collections: make(map[string]*collection),
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized trajectory insight",
		"collection_window", c.config.CollectionWindow,
		"sample_step", c.config.SampleStep,
		"solution_mode", c.config.SolutionMode,
		"distributed", c.config.Distributed,
		"idempotency", c.ledger != nil)
	return nil
}

// Start subscribes to flight.parsed and runs the collection loop.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.bus == nil {
		c.mu.Unlock()
		return fmt.Errorf("bus client required")
	}

	c.running = true
	c.startTime = time.Now()

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	sub, err := c.bus.Subscribe(event.TopicFlightParsed, func(topic string, env event.Envelope) {
		select {
		case c.in <- env:
		default:
			c.errorCount.Add(1)
			c.logger.Warn("Inbound queue full, dropping flight event",
				"event_id", env.EventID)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", event.TopicFlightParsed, err)
	}
	c.sub = sub

	c.wg.Add(1)
	go c.run(loopCtx)

	c.logger.Info("trajectory insight started",
		"collection_window", c.config.CollectionWindow)

	return nil
}

// run owns the collection table.
func (c *Component) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for _, col := range c.collections {
				if col.timer != nil {
					col.timer.Stop()
				}
			}
			return
		case env := <-c.in:
			c.collect(ctx, env)
		case correlationID := <-c.readyCh:
			c.dispatchBatch(ctx, correlationID)
		}
	}
}

// collect adds a flight to its correlation's batch and restarts the quiet
// timer.
func (c *Component) collect(ctx context.Context, env event.Envelope) {
	metrics.EventsConsumed.WithLabelValues(event.TopicFlightParsed).Inc()

	if env.CorrelationID == "" {
		c.logger.Warn("Flight event without correlation id, skipping",
			"event_id", env.EventID)
		return
	}

	var flight event.Flight
	if err := env.DecodeDetails(&flight); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Undecodable flight details",
			"event_id", env.EventID, "error", err)
		return
	}
	if err := flight.Validate(); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Invalid flight", "event_id", env.EventID, "error", err)
		return
	}

	col, ok := c.collections[env.CorrelationID]
	if !ok {
		col = &collection{
			correlationID: env.CorrelationID,
			seen:          make(map[string]struct{}),
		}
		c.collections[env.CorrelationID] = col
	}

	if _, dup := col.seen[flight.FlightID]; !dup {
		col.seen[flight.FlightID] = struct{}{}
		col.flights = append(col.flights, flight)
		c.flightsCollected.Add(1)
		c.logger.Debug("Flight collected",
			"flight_id", flight.FlightID,
			"correlation_id", env.CorrelationID,
			"total", len(col.flights))
	}
	if flight.PlanID != "" {
		col.planID = flight.PlanID
	}

	if col.timer != nil {
		col.timer.Stop()
	}
	correlationID := env.CorrelationID
	col.timer = time.AfterFunc(c.config.CollectionWindow, func() {
		select {
		case c.readyCh <- correlationID:
		case <-ctx.Done():
		}
	})
}

// dispatchBatch removes a quiet collection from the table and hands it to a
// worker. Removal first means a duplicate ready signal finds nothing.
func (c *Component) dispatchBatch(ctx context.Context, correlationID string) {
	col, ok := c.collections[correlationID]
	if !ok {
		return
	}
	delete(c.collections, correlationID)
	if col.timer != nil {
		col.timer.Stop()
	}
	if len(col.flights) == 0 {
		c.logger.Warn("Empty collection, skipping", "correlation_id", correlationID)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.processBatch(ctx, col)
	}()
}

// processBatch analyzes one flight batch and publishes the findings.
func (c *Component) processBatch(ctx context.Context, col *collection) {
	planID := col.planID
	if planID == "" {
		planID = col.correlationID
	}

	if c.ledger != nil && c.ledger.AlreadyProcessed(ctx, planID) {
		c.batchesSuppressed.Add(1)
		metrics.PlansSuppressed.Inc()
		c.logger.Info("Plan already processed, skipping",
			"plan_id", planID, "flights", len(col.flights))
		return
	}

	c.logger.Info("Analyzing flight batch",
		"plan_id", planID,
		"correlation_id", col.correlationID,
		"flights", len(col.flights))

	started := time.Now()
	res := c.analyzer.Analyze(col.flights)
	metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	metrics.AnalysesCompleted.Inc()
	c.batchesAnalyzed.Add(1)

	var solutions []event.Solution
	if c.config.Distributed {
		c.logger.Info("Distributed mode, deferring solutions to task agents",
			"plan_id", planID)
	} else {
		delegated := c.config.SolutionMode == config.ModeDelegated
		solutions = c.generator.Generate(ctx, res, col.flights, delegated)
	}
	res.Summary.SolutionsProposed = len(solutions)

	var conflictIDs, hotspotIDs, solutionIDs []string

	for _, conflict := range res.Conflicts {
		env := event.New(sourceName, analysisSeverity(conflict.SeverityLevel), sectorID,
			fmt.Sprintf("Conflict %s detected between flights", conflict.ConflictID)).
			WithDetails(conflict).
			Correlate(col.correlationID)
		if c.publish(event.TopicConflictDetected, env) {
			conflictIDs = append(conflictIDs, conflict.ConflictID)
		}
		c.publish(event.TopicGeoIncident, c.geoIncident(conflict, col.correlationID))
	}

	for _, hotspot := range res.Hotspots {
		env := event.New(sourceName, analysisSeverity(hotspot.Severity), sectorID,
			fmt.Sprintf("Hotspot %s detected", hotspot.HotspotID)).
			WithDetails(hotspot).
			Correlate(col.correlationID)
		if c.publish(event.TopicHotspotDetected, env) {
			hotspotIDs = append(hotspotIDs, hotspot.HotspotID)
		}
		c.publish(event.TopicGeoRiskArea, c.geoRiskArea(hotspot, col.correlationID))
	}

	for _, solution := range solutions {
		env := event.New(sourceName, event.SeverityInfo, sectorID,
			fmt.Sprintf("Solution %s proposed", solution.SolutionID)).
			WithDetails(solution).
			Correlate(col.correlationID)
		if c.publish(event.TopicSolutionProposed, env) {
			solutionIDs = append(solutionIDs, solution.SolutionID)
		}
	}

	report := buildReport(planID, res.Summary, conflictIDs, hotspotIDs, solutionIDs)
	c.publish(event.TopicReportReady, event.New(sourceName, event.SeverityInfo, sectorID,
		fmt.Sprintf("Trajectory analysis report %s ready for plan %s", report.ReportID, planID)).
		WithDetails(report).
		Correlate(col.correlationID))

	if c.ledger != nil {
		if err := c.ledger.MarkProcessed(ctx, planID); err != nil {
			c.errorCount.Add(1)
			c.logger.Error("Failed to record processed plan",
				"plan_id", planID, "error", err)
		}
	}

	c.logger.Info("Batch analysis complete",
		"plan_id", planID,
		"conflicts", len(res.Conflicts),
		"hotspots", len(res.Hotspots),
		"violations", len(res.Violations),
		"solutions", len(solutions))
}

func (c *Component) publish(topic string, env event.Envelope) bool {
	if err := c.bus.Publish(topic, env); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish", "topic", topic, "error", err)
		return false
	}
	c.eventsPublished.Add(1)
	return true
}

// analysisSeverity maps a detector severity level to an envelope severity.
func analysisSeverity(level string) event.Severity {
	switch strings.ToLower(level) {
	case "high", "critical":
		return event.SeverityWarning
	default:
		return event.SeverityInfo
	}
}

// geoSeverity maps a detector severity level to the envelope severity of
// the corresponding map overlay event.
func geoSeverity(level string) event.Severity {
	switch strings.ToLower(level) {
	case "high", "critical":
		return event.SeverityModerate
	case "medium":
		return event.SeverityWarning
	default:
		return event.SeverityInfo
	}
}

// geoIncident renders a conflict as a point overlay.
func (c *Component) geoIncident(conflict event.Conflict, correlationID string) event.Envelope {
	label := flightLabel(conflict.FlightIDs)
	incident := event.GeoIncident{
		ID: "GEO-" + conflict.ConflictID,
		Geometry: event.Geometry{
			Type:        "Point",
			Coordinates: []float64{conflict.Location.Longitude, conflict.Location.Latitude},
		},
		Style: event.Style{
			Color:   "#FF0000",
			Opacity: 0.7,
			Outline: true,
		},
		IncidentType: "airspace_conflict",
		Description: fmt.Sprintf("Airspace conflict %s between flights %s at (%.4f, %.4f)",
			conflict.ConflictID, label, conflict.Location.Latitude, conflict.Location.Longitude),
		Status: "active",
	}

	return event.New(sourceName, geoSeverity(conflict.SeverityLevel), sectorID,
		fmt.Sprintf("Conflict detected: %s", label)).
		WithDetails(incident).
		Correlate(correlationID)
}

// geoRiskArea renders a hotspot as a circle overlay. Regional hotspots get
// a 10-30km radius, local ones 1-5km.
func (c *Component) geoRiskArea(hotspot event.Hotspot, correlationID string) event.Envelope {
	radiusNM := hotspot.Location.RadiusNM
	if radiusNM == 0 {
		radiusNM = 25.0
	}
	radiusMeters := radiusNM * 1852.0

	level := strings.ToLower(hotspot.Severity)
	regional := level == "high" || level == "critical" ||
		hotspot.Density > 0.7 || hotspot.CurrentCount >= 5
	if regional {
		radiusMeters = clamp(radiusMeters, 10000, 30000)
	} else {
		radiusMeters = clamp(radiusMeters, 1000, 5000)
	}

	area := event.GeoRiskArea{
		ID: "GEO-" + hotspot.HotspotID,
		Geometry: event.Geometry{
			Type:         "Circle",
			Coordinates:  []float64{hotspot.Location.Longitude, hotspot.Location.Latitude},
			RadiusMeters: radiusMeters,
		},
		Style: event.Style{
			Color:   "red",
			Opacity: 0.35,
			Outline: true,
		},
		RiskLevel: hotspot.Severity,
		RiskType:  "airspace_congestion",
		Description: fmt.Sprintf("Airspace congestion hotspot %s affecting %d flights (density: %.2f flights/hour)",
			hotspot.HotspotID, hotspot.CurrentCount, hotspot.Density),
	}

	return event.New(sourceName, geoSeverity(hotspot.Severity), sectorID,
		fmt.Sprintf("Hotspot risk area: %s (%d flights)", hotspot.HotspotID, hotspot.CurrentCount)).
		WithDetails(area).
		Correlate(correlationID)
}

// buildReport summarizes one batch analysis. The report period covers the
// current UTC day.
func buildReport(planID string, summary trajectory.Summary, conflictIDs, hotspotIDs, solutionIDs []string) event.Report {
	now := time.Now().UTC()
	reportID := fmt.Sprintf("RPT-%s-%s", now.Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)

	return event.Report{
		ReportID:          reportID,
		ReportType:        "trajectory_analysis",
		PeriodStart:       dayStart,
		PeriodEnd:         dayEnd,
		ReportURL:         fmt.Sprintf("/reports/%s.json", reportID),
		ReportFormat:      "JSON",
		TotalFlights:      summary.TotalFlights,
		ConflictsDetected: summary.ConflictsDetected,
		HotspotsDetected:  summary.HotspotsDetected,
		SolutionsProposed: summary.SolutionsProposed,
		GeneratedBy:       sourceName,
		ConflictRefs:      conflictIDs,
		HotspotRefs:       hotspotIDs,
		SolutionRefs:      solutionIDs,
	}
}

func flightLabel(ids []string) string {
	label := strings.Join(ids[:min(len(ids), 3)], ", ")
	if len(ids) > 3 {
		label += fmt.Sprintf(" (+%d more)", len(ids)-3)
	}
	return label
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Stop gracefully stops the component.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.running = false
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("trajectory insight stop timed out after %s", timeout)
	}

	c.logger.Info("trajectory insight stopped",
		"flights_collected", c.flightsCollected.Load(),
		"batches_analyzed", c.batchesAnalyzed.Load(),
		"batches_suppressed", c.batchesSuppressed.Load(),
		"events_published", c.eventsPublished.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "trajectory-insight",
		Type:        "processor",
		Description: "Analyzes flight batches for conflicts and hotspots, publishes findings",
		Version:     "0.1.0",
	}
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}
