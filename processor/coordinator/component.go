// Package coordinator implements the crisis coordinator processor: it fuses
// power and airspace events into a shared crisis context, triggers recovery
// plan generation, dispatches airspace mitigation tasks, and aggregates the
// partial solutions task agents return.
package coordinator

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
	"github.com/c360studio/chronos/planner"
	"github.com/c360studio/chronos/trajectory"
)

const sourceName = "coordinator"

// inbound is one bus message queued for the orchestration loop.
type inbound struct {
	topic string
	env   event.Envelope
}

// Component is the coordinator processor. All mutable state (crisis
// context, task table) is owned by a single orchestration goroutine;
// subscriptions only enqueue.
type Component struct {
	name      string
	config    Config
	bus       *natsbus.Client
	logger    *slog.Logger
	selector  *planner.Selector
	generator *trajectory.Generator

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	subs      []*nats.Subscription

	// Orchestration state, loop-owned.
	in      chan inbound
	mergeCh chan string
	crisis  *crisisContext
	agg     *aggregator

	// sem bounds concurrent plan and solution generations.
	sem chan struct{}

	// Metrics
	eventsProcessed    atomic.Int64
	plansPublished     atomic.Int64
	solutionsPublished atomic.Int64
	tasksDispatched    atomic.Int64
	mergesCompleted    atomic.Int64
	errorCount         atomic.Int64
}

// NewComponent creates the coordinator processor.
func NewComponent(cfg Config, selector *planner.Selector, generator *trajectory.Generator, deps component.Dependencies) (*Component, error) {
	defaults := DefaultConfig()
	if cfg.RecoveryMode == "" {
		cfg.RecoveryMode = defaults.RecoveryMode
	}
	if cfg.SolutionMode == "" {
		cfg.SolutionMode = defaults.SolutionMode
	}
	if cfg.MergeDebounce == 0 {
		cfg.MergeDebounce = defaults.MergeDebounce
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = defaults.WorkerPoolSize
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if selector == nil {
		return nil, fmt.Errorf("plan selector required")
	}
	if generator == nil {
		return nil, fmt.Errorf("solution generator required")
	}

	c := &Component{
		name:      "coordinator",
		config:    cfg,
		bus:       deps.Bus,
		logger:    deps.GetLogger(),
		selector:  selector,
		generator: generator,
		in:        make(chan inbound, cfg.QueueSize),
		mergeCh:   make(chan string, cfg.QueueSize),
		crisis:    newCrisisContext(),
		sem:       make(chan struct{}, cfg.WorkerPoolSize),
	}
	return c, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized coordinator",
		"recovery_mode", c.config.RecoveryMode,
		"solution_mode", c.config.SolutionMode,
		"distributed", c.config.Distributed,
		"merge_debounce", c.config.MergeDebounce)
	return nil
}

// Start subscribes to the input topics and runs the orchestration loop.
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

	c.agg = newAggregator(c.config.MergeDebounce, func(taskID string) {
		select {
		case c.mergeCh <- taskID:
		case <-loopCtx.Done():
		}
	})

	topics := []string{
		event.TopicPowerFailure,
		event.TopicConflictDetected,
		event.TopicHotspotDetected,
		event.TopicSolutionProposed,
		event.TopicTaskPartialSolution,
	}
	for _, topic := range topics {
		sub, err := c.bus.Subscribe(topic, c.enqueue)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		c.subs = append(c.subs, sub)
	}

	c.wg.Add(1)
	go c.run(loopCtx)

	c.logger.Info("coordinator started",
		"recovery_mode", c.config.RecoveryMode,
		"distributed", c.config.Distributed)

	return nil
}

// enqueue hands a bus message to the orchestration loop. A full queue drops
// the message; the transport is at-least-once, not lossless.
func (c *Component) enqueue(topic string, env event.Envelope) {
	select {
	case c.in <- inbound{topic: topic, env: env}:
	default:
		c.errorCount.Add(1)
		c.logger.Warn("Inbound queue full, dropping event",
			"topic", topic, "event_id", env.EventID)
	}
}

// run is the orchestration loop. It is the only goroutine that touches the
// crisis context and the aggregator table.
func (c *Component) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.agg.stop()
			return
		case msg := <-c.in:
			c.dispatch(ctx, msg)
		case taskID := <-c.mergeCh:
			c.mergeTask(taskID)
		}
	}
}

func (c *Component) dispatch(ctx context.Context, msg inbound) {
	c.eventsProcessed.Add(1)
	metrics.EventsConsumed.WithLabelValues(msg.topic).Inc()

	switch msg.topic {
	case event.TopicPowerFailure:
		c.handlePowerFailure(ctx, msg.env)
	case event.TopicConflictDetected:
		c.handleConflict(ctx, msg.env)
	case event.TopicHotspotDetected:
		c.handleHotspot(ctx, msg.env)
	case event.TopicSolutionProposed:
		c.handleSolution(msg.env)
	case event.TopicTaskPartialSolution:
		c.handlePartialSolution(msg.env)
	}
}

func (c *Component) handlePowerFailure(ctx context.Context, env event.Envelope) {
	c.logger.Info("Power failure event",
		"event_id", env.EventID,
		"sector_id", env.SectorID,
		"severity", env.Severity)

	c.crisis.updatePower(env)
	c.crisis.updatePriorities(env)

	if !shouldTriggerPlan(env, kindPowerFailure) {
		return
	}

	var reading event.PowerReading
	if err := env.DecodeDetails(&reading); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Undecodable power reading, planning with zero reading",
			"event_id", env.EventID, "error", err)
	}

	c.generatePlan(ctx, env, reading, kindPowerFailure)
}

func (c *Component) handleConflict(ctx context.Context, env event.Envelope) {
	c.crisis.updateConflict(env)
	c.crisis.updatePriorities(env)

	var conflict event.Conflict
	if err := env.DecodeDetails(&conflict); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Undecodable conflict details",
			"event_id", env.EventID, "error", err)
		return
	}

	c.logger.Info("Airspace conflict detected",
		"event_id", env.EventID,
		"conflict_id", conflict.ConflictID,
		"severity", env.Severity)

	if c.config.Distributed {
		c.dispatchTask(env, event.TopicTaskDeconflict, "deconflict", &conflict, nil)
	} else {
		c.generateSolutions(ctx, env, trajectory.Result{Conflicts: []event.Conflict{conflict}})
	}

	if shouldTriggerPlan(env, kindAirspaceConflict) {
		c.generatePlan(ctx, env, event.PowerReading{}, kindAirspaceConflict)
	}
}

func (c *Component) handleHotspot(ctx context.Context, env event.Envelope) {
	c.crisis.updateHotspot(env)
	c.crisis.updatePriorities(env)

	var hotspot event.Hotspot
	if err := env.DecodeDetails(&hotspot); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Undecodable hotspot details",
			"event_id", env.EventID, "error", err)
		return
	}

	c.logger.Info("Airspace hotspot detected",
		"event_id", env.EventID,
		"hotspot_id", hotspot.HotspotID,
		"severity", env.Severity)

	if c.config.Distributed {
		c.dispatchTask(env, event.TopicTaskHotspotMitigation, "hotspot_mitigation", nil, &hotspot)
	} else {
		c.generateSolutions(ctx, env, trajectory.Result{Hotspots: []event.Hotspot{hotspot}})
	}
}

// dispatchTask fans a conflict or hotspot out to remote task agents and
// registers the task with the aggregator.
func (c *Component) dispatchTask(env event.Envelope, topic, taskType string, conflict *event.Conflict, hotspot *event.Hotspot) {
	prefix := "TASK-DECONF-"
	problem := ""
	if conflict != nil {
		problem = conflict.ConflictID
	}
	if hotspot != nil {
		prefix = "TASK-HOTSPOT-"
		problem = hotspot.HotspotID
	}
	taskID := prefix + shortID()

	task := event.TaskAssignment{
		TaskID:    taskID,
		TaskType:  taskType,
		Conflict:  conflict,
		Hotspot:   hotspot,
		CreatedAt: time.Now().UTC(),
	}

	out := event.New(sourceName, event.SeverityInfo, env.SectorID,
		fmt.Sprintf("Task %s for %s", taskID, problem)).
		WithDetails(task).
		Correlate(env.CorrelationID)

	if err := c.bus.Publish(topic, out); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish task", "task_id", taskID, "error", err)
		return
	}

	c.agg.track(taskID, taskType, env.CorrelationID)
	c.tasksDispatched.Add(1)
	metrics.TasksDispatched.WithLabelValues(taskType).Inc()
	c.logger.Info("Task dispatched", "task_id", taskID, "task_type", taskType)
}

func (c *Component) handlePartialSolution(env event.Envelope) {
	var partial event.PartialSolution
	if err := env.DecodeDetails(&partial); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Undecodable partial solution",
			"event_id", env.EventID, "error", err)
		return
	}
	if err := partial.Validate(); err != nil {
		c.errorCount.Add(1)
		c.logger.Warn("Invalid partial solution",
			"event_id", env.EventID, "error", err)
		return
	}

	if !c.agg.addPartial(partial) {
		c.logger.Warn("Partial solution for unknown task",
			"task_id", partial.TaskID,
			"agent", partial.AgentName)
		return
	}

	c.logger.Info("Partial solution received",
		"task_id", partial.TaskID,
		"agent", partial.AgentName)
}

// mergeTask merges a quiet task's partials into one solution. The task
// entry is removed before the merge is computed, so duplicate merge signals
// publish nothing.
func (c *Component) mergeTask(taskID string) {
	task, ok := c.agg.take(taskID)
	if !ok || len(task.partials) == 0 {
		return
	}

	merged := mergePartials(task.partials)

	out := event.New(sourceName, event.SeverityInfo, "airspace-sector-1",
		fmt.Sprintf("Merged solution %s from %d partial solutions", merged.SolutionID, len(task.partials))).
		WithDetails(merged).
		Correlate(task.correlationID)

	if err := c.bus.Publish(event.TopicSolutionProposed, out); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish merged solution",
			"solution_id", merged.SolutionID, "error", err)
		return
	}

	c.mergesCompleted.Add(1)
	c.solutionsPublished.Add(1)
	metrics.MergesCompleted.Inc()
	c.logger.Info("Merged solution published",
		"solution_id", merged.SolutionID,
		"task_id", taskID,
		"contributors", len(task.partials))
}

// generateSolutions proposes mitigations for a conflict or hotspot
// in-process. Runs on the worker pool; the analysis result is immutable.
func (c *Component) generateSolutions(ctx context.Context, env event.Envelope, res trajectory.Result) {
	delegated := c.config.SolutionMode == config.ModeDelegated

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return
		}

		sector := env.SectorID
		if sector == "" {
			sector = "airspace-sector-1"
		}

		for _, solution := range c.generator.Generate(ctx, res, nil, delegated) {
			out := event.New(sourceName, event.SeverityInfo, sector,
				fmt.Sprintf("Solution %s proposed", solution.SolutionID)).
				WithDetails(solution).
				Correlate(env.CorrelationID)

			if err := c.bus.Publish(event.TopicSolutionProposed, out); err != nil {
				c.errorCount.Add(1)
				c.logger.Error("Failed to publish solution",
					"solution_id", solution.SolutionID, "error", err)
				continue
			}
			c.solutionsPublished.Add(1)
			c.logger.Info("Solution published", "solution_id", solution.SolutionID)
		}
	}()
}

// generatePlan snapshots the crisis context and runs the strategy chain on
// the worker pool.
func (c *Component) generatePlan(ctx context.Context, env event.Envelope, reading event.PowerReading, kind string) {
	snapshot := c.crisis.snapshot()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return
		}

		in := planner.Input{Event: env, Reading: reading, Context: snapshot}
		result, err := c.selector.Generate(ctx, in)
		if err != nil {
			c.errorCount.Add(1)
			c.logger.Error("Recovery plan generation failed",
				"event_id", env.EventID, "error", err)
			return
		}

		result.Plan.TriggerEventType = kind
		result.Plan.TriggerEventID = env.EventID
		c.publishPlan(env, result)
	}()
}

// publishPlan emits the recovery.plan event and the system.action record of
// its execution.
func (c *Component) publishPlan(trigger event.Envelope, result *planner.Result) {
	plan := result.Plan

	planEvent := event.New(sourceName, trigger.Severity, trigger.SectorID,
		fmt.Sprintf("Recovery plan %s generated", plan.PlanID)).
		WithDetails(plan).
		Correlate(trigger.CorrelationID)

	if err := c.bus.Publish(event.TopicRecoveryPlan, planEvent); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish recovery plan",
			"plan_id", plan.PlanID, "error", err)
		return
	}

	action := event.SystemAction{
		ActionType:    "execute_recovery_plan",
		PlanID:        plan.PlanID,
		PlanName:      plan.PlanName,
		Executor:      sourceName,
		RecoveryMode:  c.config.RecoveryMode,
		Status:        "executing",
		RelatedEvents: []string{trigger.EventID},
	}
	actionEvent := event.New(sourceName, event.SeverityInfo, trigger.SectorID,
		fmt.Sprintf("System executing recovery plan: %s", plan.PlanName)).
		WithDetails(action).
		Correlate(trigger.CorrelationID)

	if err := c.bus.Publish(event.TopicSystemAction, actionEvent); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish system action",
			"plan_id", plan.PlanID, "error", err)
	}

	c.plansPublished.Add(1)
	c.logger.Info("Recovery plan published",
		"plan_id", plan.PlanID,
		"strategy", result.StrategyName,
		"confidence", result.Confidence,
		"actions", result.ActionCount)
}

// handleSolution auto-applies proposed solutions when demo mode is on.
func (c *Component) handleSolution(env event.Envelope) {
	if !c.config.DemoAutoApply {
		return
	}

	var solution event.Solution
	if err := env.DecodeDetails(&solution); err != nil || solution.SolutionID == "" {
		return
	}

	mitigation := event.Mitigation{
		MitigationID:    "MIT-" + shortID(),
		SolutionID:      solution.SolutionID,
		SolutionType:    solution.SolutionType,
		AppliedAt:       time.Now().UTC(),
		AppliedBy:       sourceName,
		DemoMode:        true,
		AffectedFlights: solution.AffectedFlights,
		ProposedActions: solution.ProposedActions,
	}

	sector := env.SectorID
	if sector == "" {
		sector = "airspace-sector-1"
	}
	out := event.New(sourceName, event.SeverityInfo, sector,
		fmt.Sprintf("Airspace mitigation applied: %s", solution.SolutionID)).
		WithDetails(mitigation).
		Correlate(env.CorrelationID)

	if err := c.bus.Publish(event.TopicMitigationApplied, out); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish mitigation",
			"solution_id", solution.SolutionID, "error", err)
		return
	}

	c.logger.Info("Mitigation applied",
		"mitigation_id", mitigation.MitigationID,
		"solution_id", solution.SolutionID)
}

// Stop gracefully stops the component.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

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
		return fmt.Errorf("coordinator stop timed out after %s", timeout)
	}

	c.logger.Info("coordinator stopped",
		"events_processed", c.eventsProcessed.Load(),
		"plans_published", c.plansPublished.Load(),
		"solutions_published", c.solutionsPublished.Load(),
		"tasks_dispatched", c.tasksDispatched.Load(),
		"merges_completed", c.mergesCompleted.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "coordinator",
		Type:        "processor",
		Description: "Fuses crisis events, generates recovery plans, aggregates task solutions",
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

func shortID() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
