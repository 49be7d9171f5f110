package coordinator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/chronos/event"
)

// aggregator tracks dispatched tasks and collects the partial solutions
// task agents send back. It is owned by the orchestration goroutine; the
// debounce timers only call notify, they never touch the table.
type aggregator struct {
	debounce time.Duration
	notify   func(taskID string)
	tasks    map[string]*pendingTask
}

type pendingTask struct {
	taskType      string
	correlationID string
	partials      []event.PartialSolution
	timer         *time.Timer
}

func newAggregator(debounce time.Duration, notify func(taskID string)) *aggregator {
	return &aggregator{
		debounce: debounce,
		notify:   notify,
		tasks:    make(map[string]*pendingTask),
	}
}

// track registers a dispatched task so its partial solutions are accepted.
func (a *aggregator) track(taskID, taskType, correlationID string) {
	a.tasks[taskID] = &pendingTask{
		taskType:      taskType,
		correlationID: correlationID,
	}
}

// addPartial records a partial solution and restarts the task's debounce
// timer. The merge fires once the task has been quiet for the debounce
// period. Partials for unknown tasks are rejected.
func (a *aggregator) addPartial(partial event.PartialSolution) bool {
	task, ok := a.tasks[partial.TaskID]
	if !ok {
		return false
	}

	task.partials = append(task.partials, partial)

	if task.timer != nil {
		task.timer.Stop()
	}
	taskID := partial.TaskID
	task.timer = time.AfterFunc(a.debounce, func() {
		a.notify(taskID)
	})

	return true
}

// take removes the task from the table and returns its collected partials.
// Removal happens before any merge computation, so a second merge signal
// for the same task finds nothing and does nothing.
func (a *aggregator) take(taskID string) (*pendingTask, bool) {
	task, ok := a.tasks[taskID]
	if !ok {
		return nil, false
	}
	delete(a.tasks, taskID)
	if task.timer != nil {
		task.timer.Stop()
	}
	return task, true
}

// pending returns the number of tracked tasks.
func (a *aggregator) pending() int {
	return len(a.tasks)
}

// stop cancels all outstanding debounce timers.
func (a *aggregator) stop() {
	for _, task := range a.tasks {
		if task.timer != nil {
			task.timer.Stop()
		}
	}
}

// mergePartials combines partial solutions into one published solution:
// actions concatenated, affected flights set-unioned, delays summed, and
// confidence averaged.
func mergePartials(partials []event.PartialSolution) event.Solution {
	var actions []event.ProposedAction
	flightSet := make(map[string]struct{})
	var flights []string
	var problemID string
	var contributors []string
	confidence := 0.0

	for _, p := range partials {
		actions = append(actions, p.ProposedActions...)
		for _, f := range p.AffectedFlights {
			if _, ok := flightSet[f]; ok {
				continue
			}
			flightSet[f] = struct{}{}
			flights = append(flights, f)
		}
		if problemID == "" {
			problemID = p.ProblemID
		}
		contributors = append(contributors, p.AgentName)
		if p.ConfidenceScore > 0 {
			confidence += p.ConfidenceScore
		} else {
			confidence += 0.5
		}
	}
	confidence /= float64(len(partials))

	solutionType := "multi_action"
	if len(actions) <= 1 {
		solutionType = partials[0].SolutionType
	}

	totalDelay := 0
	for _, a := range actions {
		totalDelay += a.DelayMinutes
	}

	return event.Solution{
		SolutionID:      "SOL-MERGED-" + strings.ToUpper(uuid.New().String()[:8]),
		SolutionType:    solutionType,
		ProblemID:       problemID,
		AffectedFlights: flights,
		ProposedActions: actions,
		EstimatedImpact: event.Impact{
			TotalDelayMinutes:  totalDelay,
			FuelImpactPercent:  2.0,
			AffectedPassengers: len(flights) * 150,
		},
		ConfidenceScore:  confidence,
		GeneratedBy:      "coordinator-merged",
		RequiresApproval: true,
		Contributors:     contributors,
	}
}
