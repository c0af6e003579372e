// Package graph validates execution plans and schedules them into batches.
package graph

import (
	"errors"
	"fmt"

	"github.com/spectersec/specter/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the plan.
var ErrCycleDetected = errors.New("cycle detected in plan dependencies")

// CapabilityInventory reports which worker roles have providers configured.
// Implemented by the provider registry.
type CapabilityInventory interface {
	// HasCapability returns true if at least one provider is configured
	// for the given worker role's partition.
	HasCapability(role models.Role) bool
}

// ValidatePlan checks a freshly produced plan before anything executes.
// It rejects duplicate task IDs, roles with no configured capability
// partition, and dependencies on tasks that do not exist in the plan.
// Cycle detection is left to Batches; validation failures are terminal.
func ValidatePlan(plan models.ExecutionPlan, inv CapabilityInventory) error {
	ids := make(map[string]bool, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if ids[t.ID] {
			return fmt.Errorf("duplicate task id: %s", t.ID)
		}
		ids[t.ID] = true

		if !t.Role.IsWorker() {
			return fmt.Errorf("task %s: %q is not a worker role", t.ID, t.Role)
		}
		if !inv.HasCapability(t.Role) {
			return fmt.Errorf("task %s requires role %q but no providers are configured for it", t.ID, t.Role)
		}
	}

	for _, t := range plan.Tasks {
		for _, dep := range t.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
		}
	}

	return nil
}

// Batches converts a validated plan's dependency graph into an ordered
// sequence of executable batches. Ready parallel-eligible tasks are grouped
// into one batch; each ready serial task becomes its own singleton batch in
// discovery order. A task is marked done when scheduled, so callers must
// execute a batch to completion before relying on its outputs.
//
// Returns ErrCycleDetected if tasks remain but none are ready.
func Batches(plan models.ExecutionPlan) ([]models.Batch, error) {
	remaining := make(map[string]models.Task, len(plan.Tasks))
	order := make([]string, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		remaining[t.ID] = t
		order = append(order, t.ID)
	}

	done := make(map[string]bool, len(plan.Tasks))
	var batches []models.Batch

	for len(remaining) > 0 {
		// Scan in plan order so batch contents are deterministic.
		var ready []models.Task
		for _, id := range order {
			t, ok := remaining[id]
			if !ok {
				continue
			}
			if depsSatisfied(t, done) {
				ready = append(ready, t)
			}
		}

		if len(ready) == 0 {
			return nil, ErrCycleDetected
		}

		var parallel, serial []models.Task
		for _, t := range ready {
			if t.CanRunParallel {
				parallel = append(parallel, t)
			} else {
				serial = append(serial, t)
			}
		}

		if len(parallel) > 0 {
			batches = append(batches, models.Batch{Tasks: parallel})
			for _, t := range parallel {
				done[t.ID] = true
				delete(remaining, t.ID)
			}
		}

		for _, t := range serial {
			batches = append(batches, models.Batch{Tasks: []models.Task{t}})
			done[t.ID] = true
			delete(remaining, t.ID)
		}
	}

	return batches, nil
}

func depsSatisfied(t models.Task, done map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}
