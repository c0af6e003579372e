package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/spectersec/specter/pkg/models"
)

// fakeInventory reports capabilities for a fixed set of roles.
type fakeInventory struct {
	roles map[models.Role]bool
}

func (f fakeInventory) HasCapability(role models.Role) bool {
	return f.roles[role]
}

func allCapabilities() fakeInventory {
	return fakeInventory{roles: map[models.Role]bool{
		models.RoleStatic:  true,
		models.RoleDynamic: true,
	}}
}

func staticOnly() fakeInventory {
	return fakeInventory{roles: map[models.Role]bool{models.RoleStatic: true}}
}

func plan(tasks ...models.Task) models.ExecutionPlan {
	return models.ExecutionPlan{Tasks: tasks, FinalOutputStyle: "technical_markdown"}
}

func TestValidatePlanAccepts(t *testing.T) {
	p := plan(
		models.Task{ID: "a", Role: models.RoleStatic},
		models.Task{ID: "b", Role: models.RoleDynamic, DependsOn: []string{"a"}},
	)

	if err := ValidatePlan(p, allCapabilities()); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
}

func TestValidatePlanDuplicateID(t *testing.T) {
	p := plan(
		models.Task{ID: "a", Role: models.RoleStatic},
		models.Task{ID: "a", Role: models.RoleStatic},
	)

	err := ValidatePlan(p, allCapabilities())
	if err == nil || !strings.Contains(err.Error(), "duplicate task id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestValidatePlanUnknownDependency(t *testing.T) {
	p := plan(models.Task{ID: "a", Role: models.RoleStatic, DependsOn: []string{"ghost"}})

	err := ValidatePlan(p, allCapabilities())
	if err == nil || !strings.Contains(err.Error(), "unknown task") {
		t.Fatalf("expected unknown dependency error, got %v", err)
	}
}

func TestValidatePlanMissingCapability(t *testing.T) {
	p := plan(models.Task{ID: "a", Role: models.RoleDynamic})

	err := ValidatePlan(p, staticOnly())
	if err == nil || !strings.Contains(err.Error(), "no providers") {
		t.Fatalf("expected missing capability error, got %v", err)
	}
}

func TestValidatePlanNonWorkerRole(t *testing.T) {
	p := plan(models.Task{ID: "a", Role: models.RoleVerifier})

	if err := ValidatePlan(p, allCapabilities()); err == nil {
		t.Fatal("expected error for non-worker role")
	}
}

func TestBatchesParallelPairGrouped(t *testing.T) {
	p := plan(
		models.Task{ID: "strings", Role: models.RoleStatic, CanRunParallel: true},
		models.Task{ID: "hashes", Role: models.RoleStatic, CanRunParallel: true},
	)

	batches, err := Batches(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if len(batches[0].Tasks) != 2 {
		t.Fatalf("expected 2 tasks in batch, got %d", len(batches[0].Tasks))
	}
}

func TestBatchesSerialPairSingletons(t *testing.T) {
	p := plan(
		models.Task{ID: "a", Role: models.RoleStatic},
		models.Task{ID: "b", Role: models.RoleStatic},
	)

	batches, err := Batches(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 singleton batches, got %d", len(batches))
	}
	for i, b := range batches {
		if len(b.Tasks) != 1 {
			t.Errorf("batch %d: expected singleton, got %d tasks", i, len(b.Tasks))
		}
	}
	if batches[0].Tasks[0].ID != "a" || batches[1].Tasks[0].ID != "b" {
		t.Errorf("expected discovery order a,b; got %s,%s",
			batches[0].Tasks[0].ID, batches[1].Tasks[0].ID)
	}
}

func TestBatchesCycleDetected(t *testing.T) {
	p := plan(
		models.Task{ID: "a", Role: models.RoleStatic, DependsOn: []string{"b"}},
		models.Task{ID: "b", Role: models.RoleStatic, DependsOn: []string{"a"}},
	)

	_, err := Batches(p)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestBatchesCoverEveryTaskOnceWithDepsEarlier(t *testing.T) {
	p := plan(
		models.Task{ID: "t1", Role: models.RoleStatic, CanRunParallel: true},
		models.Task{ID: "t2", Role: models.RoleStatic, CanRunParallel: true},
		models.Task{ID: "t3", Role: models.RoleDynamic, DependsOn: []string{"t1", "t2"}},
		models.Task{ID: "t4", Role: models.RoleStatic, DependsOn: []string{"t3"}, CanRunParallel: true},
		models.Task{ID: "t5", Role: models.RoleDynamic, DependsOn: []string{"t3"}, CanRunParallel: true},
	)

	batches, err := Batches(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]int) // task id -> batch index
	for i, b := range batches {
		for _, task := range b.Tasks {
			if _, dup := seen[task.ID]; dup {
				t.Fatalf("task %s scheduled twice", task.ID)
			}
			seen[task.ID] = i
		}
	}

	if len(seen) != len(p.Tasks) {
		t.Fatalf("expected %d scheduled tasks, got %d", len(p.Tasks), len(seen))
	}

	for _, task := range p.Tasks {
		for _, dep := range task.DependsOn {
			if seen[dep] >= seen[task.ID] {
				t.Errorf("task %s (batch %d) depends on %s (batch %d); dependency must come earlier",
					task.ID, seen[task.ID], dep, seen[dep])
			}
		}
	}
}

func TestBatchesMixedReadySet(t *testing.T) {
	// Two parallel-eligible and one serial task, all ready at once:
	// one grouped batch plus one singleton.
	p := plan(
		models.Task{ID: "p1", Role: models.RoleStatic, CanRunParallel: true},
		models.Task{ID: "p2", Role: models.RoleStatic, CanRunParallel: true},
		models.Task{ID: "s1", Role: models.RoleDynamic},
	)

	batches, err := Batches(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0].Tasks) != 2 {
		t.Errorf("expected parallel batch first with 2 tasks, got %d", len(batches[0].Tasks))
	}
	if len(batches[1].Tasks) != 1 || batches[1].Tasks[0].ID != "s1" {
		t.Errorf("expected singleton batch for s1")
	}
}

func TestBatchesEmptyPlan(t *testing.T) {
	batches, err := Batches(plan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected no batches for empty plan, got %d", len(batches))
	}
}
