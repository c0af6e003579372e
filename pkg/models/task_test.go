package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{TaskStatusOK, TaskStatusFailed}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if TaskStatus("pending").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestRoleIsWorker(t *testing.T) {
	tests := []struct {
		role   Role
		worker bool
	}{
		{RoleStatic, true},
		{RoleDynamic, true},
		{RolePlanner, false},
		{RoleVerifier, false},
		{RoleReporter, false},
		{Role("unknown"), false},
	}

	for _, tt := range tests {
		if got := tt.role.IsWorker(); got != tt.worker {
			t.Errorf("Role(%q).IsWorker() = %v, want %v", tt.role, got, tt.worker)
		}
	}
}

func TestBatchIDs(t *testing.T) {
	b := Batch{Tasks: []Task{{ID: "t1"}, {ID: "t2"}}}
	ids := b.IDs()
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("unexpected batch IDs: %v", ids)
	}
}
