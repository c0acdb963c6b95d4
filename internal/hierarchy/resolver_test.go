package hierarchy

import (
	"errors"
	"testing"

	"shopease-backend/internal/model"
)

func uintPtr(v uint) *uint { return &v }

func employee(id uint, managerID *uint) model.Employee {
	return model.Employee{ID: id, Name: "emp", Role: "Staff", ManagerID: managerID}
}

func TestBuildSimpleChain(t *testing.T) {
	employees := []model.Employee{
		employee(1, nil),
		employee(2, uintPtr(1)),
		employee(3, uintPtr(2)),
	}

	entries, err := Build(employees)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []struct {
		id    uint
		level int
	}{{1, 1}, {2, 2}, {3, 3}} {
		if entries[i].EmployeeID != want.id || entries[i].Level != want.level {
			t.Errorf("entry %d = (id=%d, level=%d), want (id=%d, level=%d)",
				i, entries[i].EmployeeID, entries[i].Level, want.id, want.level)
		}
	}
}

func TestBuildLevelsAreNonDecreasing(t *testing.T) {
	employees := []model.Employee{
		employee(1, nil),
		employee(2, nil),
		employee(3, uintPtr(1)),
		employee(4, uintPtr(2)),
		employee(5, uintPtr(3)),
		employee(6, uintPtr(1)),
	}

	entries, err := Build(employees)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entries) != len(employees) {
		t.Fatalf("expected %d entries, got %d", len(employees), len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Level < entries[i-1].Level {
			t.Errorf("levels not non-decreasing at index %d: %d after %d",
				i, entries[i].Level, entries[i-1].Level)
		}
	}
}

func TestBuildOrdersSiblingsByManagerThenID(t *testing.T) {
	// Two roots; level 2 must come out ordered by (manager_id, id).
	employees := []model.Employee{
		employee(1, nil),
		employee(2, nil),
		employee(5, uintPtr(2)),
		employee(3, uintPtr(2)),
		employee(4, uintPtr(1)),
	}

	entries, err := Build(employees)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var level2 []uint
	for _, e := range entries {
		if e.Level == 2 {
			level2 = append(level2, e.EmployeeID)
		}
	}
	want := []uint{4, 3, 5}
	if len(level2) != len(want) {
		t.Fatalf("level 2 ids = %v, want %v", level2, want)
	}
	for i := range want {
		if level2[i] != want[i] {
			t.Fatalf("level 2 ids = %v, want %v", level2, want)
		}
	}
}

func TestBuildDetectsTwoNodeCycle(t *testing.T) {
	employees := []model.Employee{
		employee(1, uintPtr(2)),
		employee(2, uintPtr(1)),
	}

	_, err := Build(employees)
	var cyc *model.CyclicHierarchyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicHierarchyError, got %v", err)
	}
}

func TestBuildDetectsCycleBelowValidTree(t *testing.T) {
	// A valid root plus a disconnected 3-cycle with a tail hanging off it.
	employees := []model.Employee{
		employee(1, nil),
		employee(2, uintPtr(1)),
		employee(10, uintPtr(12)),
		employee(11, uintPtr(10)),
		employee(12, uintPtr(11)),
		employee(13, uintPtr(10)),
	}

	_, err := Build(employees)
	var cyc *model.CyclicHierarchyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicHierarchyError, got %v", err)
	}
	if cyc.EmployeeID == 0 {
		t.Errorf("expected a representative employee id on the error")
	}
}

func TestBuildSelfManagedEmployeeIsACycle(t *testing.T) {
	employees := []model.Employee{
		employee(1, nil),
		employee(2, uintPtr(2)),
	}

	_, err := Build(employees)
	var cyc *model.CyclicHierarchyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicHierarchyError, got %v", err)
	}
	if cyc.EmployeeID != 2 {
		t.Errorf("expected cycle through employee 2, got %d", cyc.EmployeeID)
	}
}

func TestBuildDanglingManagerReference(t *testing.T) {
	employees := []model.Employee{
		employee(1, nil),
		employee(2, uintPtr(99)),
	}

	_, err := Build(employees)
	var cv *model.ConstraintViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("expected ConstraintViolationError, got %v", err)
	}
}

func TestBuildEmpty(t *testing.T) {
	entries, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
