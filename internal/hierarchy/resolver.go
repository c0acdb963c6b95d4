// Package hierarchy resolves the employee management tree. The manager edge
// is a self-reference with no schema-level acyclicity guarantee, so traversal
// is iterative with a visited set and reports cycles instead of recursing
// into them.
package hierarchy

import (
	"context"
	"sort"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/database"
	"shopease-backend/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry is one row of the resolved hierarchy listing. Roots have Level 1 and
// a nil ManagerID.
type Entry struct {
	EmployeeID uint   `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ManagerID  *uint  `json:"manager_id"`
	Level      int    `json:"level"`
}

// Resolver computes the hierarchy listing from the employees table.
type Resolver struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a Resolver bound to the given database handle.
func New(db *gorm.DB, log *zap.Logger) *Resolver {
	return &Resolver{db: db, log: log}
}

// Resolve returns every employee annotated with its depth under the nearest
// root, ordered by (level, manager_id, employee_id). The listing is
// recomputed from scratch on every call.
//
// A manager cycle yields CyclicHierarchyError; an employee whose manager id
// references a missing row yields ConstraintViolationError.
func (r *Resolver) Resolve(ctx context.Context) ([]Entry, error) {
	var employees []model.Employee
	err := database.WithRetry(ctx, database.ReadAttempts, database.ReadBackoff, func() error {
		return r.db.WithContext(ctx).
			Select("id, name, role, manager_id").
			Order("id").
			Find(&employees).Error
	})
	if err != nil {
		prometheus.RecordHierarchyQuery("error")
		return nil, err
	}

	entries, err := Build(employees)
	if err != nil {
		prometheus.RecordHierarchyQuery("cycle")
		r.log.Error("employee hierarchy resolution failed", zap.Error(err))
		return nil, err
	}
	prometheus.RecordHierarchyQuery("ok")
	return entries, nil
}

// Build computes the hierarchy listing for the given employees without
// touching the database. Exported so the traversal semantics are testable in
// isolation.
func Build(employees []model.Employee) ([]Entry, error) {
	byID := make(map[uint]*model.Employee, len(employees))
	children := make(map[uint][]uint, len(employees))
	var roots []uint

	for i := range employees {
		e := &employees[i]
		byID[e.ID] = e
		if e.ManagerID == nil {
			roots = append(roots, e.ID)
		} else {
			children[*e.ManagerID] = append(children[*e.ManagerID], e.ID)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	// Breadth-first expansion level by level from the roots. A node is
	// visited at most once; anything left unvisited afterwards is not
	// connected to any root.
	visited := make(map[uint]bool, len(employees))
	entries := make([]Entry, 0, len(employees))
	frontier := roots
	for level := 1; len(frontier) > 0; level++ {
		var next []uint
		for _, id := range frontier {
			if visited[id] {
				continue
			}
			visited[id] = true
			e := byID[id]
			entries = append(entries, Entry{
				EmployeeID: e.ID,
				Name:       e.Name,
				Role:       e.Role,
				ManagerID:  e.ManagerID,
				Level:      level,
			})
			next = append(next, children[id]...)
		}
		sortByManagerThenID(next, byID)
		frontier = next
	}

	if len(entries) < len(employees) {
		return nil, classifyUnreachable(employees, byID, visited)
	}
	return entries, nil
}

// sortByManagerThenID orders a frontier so output within a level is sorted by
// (manager_id, employee_id), matching deterministic reporting order.
func sortByManagerThenID(ids []uint, byID map[uint]*model.Employee) {
	sort.Slice(ids, func(i, j int) bool {
		mi, mj := *byID[ids[i]].ManagerID, *byID[ids[j]].ManagerID
		if mi != mj {
			return mi < mj
		}
		return ids[i] < ids[j]
	})
}

// classifyUnreachable distinguishes a genuine manager cycle from a dangling
// manager reference among the nodes BFS never reached.
func classifyUnreachable(employees []model.Employee, byID map[uint]*model.Employee, visited map[uint]bool) error {
	for i := range employees {
		e := &employees[i]
		if visited[e.ID] {
			continue
		}
		// Walk the manager chain; in an unreachable subgraph every step
		// either loops or falls off the employee set.
		seen := map[uint]bool{}
		cur := e
		for cur.ManagerID != nil {
			if seen[cur.ID] {
				return &model.CyclicHierarchyError{EmployeeID: cur.ID}
			}
			seen[cur.ID] = true
			next, ok := byID[*cur.ManagerID]
			if !ok {
				return &model.ConstraintViolationError{
					Constraint: "fk_employees_manager",
					Detail:     "manager reference points at a missing employee",
				}
			}
			cur = next
		}
	}
	// Unreachable under normal data: every unvisited node must have a
	// manager, or BFS would have picked it up as a root.
	return &model.CyclicHierarchyError{}
}
