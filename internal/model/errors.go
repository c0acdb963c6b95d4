package model

import (
	"fmt"
)

// OutOfStockError is returned when an order item requests more units than the
// product has on hand at commit time. The caller may retry with a smaller
// quantity.
type OutOfStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %d out of stock: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// ConstraintViolationError is returned when a write breaks a uniqueness,
// foreign-key, or check constraint, or fails pre-write validation.
type ConstraintViolationError struct {
	Constraint string
	Detail     string
}

func (e *ConstraintViolationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("constraint violation (%s): %s", e.Constraint, e.Detail)
	}
	return fmt.Sprintf("constraint violation (%s)", e.Constraint)
}

// CyclicHierarchyError indicates a manager cycle in the employee graph. This
// is a data-integrity fault: the hierarchy cannot be resolved and the cycle
// must be surfaced, not truncated.
type CyclicHierarchyError struct {
	EmployeeID uint
}

func (e *CyclicHierarchyError) Error() string {
	return fmt.Sprintf("employee hierarchy contains a manager cycle through employee %d", e.EmployeeID)
}

// ConnectionError wraps a transient infrastructure fault that survived the
// DAL's bounded retries.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TaskExecutionError records a report generation failure on the task. It is
// never surfaced to the submitter; it is only visible via status polling.
type TaskExecutionError struct {
	TaskID string
	Err    error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s execution failed: %v", e.TaskID, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }
