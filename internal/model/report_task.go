package model

import (
	"time"
)

// TaskStatus is the lifecycle state of a report task. Transitions are
// forward-only; see CanTransition.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusCancelled
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. RUNNING -> PENDING is allowed only as a retry re-queue after a
// transient failure.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusCancelled
	case TaskStatusRunning:
		return next == TaskStatusSucceeded || next == TaskStatusFailed || next == TaskStatusPending
	default:
		return false
	}
}

// ReportTask is the durable record of one asynchronous report request. It
// lives in its own table, separate from the business entities, and is owned
// by the scheduler.
type ReportTask struct {
	ID            string     `json:"task_id" gorm:"type:varchar(36);primarykey"`
	Kind          string     `json:"kind" gorm:"type:varchar(100);not null;index"`
	Params        string     `json:"params" gorm:"type:text"`
	Status        TaskStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Attempts      int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts   int        `json:"max_attempts" gorm:"not null;default:3"`
	NextAttemptAt *time.Time `json:"next_attempt_at" gorm:"index"`
	LockedBy      *string    `json:"locked_by,omitempty" gorm:"type:varchar(100)"`
	LastError     *string    `json:"last_error,omitempty" gorm:"type:text"`
	ResultRef     *string    `json:"result_ref,omitempty" gorm:"type:varchar(512)"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
