package scheduler

import (
	"context"
	"time"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskStore persists report tasks and mediates every status transition. The
// WHERE clauses on the transition methods are what make task status
// monotonic: an update only lands if the row is still in the expected state.
type TaskStore interface {
	// Create persists a new task in state PENDING.
	Create(ctx context.Context, task *model.ReportTask) error
	// Get returns the task by id, or NotFoundError.
	Get(ctx context.Context, id string) (*model.ReportTask, error)
	// ClaimNext atomically moves the oldest due PENDING task to RUNNING and
	// returns it. Returns (nil, nil) when no task is due.
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.ReportTask, error)
	// MarkSucceeded finishes a RUNNING task with its result location.
	MarkSucceeded(ctx context.Context, id, resultRef string) error
	// MarkFailed records a failure on a RUNNING task. A non-nil retryAt
	// re-queues the task as PENDING for that time; nil makes the failure
	// permanent.
	MarkFailed(ctx context.Context, id, reason string, retryAt *time.Time) error
	// Cancel moves a PENDING task to CANCELLED. Tasks in any other state are
	// not cancellable.
	Cancel(ctx context.Context, id string) error
	// RecoverStranded re-queues every RUNNING task as PENDING and returns
	// how many were re-queued. Called once at startup, before any worker
	// claims: a RUNNING row at that point was stranded by a crashed worker
	// process and would otherwise never run again.
	RecoverStranded(ctx context.Context) (int64, error)
	// CountPending returns the number of tasks waiting for a worker.
	CountPending(ctx context.Context) (int64, error)
}

// GormStore is the durable TaskStore over the report_tasks table. Tasks
// survive a crash of the worker process: RecoverStranded re-queues rows left
// RUNNING, and executors are idempotent per task id, so a re-run after a
// mid-execution crash overwrites its own artifact.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a durable task store on the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, task *model.ReportTask) error {
	return database.TranslateError(s.db.WithContext(ctx).Create(task).Error)
}

func (s *GormStore) Get(ctx context.Context, id string) (*model.ReportTask, error) {
	var task model.ReportTask
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, database.TranslateNotFound(err, "report task", id)
	}
	return &task, nil
}

func (s *GormStore) ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.ReportTask, error) {
	var claimed *model.ReportTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []model.ReportTask
		// SKIP LOCKED lets concurrent workers claim distinct rows without
		// serializing on each other.
		q := tx.
			Where("status = ?", model.TaskStatusPending).
			Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
			Order("created_at ASC, id ASC").
			Limit(1).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		task := tasks[0]
		res := tx.Model(&model.ReportTask{}).
			Where("id = ? AND status = ?", task.ID, model.TaskStatusPending).
			Updates(map[string]interface{}{
				"status":    model.TaskStatusRunning,
				"locked_by": workerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		task.Status = model.TaskStatusRunning
		task.LockedBy = &workerID
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return claimed, nil
}

func (s *GormStore) MarkSucceeded(ctx context.Context, id, resultRef string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&model.ReportTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusSucceeded,
			"result_ref":   resultRef,
			"completed_at": &now,
			"last_error":   nil,
			"locked_by":    nil,
		})
	if res.Error != nil {
		return database.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return &model.NotFoundError{Entity: "running report task", ID: id}
	}
	return nil
}

func (s *GormStore) MarkFailed(ctx context.Context, id, reason string, retryAt *time.Time) error {
	updates := map[string]interface{}{
		"attempts":        gorm.Expr("attempts + 1"),
		"last_error":      reason,
		"next_attempt_at": retryAt,
		"locked_by":       nil,
	}
	if retryAt != nil {
		updates["status"] = model.TaskStatusPending
	} else {
		now := time.Now().UTC()
		updates["status"] = model.TaskStatusFailed
		updates["completed_at"] = &now
	}
	res := s.db.WithContext(ctx).Model(&model.ReportTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return database.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return &model.NotFoundError{Entity: "running report task", ID: id}
	}
	return nil
}

func (s *GormStore) Cancel(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.ReportTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusPending).
		Update("status", model.TaskStatusCancelled)
	if res.Error != nil {
		return database.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		// Either missing or already past PENDING; let the caller tell the
		// difference.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return &model.ConstraintViolationError{
			Constraint: "report_task_cancellable",
			Detail:     "only pending tasks can be cancelled",
		}
	}
	return nil
}

func (s *GormStore) RecoverStranded(ctx context.Context) (int64, error) {
	// Attempts are not incremented: a crash is not a recorded execution
	// failure, and the idempotent artifact naming makes the re-run safe.
	res := s.db.WithContext(ctx).Model(&model.ReportTask{}).
		Where("status = ?", model.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":    model.TaskStatusPending,
			"locked_by": nil,
		})
	if res.Error != nil {
		return 0, database.TranslateError(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.ReportTask{}).
		Where("status = ?", model.TaskStatusPending).
		Count(&n).Error
	return n, database.TranslateError(err)
}
