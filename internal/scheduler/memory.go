package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopease-backend/internal/model"
)

// MemoryStore is an in-memory TaskStore. It implements the same transition
// guards as GormStore and backs tests and broker-less local runs; tasks in it
// do not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*model.ReportTask
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*model.ReportTask)}
}

func (s *MemoryStore) Create(_ context.Context, task *model.ReportTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return &model.ConstraintViolationError{
			Constraint: "report_tasks_pkey",
			Detail:     "duplicate task id",
		}
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.ReportTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, &model.NotFoundError{Entity: "report task", ID: id}
	}
	cp := *task
	return &cp, nil
}

func (s *MemoryStore) ClaimNext(_ context.Context, workerID string, now time.Time) (*model.ReportTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*model.ReportTask
	for _, task := range s.tasks {
		if task.Status != model.TaskStatusPending {
			continue
		}
		if task.NextAttemptAt != nil && task.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, task)
	}
	if len(due) == 0 {
		return nil, nil
	}
	// Tie-break on id so equal timestamps claim in a deterministic order.
	sort.Slice(due, func(i, j int) bool {
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})

	task := due[0]
	task.Status = model.TaskStatusRunning
	task.LockedBy = &workerID
	cp := *task
	return &cp, nil
}

func (s *MemoryStore) MarkSucceeded(_ context.Context, id, resultRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != model.TaskStatusRunning {
		return &model.NotFoundError{Entity: "running report task", ID: id}
	}
	now := time.Now().UTC()
	task.Status = model.TaskStatusSucceeded
	task.ResultRef = &resultRef
	task.CompletedAt = &now
	task.LastError = nil
	task.LockedBy = nil
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, reason string, retryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != model.TaskStatusRunning {
		return &model.NotFoundError{Entity: "running report task", ID: id}
	}
	task.Attempts++
	task.LastError = &reason
	task.NextAttemptAt = retryAt
	task.LockedBy = nil
	if retryAt != nil {
		task.Status = model.TaskStatusPending
	} else {
		now := time.Now().UTC()
		task.Status = model.TaskStatusFailed
		task.CompletedAt = &now
	}
	return nil
}

func (s *MemoryStore) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return &model.NotFoundError{Entity: "report task", ID: id}
	}
	if task.Status != model.TaskStatusPending {
		return &model.ConstraintViolationError{
			Constraint: "report_task_cancellable",
			Detail:     "only pending tasks can be cancelled",
		}
	}
	task.Status = model.TaskStatusCancelled
	return nil
}

func (s *MemoryStore) RecoverStranded(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, task := range s.tasks {
		if task.Status == model.TaskStatusRunning {
			task.Status = model.TaskStatusPending
			task.LockedBy = nil
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, task := range s.tasks {
		if task.Status == model.TaskStatusPending {
			n++
		}
	}
	return n, nil
}
