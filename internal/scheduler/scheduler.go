// Package scheduler decouples report computation from the request path: a
// submission persists a task and returns its id immediately; a worker pool
// executes tasks out-of-band with bounded retries.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/config"
	"shopease-backend/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor runs one report task and returns the location of the produced
// artifact. Execution is at-least-once: a task may run again after a crash
// mid-execution, so outputs must be idempotent (keyed by task id).
type Executor interface {
	Execute(ctx context.Context, task *model.ReportTask) (resultRef string, err error)
}

// Scheduler accepts report requests and runs them on its worker pool.
type Scheduler struct {
	store TaskStore
	exec  Executor
	cfg   config.SchedulerConfig
	log   *zap.Logger

	wake   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Scheduler; call Start to launch the workers.
func New(store TaskStore, exec Executor, cfg config.SchedulerConfig, log *zap.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Minute
	}
	return &Scheduler{
		store: store,
		exec:  exec,
		cfg:   cfg,
		log:   log,
		wake:  make(chan struct{}, 1),
	}
}

// Submit persists a task in state PENDING and wakes a worker. It never
// blocks on report computation; the returned task carries the id to poll.
func (s *Scheduler) Submit(ctx context.Context, kind, params string) (*model.ReportTask, error) {
	if kind == "" {
		return nil, &model.ConstraintViolationError{
			Constraint: "report_tasks_kind_check",
			Detail:     "report kind must not be empty",
		}
	}
	task := &model.ReportTask{
		ID:          uuid.New().String(),
		Kind:        kind,
		Params:      params,
		Status:      model.TaskStatusPending,
		MaxAttempts: s.cfg.MaxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	prometheus.RecordReportTask(kind, string(model.TaskStatusPending))
	s.refreshPendingGauge(ctx)

	// Non-blocking wake; workers also poll on a timer.
	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.log.Info("report task submitted",
		zap.String("task_id", task.ID),
		zap.String("kind", kind))
	return task, nil
}

// GetStatus returns the current state of a task.
func (s *Scheduler) GetStatus(ctx context.Context, id string) (*model.ReportTask, error) {
	return s.store.Get(ctx, id)
}

// Cancel cancels a PENDING task. Running tasks run to completion.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	if err := s.store.Cancel(ctx, id); err != nil {
		return err
	}
	s.log.Info("report task cancelled", zap.String("task_id", id))
	return nil
}

// Start launches the worker pool. Workers stop claiming new tasks when ctx
// is cancelled; a task already picked up runs to completion.
//
// Tasks left RUNNING by a previous process are re-queued first, so a crash
// mid-execution delays a task rather than stranding it.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if n, err := s.store.RecoverStranded(ctx); err != nil {
		s.log.Error("failed to recover stranded report tasks", zap.Error(err))
	} else if n > 0 {
		s.log.Warn("re-queued report tasks stranded by a previous run",
			zap.Int64("tasks", n))
		s.refreshPendingGauge(ctx)
	}

	for i := 0; i < s.cfg.Workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		s.wg.Add(1)
		go s.workerLoop(ctx, workerID)
	}
	s.log.Info("report scheduler started", zap.Int("workers", s.cfg.Workers))
}

// Stop signals the workers and waits for in-flight tasks to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) workerLoop(ctx context.Context, workerID string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.drainQueue(ctx, workerID)
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// drainQueue claims and executes tasks until the queue is empty or ctx is
// cancelled.
func (s *Scheduler) drainQueue(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		task, err := s.store.ClaimNext(ctx, workerID, time.Now().UTC())
		if err != nil {
			s.log.Error("failed to claim report task",
				zap.String("worker_id", workerID),
				zap.Error(err))
			return
		}
		if task == nil {
			return
		}
		s.runTask(ctx, workerID, task)
	}
}

func (s *Scheduler) runTask(ctx context.Context, workerID string, task *model.ReportTask) {
	// A claimed task runs to completion even when the scheduler is stopping.
	ctx = context.WithoutCancel(ctx)

	prometheus.RecordReportTask(task.Kind, string(model.TaskStatusRunning))
	s.refreshPendingGauge(ctx)
	start := time.Now()

	resultRef, execErr := s.exec.Execute(ctx, task)
	prometheus.ReportTaskDuration.WithLabelValues(task.Kind).Observe(time.Since(start).Seconds())

	if execErr == nil {
		if err := s.store.MarkSucceeded(ctx, task.ID, resultRef); err != nil {
			s.log.Error("failed to record task success",
				zap.String("task_id", task.ID),
				zap.Error(err))
			return
		}
		prometheus.RecordReportTask(task.Kind, string(model.TaskStatusSucceeded))
		s.log.Info("report task succeeded",
			zap.String("worker_id", workerID),
			zap.String("task_id", task.ID),
			zap.String("result_ref", resultRef),
			zap.Duration("duration", time.Since(start)))
		return
	}

	taskErr := &model.TaskExecutionError{TaskID: task.ID, Err: execErr}
	attempts := task.Attempts + 1
	var retryAt *time.Time
	if attempts < task.MaxAttempts {
		t := time.Now().UTC().Add(s.backoff(attempts))
		retryAt = &t
	}
	if err := s.store.MarkFailed(ctx, task.ID, taskErr.Error(), retryAt); err != nil {
		s.log.Error("failed to record task failure",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return
	}
	if retryAt != nil {
		prometheus.RecordReportTask(task.Kind, string(model.TaskStatusPending))
		s.refreshPendingGauge(ctx)
		s.log.Warn("report task failed, will retry",
			zap.String("worker_id", workerID),
			zap.String("task_id", task.ID),
			zap.Int("attempts", attempts),
			zap.Time("next_attempt_at", *retryAt),
			zap.Error(execErr))
		return
	}
	prometheus.RecordReportTask(task.Kind, string(model.TaskStatusFailed))
	s.log.Error("report task failed permanently",
		zap.String("worker_id", workerID),
		zap.String("task_id", task.ID),
		zap.Int("attempts", attempts),
		zap.Error(execErr))
}

// backoff returns base * 2^(attempt-1), capped at the configured maximum.
func (s *Scheduler) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return s.cfg.BaseBackoff
	}
	delay := time.Duration(float64(s.cfg.BaseBackoff) * math.Pow(2, float64(attempt-1)))
	if delay > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return delay
}

func (s *Scheduler) refreshPendingGauge(ctx context.Context) {
	if n, err := s.store.CountPending(ctx); err == nil {
		prometheus.PendingTasksGauge.Set(float64(n))
	}
}
