package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"shopease-backend/internal/model"
	"shopease-backend/pkg/config"
	"shopease-backend/pkg/database"
	"shopease-backend/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "scheduler_test"}})
	os.Exit(m.Run())
}

// executorFunc adapts a function to the Executor interface.
type executorFunc func(ctx context.Context, task *model.ReportTask) (string, error)

func (f executorFunc) Execute(ctx context.Context, task *model.ReportTask) (string, error) {
	return f(ctx, task)
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Workers:      2,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		BaseBackoff:  time.Millisecond,
		MaxBackoff:   10 * time.Millisecond,
	}
}

func newTestScheduler(exec Executor, cfg config.SchedulerConfig) (*Scheduler, *MemoryStore) {
	store := NewMemoryStore()
	return New(store, exec, cfg, zap.NewNop()), store
}

// waitForStatus polls until the task reaches want or the deadline passes.
func waitForStatus(t *testing.T, s *Scheduler, id string, want model.TaskStatus) *model.ReportTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := s.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(2 * time.Millisecond)
	}
	last := model.TaskStatus("unknown")
	if task, err := s.GetStatus(context.Background(), id); err == nil {
		last = task.Status
	}
	t.Fatalf("task %s never reached %s (last status %s)", id, want, last)
	return nil
}

func TestSubmitReturnsImmediatelyWithPendingTask(t *testing.T) {
	// No workers started: submission must not depend on execution.
	exec := executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		t.Fatal("executor must not run without workers")
		return "", nil
	})
	s, _ := newTestScheduler(exec, testConfig())

	start := time.Now()
	task, err := s.Submit(context.Background(), "top_selling_products", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Submit took %s, expected sub-second return", elapsed)
	}
	if task.ID == "" {
		t.Fatal("expected a task id")
	}
	if task.Status != model.TaskStatusPending {
		t.Fatalf("status = %s, want %s", task.Status, model.TaskStatusPending)
	}

	got, err := s.GetStatus(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got.Status != model.TaskStatusPending {
		t.Fatalf("status = %s, want %s", got.Status, model.TaskStatusPending)
	}
}

func TestSubmitRejectsEmptyKind(t *testing.T) {
	s, _ := newTestScheduler(executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		return "", nil
	}), testConfig())

	_, err := s.Submit(context.Background(), "", "")
	var cv *model.ConstraintViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("expected ConstraintViolationError, got %v", err)
	}
}

func TestWorkerExecutesTaskToSuccess(t *testing.T) {
	exec := executorFunc(func(_ context.Context, task *model.ReportTask) (string, error) {
		return "reports/" + task.Kind + "_" + task.ID + ".xlsx", nil
	})
	s, _ := newTestScheduler(exec, testConfig())
	s.Start(context.Background())
	defer s.Stop()

	task, err := s.Submit(context.Background(), "store_revenue", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitForStatus(t, s, task.ID, model.TaskStatusSucceeded)
	if done.ResultRef == nil {
		t.Fatal("expected result_ref on succeeded task")
	}
	want := "reports/store_revenue_" + task.ID + ".xlsx"
	if *done.ResultRef != want {
		t.Errorf("result_ref = %q, want %q", *done.ResultRef, want)
	}
	if done.CompletedAt == nil {
		t.Error("expected completed_at on succeeded task")
	}
}

func TestStatusIsNeverTerminalBeforeCompletion(t *testing.T) {
	release := make(chan struct{})
	exec := executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		<-release
		return "ref", nil
	})
	s, _ := newTestScheduler(exec, testConfig())
	s.Start(context.Background())
	defer s.Stop()

	task, err := s.Submit(context.Background(), "sales_summary", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// While the executor is blocked, status must be PENDING or RUNNING.
	for i := 0; i < 20; i++ {
		got, err := s.GetStatus(context.Background(), task.ID)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if got.Status != model.TaskStatusPending && got.Status != model.TaskStatusRunning {
			t.Fatalf("premature terminal status %s", got.Status)
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	waitForStatus(t, s, task.ID, model.TaskStatusSucceeded)
}

func TestTransientFailureIsRetriedToSuccess(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	exec := executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return "", fmt.Errorf("connection reset")
		}
		return "ref", nil
	})
	cfg := testConfig()
	cfg.MaxAttempts = 5
	s, _ := newTestScheduler(exec, cfg)
	s.Start(context.Background())
	defer s.Stop()

	task, err := s.Submit(context.Background(), "store_revenue", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitForStatus(t, s, task.ID, model.TaskStatusSucceeded)
	if done.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 recorded failures", done.Attempts)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("executor ran %d times, want 3", calls)
	}
}

func TestPermanentFailureAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	exec := executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return "", fmt.Errorf("report source unavailable")
	})
	cfg := testConfig()
	cfg.MaxAttempts = 2
	s, _ := newTestScheduler(exec, cfg)
	s.Start(context.Background())
	defer s.Stop()

	task, err := s.Submit(context.Background(), "top_selling_products", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitForStatus(t, s, task.ID, model.TaskStatusFailed)
	if done.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", done.Attempts)
	}
	if done.LastError == nil {
		t.Fatal("expected last_error on failed task")
	}
	if done.CompletedAt == nil {
		t.Error("expected completed_at on failed task")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("executor ran %d times, want 2", calls)
	}
}

func TestCancelPendingTask(t *testing.T) {
	// No workers: the task stays PENDING until cancelled.
	s, _ := newTestScheduler(executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		return "", nil
	}), testConfig())

	task, err := s.Submit(context.Background(), "sales_summary", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Cancel(context.Background(), task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, err := s.GetStatus(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got.Status != model.TaskStatusCancelled {
		t.Fatalf("status = %s, want %s", got.Status, model.TaskStatusCancelled)
	}

	// Cancelled is terminal: a second cancel is rejected.
	var cv *model.ConstraintViolationError
	if err := s.Cancel(context.Background(), task.ID); !errors.As(err, &cv) {
		t.Fatalf("expected ConstraintViolationError on double cancel, got %v", err)
	}
}

func TestCancelRejectsRunningTask(t *testing.T) {
	s, store := newTestScheduler(executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		return "", nil
	}), testConfig())

	task, err := s.Submit(context.Background(), "store_revenue", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	claimed, err := store.ClaimNext(context.Background(), "worker-test", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: task=%v err=%v", claimed, err)
	}

	var cv *model.ConstraintViolationError
	if err := s.Cancel(context.Background(), task.ID); !errors.As(err, &cv) {
		t.Fatalf("expected ConstraintViolationError cancelling a running task, got %v", err)
	}
}

func TestCancelMissingTask(t *testing.T) {
	s, _ := newTestScheduler(executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		return "", nil
	}), testConfig())

	var nf *model.NotFoundError
	if err := s.Cancel(context.Background(), "no-such-task"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStartRecoversTasksStrandedInRunning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// A previous process claimed the task and died before finishing it.
	task := &model.ReportTask{
		ID:          "stranded-1",
		Kind:        "store_revenue",
		Status:      model.TaskStatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := store.ClaimNext(ctx, "dead-worker", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: task=%v err=%v", claimed, err)
	}

	exec := executorFunc(func(_ context.Context, task *model.ReportTask) (string, error) {
		return "reports/" + task.Kind + "_" + task.ID + ".xlsx", nil
	})
	s := New(store, exec, testConfig(), zap.NewNop())
	s.Start(ctx)
	defer s.Stop()

	done := waitForStatus(t, s, task.ID, model.TaskStatusSucceeded)
	if done.ResultRef == nil {
		t.Fatal("expected result_ref on recovered task")
	}
}

func TestMemoryStoreRecoverStranded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	task := &model.ReportTask{
		ID:          "t1",
		Kind:        "sales_summary",
		Status:      model.TaskStatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.ClaimNext(ctx, "w1", time.Now().UTC()); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	n, err := store.RecoverStranded(ctx)
	if err != nil {
		t.Fatalf("RecoverStranded: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d tasks, want 1", n)
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.TaskStatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
	if got.LockedBy != nil {
		t.Errorf("locked_by = %q, want cleared", *got.LockedBy)
	}

	// The re-queued task is claimable again.
	claimed, err := store.ClaimNext(ctx, "w2", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext after recovery: task=%v err=%v", claimed, err)
	}
}

// The durable store needs a real database for the same check: a row left
// RUNNING by a dead worker must become claimable again after recovery.
func TestGormStoreRecoverStranded(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires postgres)")
	}

	appConfig, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	db, err := database.Connect(&appConfig.Database, zap.NewNop())
	if err != nil {
		t.Fatalf("database.Connect: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate: %v", err)
	}

	store := NewGormStore(db)
	ctx := context.Background()

	task := &model.ReportTask{
		ID:          uuid.New().String(),
		Kind:        "store_revenue",
		Status:      model.TaskStatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var claimed *model.ReportTask
	for claimed == nil || claimed.ID != task.ID {
		claimed, err = store.ClaimNext(ctx, "dead-worker", time.Now().UTC())
		if err != nil {
			t.Fatalf("ClaimNext: %v", err)
		}
		if claimed == nil {
			t.Fatal("task never claimed")
		}
		if claimed.ID != task.ID {
			// Another pending row from earlier runs; park it as failed.
			if err := store.MarkFailed(ctx, claimed.ID, "displaced by test", nil); err != nil {
				t.Fatalf("MarkFailed: %v", err)
			}
		}
	}

	n, err := store.RecoverStranded(ctx)
	if err != nil {
		t.Fatalf("RecoverStranded: %v", err)
	}
	if n < 1 {
		t.Fatalf("recovered %d tasks, want at least 1", n)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.TaskStatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
	if got.LockedBy != nil {
		t.Errorf("locked_by = %q, want cleared", *got.LockedBy)
	}
}

func TestMemoryStoreClaimOrderIsDeterministic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	created := time.Now().UTC()

	// Identical timestamps: id breaks the tie.
	for _, id := range []string{"t-b", "t-a", "t-c"} {
		task := &model.ReportTask{
			ID:          id,
			Kind:        "store_revenue",
			Status:      model.TaskStatusPending,
			MaxAttempts: 3,
			CreatedAt:   created,
		}
		if err := store.Create(ctx, task); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	for _, want := range []string{"t-a", "t-b", "t-c"} {
		claimed, err := store.ClaimNext(ctx, "w1", time.Now().UTC())
		if err != nil || claimed == nil {
			t.Fatalf("ClaimNext: task=%v err=%v", claimed, err)
		}
		if claimed.ID != want {
			t.Fatalf("claimed %s, want %s", claimed.ID, want)
		}
	}
}

func TestBackoffIsExponentialAndCapped(t *testing.T) {
	cfg := config.SchedulerConfig{
		Workers:      1,
		PollInterval: time.Second,
		MaxAttempts:  10,
		BaseBackoff:  time.Second,
		MaxBackoff:   10 * time.Second,
	}
	s, _ := newTestScheduler(executorFunc(func(context.Context, *model.ReportTask) (string, error) {
		return "", nil
	}), cfg)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{9, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := s.backoff(tc.attempt); got != tc.want {
			t.Errorf("backoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestMemoryStoreTransitionGuards(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	task := &model.ReportTask{
		ID:          "t1",
		Kind:        "store_revenue",
		Status:      model.TaskStatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Succeed/fail require RUNNING.
	if err := store.MarkSucceeded(ctx, "t1", "ref"); err == nil {
		t.Fatal("MarkSucceeded on PENDING task must fail")
	}
	if err := store.MarkFailed(ctx, "t1", "boom", nil); err == nil {
		t.Fatal("MarkFailed on PENDING task must fail")
	}

	claimed, err := store.ClaimNext(ctx, "w1", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: task=%v err=%v", claimed, err)
	}
	if claimed.Status != model.TaskStatusRunning {
		t.Fatalf("claimed status = %s, want RUNNING", claimed.Status)
	}

	// A claimed task is not visible to other workers.
	other, err := store.ClaimNext(ctx, "w2", time.Now().UTC())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if other != nil {
		t.Fatalf("second claim returned task %s", other.ID)
	}

	if err := store.MarkSucceeded(ctx, "t1", "ref"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	// Terminal states accept no further transitions.
	if err := store.MarkFailed(ctx, "t1", "boom", nil); err == nil {
		t.Fatal("MarkFailed on SUCCEEDED task must fail")
	}
}

func TestMemoryStoreRespectsNextAttemptAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	task := &model.ReportTask{
		ID:            "t1",
		Kind:          "sales_summary",
		Status:        model.TaskStatusPending,
		NextAttemptAt: &future,
		MaxAttempts:   3,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, "w1", time.Now().UTC())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed a task not yet due: %s", claimed.ID)
	}

	claimed, err = store.ClaimNext(ctx, "w1", future.Add(time.Minute))
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext after due time: task=%v err=%v", claimed, err)
	}
}
