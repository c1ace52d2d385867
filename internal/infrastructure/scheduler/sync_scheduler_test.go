package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsat "github.com/mxsuite/backend/internal/application/sat"
	"github.com/mxsuite/backend/internal/domain/sat"
)

// blockingExecutor records executed jobs and can hold workers on a gate
// so tests control when jobs finish.
type blockingExecutor struct {
	mu       sync.Mutex
	executed []appsat.SyncJob
	started  chan appsat.SyncJob
	gate     chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		started: make(chan appsat.SyncJob, 16),
		gate:    make(chan struct{}),
	}
}

func (e *blockingExecutor) Execute(ctx context.Context, requestID uuid.UUID, action sat.TriggerAction) error {
	e.started <- appsat.SyncJob{RequestID: requestID, Action: action}
	select {
	case <-e.gate:
	case <-ctx.Done():
		// prefer the gate if both fired at once
		select {
		case <-e.gate:
		default:
			return ctx.Err()
		}
	}
	e.mu.Lock()
	e.executed = append(e.executed, appsat.SyncJob{RequestID: requestID, Action: action})
	e.mu.Unlock()
	return nil
}

func (e *blockingExecutor) executedJobs() []appsat.SyncJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]appsat.SyncJob(nil), e.executed...)
}

func waitForJob(t *testing.T, started <-chan appsat.SyncJob) appsat.SyncJob {
	t.Helper()
	select {
	case job := <-started:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a job to start")
		return appsat.SyncJob{}
	}
}

func TestSyncScheduler(t *testing.T) {
	ctx := context.Background()

	newScheduler := func(t *testing.T, config Config, executor JobExecutor) *SyncScheduler {
		t.Helper()
		s, err := NewSyncScheduler(config, executor, zap.NewNop())
		require.NoError(t, err)
		return s
	}

	t.Run("dispatched jobs reach the executor", func(t *testing.T) {
		executor := newBlockingExecutor()
		close(executor.gate) // never block
		s := newScheduler(t, DefaultConfig(), executor)
		require.NoError(t, s.Start(ctx))
		defer s.Stop(ctx)

		requestID := uuid.New()
		require.NoError(t, s.Dispatch(appsat.SyncJob{RequestID: requestID, Action: sat.ActionRequest}))

		job := waitForJob(t, executor.started)
		assert.Equal(t, requestID, job.RequestID)
		assert.Equal(t, sat.ActionRequest, job.Action)
	})

	t.Run("rejects jobs when not running", func(t *testing.T) {
		s := newScheduler(t, DefaultConfig(), newBlockingExecutor())
		err := s.Dispatch(appsat.SyncJob{RequestID: uuid.New(), Action: sat.ActionVerify})
		assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	})

	t.Run("coalesces duplicate jobs for a queued request", func(t *testing.T) {
		executor := newBlockingExecutor()
		config := DefaultConfig()
		config.Workers = 1
		s := newScheduler(t, config, executor)
		require.NoError(t, s.Start(ctx))

		// Occupy the single worker so further jobs stay queued
		blocker := uuid.New()
		require.NoError(t, s.Dispatch(appsat.SyncJob{RequestID: blocker, Action: sat.ActionVerify}))
		waitForJob(t, executor.started)

		// Same request dispatched three times while queued
		requestID := uuid.New()
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Dispatch(appsat.SyncJob{RequestID: requestID, Action: sat.ActionVerify}))
		}

		close(executor.gate)
		waitForJob(t, executor.started)
		require.NoError(t, s.Stop(ctx))

		count := 0
		for _, job := range executor.executedJobs() {
			if job.RequestID == requestID {
				count++
			}
		}
		assert.Equal(t, 1, count, "queued duplicates should collapse into one run")
	})

	t.Run("reports a full queue", func(t *testing.T) {
		executor := newBlockingExecutor()
		config := DefaultConfig()
		config.Workers = 1
		config.QueueSize = 1
		s := newScheduler(t, config, executor)
		require.NoError(t, s.Start(ctx))

		// First job occupies the worker, second fills the queue
		require.NoError(t, s.Dispatch(appsat.SyncJob{RequestID: uuid.New(), Action: sat.ActionVerify}))
		waitForJob(t, executor.started)
		require.NoError(t, s.Dispatch(appsat.SyncJob{RequestID: uuid.New(), Action: sat.ActionVerify}))

		err := s.Dispatch(appsat.SyncJob{RequestID: uuid.New(), Action: sat.ActionVerify})
		assert.ErrorIs(t, err, ErrJobQueueFull)

		close(executor.gate)
		require.NoError(t, s.Stop(ctx))
	})

	t.Run("stop drains the workers", func(t *testing.T) {
		executor := newBlockingExecutor()
		s := newScheduler(t, DefaultConfig(), executor)
		require.NoError(t, s.Start(ctx))

		require.NoError(t, s.Dispatch(appsat.SyncJob{RequestID: uuid.New(), Action: sat.ActionRequest}))
		waitForJob(t, executor.started)
		close(executor.gate)
		require.Eventually(t, func() bool {
			return len(executor.executedJobs()) == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, s.Stop(ctx))
	})

	t.Run("invalid configuration is rejected", func(t *testing.T) {
		_, err := NewSyncScheduler(Config{Workers: 0, QueueSize: 10, JobTimeout: time.Minute}, newBlockingExecutor(), zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
