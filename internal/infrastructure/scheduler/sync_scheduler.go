package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsat "github.com/mxsuite/backend/internal/application/sat"
	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// JobExecutor runs one sync action against a download request
type JobExecutor interface {
	Execute(ctx context.Context, requestID uuid.UUID, action sat.TriggerAction) error
}

// Config holds worker pool settings for the sync scheduler
type Config struct {
	// Workers is the number of concurrent job workers
	Workers int
	// QueueSize is the capacity of the job queue
	QueueSize int
	// JobTimeout is the maximum time a single job can run
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:    3,
		QueueSize:  100,
		JobTimeout: 10 * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler runs download sync jobs on a bounded worker pool. It
// implements the application layer's JobDispatcher: jobs for a request
// already sitting in the queue are coalesced, so hammering the trigger
// endpoint never piles up duplicate work.
type SyncScheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs   chan appsat.SyncJob
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	queued    map[uuid.UUID]struct{}
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config Config, executor JobExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger.Named("scheduler"),
		jobs:     make(chan appsat.SyncJob, config.QueueSize),
		queued:   make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the worker pool
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop drains the workers and waits for in-flight jobs, bounded by ctx
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Dispatch implements appsat.JobDispatcher. A job for a request that is
// already queued is dropped silently; the queued job will observe the
// request's current state when it runs.
func (s *SyncScheduler) Dispatch(job appsat.SyncJob) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	if _, pending := s.queued[job.RequestID]; pending {
		s.mu.Unlock()
		s.logger.Debug("job coalesced",
			zap.String("request_id", job.RequestID.String()),
			zap.String("action", string(job.Action)),
		)
		return nil
	}
	s.queued[job.RequestID] = struct{}{}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		s.logger.Debug("job queued",
			zap.String("request_id", job.RequestID.String()),
			zap.String("action", string(job.Action)),
		)
		return nil
	default:
		s.mu.Lock()
		delete(s.queued, job.RequestID)
		s.mu.Unlock()
		return ErrJobQueueFull
	}
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.runJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) runJob(ctx context.Context, job appsat.SyncJob, workerID int) {
	s.mu.Lock()
	delete(s.queued, job.RequestID)
	s.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err := s.executor.Execute(jobCtx, job.RequestID, job.Action)
	switch {
	case err == nil:
		s.logger.Debug("job finished",
			zap.Int("worker_id", workerID),
			zap.String("request_id", job.RequestID.String()),
			zap.String("action", string(job.Action)),
		)
	case errors.Is(err, shared.ErrRequestInFlight):
		// Another worker or instance holds the lease; the lease owner
		// will finish the work
		s.logger.Debug("job skipped, request already in flight",
			zap.String("request_id", job.RequestID.String()),
		)
	default:
		s.logger.Error("job failed",
			zap.Int("worker_id", workerID),
			zap.String("request_id", job.RequestID.String()),
			zap.String("action", string(job.Action)),
			zap.Error(err),
		)
	}
}

// Compile-time interface compliance check
var _ appsat.JobDispatcher = (*SyncScheduler)(nil)
