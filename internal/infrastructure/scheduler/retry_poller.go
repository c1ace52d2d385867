package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appsat "github.com/mxsuite/backend/internal/application/sat"
	"github.com/mxsuite/backend/internal/domain/sat"
)

// RetryPoller periodically scans for download requests whose retry or
// throttle pause has elapsed and re-dispatches them. It is the only
// component that wakes paused requests, so downloads keep moving
// without any operator action.
type RetryPoller struct {
	requests   sat.DownloadRequestRepository
	dispatcher appsat.JobDispatcher
	logger     *zap.Logger

	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

// NewRetryPoller creates a new retry poller
func NewRetryPoller(
	requests sat.DownloadRequestRepository,
	dispatcher appsat.JobDispatcher,
	interval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *RetryPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPoller{
		requests:   requests,
		dispatcher: dispatcher,
		logger:     logger.Named("retry_poller"),
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start begins polling in a background goroutine
func (p *RetryPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}
	p.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx)

	p.logger.Info("retry poller started",
		zap.Duration("interval", p.interval),
		zap.Int("batch_size", p.batchSize),
	)
	return nil
}

// Stop stops the polling loop
func (p *RetryPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	select {
	case <-done:
		p.logger.Info("retry poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RetryPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll dispatches every request whose retry time has passed. Exposed so
// tests and administrative tooling can force a scan.
func (p *RetryPoller) Poll(ctx context.Context) {
	due, err := p.requests.FindDueForRetry(ctx, time.Now(), p.batchSize)
	if err != nil {
		p.logger.Error("retry scan failed", zap.Error(err))
		return
	}

	for _, req := range due {
		action := req.NextAction()
		if err := p.dispatcher.Dispatch(appsat.SyncJob{RequestID: req.ID, Action: action}); err != nil {
			p.logger.Warn("failed to dispatch retry",
				zap.String("request_id", req.ID.String()),
				zap.String("action", string(action)),
				zap.Error(err),
			)
			continue
		}
		p.logger.Info("retry dispatched",
			zap.String("request_id", req.ID.String()),
			zap.String("action", string(action)),
			zap.Int("retry_count", req.RetryCount),
		)
	}
}
