package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsat "github.com/mxsuite/backend/internal/application/sat"
	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

// dueRepository serves a fixed list of due requests
type dueRepository struct {
	due []*sat.DownloadRequest
	err error
}

func (r *dueRepository) FindByID(context.Context, uuid.UUID) (*sat.DownloadRequest, error) {
	return nil, shared.ErrNotFound
}

func (r *dueRepository) FindAll(context.Context, sat.DownloadRequestFilter, int, int) (*shared.Paginated[*sat.DownloadRequest], error) {
	return nil, nil
}

func (r *dueRepository) FindDueForRetry(context.Context, time.Time, int) ([]*sat.DownloadRequest, error) {
	return r.due, r.err
}

func (r *dueRepository) Save(context.Context, *sat.DownloadRequest) error { return nil }
func (r *dueRepository) Delete(context.Context, uuid.UUID) error          { return nil }

// recordingDispatcher collects dispatched jobs
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []appsat.SyncJob
	err  error
}

func (d *recordingDispatcher) Dispatch(job appsat.SyncJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) dispatched() []appsat.SyncJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]appsat.SyncJob(nil), d.jobs...)
}

func dueRequest(t *testing.T, withHandle bool) *sat.DownloadRequest {
	t.Helper()
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	req, err := sat.NewDownloadRequest(sat.DirectionReceived, start, end)
	require.NoError(t, err)
	if withHandle {
		require.NoError(t, req.MarkRequested("REQ-REMOTE"))
	}
	return req
}

func TestRetryPoller(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches due requests with the right action", func(t *testing.T) {
		fresh := dueRequest(t, false)
		inProgress := dueRequest(t, true)
		repo := &dueRepository{due: []*sat.DownloadRequest{fresh, inProgress}}
		dispatcher := &recordingDispatcher{}

		poller := NewRetryPoller(repo, dispatcher, time.Minute, 20, zap.NewNop())
		poller.Poll(ctx)

		jobs := dispatcher.dispatched()
		require.Len(t, jobs, 2)
		assert.Equal(t, fresh.ID, jobs[0].RequestID)
		assert.Equal(t, sat.ActionRequest, jobs[0].Action, "request without a remote handle restarts from the request step")
		assert.Equal(t, inProgress.ID, jobs[1].RequestID)
		assert.Equal(t, sat.ActionRecheck, jobs[1].Action, "request with a handle resumes by rechecking it")
	})

	t.Run("a failed dispatch does not stop the batch", func(t *testing.T) {
		repo := &dueRepository{due: []*sat.DownloadRequest{dueRequest(t, false), dueRequest(t, false)}}
		dispatcher := &recordingDispatcher{err: ErrJobQueueFull}

		poller := NewRetryPoller(repo, dispatcher, time.Minute, 20, zap.NewNop())
		assert.NotPanics(t, func() { poller.Poll(ctx) })
	})

	t.Run("scan errors are swallowed", func(t *testing.T) {
		repo := &dueRepository{err: errors.New("database gone")}
		dispatcher := &recordingDispatcher{}

		poller := NewRetryPoller(repo, dispatcher, time.Minute, 20, zap.NewNop())
		poller.Poll(ctx)
		assert.Empty(t, dispatcher.dispatched())
	})

	t.Run("background loop polls on the interval", func(t *testing.T) {
		repo := &dueRepository{due: []*sat.DownloadRequest{dueRequest(t, true)}}
		dispatcher := &recordingDispatcher{}

		poller := NewRetryPoller(repo, dispatcher, 20*time.Millisecond, 20, zap.NewNop())
		require.NoError(t, poller.Start(ctx))
		defer poller.Stop(ctx)

		require.Eventually(t, func() bool {
			return len(dispatcher.dispatched()) >= 2
		}, 2*time.Second, 10*time.Millisecond)
	})
}
