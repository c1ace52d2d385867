package sat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mxsuite/backend/internal/domain/sat"
	"github.com/mxsuite/backend/internal/domain/shared"
)

func newDownloadServiceFixture() (*DownloadService, *MockDownloadRequestRepository, *MockStagedDocumentRepository, *MockJobDispatcher) {
	requests := new(MockDownloadRequestRepository)
	staging := new(MockStagedDocumentRepository)
	dispatcher := new(MockJobDispatcher)
	svc := NewDownloadService(requests, staging, dispatcher, nil, 31)
	return svc, requests, staging, dispatcher
}

func pendingRequest(t *testing.T) *sat.DownloadRequest {
	t.Helper()
	req, err := sat.NewDownloadRequest(sat.DirectionReceived,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	req.ClearDomainEvents()
	return req
}

func TestDownloadServiceCreateRange(t *testing.T) {
	ctx := context.Background()

	t.Run("persists one request per slice", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		requests.On("Save", ctx, mock.AnythingOfType("*sat.DownloadRequest")).Return(nil).Twice()

		dtos, err := svc.CreateRange(ctx, CreateRangeCommand{
			Direction:   "recibido",
			PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		})

		require.NoError(t, err)
		require.Len(t, dtos, 2)
		assert.Equal(t, "pendiente", dtos[0].Status)
		assert.Equal(t, "pendiente", dtos[1].Status)
		requests.AssertExpectations(t)
	})

	t.Run("rejects invalid direction without saving", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()

		_, err := svc.CreateRange(ctx, CreateRangeCommand{
			Direction:   "ambos",
			PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		})

		assert.Error(t, err)
		requests.AssertNotCalled(t, "Save")
	})
}

func TestDownloadServiceTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches allowed action", func(t *testing.T) {
		svc, requests, _, dispatcher := newDownloadServiceFixture()
		req := pendingRequest(t)
		requests.On("FindByID", ctx, req.ID).Return(req, nil)
		dispatcher.On("Dispatch", SyncJob{RequestID: req.ID, Action: sat.ActionRequest}).Return(nil)

		dto, err := svc.Trigger(ctx, req.ID, sat.ActionRequest)

		require.NoError(t, err)
		assert.Equal(t, req.ID, dto.ID)
		dispatcher.AssertExpectations(t)
	})

	t.Run("rejects action not allowed in current status", func(t *testing.T) {
		svc, requests, _, dispatcher := newDownloadServiceFixture()
		req := pendingRequest(t)
		requests.On("FindByID", ctx, req.ID).Return(req, nil)

		_, err := svc.Trigger(ctx, req.ID, sat.ActionVerify)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
		dispatcher.AssertNotCalled(t, "Dispatch")
	})

	t.Run("propagates not found", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		id := uuid.New()
		requests.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Trigger(ctx, id, sat.ActionRequest)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestDownloadServiceResetForRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("resets stalled request", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		require.NoError(t, req.FailPermanent("rejected"))
		requests.On("FindByID", ctx, req.ID).Return(req, nil)
		requests.On("Save", ctx, req).Return(nil)

		dto, err := svc.ResetForRetry(ctx, req.ID)

		require.NoError(t, err)
		assert.Equal(t, "pendiente", dto.Status)
		assert.Equal(t, 0, dto.RetryCount)
	})

	t.Run("rejects reset of completed request", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		require.NoError(t, req.CompleteEmpty())
		requests.On("FindByID", ctx, req.ID).Return(req, nil)

		_, err := svc.ResetForRetry(ctx, req.ID)
		assert.Error(t, err)
		requests.AssertNotCalled(t, "Save")
	})
}

func TestDownloadServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes terminal request with its staging rows", func(t *testing.T) {
		svc, requests, staging, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		require.NoError(t, req.CompleteEmpty())
		requests.On("FindByID", ctx, req.ID).Return(req, nil)
		staging.On("DeleteByRequest", ctx, req.ID).Return(nil)
		requests.On("Delete", ctx, req.ID).Return(nil)

		require.NoError(t, svc.Delete(ctx, req.ID))
		staging.AssertExpectations(t)
		requests.AssertExpectations(t)
	})

	t.Run("refuses to delete request with in-flight work", func(t *testing.T) {
		svc, requests, staging, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		require.NoError(t, req.MarkRequested("REQ-001"))
		requests.On("FindByID", ctx, req.ID).Return(req, nil)

		err := svc.Delete(ctx, req.ID)

		assert.Error(t, err)
		staging.AssertNotCalled(t, "DeleteByRequest")
		requests.AssertNotCalled(t, "Delete")
	})
}

func TestDownloadServiceCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels idle request", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		requests.On("FindByID", ctx, req.ID).Return(req, nil)
		requests.On("Save", ctx, req).Return(nil)

		dto, err := svc.Cancel(ctx, req.ID)

		require.NoError(t, err)
		assert.Equal(t, "cancelado", dto.Status)
	})

	t.Run("defers cancel of processing request", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		require.NoError(t, req.MarkRequested("REQ-001"))
		require.NoError(t, req.MarkReady())
		require.NoError(t, req.StartProcessing())
		requests.On("FindByID", ctx, req.ID).Return(req, nil)
		requests.On("Save", ctx, req).Return(nil)

		dto, err := svc.Cancel(ctx, req.ID)

		require.NoError(t, err)
		assert.Equal(t, "procesando", dto.Status)
		assert.True(t, dto.CancelRequested)
	})
}

func TestDownloadServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("applies status filter", func(t *testing.T) {
		svc, requests, _, _ := newDownloadServiceFixture()
		req := pendingRequest(t)
		page := shared.NewPaginated([]*sat.DownloadRequest{req}, 1, 1, 20)
		requests.On("FindAll", ctx, mock.MatchedBy(func(f sat.DownloadRequestFilter) bool {
			return f.Status != nil && *f.Status == sat.StatusPending
		}), 1, 20).Return(&page, nil)

		result, err := svc.List(ctx, ListDownloadRequestsQuery{Status: "pendiente"})

		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
		require.Len(t, result.Items, 1)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc, _, _, _ := newDownloadServiceFixture()
		_, err := svc.List(ctx, ListDownloadRequestsQuery{Status: "terminado"})
		assert.Error(t, err)
	})
}
