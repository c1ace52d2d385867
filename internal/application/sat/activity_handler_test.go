package sat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mxsuite/backend/internal/domain/sat"
)

func newObservedHandler() (*SyncActivityHandler, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewSyncActivityHandler(zap.New(core)), logs
}

func activityRequest(t *testing.T) *sat.DownloadRequest {
	t.Helper()
	req, err := sat.NewDownloadRequest(sat.DirectionReceived,
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
	)
	require.NoError(t, err)
	return req
}

func TestSyncActivityHandler_EventTypes(t *testing.T) {
	handler := NewSyncActivityHandler(nil)
	types := handler.EventTypes()

	assert.Contains(t, types, sat.EventDownloadRequestCreated)
	assert.Contains(t, types, sat.EventDownloadCompleted)
	assert.Contains(t, types, sat.EventDocumentsImported)
}

func TestSyncActivityHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("created event logs at info with the period", func(t *testing.T) {
		handler, logs := newObservedHandler()
		req := activityRequest(t)

		err := handler.Handle(ctx, sat.NewDownloadRequestCreatedEvent(req))
		require.NoError(t, err)

		entries := logs.FilterMessage("download request created").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, "recibido", entries[0].ContextMap()["direction"])
	})

	t.Run("transient failure logs at warn, permanent at error", func(t *testing.T) {
		handler, logs := newObservedHandler()
		req := activityRequest(t)

		require.NoError(t, handler.Handle(ctx, sat.NewDownloadFailedEvent(req, false)))
		require.NoError(t, handler.Handle(ctx, sat.NewDownloadFailedEvent(req, true)))

		assert.Len(t, logs.FilterMessage("download step failed").All(), 1)
		permanent := logs.FilterMessage("download failed permanently").All()
		require.Len(t, permanent, 1)
		assert.Equal(t, zap.ErrorLevel, permanent[0].Level)
	})

	t.Run("import event carries the batch counters", func(t *testing.T) {
		handler, logs := newObservedHandler()
		req := activityRequest(t)

		err := handler.Handle(ctx, sat.NewDocumentsImportedEvent(req, 10, 2, 1))
		require.NoError(t, err)

		entries := logs.FilterMessage("staged documents imported").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(10), entries[0].ContextMap()["inserted"])
		assert.Equal(t, int64(2), entries[0].ContextMap()["duplicates"])
	})
}
