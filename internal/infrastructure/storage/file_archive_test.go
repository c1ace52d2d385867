package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePayloadArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("stores payloads under the request directory", func(t *testing.T) {
		archive, err := NewFilePayloadArchive(t.TempDir())
		require.NoError(t, err)

		requestID := uuid.New()
		payload := []byte(`<cfdi:Comprobante/>`)
		require.NoError(t, archive.Store(ctx, requestID, "AD662D33-6934-459C-A128-BDF0393E0F44", payload))

		path := filepath.Join(archive.root, requestID.String(), "ad662d33-6934-459c-a128-bdf0393e0f44.xml")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("overwrites on repeated store", func(t *testing.T) {
		archive, err := NewFilePayloadArchive(t.TempDir())
		require.NoError(t, err)

		requestID := uuid.New()
		require.NoError(t, archive.Store(ctx, requestID, "b1", []byte("first")))
		require.NoError(t, archive.Store(ctx, requestID, "b1", []byte("second")))

		data, err := os.ReadFile(filepath.Join(archive.root, requestID.String(), "b1.xml"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), data)
	})

	t.Run("rejects an empty fiscal UUID", func(t *testing.T) {
		archive, err := NewFilePayloadArchive(t.TempDir())
		require.NoError(t, err)

		assert.Error(t, archive.Store(ctx, uuid.New(), "", []byte("x")))
	})

	t.Run("requires a root directory", func(t *testing.T) {
		_, err := NewFilePayloadArchive("")
		assert.Error(t, err)
	})
}

func TestArchiveKey(t *testing.T) {
	requestID := uuid.MustParse("7f9c24e5-2e4b-47b7-94cd-7f0f1c3a9f10")
	key := archiveKey(requestID, "AD662D33-6934-459C-A128-BDF0393E0F44")
	assert.Equal(t, "downloads/7f9c24e5-2e4b-47b7-94cd-7f0f1c3a9f10/ad662d33-6934-459c-a128-bdf0393e0f44.xml", key)
}
