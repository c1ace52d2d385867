package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// Ensure FilePayloadArchive implements the archive port
var _ sat.PayloadArchive = (*FilePayloadArchive)(nil)

// FilePayloadArchive writes payloads to the local filesystem. Meant for
// development and single-node deployments without object storage.
type FilePayloadArchive struct {
	root string
}

// NewFilePayloadArchive creates an archive rooted at the given directory
func NewFilePayloadArchive(root string) (*FilePayloadArchive, error) {
	if root == "" {
		return nil, errors.New("archive root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &FilePayloadArchive{root: root}, nil
}

// Store implements sat.PayloadArchive
func (a *FilePayloadArchive) Store(_ context.Context, requestID uuid.UUID, fiscalUUID string, xml []byte) error {
	if fiscalUUID == "" {
		return errors.New("fiscal UUID is required")
	}

	dir := filepath.Join(a.root, requestID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	path := filepath.Join(dir, strings.ToLower(fiscalUUID)+".xml")
	if err := os.WriteFile(path, xml, 0o644); err != nil {
		return fmt.Errorf("failed to archive payload %s: %w", path, err)
	}
	return nil
}
