package sat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// DownloadRequestFilter narrows download request listings
type DownloadRequestFilter struct {
	Status    *DownloadStatus
	Direction *Direction
	From      *time.Time
	To        *time.Time
}

// DownloadRequestRepository persists download request aggregates
type DownloadRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*DownloadRequest, error)
	FindAll(ctx context.Context, filter DownloadRequestFilter, page, pageSize int) (*shared.Paginated[*DownloadRequest], error)
	// FindDueForRetry returns error or paused requests whose next retry
	// time has passed, oldest first
	FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*DownloadRequest, error)
	Save(ctx context.Context, request *DownloadRequest) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StagedDocumentRepository persists the staging area
type StagedDocumentRepository interface {
	// InsertIfAbsent stores the document unless one with the same fiscal
	// UUID is already staged. Returns true when a row was inserted.
	InsertIfAbsent(ctx context.Context, doc *StagedDocument) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*StagedDocument, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*StagedDocument, error)
	// ListByRequest returns all staged documents for a request, pending
	// ones first, newest issue date first within each group
	ListByRequest(ctx context.Context, requestID uuid.UUID, page, pageSize int) (*shared.Paginated[*StagedDocument], error)
	// ListPending returns the not-yet-imported documents for a request
	ListPending(ctx context.Context, requestID uuid.UUID) ([]*StagedDocument, error)
	Save(ctx context.Context, doc *StagedDocument) error
	DeleteByRequest(ctx context.Context, requestID uuid.UUID) error
}

// JobLeaseStore provides per-request mutual exclusion for sync jobs.
// The lease survives process restarts so a crashed worker cannot leave
// a request permanently locked past the TTL.
type JobLeaseStore interface {
	// Acquire takes the lease for a request. Returns false when another
	// job already holds it.
	Acquire(ctx context.Context, requestID uuid.UUID, action TriggerAction, ttl time.Duration) (bool, error)
	Release(ctx context.Context, requestID uuid.UUID) error
}

// PayloadArchive stores raw downloaded XML payloads for audit
type PayloadArchive interface {
	Store(ctx context.Context, requestID uuid.UUID, fiscalUUID string, xml []byte) error
}
