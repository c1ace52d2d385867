package sat

import (
	"time"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// Event types for the download context
const (
	EventDownloadRequestCreated = "sat.download_request.created"
	EventPackageRequested       = "sat.download_request.requested"
	EventDownloadCompleted      = "sat.download_request.completed"
	EventDownloadFailed         = "sat.download_request.failed"
	EventDownloadPaused         = "sat.download_request.paused"
	EventRequestReset           = "sat.download_request.reset"
	EventDocumentsImported      = "sat.staged_documents.imported"
)

// DownloadRequestCreatedEvent is raised when a new download request is created
type DownloadRequestCreatedEvent struct {
	shared.BaseDomainEvent
	Direction   Direction `json:"direction"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// NewDownloadRequestCreatedEvent creates a new download request created event
func NewDownloadRequestCreatedEvent(r *DownloadRequest) *DownloadRequestCreatedEvent {
	return &DownloadRequestCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDownloadRequestCreated, "DownloadRequest", r.ID),
		Direction:       r.Direction,
		PeriodStart:     r.PeriodStart,
		PeriodEnd:       r.PeriodEnd,
	}
}

// PackageRequestedEvent is raised when the remote service accepts a request
type PackageRequestedEvent struct {
	shared.BaseDomainEvent
	RemoteRequestID string `json:"remote_request_id"`
}

// NewPackageRequestedEvent creates a new package requested event
func NewPackageRequestedEvent(r *DownloadRequest) *PackageRequestedEvent {
	return &PackageRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPackageRequested, "DownloadRequest", r.ID),
		RemoteRequestID: r.RequestID,
	}
}

// DownloadCompletedEvent is raised when a package has been fetched and staged
type DownloadCompletedEvent struct {
	shared.BaseDomainEvent
	TotalDocuments int `json:"total_documents"`
	ErrorDocuments int `json:"error_documents"`
}

// NewDownloadCompletedEvent creates a new download completed event
func NewDownloadCompletedEvent(r *DownloadRequest) *DownloadCompletedEvent {
	return &DownloadCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDownloadCompleted, "DownloadRequest", r.ID),
		TotalDocuments:  r.TotalDocuments,
		ErrorDocuments:  r.ErrorDocuments,
	}
}

// DownloadFailedEvent is raised when a step of the protocol fails
type DownloadFailedEvent struct {
	shared.BaseDomainEvent
	Permanent  bool   `json:"permanent"`
	RetryCount int    `json:"retry_count"`
	Message    string `json:"message"`
}

// NewDownloadFailedEvent creates a new download failed event
func NewDownloadFailedEvent(r *DownloadRequest, permanent bool) *DownloadFailedEvent {
	return &DownloadFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDownloadFailed, "DownloadRequest", r.ID),
		Permanent:       permanent,
		RetryCount:      r.RetryCount,
		Message:         r.LastError,
	}
}

// DownloadPausedEvent is raised when the remote service throttles a request
type DownloadPausedEvent struct {
	shared.BaseDomainEvent
	ThrottleKind ThrottleKind `json:"throttle_kind"`
	ResumeAt     *time.Time   `json:"resume_at,omitempty"`
}

// NewDownloadPausedEvent creates a new download paused event
func NewDownloadPausedEvent(r *DownloadRequest) *DownloadPausedEvent {
	evt := &DownloadPausedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDownloadPaused, "DownloadRequest", r.ID),
		ResumeAt:        r.NextRetryAt,
	}
	if r.ThrottleKind != nil {
		evt.ThrottleKind = *r.ThrottleKind
	}
	return evt
}

// RequestResetEvent is raised when an operator re-arms a stalled request
type RequestResetEvent struct {
	shared.BaseDomainEvent
}

// NewRequestResetEvent creates a new request reset event
func NewRequestResetEvent(r *DownloadRequest) *RequestResetEvent {
	return &RequestResetEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventRequestReset, "DownloadRequest", r.ID),
	}
}

// DocumentsImportedEvent is raised when staged documents are promoted into
// the production document store
type DocumentsImportedEvent struct {
	shared.BaseDomainEvent
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// NewDocumentsImportedEvent creates a new documents imported event
func NewDocumentsImportedEvent(r *DownloadRequest, inserted, duplicates, errorCount int) *DocumentsImportedEvent {
	return &DocumentsImportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDocumentsImported, "DownloadRequest", r.ID),
		Inserted:        inserted,
		Duplicates:      duplicates,
		Errors:          errorCount,
	}
}
