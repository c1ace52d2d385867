package sat

import (
	"time"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/fiscal"
	"github.com/mxsuite/backend/internal/domain/sat"
)

// CreateRangeCommand asks for a period to be covered by download requests
type CreateRangeCommand struct {
	Direction   string    `json:"direction" binding:"required,oneof=emitido recibido"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
}

// DownloadRequestDTO is the API representation of a download request
type DownloadRequestDTO struct {
	ID                 uuid.UUID         `json:"id"`
	Direction          string            `json:"direction"`
	PeriodStart        time.Time         `json:"period_start"`
	PeriodEnd          time.Time         `json:"period_end"`
	RequestID          string            `json:"request_id,omitempty"`
	Status             string            `json:"status"`
	RetryCount         int               `json:"retry_count"`
	NextRetryAt        *time.Time        `json:"next_retry_at,omitempty"`
	ThrottleKind       string            `json:"throttle_kind,omitempty"`
	TotalDocuments     int               `json:"total_documents"`
	InsertedDocuments  int               `json:"inserted_documents"`
	DuplicateDocuments int               `json:"duplicate_documents"`
	ErrorDocuments     int               `json:"error_documents"`
	LastError          string            `json:"last_error,omitempty"`
	Errors             sat.RequestErrors `json:"errors"`
	CancelRequested    bool              `json:"cancel_requested"`
	RequestedAt        *time.Time        `json:"requested_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ToDownloadRequestDTO converts a download request aggregate to its DTO
func ToDownloadRequestDTO(r *sat.DownloadRequest) *DownloadRequestDTO {
	dto := &DownloadRequestDTO{
		ID:                 r.ID,
		Direction:          r.Direction.String(),
		PeriodStart:        r.PeriodStart,
		PeriodEnd:          r.PeriodEnd,
		RequestID:          r.RequestID,
		Status:             r.Status.String(),
		RetryCount:         r.RetryCount,
		NextRetryAt:        r.NextRetryAt,
		TotalDocuments:     r.TotalDocuments,
		InsertedDocuments:  r.InsertedDocuments,
		DuplicateDocuments: r.DuplicateDocuments,
		ErrorDocuments:     r.ErrorDocuments,
		LastError:          r.LastError,
		Errors:             r.Errors,
		CancelRequested:    r.CancelRequested,
		RequestedAt:        r.RequestedAt,
		CompletedAt:        r.CompletedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.ThrottleKind != nil {
		dto.ThrottleKind = string(*r.ThrottleKind)
	}
	return dto
}

// StagedDocumentDTO is the API representation of a staged document.
// ExistingDocument is set on pending rows whose fiscal UUID the
// production store already holds.
type StagedDocumentDTO struct {
	ID               uuid.UUID            `json:"id"`
	RequestID        uuid.UUID            `json:"request_id"`
	FiscalUUID       string               `json:"fiscal_uuid"`
	IssuerRFC        string               `json:"issuer_rfc"`
	IssuerName       string               `json:"issuer_name,omitempty"`
	ReceiverRFC      string               `json:"receiver_rfc"`
	IssuedAt         time.Time            `json:"issued_at"`
	Total            string               `json:"total"`
	Imported         bool                 `json:"imported"`
	ImportedAt       *time.Time           `json:"imported_at,omitempty"`
	ExistingDocument *ExistingDocumentDTO `json:"existing_document,omitempty"`
}

// ExistingDocumentDTO summarizes the production record behind a duplicate
type ExistingDocumentDTO struct {
	ID       uuid.UUID `json:"id"`
	Source   string    `json:"source"`
	IssuedAt time.Time `json:"issued_at"`
	Total    string    `json:"total"`
}

// ToExistingDocumentDTO converts a fiscal document to its duplicate summary
func ToExistingDocumentDTO(d *fiscal.Document) *ExistingDocumentDTO {
	return &ExistingDocumentDTO{
		ID:       d.ID,
		Source:   string(d.Source),
		IssuedAt: d.IssuedAt,
		Total:    d.Total.StringFixed(2),
	}
}

// ToStagedDocumentDTO converts a staged document to its DTO
func ToStagedDocumentDTO(d *sat.StagedDocument) *StagedDocumentDTO {
	return &StagedDocumentDTO{
		ID:          d.ID,
		RequestID:   d.RequestID,
		FiscalUUID:  d.FiscalUUID,
		IssuerRFC:   d.IssuerRFC,
		IssuerName:  d.IssuerName,
		ReceiverRFC: d.ReceiverRFC,
		IssuedAt:    d.IssuedAt,
		Total:       d.Total.StringFixed(2),
		Imported:    d.Imported,
		ImportedAt:  d.ImportedAt,
	}
}

// ImportCommand selects staged documents to promote into the document store.
// An empty DocumentIDs list means all pending documents of the request.
type ImportCommand struct {
	RequestID   uuid.UUID   `json:"request_id" binding:"required"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
}

// ImportResultDTO summarizes one import batch
type ImportResultDTO struct {
	Inserted       int      `json:"inserted"`
	Duplicates     int      `json:"duplicates"`
	Errors         int      `json:"errors"`
	DuplicateUUIDs []string `json:"duplicate_uuids,omitempty"`
	MalformedUUIDs []string `json:"malformed_uuids,omitempty"`
}

// TriggerCommand starts a sync action on a download request
type TriggerCommand struct {
	Action string `json:"action" binding:"required,oneof=request verify recheck"`
}

// ListDownloadRequestsQuery filters download request listings
type ListDownloadRequestsQuery struct {
	Status    string `form:"status"`
	Direction string `form:"direction"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}
