package fiscal

import (
	"time"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/fiscal"
)

// ListDocumentsQuery filters document listings
type ListDocumentsQuery struct {
	Kind     string     `form:"kind"`
	Source   string     `form:"source"`
	RFC      string     `form:"rfc"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// DocumentDTO is the API representation of a fiscal document
type DocumentDTO struct {
	ID          uuid.UUID `json:"id"`
	FiscalUUID  string    `json:"fiscal_uuid"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source"`
	IssuerRFC   string    `json:"issuer_rfc"`
	IssuerName  string    `json:"issuer_name,omitempty"`
	ReceiverRFC string    `json:"receiver_rfc"`
	IssuedAt    time.Time `json:"issued_at"`
	Total       string    `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToDocumentDTO converts a fiscal document to its DTO
func ToDocumentDTO(d *fiscal.Document) *DocumentDTO {
	return &DocumentDTO{
		ID:          d.ID,
		FiscalUUID:  d.FiscalUUID,
		Kind:        string(d.Kind),
		Source:      string(d.Source),
		IssuerRFC:   d.IssuerRFC,
		IssuerName:  d.IssuerName,
		ReceiverRFC: d.ReceiverRFC,
		IssuedAt:    d.IssuedAt,
		Total:       d.Total.StringFixed(2),
		CreatedAt:   d.CreatedAt,
	}
}
