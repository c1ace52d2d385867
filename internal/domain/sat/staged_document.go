package sat

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// StagedDocument is one fiscal document extracted from a downloaded package,
// parked in the staging area until an operator imports or discards it.
// The fiscal UUID is the authority-issued identity; staging is idempotent
// on it so re-downloading a package never duplicates rows.
type StagedDocument struct {
	shared.BaseEntity
	RequestID   uuid.UUID
	FiscalUUID  string
	IssuerRFC   string
	IssuerName  string
	ReceiverRFC string
	IssuedAt    time.Time
	Total       decimal.Decimal
	RawXML      string
	Imported    bool
	ImportedAt  *time.Time
}

// NewStagedDocument creates a staged document from a parsed package entry
func NewStagedDocument(requestID uuid.UUID, fiscalUUID, issuerRFC, issuerName, receiverRFC string, issuedAt time.Time, total decimal.Decimal, rawXML string) (*StagedDocument, error) {
	canonical, err := CanonicalFiscalUUID(fiscalUUID)
	if err != nil {
		return nil, err
	}
	if requestID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Parent request ID is required")
	}
	if rawXML == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Raw document payload is required")
	}

	return &StagedDocument{
		BaseEntity:  shared.NewBaseEntity(),
		RequestID:   requestID,
		FiscalUUID:  canonical,
		IssuerRFC:   strings.ToUpper(strings.TrimSpace(issuerRFC)),
		IssuerName:  strings.TrimSpace(issuerName),
		ReceiverRFC: strings.ToUpper(strings.TrimSpace(receiverRFC)),
		IssuedAt:    issuedAt,
		Total:       total,
		RawXML:      rawXML,
	}, nil
}

// MarkImported records that the document was promoted to the production store
func (d *StagedDocument) MarkImported() {
	now := time.Now()
	d.Imported = true
	d.ImportedAt = &now
	d.UpdatedAt = now
}

// CanonicalFiscalUUID validates and normalizes an authority-issued fiscal
// UUID to its lowercase canonical form
func CanonicalFiscalUUID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", shared.NewDomainError("INVALID_FISCAL_UUID", "Fiscal UUID is not a valid UUID")
	}
	return strings.ToLower(parsed.String()), nil
}
