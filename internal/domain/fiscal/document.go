package fiscal

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// DocumentSource records how a fiscal document entered the store
type DocumentSource string

const (
	SourceManual   DocumentSource = "manual"
	SourceDownload DocumentSource = "descarga"
)

// IsValid checks if the source is a valid DocumentSource
func (s DocumentSource) IsValid() bool {
	return s == SourceManual || s == SourceDownload
}

// DocumentKind distinguishes issued from received documents
type DocumentKind string

const (
	KindIssued   DocumentKind = "emitido"
	KindReceived DocumentKind = "recibido"
)

// IsValid checks if the kind is a valid DocumentKind
func (k DocumentKind) IsValid() bool {
	return k == KindIssued || k == KindReceived
}

// Document is a fiscal document in the production store. The fiscal UUID
// is unique across the store regardless of how the document arrived.
type Document struct {
	shared.BaseAggregateRoot
	FiscalUUID  string
	Kind        DocumentKind
	Source      DocumentSource
	IssuerRFC   string
	IssuerName  string
	ReceiverRFC string
	IssuedAt    time.Time
	Total       decimal.Decimal
	RawXML      string
}

// NewDocument creates a fiscal document
func NewDocument(fiscalUUID string, kind DocumentKind, source DocumentSource, issuerRFC, issuerName, receiverRFC string, issuedAt time.Time, total decimal.Decimal, rawXML string) (*Document, error) {
	canonical := strings.ToLower(strings.TrimSpace(fiscalUUID))
	if _, err := uuid.Parse(canonical); err != nil {
		return nil, shared.NewDomainError("INVALID_FISCAL_UUID", "Fiscal UUID is not a valid UUID")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Invalid document kind")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Invalid document source")
	}
	if issuerRFC == "" || receiverRFC == "" {
		return nil, shared.NewDomainError("INVALID_RFC", "Issuer and receiver RFC are required")
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TOTAL", "Document total cannot be negative")
	}

	return &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FiscalUUID:        canonical,
		Kind:              kind,
		Source:            source,
		IssuerRFC:         strings.ToUpper(strings.TrimSpace(issuerRFC)),
		IssuerName:        strings.TrimSpace(issuerName),
		ReceiverRFC:       strings.ToUpper(strings.TrimSpace(receiverRFC)),
		IssuedAt:          issuedAt,
		Total:             total,
		RawXML:            rawXML,
	}, nil
}
