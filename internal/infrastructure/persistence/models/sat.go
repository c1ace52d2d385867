package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// DownloadRequestModel is the persistence model for the DownloadRequest aggregate
type DownloadRequestModel struct {
	AggregateModel
	Direction          string     `gorm:"type:varchar(10);not null;index"`
	PeriodStart        time.Time  `gorm:"type:timestamptz;not null"`
	PeriodEnd          time.Time  `gorm:"type:timestamptz;not null"`
	RemoteRequestID    string     `gorm:"type:varchar(100);index"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	RetryCount         int        `gorm:"not null;default:0"`
	NextRetryAt        *time.Time `gorm:"type:timestamptz;index"`
	ThrottleKind       *string    `gorm:"type:varchar(20)"`
	TotalDocuments     int        `gorm:"not null;default:0"`
	InsertedDocuments  int        `gorm:"not null;default:0"`
	DuplicateDocuments int        `gorm:"not null;default:0"`
	ErrorDocuments     int        `gorm:"not null;default:0"`
	LastError          string     `gorm:"type:text"`
	ErrorDetails       string     `gorm:"type:jsonb;default:'{}'"`
	CancelRequested    bool       `gorm:"not null;default:false"`
	RequestedAt        *time.Time `gorm:"type:timestamptz"`
	CompletedAt        *time.Time `gorm:"type:timestamptz"`
	CancelledAt        *time.Time `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (DownloadRequestModel) TableName() string {
	return "sat_download_requests"
}

// ToDomain converts the persistence model to a domain DownloadRequest
func (m *DownloadRequestModel) ToDomain() *sat.DownloadRequest {
	req := &sat.DownloadRequest{
		BaseAggregateRoot:  m.ToDomainAggregate(),
		Direction:          sat.Direction(m.Direction),
		PeriodStart:        m.PeriodStart,
		PeriodEnd:          m.PeriodEnd,
		RequestID:          m.RemoteRequestID,
		Status:             sat.DownloadStatus(m.Status),
		RetryCount:         m.RetryCount,
		NextRetryAt:        m.NextRetryAt,
		TotalDocuments:     m.TotalDocuments,
		InsertedDocuments:  m.InsertedDocuments,
		DuplicateDocuments: m.DuplicateDocuments,
		ErrorDocuments:     m.ErrorDocuments,
		LastError:          m.LastError,
		CancelRequested:    m.CancelRequested,
		RequestedAt:        m.RequestedAt,
		CompletedAt:        m.CompletedAt,
		CancelledAt:        m.CancelledAt,
	}
	if m.ThrottleKind != nil {
		kind := sat.ThrottleKind(*m.ThrottleKind)
		req.ThrottleKind = &kind
	}
	if m.ErrorDetails != "" {
		_ = json.Unmarshal([]byte(m.ErrorDetails), &req.Errors)
	}
	return req
}

// FromDomain populates the persistence model from a domain DownloadRequest
func (m *DownloadRequestModel) FromDomain(r *sat.DownloadRequest) {
	m.FromDomainAggregate(r.BaseAggregateRoot)
	m.Direction = r.Direction.String()
	m.PeriodStart = r.PeriodStart
	m.PeriodEnd = r.PeriodEnd
	m.RemoteRequestID = r.RequestID
	m.Status = r.Status.String()
	m.RetryCount = r.RetryCount
	m.NextRetryAt = r.NextRetryAt
	m.TotalDocuments = r.TotalDocuments
	m.InsertedDocuments = r.InsertedDocuments
	m.DuplicateDocuments = r.DuplicateDocuments
	m.ErrorDocuments = r.ErrorDocuments
	m.LastError = r.LastError
	m.CancelRequested = r.CancelRequested
	m.RequestedAt = r.RequestedAt
	m.CompletedAt = r.CompletedAt
	m.CancelledAt = r.CancelledAt

	m.ThrottleKind = nil
	if r.ThrottleKind != nil {
		kind := string(*r.ThrottleKind)
		m.ThrottleKind = &kind
	}

	if details, err := json.Marshal(r.Errors); err == nil {
		m.ErrorDetails = string(details)
	} else {
		m.ErrorDetails = "{}"
	}
}

// DownloadRequestModelFromDomain creates a persistence model from a domain DownloadRequest
func DownloadRequestModelFromDomain(r *sat.DownloadRequest) *DownloadRequestModel {
	m := &DownloadRequestModel{}
	m.FromDomain(r)
	return m
}

// StagedDocumentModel is the persistence model for the staging area
type StagedDocumentModel struct {
	EntityModel
	RequestID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	FiscalUUID  string          `gorm:"type:varchar(36);not null;uniqueIndex"`
	IssuerRFC   string          `gorm:"type:varchar(13);not null;index"`
	IssuerName  string          `gorm:"type:varchar(255)"`
	ReceiverRFC string          `gorm:"type:varchar(13);not null"`
	IssuedAt    time.Time       `gorm:"type:timestamptz;not null;index"`
	Total       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	RawXML      string          `gorm:"type:text;not null"`
	Imported    bool            `gorm:"not null;default:false;index"`
	ImportedAt  *time.Time      `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (StagedDocumentModel) TableName() string {
	return "sat_staged_documents"
}

// ToDomain converts the persistence model to a domain StagedDocument
func (m *StagedDocumentModel) ToDomain() *sat.StagedDocument {
	return &sat.StagedDocument{
		BaseEntity:  m.ToDomainEntity(),
		RequestID:   m.RequestID,
		FiscalUUID:  m.FiscalUUID,
		IssuerRFC:   m.IssuerRFC,
		IssuerName:  m.IssuerName,
		ReceiverRFC: m.ReceiverRFC,
		IssuedAt:    m.IssuedAt,
		Total:       m.Total,
		RawXML:      m.RawXML,
		Imported:    m.Imported,
		ImportedAt:  m.ImportedAt,
	}
}

// FromDomain populates the persistence model from a domain StagedDocument
func (m *StagedDocumentModel) FromDomain(d *sat.StagedDocument) {
	m.FromDomainEntity(d.BaseEntity)
	m.RequestID = d.RequestID
	m.FiscalUUID = d.FiscalUUID
	m.IssuerRFC = d.IssuerRFC
	m.IssuerName = d.IssuerName
	m.ReceiverRFC = d.ReceiverRFC
	m.IssuedAt = d.IssuedAt
	m.Total = d.Total
	m.RawXML = d.RawXML
	m.Imported = d.Imported
	m.ImportedAt = d.ImportedAt
}

// StagedDocumentModelFromDomain creates a persistence model from a domain StagedDocument
func StagedDocumentModelFromDomain(d *sat.StagedDocument) *StagedDocumentModel {
	m := &StagedDocumentModel{}
	m.FromDomain(d)
	return m
}
