package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mxsuite/backend/internal/domain/fiscal"
)

// FiscalDocumentModel is the persistence model for the Document aggregate
type FiscalDocumentModel struct {
	AggregateModel
	FiscalUUID  string          `gorm:"type:varchar(36);not null;uniqueIndex"`
	Kind        string          `gorm:"type:varchar(10);not null;index"`
	Source      string          `gorm:"type:varchar(10);not null;index"`
	IssuerRFC   string          `gorm:"type:varchar(13);not null;index"`
	IssuerName  string          `gorm:"type:varchar(255)"`
	ReceiverRFC string          `gorm:"type:varchar(13);not null;index"`
	IssuedAt    time.Time       `gorm:"type:timestamptz;not null;index"`
	Total       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	RawXML      string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (FiscalDocumentModel) TableName() string {
	return "fiscal_documents"
}

// ToDomain converts the persistence model to a domain Document
func (m *FiscalDocumentModel) ToDomain() *fiscal.Document {
	return &fiscal.Document{
		BaseAggregateRoot: m.ToDomainAggregate(),
		FiscalUUID:        m.FiscalUUID,
		Kind:              fiscal.DocumentKind(m.Kind),
		Source:            fiscal.DocumentSource(m.Source),
		IssuerRFC:         m.IssuerRFC,
		IssuerName:        m.IssuerName,
		ReceiverRFC:       m.ReceiverRFC,
		IssuedAt:          m.IssuedAt,
		Total:             m.Total,
		RawXML:            m.RawXML,
	}
}

// FromDomain populates the persistence model from a domain Document
func (m *FiscalDocumentModel) FromDomain(d *fiscal.Document) {
	m.FromDomainAggregate(d.BaseAggregateRoot)
	m.FiscalUUID = d.FiscalUUID
	m.Kind = string(d.Kind)
	m.Source = string(d.Source)
	m.IssuerRFC = d.IssuerRFC
	m.IssuerName = d.IssuerName
	m.ReceiverRFC = d.ReceiverRFC
	m.IssuedAt = d.IssuedAt
	m.Total = d.Total
	m.RawXML = d.RawXML
}

// FiscalDocumentModelFromDomain creates a persistence model from a domain Document
func FiscalDocumentModelFromDomain(d *fiscal.Document) *FiscalDocumentModel {
	m := &FiscalDocumentModel{}
	m.FromDomain(d)
	return m
}
