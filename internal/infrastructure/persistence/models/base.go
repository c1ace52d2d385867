package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// EntityModel holds the columns shared by all persistence models
type EntityModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

// FromDomainEntity populates the model from a domain base entity
func (m *EntityModel) FromDomainEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// ToDomainEntity converts the model columns to a domain base entity
func (m *EntityModel) ToDomainEntity() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// AggregateModel adds optimistic-locking support for aggregate roots
type AggregateModel struct {
	EntityModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregate populates the model from a domain aggregate root
func (m *AggregateModel) FromDomainAggregate(a shared.BaseAggregateRoot) {
	m.FromDomainEntity(a.BaseEntity)
	m.Version = a.Version
}

// ToDomainAggregate converts the model columns to a domain aggregate root
func (m *AggregateModel) ToDomainAggregate() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.ToDomainEntity(),
		Version:    m.Version,
	}
}
