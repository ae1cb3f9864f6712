package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity is the capability set shared by every persisted aggregate: a stable
// string identity and a table. The generic repository is bounded by it.
type Entity interface {
	EntityID() string
	TableName() string
}

// SoftDeletable marks entities carrying deleted_at/deleted_by columns.
type SoftDeletable interface {
	SupportsSoftDelete() bool
}

// BaseModel 通用主键与审计字段（所有业务模型嵌入）
type BaseModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"                       json:"id"`
	CreatedAt time.Time `gorm:"not null"                                   json:"created_at"`
	CreatedBy *string   `gorm:"type:varchar(100)"                          json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"              json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(100)"                          json:"updated_by,omitempty"`
}

// EntityID returns the primary key.
func (m BaseModel) EntityID() string { return m.ID }

// EnsureID assigns a fresh UUID when the entity has none yet, so staged
// writes can be referenced before they are flushed.
func (m *BaseModel) EnsureID() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
}

// BeforeCreate fills identity and timestamps the application did not set.
func (m *BaseModel) BeforeCreate(_ *gorm.DB) error {
	m.EnsureID()
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	return nil
}

// StampCreated sets both audit pairs for a new entity.
func (m *BaseModel) StampCreated(by string, at time.Time) {
	m.CreatedAt = at
	m.UpdatedAt = at
	m.CreatedBy = optional(by)
	m.UpdatedBy = optional(by)
}

// StampUpdated advances the update audit pair.
func (m *BaseModel) StampUpdated(by string, at time.Time) {
	m.UpdatedAt = at
	m.UpdatedBy = optional(by)
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"              json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:varchar(100)"  json:"deleted_by,omitempty"`
}

// SupportsSoftDelete implements SoftDeletable.
func (SoftDeleteModel) SupportsSoftDelete() bool { return true }

// IsDeleted reports whether the soft-delete marker is set.
func (m SoftDeleteModel) IsDeleted() bool { return m.DeletedAt.Valid }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// All lists every persisted model, in dependency order, for schema setup.
func All() []any {
	return []any{
		&District{},
		&Plot{},
		&Application{},
		&HistoryEntry{},
		&FileNumber{},
	}
}
