package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null"  json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid" json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null"  json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid" json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"    json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

// VersionedModel 支持乐观锁的模型
// 核心表的行在解散/退出时物理删除（唯一约束需要释放），因此不再叠加软删除
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// ensureID 主键为空时生成 UUID
// 由各模型的 BeforeCreate 调用，PostgreSQL 与 SQLite 共用同一套模型
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All 返回全部模型（AutoMigrate 使用，顺序即建表顺序）
func All() []interface{} {
	return []interface{}{
		&Major{},
		&User{},
		&ThesisPlan{},
		&Milestone{},
		&Participant{},
		&Group{},
		&Membership{},
		&Invitation{},
		&JoinRequest{},
		&Topic{},
		&Assignment{},
		&Submission{},
		&Notification{},
	}
}
