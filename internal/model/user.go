package model

import "gorm.io/gorm"

// User 用户表，对应 users
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey"                   json:"user_id"`
	Name         string  `gorm:"type:varchar(100);not null"             json:"name"`
	StudentCode  string  `gorm:"type:varchar(20);not null;uniqueIndex"  json:"student_code"`
	Email        string  `gorm:"type:varchar(255);not null"             json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null"             json:"-"`
	Role         string  `gorm:"type:varchar(20);not null"              json:"role"` // student | advisor | department_head | admin
	MajorID      *string `gorm:"type:uuid;index"                        json:"major_id,omitempty"`
	HomeClass    string  `gorm:"type:varchar(50);not null;default:''"   json:"home_class"`
	IsActive     bool    `gorm:"not null"                               json:"is_active"`
	BaseModel

	// 关联
	Major *Major `gorm:"foreignKey:MajorID;references:MajorID" json:"major,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.UserID)
	return nil
}

// Major 专业表，对应 majors（自动分组 major 优先级的分桶键）
type Major struct {
	MajorID string `gorm:"type:uuid;primaryKey"                  json:"major_id"`
	Code    string `gorm:"type:varchar(20);not null;uniqueIndex" json:"code"`
	Name    string `gorm:"type:varchar(100);not null"            json:"name"`
	BaseModel
}

// TableName 指定表名
func (Major) TableName() string { return "majors" }

func (m *Major) BeforeCreate(*gorm.DB) error {
	ensureID(&m.MajorID)
	return nil
}
