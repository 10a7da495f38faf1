package model

import (
	"time"

	"gorm.io/gorm"
)

// Group 毕业设计小组表，对应 thesis_groups
// member_count 为冗余计数，仅由容量账本维护；major_id / home_class 为自动分组的亲和键
type Group struct {
	GroupID     string  `gorm:"type:uuid;primaryKey"                json:"group_id"`
	PlanID      string  `gorm:"type:uuid;not null;index"            json:"plan_id"`
	Name        string  `gorm:"type:varchar(100);not null"          json:"name"`
	LeaderID    string  `gorm:"type:uuid;not null"                  json:"leader_id"`
	MajorID     *string `gorm:"type:uuid"                           json:"major_id,omitempty"`
	HomeClass   string  `gorm:"type:varchar(50);not null;default:''" json:"home_class"`
	IsSpecial   bool    `gorm:"not null"                            json:"is_special"`
	MemberCount int     `gorm:"not null;default:0"                  json:"member_count"`
	Status      string  `gorm:"type:varchar(20);not null"           json:"status"` // open | locked
	VersionedModel

	// 关联
	Members []Membership `gorm:"foreignKey:GroupID;references:GroupID" json:"members,omitempty"`
}

// TableName 指定表名
func (Group) TableName() string { return "thesis_groups" }

func (g *Group) BeforeCreate(*gorm.DB) error {
	ensureID(&g.GroupID)
	return nil
}

// Membership 小组成员表，对应 group_members
// user_id 全局唯一：一个学生同一时刻最多属于一个小组
type Membership struct {
	MembershipID string    `gorm:"type:uuid;primaryKey"             json:"membership_id"`
	GroupID      string    `gorm:"type:uuid;not null;index"         json:"group_id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex"   json:"user_id"`
	JoinedAt     time.Time `gorm:"not null"                         json:"joined_at"`
	BaseModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (Membership) TableName() string { return "group_members" }

func (m *Membership) BeforeCreate(*gorm.DB) error {
	ensureID(&m.MembershipID)
	return nil
}
