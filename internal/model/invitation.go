package model

import (
	"time"

	"gorm.io/gorm"
)

// Invitation 组队邀请表，对应 group_invitations
type Invitation struct {
	InvitationID string     `gorm:"type:uuid;primaryKey"            json:"invitation_id"`
	GroupID      string     `gorm:"type:uuid;not null;index"        json:"group_id"`
	InviteeID    string     `gorm:"type:uuid;not null;index"        json:"invitee_id"`
	InviterID    string     `gorm:"type:uuid;not null"              json:"inviter_id"`
	Message      string     `gorm:"type:text;not null;default:''"   json:"message"`
	Status       string     `gorm:"type:varchar(20);not null;index" json:"status"`
	ExpiresAt    time.Time  `gorm:"not null"                        json:"expires_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Invitation) TableName() string { return "group_invitations" }

func (i *Invitation) BeforeCreate(*gorm.DB) error {
	ensureID(&i.InvitationID)
	return nil
}

// IsExpired 待处理且已过有效期
// 过期不落库，读取与接受时按当前时间判断
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationStatusPending && !now.Before(i.ExpiresAt)
}

// EffectiveStatus 对外展示的状态（已过期的待处理邀请显示为 expired）
func (i *Invitation) EffectiveStatus(now time.Time) string {
	if i.IsExpired(now) {
		return InvitationStatusExpired
	}
	return i.Status
}

// JoinRequest 入组申请表，对应 group_join_requests
type JoinRequest struct {
	RequestID   string     `gorm:"type:uuid;primaryKey"            json:"request_id"`
	GroupID     string     `gorm:"type:uuid;not null;index"        json:"group_id"`
	RequesterID string     `gorm:"type:uuid;not null;index"        json:"requester_id"`
	Message     string     `gorm:"type:text;not null;default:''"   json:"message"`
	Status      string     `gorm:"type:varchar(20);not null;index" json:"status"`
	ResponderID *string    `gorm:"type:uuid"                       json:"responder_id,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (JoinRequest) TableName() string { return "group_join_requests" }

func (r *JoinRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.RequestID)
	return nil
}
