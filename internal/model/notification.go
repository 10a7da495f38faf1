package model

import "gorm.io/gorm"

// Notification 站内通知表，对应 notifications
// 由事件投递在事务提交之后写入，从不参与核心事务
type Notification struct {
	NotificationID string  `gorm:"type:uuid;primaryKey"       json:"notification_id"`
	UserID         string  `gorm:"type:uuid;not null;index"   json:"user_id"`
	Type           string  `gorm:"type:varchar(50);not null"  json:"type"`
	Title          string  `gorm:"type:varchar(200);not null" json:"title"`
	Content        string  `gorm:"type:text;not null"         json:"content"`
	IsRead         bool    `gorm:"not null"                   json:"is_read"`
	RelatedType    *string `gorm:"type:varchar(20)"           json:"related_type,omitempty"` // plan | group | invitation | join_request | topic | submission
	RelatedID      *string `gorm:"type:uuid"                  json:"related_id,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.NotificationID)
	return nil
}
