package model

import (
	"time"

	"gorm.io/gorm"
)

// Topic 毕业设计课题表，对应 thesis_topics
// registered_count 为冗余计数，仅由容量账本维护
type Topic struct {
	TopicID         string  `gorm:"type:uuid;primaryKey"            json:"topic_id"`
	PlanID          string  `gorm:"type:uuid;not null;index"        json:"plan_id"`
	AdvisorID       string  `gorm:"type:uuid;not null;index"        json:"advisor_id"`
	Title           string  `gorm:"type:varchar(300);not null"      json:"title"`
	Description     string  `gorm:"type:text;not null;default:''"   json:"description"`
	MaxGroups       int     `gorm:"not null"                        json:"max_groups"`
	RegisteredCount int     `gorm:"not null;default:0"              json:"registered_count"`
	Status          string  `gorm:"type:varchar(30);not null;index" json:"status"`
	ApproverID      *string `gorm:"type:uuid"                       json:"approver_id,omitempty"`
	Reason          string  `gorm:"type:text;not null;default:''"   json:"reason"`
	VersionedModel
}

// TableName 指定表名
func (Topic) TableName() string { return "thesis_topics" }

func (t *Topic) BeforeCreate(*gorm.DB) error {
	ensureID(&t.TopicID)
	return nil
}

// Assignment 选题分配表，对应 topic_assignments
// group_id 唯一：一个小组最多一个课题
type Assignment struct {
	AssignmentID string `gorm:"type:uuid;primaryKey"           json:"assignment_id"`
	GroupID      string `gorm:"type:uuid;not null;uniqueIndex" json:"group_id"`
	TopicID      string `gorm:"type:uuid;not null;index"       json:"topic_id"`
	AdvisorID    string `gorm:"type:uuid;not null"             json:"advisor_id"`
	Status       string `gorm:"type:varchar(20);not null"      json:"status"` // in_progress | completed | failed
	BaseModel

	// 关联
	Topic *Topic `gorm:"foreignKey:TopicID;references:TopicID" json:"topic,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string { return "topic_assignments" }

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.AssignmentID)
	return nil
}

// Submission 阶段提交物表，对应 submissions
type Submission struct {
	SubmissionID string     `gorm:"type:uuid;primaryKey"            json:"submission_id"`
	AssignmentID string     `gorm:"type:uuid;not null;index"        json:"assignment_id"`
	SubmitterID  string     `gorm:"type:uuid;not null"              json:"submitter_id"`
	Title        string     `gorm:"type:varchar(200);not null"      json:"title"`
	DocumentRef  string     `gorm:"type:varchar(500);not null"      json:"document_ref"`
	Note         string     `gorm:"type:text;not null;default:''"   json:"note"`
	Status       string     `gorm:"type:varchar(30);not null;index" json:"status"`
	ReviewerID   *string    `gorm:"type:uuid"                       json:"reviewer_id,omitempty"`
	Feedback     string     `gorm:"type:text;not null;default:''"   json:"feedback"`
	SubmittedAt  time.Time  `gorm:"not null"                        json:"submitted_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }

func (s *Submission) BeforeCreate(*gorm.DB) error {
	ensureID(&s.SubmissionID)
	return nil
}
