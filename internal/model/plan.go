package model

import (
	"time"

	"gorm.io/gorm"
)

// ThesisPlan 毕业设计计划表，对应 thesis_plans
// group_count 为冗余计数，仅由容量账本维护
type ThesisPlan struct {
	PlanID          string     `gorm:"type:uuid;primaryKey"                json:"plan_id"`
	Title           string     `gorm:"type:varchar(200);not null"          json:"title"`
	AcademicYear    string     `gorm:"type:varchar(20);not null"           json:"academic_year"`
	Term            int        `gorm:"not null"                            json:"term"`
	TrainingLevel   string     `gorm:"type:varchar(50);not null;default:''" json:"training_level"`
	StartDate       time.Time  `gorm:"not null"                            json:"start_date"`
	EndDate         time.Time  `gorm:"not null"                            json:"end_date"`
	MinMembers      int        `gorm:"not null"                            json:"min_members"`
	MaxMembers      int        `gorm:"not null"                            json:"max_members"`
	MaxGroups       int        `gorm:"not null;default:0"                  json:"max_groups"` // 0 表示不限
	GroupCount      int        `gorm:"not null;default:0"                  json:"group_count"`
	Status          string     `gorm:"type:varchar(30);not null;index"     json:"status"`
	CreatorID       string     `gorm:"type:uuid;not null"                  json:"creator_id"`
	ApproverID      *string    `gorm:"type:uuid"                           json:"approver_id,omitempty"`
	ApprovalComment string     `gorm:"type:text;not null;default:''"       json:"approval_comment"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	VersionedModel

	// 关联
	Milestones []Milestone `gorm:"foreignKey:PlanID;references:PlanID" json:"milestones,omitempty"`
}

// TableName 指定表名
func (ThesisPlan) TableName() string { return "thesis_plans" }

func (p *ThesisPlan) BeforeCreate(*gorm.DB) error {
	ensureID(&p.PlanID)
	return nil
}

// Milestone 计划里程碑表，对应 plan_milestones
type Milestone struct {
	MilestoneID     string    `gorm:"type:uuid;primaryKey"                 json:"milestone_id"`
	PlanID          string    `gorm:"type:uuid;not null;index"             json:"plan_id"`
	Name            string    `gorm:"type:varchar(200);not null"           json:"name"`
	StartAt         time.Time `gorm:"not null"                             json:"start_at"`
	EndAt           time.Time `gorm:"not null"                             json:"end_at"`
	Description     string    `gorm:"type:text;not null;default:''"        json:"description"`
	ResponsibleRole string    `gorm:"type:varchar(20);not null;default:''" json:"responsible_role"`
	SortOrder       int       `gorm:"not null;default:0"                   json:"sort_order"`
	BaseModel
}

// TableName 指定表名
func (Milestone) TableName() string { return "plan_milestones" }

func (m *Milestone) BeforeCreate(*gorm.DB) error {
	ensureID(&m.MilestoneID)
	return nil
}

// Participant 计划参与学生表，对应 plan_participants
// (plan_id, student_id) 唯一；仅 is_eligible 可变
type Participant struct {
	ParticipantID string    `gorm:"type:uuid;primaryKey"                                   json:"participant_id"`
	PlanID        string    `gorm:"type:uuid;not null;uniqueIndex:uq_participant_plan_student" json:"plan_id"`
	StudentID     string    `gorm:"type:uuid;not null;uniqueIndex:uq_participant_plan_student" json:"student_id"`
	IsEligible    bool      `gorm:"not null"                                               json:"is_eligible"`
	JoinedAt      time.Time `gorm:"not null"                                               json:"joined_at"`
	BaseModel

	// 关联
	Student *User `gorm:"foreignKey:StudentID;references:UserID" json:"student,omitempty"`
}

// TableName 指定表名
func (Participant) TableName() string { return "plan_participants" }

func (p *Participant) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ParticipantID)
	return nil
}
