package dto

import "time"

// ── 计划模块 DTO ──

// MilestoneInput 里程碑输入
type MilestoneInput struct {
	Name            string    `json:"name"             binding:"required,max=200"`
	StartAt         time.Time `json:"start_at"         binding:"required"`
	EndAt           time.Time `json:"end_at"           binding:"required,gtefield=StartAt"`
	Description     string    `json:"description"      binding:"max=2000"`
	ResponsibleRole string    `json:"responsible_role" binding:"omitempty,oneof=student advisor department_head admin"`
	SortOrder       int       `json:"sort_order"       binding:"min=0"`
}

// CreatePlanRequest 创建计划请求
type CreatePlanRequest struct {
	Title         string           `json:"title"          binding:"required,max=200"`
	AcademicYear  string           `json:"academic_year"  binding:"required,max=20"`
	Term          int              `json:"term"           binding:"required,min=1,max=3"`
	TrainingLevel string           `json:"training_level" binding:"max=50"`
	StartDate     time.Time        `json:"start_date"     binding:"required"`
	EndDate       time.Time        `json:"end_date"       binding:"required,gtefield=StartDate"`
	MinMembers    int              `json:"min_members"    binding:"required,min=1"`
	MaxMembers    int              `json:"max_members"    binding:"required,min=1,gtefield=MinMembers"`
	MaxGroups     int              `json:"max_groups"     binding:"min=0"`
	Milestones    []MilestoneInput `json:"milestones"     binding:"omitempty,dive"`
}

// UpdatePlanRequest 编辑计划请求（仅草稿 / 待修改状态可编辑）
type UpdatePlanRequest struct {
	Title         string    `json:"title"          binding:"required,max=200"`
	AcademicYear  string    `json:"academic_year"  binding:"required,max=20"`
	Term          int       `json:"term"           binding:"required,min=1,max=3"`
	TrainingLevel string    `json:"training_level" binding:"max=50"`
	StartDate     time.Time `json:"start_date"     binding:"required"`
	EndDate       time.Time `json:"end_date"       binding:"required,gtefield=StartDate"`
	MinMembers    int       `json:"min_members"    binding:"required,min=1"`
	MaxMembers    int       `json:"max_members"    binding:"required,min=1,gtefield=MinMembers"`
	MaxGroups     int       `json:"max_groups"     binding:"min=0"`
	Version       int       `json:"version"        binding:"required,min=1"`
}

// DecidePlanRequest 审批计划请求
type DecidePlanRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve request_changes"`
	Comment  string `json:"comment"  binding:"max=1000"`
}

// PlanListRequest 计划列表查询参数
type PlanListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=draft pending_approval changes_requested approved in_progress completed cancelled"`
	Mine   bool   `form:"mine"`
}

// EnrollStudentsRequest 批量报名请求（按学号）
type EnrollStudentsRequest struct {
	StudentCodes []string `json:"student_codes" binding:"required,min=1,max=1000,dive,required,max=20"`
}

// SetEligibilityRequest 设置参与资格请求
type SetEligibilityRequest struct {
	Eligible *bool `json:"eligible" binding:"required"`
}

// ── 响应 ──

// PlanResponse 计划响应
type PlanResponse struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	AcademicYear    string              `json:"academic_year"`
	Term            int                 `json:"term"`
	TrainingLevel   string              `json:"training_level"`
	StartDate       string              `json:"start_date"`
	EndDate         string              `json:"end_date"`
	MinMembers      int                 `json:"min_members"`
	MaxMembers      int                 `json:"max_members"`
	MaxGroups       int                 `json:"max_groups"`
	GroupCount      int                 `json:"group_count"`
	Status          string              `json:"status"`
	CreatorID       string              `json:"creator_id"`
	ApproverID      *string             `json:"approver_id,omitempty"`
	ApprovalComment string              `json:"approval_comment,omitempty"`
	SubmittedAt     *string             `json:"submitted_at,omitempty"`
	ApprovedAt      *string             `json:"approved_at,omitempty"`
	Milestones      []MilestoneResponse `json:"milestones,omitempty"`
	AllowedActions  []string            `json:"allowed_actions"`
	Version         int                 `json:"version"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
}

// MilestoneResponse 里程碑响应
type MilestoneResponse struct {
	ID              string `json:"id"`
	PlanID          string `json:"plan_id"`
	Name            string `json:"name"`
	StartAt         string `json:"start_at"`
	EndAt           string `json:"end_at"`
	Description     string `json:"description,omitempty"`
	ResponsibleRole string `json:"responsible_role,omitempty"`
	SortOrder       int    `json:"sort_order"`
}

// ParticipantResponse 参与学生响应
type ParticipantResponse struct {
	StudentID   string  `json:"student_id"`
	StudentCode string  `json:"student_code"`
	Name        string  `json:"name"`
	MajorID     *string `json:"major_id,omitempty"`
	HomeClass   string  `json:"home_class,omitempty"`
	IsEligible  bool    `json:"is_eligible"`
	JoinedAt    string  `json:"joined_at"`
}

// EnrollResult 批量报名结果
type EnrollResult struct {
	Enrolled        int      `json:"enrolled"`
	AlreadyEnrolled []string `json:"already_enrolled"`
	NotFound        []string `json:"not_found"`
}
