package dto

// ── 课题模块 DTO ──

// ProposeTopicRequest 导师提出课题请求
type ProposeTopicRequest struct {
	PlanID      string `json:"plan_id"     binding:"required,uuid"`
	Title       string `json:"title"       binding:"required,max=300"`
	Description string `json:"description" binding:"max=5000"`
	MaxGroups   int    `json:"max_groups"  binding:"required,min=1,max=50"`
}

// UpdateTopicRequest 编辑课题请求（仅草稿 / 待修改状态可编辑）
type UpdateTopicRequest struct {
	Title       string `json:"title"       binding:"required,max=300"`
	Description string `json:"description" binding:"max=5000"`
	MaxGroups   int    `json:"max_groups"  binding:"required,min=1,max=50"`
	Version     int    `json:"version"     binding:"required,min=1"`
}

// DecideTopicRequest 审核课题请求
type DecideTopicRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject request_edit"`
	Reason   string `json:"reason"   binding:"max=1000"`
}

// RegisterTopicRequest 小组登记课题请求
type RegisterTopicRequest struct {
	GroupID string `json:"group_id" binding:"required,uuid"`
}

// TopicListRequest 课题列表查询参数
type TopicListRequest struct {
	PlanID string `form:"plan_id" binding:"required,uuid"`
	Status string `form:"status"  binding:"omitempty,oneof=draft pending_approval changes_requested approved rejected full locked"`
}

// ── 响应 ──

// TopicResponse 课题响应
type TopicResponse struct {
	ID              string   `json:"id"`
	PlanID          string   `json:"plan_id"`
	AdvisorID       string   `json:"advisor_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	MaxGroups       int      `json:"max_groups"`
	RegisteredCount int      `json:"registered_count"`
	Status          string   `json:"status"`
	ApproverID      *string  `json:"approver_id,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	AllowedActions  []string `json:"allowed_actions"`
	Version         int      `json:"version"`
	CreatedAt       string   `json:"created_at"`
}

// AssignmentResponse 选题分配响应
type AssignmentResponse struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	TopicID   string `json:"topic_id"`
	AdvisorID string `json:"advisor_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}
