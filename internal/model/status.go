package model

// ── 角色 ──

const (
	RoleStudent        = "student"
	RoleAdvisor        = "advisor"
	RoleDepartmentHead = "department_head"
	RoleAdmin          = "admin"
)

// ── 计划状态 ──

const (
	PlanStatusDraft            = "draft"
	PlanStatusPendingApproval  = "pending_approval"
	PlanStatusChangesRequested = "changes_requested"
	PlanStatusApproved         = "approved"
	PlanStatusInProgress       = "in_progress"
	PlanStatusCompleted        = "completed"
	PlanStatusCancelled        = "cancelled"
)

// ── 课题状态 ──

const (
	TopicStatusDraft            = "draft"
	TopicStatusPendingApproval  = "pending_approval"
	TopicStatusChangesRequested = "changes_requested"
	TopicStatusApproved         = "approved"
	TopicStatusRejected         = "rejected"
	TopicStatusFull             = "full"
	TopicStatusLocked           = "locked"
)

// ── 提交物状态 ──

const (
	SubmissionStatusAwaiting          = "awaiting_confirmation"
	SubmissionStatusConfirmed         = "confirmed"
	SubmissionStatusResubmitRequested = "resubmit_requested"
)

// ── 选题分配状态 ──

const (
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusCompleted  = "completed"
	AssignmentStatusFailed     = "failed"
)

// ── 邀请 / 入组申请状态 ──

const (
	InvitationStatusPending   = "pending"
	InvitationStatusAccepted  = "accepted"
	InvitationStatusRejected  = "rejected"
	InvitationStatusExpired   = "expired"
	InvitationStatusCancelled = "cancelled"

	JoinRequestStatusPending   = "pending"
	JoinRequestStatusAccepted  = "accepted"
	JoinRequestStatusRejected  = "rejected"
	JoinRequestStatusCancelled = "cancelled"
)

// ── 小组状态 ──

const (
	GroupStatusOpen   = "open"
	GroupStatusLocked = "locked"
)
