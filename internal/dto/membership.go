package dto

// ── 组队邀请 / 入组申请 DTO ──

// InviteRequest 邀请学生入组请求
type InviteRequest struct {
	InviteeID string `json:"invitee_id" binding:"required,uuid"`
	Message   string `json:"message"    binding:"max=500"`
}

// RespondRequest 接受 / 拒绝请求
type RespondRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// JoinGroupRequest 申请入组请求
type JoinGroupRequest struct {
	Message string `json:"message" binding:"max=500"`
}

// ── 响应 ──

// InvitationResponse 邀请响应（status 为按当前时间计算的有效状态）
type InvitationResponse struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"group_id"`
	InviteeID   string  `json:"invitee_id"`
	InviterID   string  `json:"inviter_id"`
	Message     string  `json:"message,omitempty"`
	Status      string  `json:"status"`
	ExpiresAt   string  `json:"expires_at"`
	RespondedAt *string `json:"responded_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// JoinRequestResponse 入组申请响应
type JoinRequestResponse struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"group_id"`
	RequesterID string  `json:"requester_id"`
	Message     string  `json:"message,omitempty"`
	Status      string  `json:"status"`
	ResponderID *string `json:"responder_id,omitempty"`
	RespondedAt *string `json:"responded_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// MyInvitationsResponse 我的邀请与申请
type MyInvitationsResponse struct {
	Invitations  []InvitationResponse  `json:"invitations"`
	JoinRequests []JoinRequestResponse `json:"join_requests"`
}
