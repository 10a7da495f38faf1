package dto

// ── 提交物模块 DTO ──

// CreateSubmissionRequest 小组提交阶段成果请求
type CreateSubmissionRequest struct {
	Title       string `json:"title"        binding:"required,max=200"`
	DocumentRef string `json:"document_ref" binding:"required,max=500"`
	Note        string `json:"note"         binding:"max=2000"`
}

// ConfirmSubmissionRequest 确认提交物请求
type ConfirmSubmissionRequest struct {
	Feedback string `json:"feedback" binding:"max=2000"`
}

// RequestResubmissionRequest 要求重交请求（必须给出意见）
type RequestResubmissionRequest struct {
	Feedback string `json:"feedback" binding:"required,max=2000"`
}

// SubmissionResponse 提交物响应
type SubmissionResponse struct {
	ID           string  `json:"id"`
	AssignmentID string  `json:"assignment_id"`
	SubmitterID  string  `json:"submitter_id"`
	Title        string  `json:"title"`
	DocumentRef  string  `json:"document_ref"`
	Note         string  `json:"note,omitempty"`
	Status       string  `json:"status"`
	ReviewerID   *string `json:"reviewer_id,omitempty"`
	Feedback     string  `json:"feedback,omitempty"`
	SubmittedAt  string  `json:"submitted_at"`
	ReviewedAt   *string `json:"reviewed_at,omitempty"`
}

// ── 通知 ──

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	UnreadOnly bool `form:"unread_only"`
	PaginationRequest
}

// MarkReadRequest 标记已读请求（ids 为空表示全部）
type MarkReadRequest struct {
	IDs []string `json:"ids" binding:"omitempty,max=200,dive,uuid"`
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	IsRead      bool    `json:"is_read"`
	RelatedType *string `json:"related_type,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
