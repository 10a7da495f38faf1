package dto

// ── 用户目录（管理员维护账号与专业）──

// CreateMajorRequest 新增专业
type CreateMajorRequest struct {
	Code string `json:"code" binding:"required,max=20"`
	Name string `json:"name" binding:"required,max=100"`
}

// CreateUserRequest 管理员创建账号
type CreateUserRequest struct {
	Name        string  `json:"name"         binding:"required,max=100"`
	StudentCode string  `json:"student_code" binding:"required,max=20"`
	Email       string  `json:"email"        binding:"required,email,max=255"`
	Role        string  `json:"role"         binding:"required,oneof=student advisor department_head admin"`
	MajorID     *string `json:"major_id"     binding:"omitempty,uuid"`
	HomeClass   string  `json:"home_class"   binding:"max=50"`
}

// CreateUserResponse 创建账号响应（含初始密码，仅返回一次）
type CreateUserResponse struct {
	User         UserResponse `json:"user"`
	TempPassword string       `json:"temp_password"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role    string `form:"role"     binding:"omitempty,oneof=student advisor department_head admin"`
	MajorID string `form:"major_id" binding:"omitempty,uuid"`
	Keyword string `form:"keyword"  binding:"max=50"`
}

// SetUserActiveRequest 启用 / 停用账号
type SetUserActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ResetPasswordResponse 重置密码响应
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// ImportUserResponse 批量导入结果
type ImportUserResponse struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Errors  []ImportUserError `json:"errors,omitempty"`
}

// ImportUserError 单行导入失败原因
type ImportUserError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
