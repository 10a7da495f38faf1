package dto

// ── 用户 ──

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	StudentCode string      `json:"student_code"`
	Role        string      `json:"role"`
	HomeClass   string      `json:"home_class,omitempty"`
	Major       *MajorBrief `json:"major,omitempty"`
	IsActive    bool        `json:"is_active"`
}

// MajorBrief 专业简要信息
type MajorBrief struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// MemberBrief 学生简要信息（小组成员 / 自动分组剩余名单）
type MemberBrief struct {
	UserID      string  `json:"user_id"`
	StudentCode string  `json:"student_code"`
	Name        string  `json:"name"`
	MajorID     *string `json:"major_id,omitempty"`
	HomeClass   string  `json:"home_class,omitempty"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
