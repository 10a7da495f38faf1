package dto

// ── 小组模块 DTO ──

// AutoGroupRequest 自动分组请求
// group_size 与 priority 为空时使用配置中的默认值
type AutoGroupRequest struct {
	GroupSize int    `json:"group_size" binding:"omitempty,min=2"`
	Priority  string `json:"priority"   binding:"omitempty,oneof=major class none"`
	Shuffle   bool   `json:"shuffle"`
}

// AutoGroupResponse 自动分组结果
type AutoGroupResponse struct {
	GroupsCreated  int             `json:"groups_created"`
	StudentsPlaced int             `json:"students_placed"`
	FilledGroups   int             `json:"filled_groups"` // 补员阶段有新成员加入的已有小组数
	Groups         []GroupResponse `json:"groups"`        // 本次新建的小组
	Leftovers      []MemberBrief   `json:"leftovers"`
}

// CreateGroupRequest 创建小组请求
// 学生创建时自己为组长；管理员可指定组长并创建特殊小组
type CreateGroupRequest struct {
	PlanID    string `json:"plan_id"   binding:"required,uuid"`
	Name      string `json:"name"      binding:"omitempty,max=100"`
	LeaderID  string `json:"leader_id" binding:"omitempty,uuid"`
	IsSpecial bool   `json:"is_special"`
}

// AddStudentRequest 管理员手动加入学生请求
type AddStudentRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// TransferLeadershipRequest 转让组长请求
type TransferLeadershipRequest struct {
	NewLeaderID string `json:"new_leader_id" binding:"required,uuid"`
}

// SetGroupLockedRequest 锁定 / 解锁小组请求
type SetGroupLockedRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// ── 响应 ──

// GroupResponse 小组响应
type GroupResponse struct {
	ID          string        `json:"id"`
	PlanID      string        `json:"plan_id"`
	Name        string        `json:"name"`
	LeaderID    string        `json:"leader_id"`
	MajorID     *string       `json:"major_id,omitempty"`
	HomeClass   string        `json:"home_class,omitempty"`
	IsSpecial   bool          `json:"is_special"`
	MemberCount int           `json:"member_count"`
	Status      string        `json:"status"`
	Members     []MemberBrief `json:"members,omitempty"`
	CreatedAt   string        `json:"created_at"`
}
