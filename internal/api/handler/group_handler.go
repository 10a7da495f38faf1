package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// GroupHandler 小组 HTTP 处理器
type GroupHandler struct {
	groupSvc service.GroupService
}

// NewGroupHandler 创建 GroupHandler
func NewGroupHandler(groupSvc service.GroupService) *GroupHandler {
	return &GroupHandler{groupSvc: groupSvc}
}

// AutoGroup 自动分组
// POST /api/v1/plans/:id/auto-group
func (h *GroupHandler) AutoGroup(c *gin.Context) {
	var req dto.AutoGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	result, err := h.groupSvc.AutoGroup(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, result)
}

// ListGroups GET /api/v1/plans/:id/groups
func (h *GroupHandler) ListGroups(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	groups, err := h.groupSvc.ListByPlan(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": groups})
}

// CreateGroup POST /api/v1/groups
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	g, err := h.groupSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, g)
}

// GetGroup GET /api/v1/groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	g, err := h.groupSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, g)
}

// AddStudent 管理员手动加入学生
// POST /api/v1/groups/:id/members
func (h *GroupHandler) AddStudent(c *gin.Context) {
	var req dto.AddStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	g, err := h.groupSvc.AddStudent(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, g)
}

// RemoveMember DELETE /api/v1/groups/:id/members/:user_id
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.groupSvc.RemoveMember(c.Request.Context(), actor, c.Param("id"), c.Param("user_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// TransferLeadership PUT /api/v1/groups/:id/leader
func (h *GroupHandler) TransferLeadership(c *gin.Context) {
	var req dto.TransferLeadershipRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	g, err := h.groupSvc.TransferLeadership(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, g)
}

// SetLocked PUT /api/v1/groups/:id/lock
func (h *GroupHandler) SetLocked(c *gin.Context) {
	var req dto.SetGroupLockedRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	g, err := h.groupSvc.SetLocked(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, g)
}
