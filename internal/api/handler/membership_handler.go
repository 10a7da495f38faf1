package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// MembershipHandler 邀请 / 入组申请 / 退出 HTTP 处理器
type MembershipHandler struct {
	svc service.MembershipService
}

// NewMembershipHandler 创建 MembershipHandler
func NewMembershipHandler(svc service.MembershipService) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

// Invite 组员邀请学生
// POST /api/v1/groups/:id/invitations
func (h *MembershipHandler) Invite(c *gin.Context) {
	var req dto.InviteRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	inv, err := h.svc.Invite(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, inv)
}

// RespondInvitation 被邀请人接受或拒绝
// POST /api/v1/invitations/:id/respond
func (h *MembershipHandler) RespondInvitation(c *gin.Context) {
	var req dto.RespondRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	inv, err := h.svc.RespondInvitation(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, inv)
}

// CancelInvitation DELETE /api/v1/invitations/:id
func (h *MembershipHandler) CancelInvitation(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.svc.CancelInvitation(c.Request.Context(), actor, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// RequestJoin 学生申请加入小组
// POST /api/v1/groups/:id/join-requests
func (h *MembershipHandler) RequestJoin(c *gin.Context) {
	var req dto.JoinGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	jr, err := h.svc.RequestJoin(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, jr)
}

// RespondJoinRequest 组长处理入组申请
// POST /api/v1/join-requests/:id/respond
func (h *MembershipHandler) RespondJoinRequest(c *gin.Context) {
	var req dto.RespondRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	jr, err := h.svc.RespondJoinRequest(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, jr)
}

// CancelJoinRequest DELETE /api/v1/join-requests/:id
func (h *MembershipHandler) CancelJoinRequest(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.svc.CancelJoinRequest(c.Request.Context(), actor, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// Leave 退出当前小组
// POST /api/v1/groups/leave
func (h *MembershipHandler) Leave(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), actor); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// MyInvitations 我收到的邀请与我发出的申请
// GET /api/v1/invitations/me
func (h *MembershipHandler) MyInvitations(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	inbox, err := h.svc.ListMyInvitations(c.Request.Context(), actor)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, inbox)
}

// GroupRequests GET /api/v1/groups/:id/requests
func (h *MembershipHandler) GroupRequests(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	inbox, err := h.svc.ListGroupRequests(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, inbox)
}
