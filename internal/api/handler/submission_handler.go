package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// SubmissionHandler 阶段提交物 HTTP 处理器
type SubmissionHandler struct {
	svc service.SubmissionService
}

// NewSubmissionHandler 创建 SubmissionHandler
func NewSubmissionHandler(svc service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

// CreateSubmission POST /api/v1/assignments/:id/submissions
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req dto.CreateSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	sub, err := h.svc.Create(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, sub)
}

// ListSubmissions GET /api/v1/assignments/:id/submissions
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	list, err := h.svc.ListByAssignment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// ConfirmSubmission POST /api/v1/submissions/:id/confirm
func (h *SubmissionHandler) ConfirmSubmission(c *gin.Context) {
	var req dto.ConfirmSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	sub, err := h.svc.Confirm(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, sub)
}

// RequestResubmission POST /api/v1/submissions/:id/request-resubmission
func (h *SubmissionHandler) RequestResubmission(c *gin.Context) {
	var req dto.RequestResubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	sub, err := h.svc.RequestResubmission(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, sub)
}
