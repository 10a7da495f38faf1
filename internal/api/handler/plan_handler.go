package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// PlanHandler 毕业设计计划 HTTP 处理器
type PlanHandler struct {
	planSvc service.PlanService
}

// NewPlanHandler 创建 PlanHandler
func NewPlanHandler(planSvc service.PlanService) *PlanHandler {
	return &PlanHandler{planSvc: planSvc}
}

// CreatePlan 创建计划（草稿）
// POST /api/v1/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	plan, err := h.planSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, plan)
}

// ListPlans 计划列表
// GET /api/v1/plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	var req dto.PlanListRequest
	if !bindQuery(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	plans, err := h.planSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": plans})
}

// GetPlan 计划详情
// GET /api/v1/plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	plan, err := h.planSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, plan)
}

// UpdatePlan 编辑计划
// PUT /api/v1/plans/:id
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	var req dto.UpdatePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	plan, err := h.planSvc.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, plan)
}

// AddMilestone 新增里程碑
// POST /api/v1/plans/:id/milestones
func (h *PlanHandler) AddMilestone(c *gin.Context) {
	var req dto.MilestoneInput
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	m, err := h.planSvc.AddMilestone(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, m)
}

// RemoveMilestone 删除里程碑
// DELETE /api/v1/plans/:id/milestones/:milestone_id
func (h *PlanHandler) RemoveMilestone(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.planSvc.RemoveMilestone(c.Request.Context(), actor, c.Param("id"), c.Param("milestone_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── 生命周期 ──

// SubmitPlan POST /api/v1/plans/:id/submit
func (h *PlanHandler) SubmitPlan(c *gin.Context) {
	h.transition(c, h.planSvc.Submit)
}

// ResubmitPlan POST /api/v1/plans/:id/resubmit
func (h *PlanHandler) ResubmitPlan(c *gin.Context) {
	h.transition(c, h.planSvc.Resubmit)
}

// ActivatePlan POST /api/v1/plans/:id/activate
func (h *PlanHandler) ActivatePlan(c *gin.Context) {
	h.transition(c, h.planSvc.Activate)
}

// CompletePlan POST /api/v1/plans/:id/complete
func (h *PlanHandler) CompletePlan(c *gin.Context) {
	h.transition(c, h.planSvc.Complete)
}

// CancelPlan POST /api/v1/plans/:id/cancel
func (h *PlanHandler) CancelPlan(c *gin.Context) {
	h.transition(c, h.planSvc.Cancel)
}

// DecidePlan 系主任审批
// POST /api/v1/plans/:id/decision
func (h *PlanHandler) DecidePlan(c *gin.Context) {
	var req dto.DecidePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	plan, err := h.planSvc.Decide(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, plan)
}

type planTransition func(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)

func (h *PlanHandler) transition(c *gin.Context, fn planTransition) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	plan, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, plan)
}

// ── 参与学生 ──

// EnrollStudents 按学号批量报名
// POST /api/v1/plans/:id/participants
func (h *PlanHandler) EnrollStudents(c *gin.Context) {
	var req dto.EnrollStudentsRequest
	if !bindJSON(c, &req) {
		return
	}
	h.enroll(c, &req)
}

// ImportParticipants 上传 Excel 批量报名
// POST /api/v1/plans/:id/participants/import  multipart/form-data, field="file"
func (h *PlanHandler) ImportParticipants(c *gin.Context) {
	file, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	codes, err := h.planSvc.ParseEnrollmentFile(file)
	if err != nil {
		handleError(c, err)
		return
	}
	h.enroll(c, &dto.EnrollStudentsRequest{StudentCodes: codes})
}

func (h *PlanHandler) enroll(c *gin.Context, req *dto.EnrollStudentsRequest) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	result, err := h.planSvc.EnrollStudents(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, result)
}

// ListParticipants GET /api/v1/plans/:id/participants
func (h *PlanHandler) ListParticipants(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	list, err := h.planSvc.ListParticipants(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// SetEligibility PUT /api/v1/plans/:id/participants/:student_id/eligibility
func (h *PlanHandler) SetEligibility(c *gin.Context) {
	var req dto.SetEligibilityRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.planSvc.SetEligibility(c.Request.Context(), actor, c.Param("id"), c.Param("student_id"), &req); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// RemoveParticipant DELETE /api/v1/plans/:id/participants/:student_id
func (h *PlanHandler) RemoveParticipant(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.planSvc.RemoveParticipant(c.Request.Context(), actor, c.Param("id"), c.Param("student_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}
