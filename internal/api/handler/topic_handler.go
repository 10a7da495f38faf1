package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// TopicHandler 课题 HTTP 处理器
type TopicHandler struct {
	topicSvc service.TopicService
}

// NewTopicHandler 创建 TopicHandler
func NewTopicHandler(topicSvc service.TopicService) *TopicHandler {
	return &TopicHandler{topicSvc: topicSvc}
}

// ProposeTopic 导师提出课题
// POST /api/v1/topics
func (h *TopicHandler) ProposeTopic(c *gin.Context) {
	var req dto.ProposeTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	topic, err := h.topicSvc.Propose(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, topic)
}

// ListTopics GET /api/v1/topics?plan_id=
func (h *TopicHandler) ListTopics(c *gin.Context) {
	var req dto.TopicListRequest
	if !bindQuery(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	topics, err := h.topicSvc.ListByPlan(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": topics})
}

// GetTopic GET /api/v1/topics/:id
func (h *TopicHandler) GetTopic(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	topic, err := h.topicSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, topic)
}

// UpdateTopic PUT /api/v1/topics/:id
func (h *TopicHandler) UpdateTopic(c *gin.Context) {
	var req dto.UpdateTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	topic, err := h.topicSvc.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, topic)
}

// SubmitTopic POST /api/v1/topics/:id/submit
func (h *TopicHandler) SubmitTopic(c *gin.Context) {
	h.transition(c, h.topicSvc.Submit)
}

// ResubmitTopic POST /api/v1/topics/:id/resubmit
func (h *TopicHandler) ResubmitTopic(c *gin.Context) {
	h.transition(c, h.topicSvc.Resubmit)
}

// LockTopic POST /api/v1/topics/:id/lock
func (h *TopicHandler) LockTopic(c *gin.Context) {
	h.transition(c, h.topicSvc.Lock)
}

// DecideTopic 管理员审核课题
// POST /api/v1/topics/:id/decision
func (h *TopicHandler) DecideTopic(c *gin.Context) {
	var req dto.DecideTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	topic, err := h.topicSvc.Decide(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, topic)
}

type topicTransition func(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error)

func (h *TopicHandler) transition(c *gin.Context, fn topicTransition) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	topic, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, topic)
}

// RegisterTopic 组长为小组登记课题
// POST /api/v1/topics/:id/register
func (h *TopicHandler) RegisterTopic(c *gin.Context) {
	var req dto.RegisterTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	a, err := h.topicSvc.Register(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, a)
}

// GetGroupAssignment GET /api/v1/groups/:id/assignment
func (h *TopicHandler) GetGroupAssignment(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	a, err := h.topicSvc.GetGroupAssignment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, a)
}
