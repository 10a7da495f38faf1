package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// NotificationHandler 站内通知 HTTP 处理器
type NotificationHandler struct {
	svc service.NotificationService
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// ListNotifications GET /api/v1/notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var req dto.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	list, total, err := h.svc.List(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// MarkRead PUT /api/v1/notifications/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req dto.MarkReadRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}
