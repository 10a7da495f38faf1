package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRoster 导出小组名单 Excel
// GET /api/v1/plans/:id/export/roster
func (h *ExportHandler) ExportRoster(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	buf, filename, err := h.exportSvc.ExportRoster(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Attachment(c, filename, contentTypeXLSX, buf)
}

// ExportMilestones 导出里程碑日历
// GET /api/v1/plans/:id/export/milestones.ics
func (h *ExportHandler) ExportMilestones(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	buf, filename, err := h.exportSvc.ExportMilestones(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Attachment(c, filename, contentTypeICS, buf)
}
