package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Plan         *PlanHandler
	Group        *GroupHandler
	Membership   *MembershipHandler
	Topic        *TopicHandler
	Submission   *SubmissionHandler
	Notification *NotificationHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Plan:         NewPlanHandler(svc.Plan),
		Group:        NewGroupHandler(svc.Group),
		Membership:   NewMembershipHandler(svc.Membership),
		Topic:        NewTopicHandler(svc.Topic),
		Submission:   NewSubmissionHandler(svc.Submission),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export),
	}
}

// ── 业务错误码 ──

const (
	CodeValidation        = 10001
	CodeUnauthenticated   = 10002
	CodeForbidden         = 10003
	CodeNotFound          = 10004
	CodeBodyTooLarge      = 10005
	CodeInvalidTransition = 20001
	CodeCapacityExceeded  = 20002
	CodeUniqueness        = 20003
	CodeStaleVersion      = 20004
	CodeBadCredentials    = 11001
	CodeAccountDisabled   = 11002
)

// handleError 按核心层错误分类映射 HTTP 状态码；未归类错误一律 500 且不暴露细节
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, CodeBadCredentials, service.ErrInvalidCredentials.Message)
		return
	case errors.Is(err, service.ErrAccountDisabled):
		response.Unauthorized(c, CodeAccountDisabled, service.ErrAccountDisabled.Message)
		return
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, CodeStaleVersion, pkgerrors.ErrOptimisticLock.Error())
		return
	}

	var e *pkgerrors.Error
	if !errors.As(err, &e) {
		response.InternalError(c)
		return
	}
	switch e.Kind {
	case pkgerrors.KindValidation:
		if len(e.Fields) > 0 {
			response.ErrorWithDetails(c, http.StatusBadRequest, CodeValidation, e.Message, e.Fields)
			return
		}
		response.BadRequest(c, CodeValidation, e.Message)
	case pkgerrors.KindNotFound:
		response.NotFound(c, CodeNotFound, e.Message)
	case pkgerrors.KindUnauthorized:
		response.Forbidden(c, CodeForbidden, e.Message)
	case pkgerrors.KindInvalidTransition:
		response.Conflict(c, CodeInvalidTransition, e.Message)
	case pkgerrors.KindCapacityExceeded:
		response.Conflict(c, CodeCapacityExceeded, e.Message)
	case pkgerrors.KindUniqueness:
		response.Conflict(c, CodeUniqueness, e.Message)
	default:
		response.InternalError(c)
	}
}

// bindJSON 绑定请求体，失败时写入 400（超出 BodyLimit 时 413）并返回 false
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if bodyTooLarge(err) {
			response.PayloadTooLarge(c, CodeBodyTooLarge, "请求体过大")
			return false
		}
		handleError(c, validate.FromValidator(err))
		return false
	}
	return true
}

// formFile 读取 multipart 上传文件；调用方负责关闭
func formFile(c *gin.Context, field string) (multipart.File, bool) {
	file, _, err := c.Request.FormFile(field)
	if err != nil {
		if bodyTooLarge(err) {
			response.PayloadTooLarge(c, CodeBodyTooLarge, "上传文件过大")
			return nil, false
		}
		response.BadRequest(c, CodeValidation, "请上传 Excel 文件")
		return nil, false
	}
	return file, true
}

func bodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// bindQuery 绑定查询参数，失败时写入 400 并返回 false
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		handleError(c, validate.FromValidator(err))
		return false
	}
	return true
}
