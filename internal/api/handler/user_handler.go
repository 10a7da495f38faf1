package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/service"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// UserHandler 用户目录 HTTP 处理器（账号与专业）
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// ListMajors GET /api/v1/majors
func (h *UserHandler) ListMajors(c *gin.Context) {
	majors, err := h.userSvc.ListMajors(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": majors})
}

// CreateMajor POST /api/v1/majors
func (h *UserHandler) CreateMajor(c *gin.Context) {
	var req dto.CreateMajorRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	m, err := h.userSvc.CreateMajor(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, m)
}

// ListUsers 用户列表
// GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if !bindQuery(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	users, total, err := h.userSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OKPage(c, users, total, req.GetPage(), req.GetPageSize())
}

// CreateUser POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	result, err := h.userSvc.CreateUser(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, result)
}

// SetActive PUT /api/v1/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	var req dto.SetUserActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	if err := h.userSvc.SetActive(c.Request.Context(), actor, c.Param("id"), &req); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// ResetPassword POST /api/v1/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	result, err := h.userSvc.ResetPassword(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, result)
}

// ImportUsers 上传 Excel 批量创建账号
// POST /api/v1/users/import  multipart/form-data, field="file"
func (h *UserHandler) ImportUsers(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	file, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	rows, err := h.userSvc.ParseImportFile(file)
	if err != nil {
		handleError(c, err)
		return
	}
	result, err := h.userSvc.ImportUsers(c.Request.Context(), actor, rows)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, result)
}
