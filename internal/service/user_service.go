package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// ── 用户目录业务错误 ──

var (
	ErrMajorNotFound      = pkgerrors.New(pkgerrors.KindNotFound, "专业不存在")
	ErrStudentCodeExists  = pkgerrors.New(pkgerrors.KindUniqueness, "学号已存在")
	ErrMajorCodeExists    = pkgerrors.New(pkgerrors.KindUniqueness, "专业代码已存在")
	ErrUserSelfDisable    = pkgerrors.New(pkgerrors.KindInvalidTransition, "不能停用自己的账号")
	ErrImportUserNoColumn = pkgerrors.Validation("Excel 表头缺少必要列",
		pkgerrors.FieldError{Field: "file", Message: "表头需包含 姓名 / 学号 / 邮箱"})
)

// UserService 用户目录业务接口：专业与账号由管理员维护，计划报名只引用已有账号
type UserService interface {
	CreateMajor(ctx context.Context, actor lifecycle.Actor, req *dto.CreateMajorRequest) (*dto.MajorBrief, error)
	ListMajors(ctx context.Context) ([]dto.MajorBrief, error)

	CreateUser(ctx context.Context, actor lifecycle.Actor, req *dto.CreateUserRequest) (*dto.CreateUserResponse, error)
	List(ctx context.Context, actor lifecycle.Actor, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	SetActive(ctx context.Context, actor lifecycle.Actor, id string, req *dto.SetUserActiveRequest) error
	ResetPassword(ctx context.Context, actor lifecycle.Actor, id string) (*dto.ResetPasswordResponse, error)
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, actor lifecycle.Actor, rows []ImportUserRow) (*dto.ImportUserResponse, error)
}

// ImportUserRow Excel 导入解析后的单行数据
type ImportUserRow struct {
	Row         int
	Name        string
	StudentCode string
	Email       string
	Role        string
	MajorCode   string
	HomeClass   string
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── 专业 ──────────────────────

func (s *userService) CreateMajor(ctx context.Context, actor lifecycle.Actor, req *dto.CreateMajorRequest) (*dto.MajorBrief, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	m := &model.Major{
		Code:      strings.TrimSpace(req.Code),
		Name:      strings.TrimSpace(req.Name),
		BaseModel: model.BaseModel{CreatedBy: strPtr(actor.UserID)},
	}
	if err := s.repo.Major.Create(ctx, m); err != nil {
		if err = duplicate(err, ErrMajorCodeExists); pkgerrors.KindOf(err) == pkgerrors.KindUniqueness {
			return nil, err
		}
		s.logger.Error("创建专业失败", zap.Error(err))
		return nil, err
	}
	return &dto.MajorBrief{ID: m.MajorID, Code: m.Code, Name: m.Name}, nil
}

func (s *userService) ListMajors(ctx context.Context) ([]dto.MajorBrief, error) {
	majors, err := s.repo.Major.List(ctx)
	if err != nil {
		s.logger.Error("列出专业失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.MajorBrief, 0, len(majors))
	for _, m := range majors {
		result = append(result, dto.MajorBrief{ID: m.MajorID, Code: m.Code, Name: m.Name})
	}
	return result, nil
}

// ────────────────────── CreateUser ──────────────────────

func (s *userService) CreateUser(ctx context.Context, actor lifecycle.Actor, req *dto.CreateUserRequest) (*dto.CreateUserResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	if req.MajorID != nil {
		if _, err := s.repo.Major.GetByID(ctx, *req.MajorID); err != nil {
			return nil, notFound(err, ErrMajorNotFound)
		}
	}

	tempPwd := defaultPassword(req.StudentCode)
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPwd), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		StudentCode:  strings.TrimSpace(req.StudentCode),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
		MajorID:      req.MajorID,
		HomeClass:    strings.TrimSpace(req.HomeClass),
		IsActive:     true,
		BaseModel:    model.BaseModel{CreatedBy: strPtr(actor.UserID)},
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if err = duplicate(err, ErrStudentCodeExists); pkgerrors.KindOf(err) == pkgerrors.KindUniqueness {
			return nil, err
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	// 重新加载以获取专业信息
	created, err := s.repo.User.GetByID(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.CreateUserResponse{User: toUserResponse(created), TempPassword: tempPwd}, nil
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, actor lifecycle.Actor, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	if err := validate.Struct(req); err != nil {
		return nil, 0, err
	}
	if actor.IsStudent() {
		return nil, 0, ErrForbidden
	}

	filters := &repository.UserListFilters{
		Role:    req.Role,
		MajorID: req.MajorID,
		Keyword: strings.TrimSpace(req.Keyword),
	}
	users, total, err := s.repo.User.ListWithFilters(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出用户失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, toUserResponse(&users[i]))
	}
	return result, total, nil
}

// ────────────────────── SetActive ──────────────────────

// SetActive 停用后账号无法登录；已签发的 Token 在过期前仍然有效
func (s *userService) SetActive(ctx context.Context, actor lifecycle.Actor, id string, req *dto.SetUserActiveRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if id == actor.UserID && !*req.Active {
		return ErrUserSelfDisable
	}

	n, err := s.repo.User.UpdateFields(ctx, id, map[string]interface{}{
		"is_active":  *req.Active,
		"updated_by": actor.UserID,
	})
	if err != nil {
		s.logger.Error("更新账号状态失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *userService) ResetPassword(ctx context.Context, actor lifecycle.Actor, id string) (*dto.ResetPasswordResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	tempPassword, err := generateTempPassword(8)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	n, err := s.repo.User.UpdateFields(ctx, id, map[string]interface{}{
		"password_hash": string(hash),
		"updated_by":    actor.UserID,
	})
	if err != nil {
		s.logger.Error("重置密码失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if n == 0 {
		return nil, ErrUserNotFound
	}
	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

// ────────────────────── ParseImportFile ──────────────────────

// ParseImportFile 解析账号导入 Excel（首行为表头，列序任意）
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, ErrImportInvalidFile.Wrap(err)
	}
	defer f.Close()

	excelRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, ErrImportInvalidFile.Wrap(err)
	}
	if len(excelRows) < 2 {
		return nil, ErrImportEmpty
	}

	col := parseHeaderIndex(excelRows[0])
	if col["name"] < 0 || col["student_code"] < 0 || col["email"] < 0 {
		return nil, ErrImportUserNoColumn
	}

	cell := func(row []string, key string) string {
		if idx := col[key]; idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []ImportUserRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportUserRow{
			Row:         i + 1,
			Name:        cell(row, "name"),
			StudentCode: cell(row, "student_code"),
			Email:       cell(row, "email"),
			Role:        strings.ToLower(cell(row, "role")),
			MajorCode:   cell(row, "major"),
			HomeClass:   cell(row, "class"),
		}
		// 跳过全空行
		if item.Name == "" && item.StudentCode == "" && item.Email == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportEmpty
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// parseHeaderIndex 解析表头，返回列名 -> 列索引映射（缺失为 -1）
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{
		"name":         -1,
		"student_code": -1,
		"email":        -1,
		"role":         -1,
		"major":        -1,
		"class":        -1,
	}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "姓名", "name", "họ tên", "ho ten":
			idx["name"] = i
		case "学号", "student_code", "mssv", "mã sinh viên", "ma sinh vien":
			idx["student_code"] = i
		case "邮箱", "email":
			idx["email"] = i
		case "角色", "role":
			idx["role"] = i
		case "专业", "major", "ngành", "nganh":
			idx["major"] = i
		case "班级", "class", "lớp", "lop":
			idx["class"] = i
		}
	}
	return idx
}

// ────────────────────── ImportUsers ──────────────────────

// ImportUsers 先逐行预校验，再在单个事务中写入全部通过校验的行；任一写入失败则整体回滚
func (s *userService) ImportUsers(ctx context.Context, actor lifecycle.Actor, rows []ImportUserRow) (*dto.ImportUserResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	resp := &dto.ImportUserResponse{Total: len(rows)}

	majors, err := s.repo.Major.List(ctx)
	if err != nil {
		s.logger.Error("加载专业列表失败", zap.Error(err))
		return nil, err
	}
	majorByCode := make(map[string]string, len(majors))
	for _, m := range majors {
		majorByCode[m.Code] = m.MajorID
	}

	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.StudentCode)
	}
	existing, err := s.repo.User.ListByStudentCodes(ctx, codes)
	if err != nil {
		s.logger.Error("查询已有学号失败", zap.Error(err))
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, u := range existing {
		taken[u.StudentCode] = true
	}

	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportUserError{Row: row, Reason: reason})
	}

	// 第一阶段：数据预校验（不接触数据库写操作）
	var users []*model.User
	for _, row := range rows {
		if row.Name == "" || row.StudentCode == "" || row.Email == "" {
			fail(row.Row, "必填字段为空")
			continue
		}
		if taken[row.StudentCode] {
			fail(row.Row, fmt.Sprintf("学号已存在: %s", row.StudentCode))
			continue
		}
		role := row.Role
		if role == "" {
			role = model.RoleStudent
		}
		if !validRole(role) {
			fail(row.Row, fmt.Sprintf("角色无效: %s", row.Role))
			continue
		}
		var majorID *string
		if row.MajorCode != "" {
			id, ok := majorByCode[row.MajorCode]
			if !ok {
				fail(row.Row, fmt.Sprintf("专业不存在: %s", row.MajorCode))
				continue
			}
			majorID = strPtr(id)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword(row.StudentCode)), bcrypt.DefaultCost)
		if err != nil {
			fail(row.Row, "密码哈希失败")
			continue
		}

		taken[row.StudentCode] = true
		users = append(users, &model.User{
			Name:         row.Name,
			StudentCode:  row.StudentCode,
			Email:        row.Email,
			PasswordHash: string(hash),
			Role:         role,
			MajorID:      majorID,
			HomeClass:    row.HomeClass,
			IsActive:     true,
			BaseModel:    model.BaseModel{CreatedBy: strPtr(actor.UserID)},
		})
	}

	// 第二阶段：事务内批量写入
	if len(users) > 0 {
		err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			for _, u := range users {
				if err := tx.User.Create(ctx, u); err != nil {
					return fmt.Errorf("学号 %s 写入失败，已回滚全部导入: %w", u.StudentCode, err)
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("导入用户写入失败，事务回滚", zap.Error(err))
			return nil, err
		}
		resp.Success = len(users)
	}

	s.logger.Info("批量导入用户完成",
		zap.Int("total", resp.Total), zap.Int("success", resp.Success), zap.Int("failed", resp.Failed))
	return resp, nil
}

// ── 内部辅助方法 ──

func validRole(role string) bool {
	switch role {
	case model.RoleStudent, model.RoleAdvisor, model.RoleDepartmentHead, model.RoleAdmin:
		return true
	}
	return false
}

// defaultPassword 初始密码 = "Gp" + 学号后 6 位
func defaultPassword(studentCode string) string {
	if len(studentCode) > 6 {
		studentCode = studentCode[len(studentCode)-6:]
	}
	return "Gp" + studentCode
}

// generateTempPassword 生成指定长度的临时密码（保证包含字母和数字）
func generateTempPassword(length int) (string, error) {
	const letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	const digits = "23456789"
	const all = letters + digits

	if length < 4 {
		length = 8
	}

	pick := func(set string) (byte, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return 0, err
		}
		return set[n.Int64()], nil
	}

	result := make([]byte, length)
	var err error
	if result[0], err = pick(letters); err != nil {
		return "", err
	}
	if result[1], err = pick(digits); err != nil {
		return "", err
	}
	for i := 2; i < length; i++ {
		if result[i], err = pick(all); err != nil {
			return "", err
		}
	}

	// Fisher-Yates 洗牌
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		result[i], result[j.Int64()] = result[j.Int64()], result[i]
	}
	return string(result), nil
}
