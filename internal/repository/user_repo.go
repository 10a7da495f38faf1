package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByStudentCode(ctx context.Context, code string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	ListByStudentCodes(ctx context.Context, codes []string) ([]model.User, error)
	ListWithFilters(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error)
	// UpdateFields 按列更新，返回受影响行数
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
}

// UserListFilters 用户列表过滤条件
type UserListFilters struct {
	Role    string
	MajorID string
	Keyword string
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Major").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByStudentCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Major").
		Where("student_code = ?", code).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Order("student_code ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) ListByStudentCodes(ctx context.Context, codes []string) ([]model.User, error) {
	var users []model.User
	if len(codes) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_code IN ?", codes).
		Order("student_code ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) ListWithFilters(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := r.db.WithContext(ctx).Model(&model.User{})
	if filters.Role != "" {
		query = query.Where("role = ?", filters.Role)
	}
	if filters.MajorID != "" {
		query = query.Where("major_id = ?", filters.MajorID)
	}
	if filters.Keyword != "" {
		like := "%" + filters.Keyword + "%"
		query = query.Where("name LIKE ? OR student_code LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Major").
		Order("student_code ASC").
		Offset(offset).Limit(limit).
		Find(&users).Error
	return users, total, err
}

func (r *userRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ── Major Repository ──

// MajorRepository 专业数据访问接口
type MajorRepository interface {
	Create(ctx context.Context, major *model.Major) error
	GetByID(ctx context.Context, id string) (*model.Major, error)
	List(ctx context.Context) ([]model.Major, error)
}

type majorRepo struct {
	db *gorm.DB
}

// NewMajorRepo 创建 MajorRepository 实例
func NewMajorRepo(db *gorm.DB) MajorRepository {
	return &majorRepo{db: db}
}

func (r *majorRepo) Create(ctx context.Context, major *model.Major) error {
	return r.db.WithContext(ctx).Create(major).Error
}

func (r *majorRepo) GetByID(ctx context.Context, id string) (*model.Major, error) {
	var major model.Major
	if err := r.db.WithContext(ctx).Where("major_id = ?", id).First(&major).Error; err != nil {
		return nil, err
	}
	return &major, nil
}

func (r *majorRepo) List(ctx context.Context) ([]model.Major, error) {
	var majors []model.Major
	err := r.db.WithContext(ctx).Order("code ASC").Find(&majors).Error
	return majors, err
}
