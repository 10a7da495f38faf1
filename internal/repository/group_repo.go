package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// GroupRepository 小组数据访问接口
type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id string) (*model.Group, error)
	// GetByIDForUpdate 行锁读取，须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.Group, error)
	ListByPlan(ctx context.Context, planID string) ([]model.Group, error)
	// ListFillable 可补员的小组：非特殊、未锁定、人数低于 size，按创建先后排序并加行锁
	ListFillable(ctx context.Context, planID string, size int) ([]model.Group, error)
	CountByPlan(ctx context.Context, planID string) (int64, error)
	// ListNames 计划内现有小组名称，用于生成默认组名序号
	ListNames(ctx context.Context, planID string) ([]string, error)
	// Update 更新名称 / 组长 / 状态（乐观锁）
	Update(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, id string) error
}

type groupRepo struct {
	db *gorm.DB
}

// NewGroupRepo 创建 GroupRepository 实例
func NewGroupRepo(db *gorm.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) Create(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepo) GetByID(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, membership_id ASC")
		}).
		Preload("Members.User").
		Where("group_id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	err := forUpdate(r.db.WithContext(ctx)).
		Where("group_id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepo) ListByPlan(ctx context.Context, planID string) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, membership_id ASC")
		}).
		Preload("Members.User").
		Where("plan_id = ?", planID).
		Order("created_at ASC, group_id ASC").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepo) ListFillable(ctx context.Context, planID string, size int) ([]model.Group, error) {
	var groups []model.Group
	err := forUpdate(r.db.WithContext(ctx)).
		Where("plan_id = ? AND is_special = ? AND status = ? AND member_count < ?",
			planID, false, model.GroupStatusOpen, size).
		Order("created_at ASC, group_id ASC").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepo) CountByPlan(ctx context.Context, planID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}

func (r *groupRepo) ListNames(ctx context.Context, planID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("plan_id = ?", planID).
		Pluck("name", &names).Error
	return names, err
}

func (r *groupRepo) Update(ctx context.Context, group *model.Group) error {
	oldVersion := group.Version
	result := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("group_id = ? AND version = ?", group.GroupID, oldVersion).
		Updates(map[string]interface{}{
			"name":       group.Name,
			"leader_id":  group.LeaderID,
			"status":     group.Status,
			"updated_by": group.UpdatedBy,
			"updated_at": time.Now(),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	group.Version = oldVersion + 1
	return nil
}

func (r *groupRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("group_id = ?", id).
		Delete(&model.Group{}).Error
}

// ── Membership Repository ──

// MembershipRepository 小组成员数据访问接口
type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	// GetByUser 查询用户当前所在小组的成员关系（全局至多一条）
	GetByUser(ctx context.Context, userID string) (*model.Membership, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.Membership, error)
	CountByGroup(ctx context.Context, groupID string) (int64, error)
	Delete(ctx context.Context, groupID, userID string) (int64, error)
}

type membershipRepo struct {
	db *gorm.DB
}

// NewMembershipRepo 创建 MembershipRepository 实例
func NewMembershipRepo(db *gorm.DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) Create(ctx context.Context, m *model.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *membershipRepo) GetByUser(ctx context.Context, userID string) (*model.Membership, error) {
	var m model.Membership
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepo) ListByGroup(ctx context.Context, groupID string) ([]model.Membership, error) {
	var list []model.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("joined_at ASC, membership_id ASC").
		Find(&list).Error
	return list, err
}

func (r *membershipRepo) CountByGroup(ctx context.Context, groupID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("group_id = ?", groupID).
		Count(&count).Error
	return count, err
}

func (r *membershipRepo) Delete(ctx context.Context, groupID, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&model.Membership{})
	return result.RowsAffected, result.Error
}
