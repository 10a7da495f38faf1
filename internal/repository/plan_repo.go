package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// PlanFilter 计划列表过滤条件
type PlanFilter struct {
	Status    string
	CreatorID string
}

// PlanRepository 毕业设计计划数据访问接口
type PlanRepository interface {
	Create(ctx context.Context, plan *model.ThesisPlan) error
	GetByID(ctx context.Context, id string) (*model.ThesisPlan, error)
	// GetByIDForUpdate 行锁读取，须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.ThesisPlan, error)
	List(ctx context.Context, filter PlanFilter) ([]model.ThesisPlan, error)
	// Update 更新可编辑字段（乐观锁）
	Update(ctx context.Context, plan *model.ThesisPlan) error
	// UpdateStatus 状态迁移，仅当数据库中的状态仍为 from 时生效
	UpdateStatus(ctx context.Context, plan *model.ThesisPlan, from string) error
}

type planRepo struct {
	db *gorm.DB
}

// NewPlanRepo 创建 PlanRepository 实例
func NewPlanRepo(db *gorm.DB) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) Create(ctx context.Context, plan *model.ThesisPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *planRepo) GetByID(ctx context.Context, id string) (*model.ThesisPlan, error) {
	var plan model.ThesisPlan
	err := r.db.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, start_at ASC")
		}).
		Where("plan_id = ?", id).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.ThesisPlan, error) {
	var plan model.ThesisPlan
	err := forUpdate(r.db.WithContext(ctx)).
		Where("plan_id = ?", id).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepo) List(ctx context.Context, filter PlanFilter) ([]model.ThesisPlan, error) {
	var plans []model.ThesisPlan
	db := r.db.WithContext(ctx).Model(&model.ThesisPlan{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.CreatorID != "" {
		db = db.Where("creator_id = ?", filter.CreatorID)
	}
	err := db.Order("created_at DESC").Find(&plans).Error
	return plans, err
}

func (r *planRepo) Update(ctx context.Context, plan *model.ThesisPlan) error {
	oldVersion := plan.Version
	result := r.db.WithContext(ctx).
		Model(&model.ThesisPlan{}).
		Where("plan_id = ? AND version = ?", plan.PlanID, oldVersion).
		Updates(map[string]interface{}{
			"title":          plan.Title,
			"academic_year":  plan.AcademicYear,
			"term":           plan.Term,
			"training_level": plan.TrainingLevel,
			"start_date":     plan.StartDate,
			"end_date":       plan.EndDate,
			"min_members":    plan.MinMembers,
			"max_members":    plan.MaxMembers,
			"max_groups":     plan.MaxGroups,
			"updated_by":     plan.UpdatedBy,
			"updated_at":     time.Now(),
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	plan.Version = oldVersion + 1
	return nil
}

func (r *planRepo) UpdateStatus(ctx context.Context, plan *model.ThesisPlan, from string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ThesisPlan{}).
		Where("plan_id = ? AND status = ?", plan.PlanID, from).
		Updates(map[string]interface{}{
			"status":           plan.Status,
			"approver_id":      plan.ApproverID,
			"approval_comment": plan.ApprovalComment,
			"submitted_at":     plan.SubmittedAt,
			"approved_at":      plan.ApprovedAt,
			"updated_by":       plan.UpdatedBy,
			"updated_at":       time.Now(),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	plan.Version++
	return nil
}

// ── Milestone Repository ──

// MilestoneRepository 里程碑数据访问接口
type MilestoneRepository interface {
	Create(ctx context.Context, m *model.Milestone) error
	GetByID(ctx context.Context, id string) (*model.Milestone, error)
	Delete(ctx context.Context, planID, id string) (int64, error)
	ListByPlan(ctx context.Context, planID string) ([]model.Milestone, error)
	CountByPlan(ctx context.Context, planID string) (int64, error)
}

type milestoneRepo struct {
	db *gorm.DB
}

// NewMilestoneRepo 创建 MilestoneRepository 实例
func NewMilestoneRepo(db *gorm.DB) MilestoneRepository {
	return &milestoneRepo{db: db}
}

func (r *milestoneRepo) Create(ctx context.Context, m *model.Milestone) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *milestoneRepo) GetByID(ctx context.Context, id string) (*model.Milestone, error) {
	var m model.Milestone
	if err := r.db.WithContext(ctx).Where("milestone_id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *milestoneRepo) Delete(ctx context.Context, planID, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("plan_id = ? AND milestone_id = ?", planID, id).
		Delete(&model.Milestone{})
	return result.RowsAffected, result.Error
}

func (r *milestoneRepo) ListByPlan(ctx context.Context, planID string) ([]model.Milestone, error) {
	var list []model.Milestone
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("sort_order ASC, start_at ASC").
		Find(&list).Error
	return list, err
}

func (r *milestoneRepo) CountByPlan(ctx context.Context, planID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}

// ── Participant Repository ──

// ParticipantRepository 计划参与学生数据访问接口
type ParticipantRepository interface {
	Create(ctx context.Context, p *model.Participant) error
	Get(ctx context.Context, planID, studentID string) (*model.Participant, error)
	ListByPlan(ctx context.Context, planID string) ([]model.Participant, error)
	SetEligibility(ctx context.Context, planID, studentID string, eligible bool, updatedBy string) (int64, error)
	Delete(ctx context.Context, planID, studentID string) (int64, error)
	// IsEligible 是否为该计划的合格参与者（已报名、资格有效、账号启用的学生）
	IsEligible(ctx context.Context, planID, userID string) (bool, error)
	// ListPool 自动分组候选池：合格参与者中尚未加入任何小组的学生，按学号排序
	ListPool(ctx context.Context, planID string) ([]model.User, error)
}

type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) Get(ctx context.Context, planID, studentID string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).
		Where("plan_id = ? AND student_id = ?", planID, studentID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) ListByPlan(ctx context.Context, planID string) ([]model.Participant, error) {
	var list []model.Participant
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("plan_id = ?", planID).
		Order("joined_at ASC").
		Find(&list).Error
	return list, err
}

func (r *participantRepo) SetEligibility(ctx context.Context, planID, studentID string, eligible bool, updatedBy string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("plan_id = ? AND student_id = ?", planID, studentID).
		Updates(map[string]interface{}{
			"is_eligible": eligible,
			"updated_by":  updatedBy,
			"updated_at":  time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *participantRepo) Delete(ctx context.Context, planID, studentID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("plan_id = ? AND student_id = ?", planID, studentID).
		Delete(&model.Participant{})
	return result.RowsAffected, result.Error
}

func (r *participantRepo) IsEligible(ctx context.Context, planID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Joins("JOIN users ON users.user_id = plan_participants.student_id").
		Where("plan_participants.plan_id = ? AND plan_participants.student_id = ?", planID, userID).
		Where("plan_participants.is_eligible = ? AND users.is_active = ? AND users.role = ?",
			true, true, model.RoleStudent).
		Count(&count).Error
	return count > 0, err
}

func (r *participantRepo) ListPool(ctx context.Context, planID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("users.*").
		Joins("JOIN plan_participants ON plan_participants.student_id = users.user_id").
		Joins("LEFT JOIN group_members ON group_members.user_id = users.user_id").
		Where("plan_participants.plan_id = ? AND plan_participants.is_eligible = ?", planID, true).
		Where("users.is_active = ? AND users.role = ?", true, model.RoleStudent).
		Where("group_members.membership_id IS NULL").
		Order("users.student_code ASC").
		Find(&users).Error
	return users, err
}
