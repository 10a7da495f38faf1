package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// TopicFilter 课题列表过滤条件
type TopicFilter struct {
	PlanID    string
	AdvisorID string
	Status    string
}

// TopicRepository 课题数据访问接口
type TopicRepository interface {
	Create(ctx context.Context, topic *model.Topic) error
	GetByID(ctx context.Context, id string) (*model.Topic, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Topic, error)
	List(ctx context.Context, filter TopicFilter) ([]model.Topic, error)
	// Update 更新标题 / 描述 / 名额（乐观锁）
	Update(ctx context.Context, topic *model.Topic) error
	// UpdateStatus 状态迁移，仅当数据库中的状态仍为 from 时生效
	UpdateStatus(ctx context.Context, topic *model.Topic, from string) error
}

type topicRepo struct {
	db *gorm.DB
}

// NewTopicRepo 创建 TopicRepository 实例
func NewTopicRepo(db *gorm.DB) TopicRepository {
	return &topicRepo{db: db}
}

func (r *topicRepo) Create(ctx context.Context, topic *model.Topic) error {
	return r.db.WithContext(ctx).Create(topic).Error
}

func (r *topicRepo) GetByID(ctx context.Context, id string) (*model.Topic, error) {
	var topic model.Topic
	if err := r.db.WithContext(ctx).Where("topic_id = ?", id).First(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Topic, error) {
	var topic model.Topic
	if err := forUpdate(r.db.WithContext(ctx)).Where("topic_id = ?", id).First(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) List(ctx context.Context, filter TopicFilter) ([]model.Topic, error) {
	var topics []model.Topic
	db := r.db.WithContext(ctx).Model(&model.Topic{})
	if filter.PlanID != "" {
		db = db.Where("plan_id = ?", filter.PlanID)
	}
	if filter.AdvisorID != "" {
		db = db.Where("advisor_id = ?", filter.AdvisorID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("created_at ASC, topic_id ASC").Find(&topics).Error
	return topics, err
}

func (r *topicRepo) Update(ctx context.Context, topic *model.Topic) error {
	oldVersion := topic.Version
	result := r.db.WithContext(ctx).
		Model(&model.Topic{}).
		Where("topic_id = ? AND version = ?", topic.TopicID, oldVersion).
		Updates(map[string]interface{}{
			"title":       topic.Title,
			"description": topic.Description,
			"max_groups":  topic.MaxGroups,
			"updated_by":  topic.UpdatedBy,
			"updated_at":  time.Now(),
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	topic.Version = oldVersion + 1
	return nil
}

func (r *topicRepo) UpdateStatus(ctx context.Context, topic *model.Topic, from string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Topic{}).
		Where("topic_id = ? AND status = ?", topic.TopicID, from).
		Updates(map[string]interface{}{
			"status":      topic.Status,
			"approver_id": topic.ApproverID,
			"reason":      topic.Reason,
			"updated_by":  topic.UpdatedBy,
			"updated_at":  time.Now(),
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	topic.Version++
	return nil
}

// ── Assignment Repository ──

// AssignmentRepository 选题分配数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, a *model.Assignment) error
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Assignment, error)
	GetByGroup(ctx context.Context, groupID string) (*model.Assignment, error)
	ListByTopic(ctx context.Context, topicID string) ([]model.Assignment, error)
	CountByTopic(ctx context.Context, topicID string) (int64, error)
	UpdateStatus(ctx context.Context, id, from, to string) (int64, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Create(ctx context.Context, a *model.Assignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Topic").
		Where("assignment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	if err := forUpdate(r.db.WithContext(ctx)).Where("assignment_id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) GetByGroup(ctx context.Context, groupID string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Topic").
		Where("group_id = ?", groupID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) ListByTopic(ctx context.Context, topicID string) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *assignmentRepo) CountByTopic(ctx context.Context, topicID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("topic_id = ?", topicID).
		Count(&count).Error
	return count, err
}

func (r *assignmentRepo) UpdateStatus(ctx context.Context, id, from, to string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("assignment_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
