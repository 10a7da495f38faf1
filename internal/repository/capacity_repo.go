package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
)

// CounterKind 冗余计数器类型
type CounterKind string

const (
	// CounterGroupMembers thesis_groups.member_count，上限为所属计划的 max_members
	CounterGroupMembers CounterKind = "group_members"
	// CounterTopicSlots thesis_topics.registered_count，上限为 max_groups
	CounterTopicSlots CounterKind = "topic_slots"
	// CounterPlanGroups thesis_plans.group_count，max_groups > 0 时受其约束
	CounterPlanGroups CounterKind = "plan_groups"
)

// CapacityRepository 计数器的条件增减
// 每次调用都是一条带上限判断的 UPDATE，返回是否命中（0 行即超限 / 下溢）
type CapacityRepository interface {
	Increment(ctx context.Context, kind CounterKind, id string, n int) (bool, error)
	Decrement(ctx context.Context, kind CounterKind, id string, n int) (bool, error)
}

type capacityRepo struct {
	db *gorm.DB
}

// NewCapacityRepo 创建 CapacityRepository 实例
func NewCapacityRepo(db *gorm.DB) CapacityRepository {
	return &capacityRepo{db: db}
}

func (r *capacityRepo) Increment(ctx context.Context, kind CounterKind, id string, n int) (bool, error) {
	db := r.db.WithContext(ctx)
	now := time.Now()
	var result *gorm.DB

	switch kind {
	case CounterGroupMembers:
		result = db.Model(&model.Group{}).
			Where("group_id = ?", id).
			Where("member_count + ? <= (SELECT max_members FROM thesis_plans WHERE thesis_plans.plan_id = thesis_groups.plan_id)", n).
			Updates(map[string]interface{}{
				"member_count": gorm.Expr("member_count + ?", n),
				"updated_at":   now,
			})
	case CounterTopicSlots:
		result = db.Model(&model.Topic{}).
			Where("topic_id = ? AND registered_count + ? <= max_groups", id, n).
			Updates(map[string]interface{}{
				"registered_count": gorm.Expr("registered_count + ?", n),
				"updated_at":       now,
			})
	case CounterPlanGroups:
		result = db.Model(&model.ThesisPlan{}).
			Where("plan_id = ?", id).
			Where("(max_groups = 0 OR group_count + ? <= max_groups)", n).
			Updates(map[string]interface{}{
				"group_count": gorm.Expr("group_count + ?", n),
				"updated_at":  now,
			})
	default:
		return false, fmt.Errorf("未知计数器类型: %s", kind)
	}

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *capacityRepo) Decrement(ctx context.Context, kind CounterKind, id string, n int) (bool, error) {
	db := r.db.WithContext(ctx)
	now := time.Now()
	var result *gorm.DB

	switch kind {
	case CounterGroupMembers:
		result = db.Model(&model.Group{}).
			Where("group_id = ? AND member_count >= ?", id, n).
			Updates(map[string]interface{}{
				"member_count": gorm.Expr("member_count - ?", n),
				"updated_at":   now,
			})
	case CounterTopicSlots:
		result = db.Model(&model.Topic{}).
			Where("topic_id = ? AND registered_count >= ?", id, n).
			Updates(map[string]interface{}{
				"registered_count": gorm.Expr("registered_count - ?", n),
				"updated_at":       now,
			})
	case CounterPlanGroups:
		result = db.Model(&model.ThesisPlan{}).
			Where("plan_id = ? AND group_count >= ?", id, n).
			Updates(map[string]interface{}{
				"group_count": gorm.Expr("group_count - ?", n),
				"updated_at":  now,
			})
	default:
		return false, fmt.Errorf("未知计数器类型: %s", kind)
	}

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
