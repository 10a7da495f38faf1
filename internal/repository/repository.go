package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User         UserRepository
	Major        MajorRepository
	Plan         PlanRepository
	Milestone    MilestoneRepository
	Participant  ParticipantRepository
	Group        GroupRepository
	Membership   MembershipRepository
	Invitation   InvitationRepository
	JoinRequest  JoinRequestRepository
	Topic        TopicRepository
	Assignment   AssignmentRepository
	Submission   SubmissionRepository
	Notification NotificationRepository
	Capacity     CapacityRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		User:         NewUserRepo(db),
		Major:        NewMajorRepo(db),
		Plan:         NewPlanRepo(db),
		Milestone:    NewMilestoneRepo(db),
		Participant:  NewParticipantRepo(db),
		Group:        NewGroupRepo(db),
		Membership:   NewMembershipRepo(db),
		Invitation:   NewInvitationRepo(db),
		JoinRequest:  NewJoinRequestRepo(db),
		Topic:        NewTopicRepo(db),
		Assignment:   NewAssignmentRepo(db),
		Submission:   NewSubmissionRepo(db),
		Notification: NewNotificationRepo(db),
		Capacity:     NewCapacityRepo(db),
	}
}

// DB 返回底层连接
func (r *Repository) DB() *gorm.DB { return r.db }

// BeginTx 开启事务，调用方负责 Commit / Rollback
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 基于事务连接构造新的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个事务中执行 fn；fn 返回错误或 panic 时整体回滚
// fn 内只能使用传入的 tx 聚合，否则在单连接的 SQLite 上会自锁
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// forUpdate 行级写锁（SELECT ... FOR UPDATE）
// 须在事务连接上使用；SQLite 方言会忽略该子句，其串行事务本身已提供同等保证
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
