package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/database"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// newSQLiteRepo 基于内存 SQLite 创建 Repository（单连接，事务串行）
func newSQLiteRepo(t *testing.T) *repository.Repository {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "error", zap.NewNop())
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewRepository(db)
}

func seedStudent(t *testing.T, repo *repository.Repository, code string) *model.User {
	t.Helper()
	u := &model.User{
		Name:         "学生" + code,
		StudentCode:  code,
		Email:        code + "@example.edu.vn",
		PasswordHash: "x",
		Role:         model.RoleStudent,
		IsActive:     true,
	}
	if err := repo.User.Create(context.Background(), u); err != nil {
		t.Fatalf("创建学生失败: %v", err)
	}
	return u
}

func seedPlan(t *testing.T, repo *repository.Repository, creatorID string, maxMembers, maxGroups int) *model.ThesisPlan {
	t.Helper()
	p := &model.ThesisPlan{
		Title:        "测试计划",
		AcademicYear: "2025-2026",
		Term:         1,
		StartDate:    time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		MinMembers:   1,
		MaxMembers:   maxMembers,
		MaxGroups:    maxGroups,
		Status:       model.PlanStatusApproved,
		CreatorID:    creatorID,
	}
	if err := repo.Plan.Create(context.Background(), p); err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	return p
}

func TestCapacity_GroupMembersBoundedByPlan(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	leader := seedStudent(t, repo, "S001")
	plan := seedPlan(t, repo, leader.UserID, 2, 0)
	group := &model.Group{PlanID: plan.PlanID, Name: "Nhóm 1", LeaderID: leader.UserID, Status: model.GroupStatusOpen}
	if err := repo.Group.Create(ctx, group); err != nil {
		t.Fatalf("创建小组失败: %v", err)
	}

	ok, err := repo.Capacity.Increment(ctx, repository.CounterGroupMembers, group.GroupID, 2)
	if err != nil || !ok {
		t.Fatalf("期望预留 2 个名额成功，ok=%v err=%v", ok, err)
	}
	ok, err = repo.Capacity.Increment(ctx, repository.CounterGroupMembers, group.GroupID, 1)
	if err != nil {
		t.Fatalf("Increment 失败: %v", err)
	}
	if ok {
		t.Error("超过 max_members 的预留应失败")
	}

	got, _ := repo.Group.GetByID(ctx, group.GroupID)
	if got.MemberCount != 2 {
		t.Errorf("期望 member_count=2，实际 %d", got.MemberCount)
	}

	// 释放不得下溢
	if ok, _ := repo.Capacity.Decrement(ctx, repository.CounterGroupMembers, group.GroupID, 3); ok {
		t.Error("下溢的释放应失败")
	}
	if ok, _ := repo.Capacity.Decrement(ctx, repository.CounterGroupMembers, group.GroupID, 1); !ok {
		t.Error("正常释放应成功")
	}
}

func TestCapacity_PlanGroupsUnlimitedWhenZero(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	creator := seedStudent(t, repo, "S001")
	unlimited := seedPlan(t, repo, creator.UserID, 3, 0)
	limited := seedPlan(t, repo, creator.UserID, 3, 1)

	for i := 0; i < 5; i++ {
		if ok, err := repo.Capacity.Increment(ctx, repository.CounterPlanGroups, unlimited.PlanID, 1); err != nil || !ok {
			t.Fatalf("max_groups=0 时不应受限，第 %d 次失败 ok=%v err=%v", i+1, ok, err)
		}
	}

	if ok, _ := repo.Capacity.Increment(ctx, repository.CounterPlanGroups, limited.PlanID, 1); !ok {
		t.Fatal("第一个小组名额应预留成功")
	}
	if ok, _ := repo.Capacity.Increment(ctx, repository.CounterPlanGroups, limited.PlanID, 1); ok {
		t.Error("超过 max_groups 应失败")
	}
}

func TestCapacity_TopicSlots(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	adv := seedStudent(t, repo, "A001")
	plan := seedPlan(t, repo, adv.UserID, 3, 0)
	topic := &model.Topic{PlanID: plan.PlanID, AdvisorID: adv.UserID, Title: "课题", MaxGroups: 1, Status: model.TopicStatusApproved}
	if err := repo.Topic.Create(ctx, topic); err != nil {
		t.Fatalf("创建课题失败: %v", err)
	}

	if ok, _ := repo.Capacity.Increment(ctx, repository.CounterTopicSlots, topic.TopicID, 1); !ok {
		t.Fatal("第一次预留应成功")
	}
	if ok, _ := repo.Capacity.Increment(ctx, repository.CounterTopicSlots, topic.TopicID, 1); ok {
		t.Error("名额已满时预留应失败")
	}
}

func TestMembership_UserUniqueAcrossGroups(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u := seedStudent(t, repo, "S001")
	plan := seedPlan(t, repo, u.UserID, 3, 0)
	g1 := &model.Group{PlanID: plan.PlanID, Name: "Nhóm 1", LeaderID: u.UserID, Status: model.GroupStatusOpen}
	g2 := &model.Group{PlanID: plan.PlanID, Name: "Nhóm 2", LeaderID: u.UserID, Status: model.GroupStatusOpen}
	_ = repo.Group.Create(ctx, g1)
	_ = repo.Group.Create(ctx, g2)

	if err := repo.Membership.Create(ctx, &model.Membership{GroupID: g1.GroupID, UserID: u.UserID, JoinedAt: time.Now()}); err != nil {
		t.Fatalf("首次加入失败: %v", err)
	}
	err := repo.Membership.Create(ctx, &model.Membership{GroupID: g2.GroupID, UserID: u.UserID, JoinedAt: time.Now()})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("期望唯一约束冲突 (ErrDuplicatedKey)，实际: %v", err)
	}
}

func TestParticipant_ListPoolExcludesGrouped(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	var students []*model.User
	for i := 3; i >= 1; i-- {
		students = append(students, seedStudent(t, repo, fmt.Sprintf("S00%d", i)))
	}
	plan := seedPlan(t, repo, students[0].UserID, 3, 0)
	for _, s := range students {
		if err := repo.Participant.Create(ctx, &model.Participant{PlanID: plan.PlanID, StudentID: s.UserID, IsEligible: true, JoinedAt: time.Now()}); err != nil {
			t.Fatalf("报名失败: %v", err)
		}
	}
	// S003 不具备资格
	if _, err := repo.Participant.SetEligibility(ctx, plan.PlanID, students[0].UserID, false, students[0].UserID); err != nil {
		t.Fatalf("SetEligibility 失败: %v", err)
	}
	// S002 已在组中
	g := &model.Group{PlanID: plan.PlanID, Name: "Nhóm 1", LeaderID: students[1].UserID, Status: model.GroupStatusOpen}
	_ = repo.Group.Create(ctx, g)
	_ = repo.Membership.Create(ctx, &model.Membership{GroupID: g.GroupID, UserID: students[1].UserID, JoinedAt: time.Now()})

	pool, err := repo.Participant.ListPool(ctx, plan.PlanID)
	if err != nil {
		t.Fatalf("ListPool 失败: %v", err)
	}
	if len(pool) != 1 || pool[0].StudentCode != "S001" {
		t.Errorf("期望候选池仅含 S001，实际 %+v", pool)
	}
}

func TestTransaction_RollbackOnError(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u := seedStudent(t, repo, "S001")
	plan := seedPlan(t, repo, u.UserID, 3, 0)

	sentinel := errors.New("中途失败")
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if ok, err := tx.Capacity.Increment(ctx, repository.CounterPlanGroups, plan.PlanID, 1); err != nil || !ok {
			t.Fatalf("事务内预留失败: ok=%v err=%v", ok, err)
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("期望返回原始错误，实际: %v", err)
	}

	got, _ := repo.Plan.GetByID(ctx, plan.PlanID)
	if got.GroupCount != 0 {
		t.Errorf("回滚后 group_count 应为 0，实际 %d", got.GroupCount)
	}
}

func TestPlan_UpdateStatusGuardsSourceState(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u := seedStudent(t, repo, "S001")
	plan := seedPlan(t, repo, u.UserID, 3, 0)

	plan.Status = model.PlanStatusInProgress
	if err := repo.Plan.UpdateStatus(ctx, plan, model.PlanStatusApproved); err != nil {
		t.Fatalf("UpdateStatus 失败: %v", err)
	}

	// 第二次以过期的源状态迁移应失败
	plan.Status = model.PlanStatusCompleted
	if err := repo.Plan.UpdateStatus(ctx, plan, model.PlanStatusApproved); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}
