package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/database"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
	"github.com/Ynate-byte/gradpro-sub001/pkg/jwt"
)

// ── 测试辅助 ──

const testPassword = "password123"

// recordingSink 记录投递的事件
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) has(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// fakeBlacklist 内存黑名单
type fakeBlacklist struct {
	mu   sync.Mutex
	jtis map[string]time.Duration
}

func (b *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jtis == nil {
		b.jtis = make(map[string]time.Duration)
	}
	b.jtis[jti] = ttl
	return nil
}

type fixture struct {
	ctx       context.Context
	repo      *repository.Repository
	sink      *recordingSink
	blacklist *fakeBlacklist
	jwtMgr    *jwt.Manager
	svc       *Service

	admin   *model.User
	head    *model.User
	advisor *model.User
}

// newFixture 内存 SQLite（单连接，事务串行）上的完整服务栈
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "error", zap.NewNop())
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	if err := database.Migrate(db, "sqlite", zap.NewNop()); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{
		Auth:       config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour},
		Membership: config.MembershipConfig{InvitationTTL: 72 * time.Hour},
		Grouping:   config.GroupingConfig{DefaultGroupSize: 4, DefaultPriority: PriorityMajor, NamePrefix: "Nhóm"},
	}
	f := &fixture{
		ctx:       context.Background(),
		repo:      repository.NewRepository(db),
		sink:      &recordingSink{},
		blacklist: &fakeBlacklist{},
		jwtMgr:    jwt.NewManager(&cfg.Auth),
	}
	f.svc = NewService(cfg, f.repo, f.jwtMgr, f.blacklist, f.sink, zap.NewNop())

	f.admin = f.user(t, "A001", model.RoleAdmin, nil)
	f.head = f.user(t, "H001", model.RoleDepartmentHead, nil)
	f.advisor = f.user(t, "T001", model.RoleAdvisor, nil)
	return f
}

func actorOf(u *model.User) lifecycle.Actor {
	return lifecycle.Actor{UserID: u.UserID, Role: u.Role}
}

func (f *fixture) user(t *testing.T, code, role string, majorID *string) *model.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	u := &model.User{
		Name:         "用户" + code,
		StudentCode:  code,
		Email:        code + "@example.edu.vn",
		PasswordHash: string(hash),
		Role:         role,
		MajorID:      majorID,
		IsActive:     true,
	}
	if err := f.repo.User.Create(f.ctx, u); err != nil {
		t.Fatalf("创建用户 %s 失败: %v", code, err)
	}
	return u
}

func (f *fixture) student(t *testing.T, code string, majorID *string) *model.User {
	t.Helper()
	return f.user(t, code, model.RoleStudent, majorID)
}

func (f *fixture) major(t *testing.T, code string) *string {
	t.Helper()
	m := &model.Major{Code: code, Name: "专业" + code}
	if err := f.repo.Major.Create(f.ctx, m); err != nil {
		t.Fatalf("创建专业失败: %v", err)
	}
	return &m.MajorID
}

// plan 直接写入指定状态的计划及一个里程碑
func (f *fixture) plan(t *testing.T, status string, minMembers, maxMembers, maxGroups int) *model.ThesisPlan {
	t.Helper()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	p := &model.ThesisPlan{
		Title:        "毕业设计计划",
		AcademicYear: "2025-2026",
		Term:         1,
		StartDate:    start,
		EndDate:      start.AddDate(0, 6, 0),
		MinMembers:   minMembers,
		MaxMembers:   maxMembers,
		MaxGroups:    maxGroups,
		Status:       status,
		CreatorID:    f.advisor.UserID,
	}
	if err := f.repo.Plan.Create(f.ctx, p); err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	m := &model.Milestone{PlanID: p.PlanID, Name: "组队登记", StartAt: start, EndAt: start.AddDate(0, 0, 14)}
	if err := f.repo.Milestone.Create(f.ctx, m); err != nil {
		t.Fatalf("创建里程碑失败: %v", err)
	}
	return p
}

func (f *fixture) enroll(t *testing.T, p *model.ThesisPlan, users ...*model.User) {
	t.Helper()
	for _, u := range users {
		pt := &model.Participant{PlanID: p.PlanID, StudentID: u.UserID, IsEligible: true, JoinedAt: time.Now()}
		if err := f.repo.Participant.Create(f.ctx, pt); err != nil {
			t.Fatalf("报名失败: %v", err)
		}
	}
}

// group 由管理员建组并加入成员，首位为组长
func (f *fixture) group(t *testing.T, p *model.ThesisPlan, leader *model.User, members ...*model.User) string {
	t.Helper()
	g, err := f.svc.Group.Create(f.ctx, actorOf(f.admin), &dto.CreateGroupRequest{PlanID: p.PlanID, LeaderID: leader.UserID})
	if err != nil {
		t.Fatalf("创建小组失败: %v", err)
	}
	for _, m := range members {
		if _, err := f.svc.Group.AddStudent(f.ctx, actorOf(f.admin), g.ID, &dto.AddStudentRequest{UserID: m.UserID}); err != nil {
			t.Fatalf("加入成员失败: %v", err)
		}
	}
	return g.ID
}

// approvedTopic 导师提出并经管理员审核通过的课题
func (f *fixture) approvedTopic(t *testing.T, p *model.ThesisPlan, maxGroups int) string {
	t.Helper()
	topic, err := f.svc.Topic.Propose(f.ctx, actorOf(f.advisor), &dto.ProposeTopicRequest{
		PlanID: p.PlanID, Title: "基于图神经网络的推荐系统", MaxGroups: maxGroups,
	})
	if err != nil {
		t.Fatalf("提出课题失败: %v", err)
	}
	if _, err := f.svc.Topic.Submit(f.ctx, actorOf(f.advisor), topic.ID); err != nil {
		t.Fatalf("提交课题失败: %v", err)
	}
	if _, err := f.svc.Topic.Decide(f.ctx, actorOf(f.admin), topic.ID, &dto.DecideTopicRequest{Decision: lifecycle.ActionApprove}); err != nil {
		t.Fatalf("审核课题失败: %v", err)
	}
	return topic.ID
}

// row 读取一行原始数据，用于“无副作用”断言
func (f *fixture) row(t *testing.T, table, pk, id string) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	if err := f.repo.DB().Table(table).Where(pk+" = ?", id).Take(&out).Error; err != nil {
		t.Fatalf("读取 %s 失败: %v", table, err)
	}
	return out
}

func (f *fixture) assertUnchanged(t *testing.T, before map[string]interface{}, table, pk, id string) {
	t.Helper()
	if after := f.row(t, table, pk, id); !reflect.DeepEqual(before, after) {
		t.Errorf("%s 行被修改: before=%v after=%v", table, before, after)
	}
}

// assertCounters 冗余计数与实际行数一致，且每名学生至多属于一个小组
func (f *fixture) assertCounters(t *testing.T) {
	t.Helper()
	db := f.repo.DB()

	var groupDrift int64
	db.Raw(`SELECT COUNT(*) FROM thesis_groups g
		WHERE g.member_count <> (SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.group_id)`).Scan(&groupDrift)
	if groupDrift != 0 {
		t.Errorf("有 %d 个小组的 member_count 与成员行数不一致", groupDrift)
	}

	var topicDrift int64
	db.Raw(`SELECT COUNT(*) FROM thesis_topics t
		WHERE t.registered_count <> (SELECT COUNT(*) FROM topic_assignments a WHERE a.topic_id = t.topic_id)`).Scan(&topicDrift)
	if topicDrift != 0 {
		t.Errorf("有 %d 个课题的 registered_count 与选题行数不一致", topicDrift)
	}

	var planDrift int64
	db.Raw(`SELECT COUNT(*) FROM thesis_plans p
		WHERE p.group_count <> (SELECT COUNT(*) FROM thesis_groups g WHERE g.plan_id = p.plan_id)`).Scan(&planDrift)
	if planDrift != 0 {
		t.Errorf("有 %d 个计划的 group_count 与小组数不一致", planDrift)
	}

	var multi int64
	db.Raw(`SELECT COUNT(*) FROM (SELECT user_id FROM group_members GROUP BY user_id HAVING COUNT(*) > 1) x`).Scan(&multi)
	if multi != 0 {
		t.Errorf("有 %d 名学生同时属于多个小组", multi)
	}
}

func assertErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("期望错误 %v，实际 %v", want, err)
	}
}

func assertKind(t *testing.T, err error, kind pkgerrors.Kind) {
	t.Helper()
	if got := pkgerrors.KindOf(err); got != kind {
		t.Fatalf("期望错误分类 %s，实际 %s (%v)", kind, got, err)
	}
}

func boolPtr(b bool) *bool { return &b }
