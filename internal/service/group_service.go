package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	applogger "github.com/Ynate-byte/gradpro-sub001/pkg/logger"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// GroupService 小组业务接口
type GroupService interface {
	// AutoGroup 自动分组：补齐已有小组后，将剩余学生按优先级分桶组成新小组
	AutoGroup(ctx context.Context, actor lifecycle.Actor, planID string, req *dto.AutoGroupRequest) (*dto.AutoGroupResponse, error)
	Create(ctx context.Context, actor lifecycle.Actor, req *dto.CreateGroupRequest) (*dto.GroupResponse, error)
	// AddStudent 管理员手动加入学生，与自动分组争用同一计数器
	AddStudent(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.AddStudentRequest) (*dto.GroupResponse, error)
	RemoveMember(ctx context.Context, actor lifecycle.Actor, groupID, userID string) error
	TransferLeadership(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.TransferLeadershipRequest) (*dto.GroupResponse, error)
	SetLocked(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.SetGroupLockedRequest) (*dto.GroupResponse, error)
	Get(ctx context.Context, actor lifecycle.Actor, groupID string) (*dto.GroupResponse, error)
	ListByPlan(ctx context.Context, actor lifecycle.Actor, planID string) ([]dto.GroupResponse, error)
}

type groupService struct {
	cfg       config.GroupingConfig
	wf        *workflow
	allocator *groupAllocator
	logger    *zap.Logger
}

// NewGroupService 创建 GroupService 实例
func NewGroupService(cfg config.GroupingConfig, repo *repository.Repository, events EventSink, logger *zap.Logger) GroupService {
	wf := newWorkflow(repo, events, logger)
	return &groupService{
		cfg:       cfg,
		wf:        wf,
		allocator: newGroupAllocator(func() time.Time { return wf.now() }),
		logger:    logger,
	}
}

// ────────────────────── AutoGroup ──────────────────────

func (s *groupService) AutoGroup(ctx context.Context, actor lifecycle.Actor, planID string, req *dto.AutoGroupRequest) (*dto.AutoGroupResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	opts := allocOptions{
		Size:       req.GroupSize,
		Priority:   req.Priority,
		Shuffle:    req.Shuffle,
		NamePrefix: s.namePrefix(),
		ActorID:    actor.UserID,
	}
	if opts.Size == 0 {
		opts.Size = s.cfg.DefaultGroupSize
	}
	if opts.Priority == "" {
		opts.Priority = s.cfg.DefaultPriority
	}

	var res *allocResult
	err := s.wf.run(ctx, "group.auto", func(tx *repository.Repository, emit func(Event)) error {
		plan, err := tx.Plan.GetByIDForUpdate(ctx, planID)
		if err != nil {
			return notFound(err, ErrPlanNotFound)
		}
		if opts.Size > plan.MaxMembers {
			return ErrGroupSizeTooLarge
		}
		if !canManagePlan(actor, plan) {
			return ErrForbidden
		}
		if !planOpen(plan) {
			return ErrPlanNotOpen
		}

		res, err = s.allocator.run(ctx, tx, plan, opts)
		if err != nil {
			return err
		}
		if len(res.Placed) > 0 {
			recipients := make([]string, 0, len(res.Placed))
			for i := range res.Placed {
				recipients = append(recipients, res.Placed[i].UserID)
			}
			emit(Event{
				Type:        EventGroupsFormed,
				Recipients:  recipients,
				Title:       "你已被分配到小组",
				Content:     plan.Title,
				RelatedType: "plan",
				RelatedID:   plan.PlanID,
				ActorID:     actor.UserID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	applogger.For(ctx, s.logger).Info("自动分组完成",
		zap.String("plan_id", planID),
		zap.Int("created", len(res.Created)),
		zap.Int("placed", len(res.Placed)),
		zap.Int("leftovers", len(res.Leftovers)),
	)

	resp := &dto.AutoGroupResponse{
		GroupsCreated:  len(res.Created),
		StudentsPlaced: len(res.Placed),
		FilledGroups:   res.FilledGroups,
		Groups:         make([]dto.GroupResponse, 0, len(res.Created)),
		Leftovers:      make([]dto.MemberBrief, 0, len(res.Leftovers)),
	}
	for _, g := range res.Created {
		full, err := s.wf.repo.Group.GetByID(ctx, g.GroupID)
		if err != nil {
			return nil, err
		}
		resp.Groups = append(resp.Groups, *toGroupResponse(full))
	}
	for i := range res.Leftovers {
		resp.Leftovers = append(resp.Leftovers, toMemberBrief(&res.Leftovers[i]))
	}
	return resp, nil
}

// ────────────────────── Create ──────────────────────

func (s *groupService) Create(ctx context.Context, actor lifecycle.Actor, req *dto.CreateGroupRequest) (*dto.GroupResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var groupID string
	err := s.wf.run(ctx, "group.create", func(tx *repository.Repository, emit func(Event)) error {
		plan, err := tx.Plan.GetByIDForUpdate(ctx, req.PlanID)
		if err != nil {
			return notFound(err, ErrPlanNotFound)
		}

		leaderID := actor.UserID
		switch {
		case actor.IsStudent():
			if req.IsSpecial || (req.LeaderID != "" && req.LeaderID != actor.UserID) {
				return ErrForbidden
			}
		case canManagePlan(actor, plan):
			if req.LeaderID == "" {
				return ErrLeaderRequired
			}
			leaderID = req.LeaderID
		default:
			return ErrForbidden
		}
		if !planOpen(plan) {
			return ErrPlanNotOpen
		}
		if err := requireEligible(ctx, tx, plan.PlanID, leaderID); err != nil {
			return err
		}
		if err := requireUngrouped(ctx, tx, leaderID); err != nil {
			return err
		}

		if err := s.wf.ledger.Reserve(ctx, tx, planGroups(plan.PlanID), 1); err != nil {
			return err
		}
		name := req.Name
		if name == "" {
			names, err := tx.Group.ListNames(ctx, plan.PlanID)
			if err != nil {
				return fmt.Errorf("读取小组名称失败: %w", err)
			}
			name = fmt.Sprintf("%s %d", s.namePrefix(), nextGroupSeq(names, s.namePrefix()))
		}
		g := &model.Group{
			PlanID:    plan.PlanID,
			Name:      name,
			LeaderID:  leaderID,
			IsSpecial: req.IsSpecial,
			Status:    model.GroupStatusOpen,
		}
		g.CreatedBy = &actor.UserID
		g.UpdatedBy = &actor.UserID
		if err := tx.Group.Create(ctx, g); err != nil {
			return fmt.Errorf("创建小组失败: %w", err)
		}
		if err := addMember(ctx, tx, s.wf, g.GroupID, leaderID, actor.UserID); err != nil {
			return err
		}
		groupID = g.GroupID

		if leaderID != actor.UserID {
			emit(Event{
				Type:        EventGroupCreated,
				Recipients:  []string{leaderID},
				Title:       "你已被指定为小组组长",
				Content:     g.Name,
				RelatedType: "group",
				RelatedID:   g.GroupID,
				ActorID:     actor.UserID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, groupID)
}

func (s *groupService) namePrefix() string {
	if s.cfg.NamePrefix == "" {
		return "Nhóm"
	}
	return s.cfg.NamePrefix
}

// ────────────────────── AddStudent ──────────────────────

func (s *groupService) AddStudent(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.AddStudentRequest) (*dto.GroupResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	err := s.wf.run(ctx, "group.add_student", func(tx *repository.Repository, emit func(Event)) error {
		g, plan, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if !canManagePlan(actor, plan) {
			return ErrForbidden
		}
		if err := requireMutable(plan, g); err != nil {
			return err
		}
		if err := requireEligible(ctx, tx, plan.PlanID, req.UserID); err != nil {
			return err
		}
		if err := requireUngrouped(ctx, tx, req.UserID); err != nil {
			return err
		}
		if err := addMember(ctx, tx, s.wf, g.GroupID, req.UserID, actor.UserID); err != nil {
			return err
		}
		emit(Event{
			Type:        EventMemberJoined,
			Recipients:  []string{req.UserID, g.LeaderID},
			Title:       "新成员加入小组",
			Content:     g.Name,
			RelatedType: "group",
			RelatedID:   g.GroupID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, groupID)
}

// ────────────────────── RemoveMember ──────────────────────

func (s *groupService) RemoveMember(ctx context.Context, actor lifecycle.Actor, groupID, userID string) error {
	return s.wf.run(ctx, "group.remove_member", func(tx *repository.Repository, emit func(Event)) error {
		g, plan, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if actor.UserID != g.LeaderID && !canManagePlan(actor, plan) {
			return ErrNotGroupLeader
		}
		if userID == g.LeaderID {
			return ErrCannotRemoveLeader
		}
		if err := requireMutable(plan, g); err != nil {
			return err
		}
		n, err := tx.Membership.Delete(ctx, g.GroupID, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotGroupMember
		}
		if err := s.wf.ledger.Release(ctx, tx, groupMembers(g.GroupID), 1); err != nil {
			return err
		}
		emit(Event{
			Type:        EventMemberRemoved,
			Recipients:  []string{userID},
			Title:       "你已被移出小组",
			Content:     g.Name,
			RelatedType: "group",
			RelatedID:   g.GroupID,
			ActorID:     actor.UserID,
		})
		return nil
	})
}

// ────────────────────── TransferLeadership ──────────────────────

func (s *groupService) TransferLeadership(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.TransferLeadershipRequest) (*dto.GroupResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	err := s.wf.run(ctx, "group.transfer_leadership", func(tx *repository.Repository, emit func(Event)) error {
		g, plan, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if actor.UserID != g.LeaderID && !canManagePlan(actor, plan) {
			return ErrNotGroupLeader
		}
		if planClosed(plan) {
			return ErrPlanClosed
		}
		m, err := tx.Membership.GetByUser(ctx, req.NewLeaderID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if m == nil || m.GroupID != g.GroupID {
			return ErrNotGroupMember
		}
		if g.LeaderID == req.NewLeaderID {
			return nil
		}
		g.LeaderID = req.NewLeaderID
		g.UpdatedBy = &actor.UserID
		if err := tx.Group.Update(ctx, g); err != nil {
			return err
		}
		emit(Event{
			Type:        EventGroupLeaderChanged,
			Recipients:  []string{req.NewLeaderID},
			Title:       "你已成为小组组长",
			Content:     g.Name,
			RelatedType: "group",
			RelatedID:   g.GroupID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, groupID)
}

// ────────────────────── SetLocked ──────────────────────

func (s *groupService) SetLocked(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.SetGroupLockedRequest) (*dto.GroupResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	err := s.wf.run(ctx, "group.set_locked", func(tx *repository.Repository, _ func(Event)) error {
		g, plan, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if !canManagePlan(actor, plan) {
			return ErrForbidden
		}
		status := model.GroupStatusOpen
		if *req.Locked {
			status = model.GroupStatusLocked
		}
		if g.Status == status {
			return nil
		}
		g.Status = status
		g.UpdatedBy = &actor.UserID
		return tx.Group.Update(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, groupID)
}

// ────────────────────── 查询 ──────────────────────

func (s *groupService) Get(ctx context.Context, _ lifecycle.Actor, groupID string) (*dto.GroupResponse, error) {
	g, err := s.wf.repo.Group.GetByID(ctx, groupID)
	if err != nil {
		return nil, notFound(err, ErrGroupNotFound)
	}
	return toGroupResponse(g), nil
}

func (s *groupService) ListByPlan(ctx context.Context, _ lifecycle.Actor, planID string) ([]dto.GroupResponse, error) {
	if _, err := s.wf.repo.Plan.GetByID(ctx, planID); err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	groups, err := s.wf.repo.Group.ListByPlan(ctx, planID)
	if err != nil {
		s.logger.Error("查询小组列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.GroupResponse, 0, len(groups))
	for i := range groups {
		result = append(result, *toGroupResponse(&groups[i]))
	}
	return result, nil
}

// ────────────────────── 共享的成员操作 ──────────────────────

// lockGroup 按 计划 → 小组 的固定顺序加锁读取，避免与自动分组交叉等待
func lockGroup(ctx context.Context, tx *repository.Repository, groupID string) (*model.Group, *model.ThesisPlan, error) {
	peek, err := tx.Group.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, notFound(err, ErrGroupNotFound)
	}
	plan, err := tx.Plan.GetByIDForUpdate(ctx, peek.PlanID)
	if err != nil {
		return nil, nil, notFound(err, ErrPlanNotFound)
	}
	g, err := tx.Group.GetByIDForUpdate(ctx, groupID)
	if err != nil {
		return nil, nil, notFound(err, ErrGroupNotFound)
	}
	return g, plan, nil
}

// requireMutable 计划可组队且小组未锁定
func requireMutable(plan *model.ThesisPlan, g *model.Group) error {
	if !planOpen(plan) {
		return ErrPlanNotOpen
	}
	if g.Status == model.GroupStatusLocked {
		return ErrGroupLocked
	}
	return nil
}

func requireEligible(ctx context.Context, tx *repository.Repository, planID, userID string) error {
	ok, err := tx.Participant.IsEligible(ctx, planID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEligible
	}
	return nil
}

func requireUngrouped(ctx context.Context, tx *repository.Repository, userID string) error {
	_, err := tx.Membership.GetByUser(ctx, userID)
	if err == nil {
		return ErrAlreadyMember
	}
	if isNotFound(err) {
		return nil
	}
	return err
}

// addMember 预留名额并写入成员行，须在同一事务内
func addMember(ctx context.Context, tx *repository.Repository, wf *workflow, groupID, userID, actorID string) error {
	if err := wf.ledger.Reserve(ctx, tx, groupMembers(groupID), 1); err != nil {
		return err
	}
	return insertMembership(ctx, tx, groupID, userID, actorID, wf.now())
}

// insertMembership 写入成员行并取消该学生其余待处理的邀请与申请
// 名额须已由调用方预留
func insertMembership(ctx context.Context, tx *repository.Repository, groupID, userID, actorID string, now time.Time) error {
	m := &model.Membership{GroupID: groupID, UserID: userID, JoinedAt: now}
	m.CreatedBy = &actorID
	m.UpdatedBy = &actorID
	if err := tx.Membership.Create(ctx, m); err != nil {
		return duplicate(err, ErrAlreadyMember)
	}
	if _, err := tx.Invitation.CancelPendingByUser(ctx, userID, "", now); err != nil {
		return err
	}
	if _, err := tx.JoinRequest.CancelPendingByUser(ctx, userID, "", now); err != nil {
		return err
	}
	return nil
}

// dissolveGroup 解散已无成员的小组：关闭其待处理邀请与申请，删除小组并释放计划名额
func dissolveGroup(ctx context.Context, tx *repository.Repository, wf *workflow, g *model.Group) error {
	if _, err := tx.Assignment.GetByGroup(ctx, g.GroupID); err == nil {
		return ErrGroupHasAssignment
	} else if !isNotFound(err) {
		return err
	}
	now := wf.now()
	if _, err := tx.Invitation.CancelPendingByGroup(ctx, g.GroupID, now); err != nil {
		return err
	}
	if _, err := tx.JoinRequest.CancelPendingByGroup(ctx, g.GroupID, now); err != nil {
		return err
	}
	if err := tx.Group.Delete(ctx, g.GroupID); err != nil {
		return fmt.Errorf("删除小组失败: %w", err)
	}
	return wf.ledger.Release(ctx, tx, planGroups(g.PlanID), 1)
}

// ────────────────────── 转换 ──────────────────────

func toGroupResponse(g *model.Group) *dto.GroupResponse {
	resp := &dto.GroupResponse{
		ID:          g.GroupID,
		PlanID:      g.PlanID,
		Name:        g.Name,
		LeaderID:    g.LeaderID,
		MajorID:     g.MajorID,
		HomeClass:   g.HomeClass,
		IsSpecial:   g.IsSpecial,
		MemberCount: g.MemberCount,
		Status:      g.Status,
		CreatedAt:   formatTime(g.CreatedAt),
	}
	for i := range g.Members {
		m := &g.Members[i]
		if m.User != nil {
			resp.Members = append(resp.Members, toMemberBrief(m.User))
		} else {
			resp.Members = append(resp.Members, dto.MemberBrief{UserID: m.UserID})
		}
	}
	return resp
}

func toMemberBrief(u *model.User) dto.MemberBrief {
	return dto.MemberBrief{
		UserID:      u.UserID,
		StudentCode: u.StudentCode,
		Name:        u.Name,
		MajorID:     u.MajorID,
		HomeClass:   u.HomeClass,
	}
}
