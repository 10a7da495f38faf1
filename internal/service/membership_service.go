package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// MembershipService 组队邀请 / 入组申请 / 退出业务接口
type MembershipService interface {
	Invite(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.InviteRequest) (*dto.InvitationResponse, error)
	RespondInvitation(ctx context.Context, actor lifecycle.Actor, invitationID string, req *dto.RespondRequest) (*dto.InvitationResponse, error)
	CancelInvitation(ctx context.Context, actor lifecycle.Actor, invitationID string) error

	RequestJoin(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.JoinGroupRequest) (*dto.JoinRequestResponse, error)
	RespondJoinRequest(ctx context.Context, actor lifecycle.Actor, requestID string, req *dto.RespondRequest) (*dto.JoinRequestResponse, error)
	CancelJoinRequest(ctx context.Context, actor lifecycle.Actor, requestID string) error

	// Leave 退出当前小组；最后一名成员退出时小组随之解散
	Leave(ctx context.Context, actor lifecycle.Actor) error

	ListMyInvitations(ctx context.Context, actor lifecycle.Actor) (*dto.MyInvitationsResponse, error)
	// ListGroupRequests 小组发出的邀请与收到的入组申请（成员或计划管理者可见）
	ListGroupRequests(ctx context.Context, actor lifecycle.Actor, groupID string) (*dto.MyInvitationsResponse, error)
}

type membershipService struct {
	cfg    config.MembershipConfig
	wf     *workflow
	logger *zap.Logger
}

// NewMembershipService 创建 MembershipService 实例
func NewMembershipService(cfg config.MembershipConfig, repo *repository.Repository, events EventSink, logger *zap.Logger) MembershipService {
	return &membershipService{cfg: cfg, wf: newWorkflow(repo, events, logger), logger: logger}
}

// ────────────────────── 邀请 ──────────────────────

func (s *membershipService) Invite(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.InviteRequest) (*dto.InvitationResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var inv *model.Invitation
	err := s.wf.run(ctx, "membership.invite", func(tx *repository.Repository, emit func(Event)) error {
		g, plan, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := requireMutable(plan, g); err != nil {
			return err
		}
		if err := requireMemberOf(ctx, tx, actor.UserID, g.GroupID); err != nil {
			return err
		}
		if err := requireEligible(ctx, tx, plan.PlanID, req.InviteeID); err != nil {
			return err
		}
		if err := requireUngrouped(ctx, tx, req.InviteeID); err != nil {
			return err
		}
		now := s.wf.now()
		if _, err := tx.Invitation.FindLivePending(ctx, g.GroupID, req.InviteeID, now); err == nil {
			return ErrAlreadyInvited
		} else if !isNotFound(err) {
			return err
		}
		// 接受时会再次通过账本预留，这里只是提前拒绝
		if g.MemberCount >= plan.MaxMembers {
			return ErrGroupFull
		}

		inv = &model.Invitation{
			GroupID:   g.GroupID,
			InviteeID: req.InviteeID,
			InviterID: actor.UserID,
			Message:   req.Message,
			Status:    model.InvitationStatusPending,
			ExpiresAt: now.Add(s.cfg.InvitationTTL),
		}
		inv.CreatedBy = &actor.UserID
		inv.UpdatedBy = &actor.UserID
		if err := tx.Invitation.Create(ctx, inv); err != nil {
			return err
		}
		emit(Event{
			Type:        EventInvitationCreated,
			Recipients:  []string{req.InviteeID},
			Title:       "你收到一条组队邀请",
			Content:     g.Name,
			RelatedType: "invitation",
			RelatedID:   inv.InvitationID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toInvitationResponse(inv, s.wf.now())
	return &resp, nil
}

func (s *membershipService) RespondInvitation(ctx context.Context, actor lifecycle.Actor, invitationID string, req *dto.RespondRequest) (*dto.InvitationResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var inv *model.Invitation
	err := s.wf.run(ctx, "membership.respond_invitation", func(tx *repository.Repository, emit func(Event)) error {
		peek, err := tx.Invitation.GetByID(ctx, invitationID)
		if err != nil {
			return notFound(err, ErrInvitationNotFound)
		}
		if peek.InviteeID != actor.UserID {
			return ErrForbidden
		}
		g, plan, err := lockGroup(ctx, tx, peek.GroupID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return ErrInvitationNotPending
			}
			return err
		}
		inv, err = tx.Invitation.GetByIDForUpdate(ctx, invitationID)
		if err != nil {
			return notFound(err, ErrInvitationNotFound)
		}
		now := s.wf.now()
		if inv.Status != model.InvitationStatusPending {
			return ErrInvitationNotPending
		}
		if inv.IsExpired(now) {
			return ErrInvitationExpired
		}

		status := model.InvitationStatusRejected
		if *req.Accept {
			status = model.InvitationStatusAccepted
			if err := requireMutable(plan, g); err != nil {
				return err
			}
			if err := requireEligible(ctx, tx, plan.PlanID, actor.UserID); err != nil {
				return err
			}
			if err := requireUngrouped(ctx, tx, actor.UserID); err != nil {
				return err
			}
		}
		// 先结束本邀请，再入组（入组会取消该学生其余的待处理邀请）
		n, err := tx.Invitation.UpdateStatus(ctx, inv.InvitationID, status, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStateChanged
		}
		inv.Status = status
		inv.RespondedAt = &now
		if *req.Accept {
			if err := addMember(ctx, tx, s.wf, g.GroupID, actor.UserID, actor.UserID); err != nil {
				return err
			}
		}

		title := "组队邀请被拒绝"
		if *req.Accept {
			title = "组队邀请已被接受"
		}
		emit(Event{
			Type:        EventInvitationResponded,
			Recipients:  []string{inv.InviterID, g.LeaderID},
			Title:       title,
			Content:     g.Name,
			RelatedType: "invitation",
			RelatedID:   inv.InvitationID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toInvitationResponse(inv, s.wf.now())
	return &resp, nil
}

func (s *membershipService) CancelInvitation(ctx context.Context, actor lifecycle.Actor, invitationID string) error {
	return s.wf.run(ctx, "membership.cancel_invitation", func(tx *repository.Repository, _ func(Event)) error {
		peek, err := tx.Invitation.GetByID(ctx, invitationID)
		if err != nil {
			return notFound(err, ErrInvitationNotFound)
		}
		g, plan, err := lockGroup(ctx, tx, peek.GroupID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return ErrInvitationNotPending
			}
			return err
		}
		if actor.UserID != peek.InviterID && actor.UserID != g.LeaderID && !canManagePlan(actor, plan) {
			return ErrForbidden
		}
		inv, err := tx.Invitation.GetByIDForUpdate(ctx, invitationID)
		if err != nil {
			return notFound(err, ErrInvitationNotFound)
		}
		now := s.wf.now()
		if inv.Status != model.InvitationStatusPending {
			return ErrInvitationNotPending
		}
		if inv.IsExpired(now) {
			return ErrInvitationExpired
		}
		n, err := tx.Invitation.UpdateStatus(ctx, inv.InvitationID, model.InvitationStatusCancelled, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStateChanged
		}
		return nil
	})
}

// ────────────────────── 入组申请 ──────────────────────

func (s *membershipService) RequestJoin(ctx context.Context, actor lifecycle.Actor, groupID string, req *dto.JoinGroupRequest) (*dto.JoinRequestResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var jr *model.JoinRequest
	err := s.wf.run(ctx, "membership.request_join", func(tx *repository.Repository, emit func(Event)) error {
		g, plan, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := requireMutable(plan, g); err != nil {
			return err
		}
		if err := requireEligible(ctx, tx, plan.PlanID, actor.UserID); err != nil {
			return err
		}
		if err := requireUngrouped(ctx, tx, actor.UserID); err != nil {
			return err
		}
		if _, err := tx.JoinRequest.FindPending(ctx, g.GroupID, actor.UserID); err == nil {
			return ErrAlreadyRequested
		} else if !isNotFound(err) {
			return err
		}
		if g.MemberCount >= plan.MaxMembers {
			return ErrGroupFull
		}

		jr = &model.JoinRequest{
			GroupID:     g.GroupID,
			RequesterID: actor.UserID,
			Message:     req.Message,
			Status:      model.JoinRequestStatusPending,
		}
		jr.CreatedBy = &actor.UserID
		jr.UpdatedBy = &actor.UserID
		if err := tx.JoinRequest.Create(ctx, jr); err != nil {
			return err
		}
		emit(Event{
			Type:        EventJoinRequestCreated,
			Recipients:  []string{g.LeaderID},
			Title:       "你的小组收到一条入组申请",
			Content:     req.Message,
			RelatedType: "join_request",
			RelatedID:   jr.RequestID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toJoinRequestResponse(jr)
	return &resp, nil
}

// RespondJoinRequest 同意时在同一事务内预留名额；名额不足则整体回滚，申请保持待处理
func (s *membershipService) RespondJoinRequest(ctx context.Context, actor lifecycle.Actor, requestID string, req *dto.RespondRequest) (*dto.JoinRequestResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var jr *model.JoinRequest
	err := s.wf.run(ctx, "membership.respond_join_request", func(tx *repository.Repository, emit func(Event)) error {
		peek, err := tx.JoinRequest.GetByID(ctx, requestID)
		if err != nil {
			return notFound(err, ErrJoinRequestNotFound)
		}
		g, plan, err := lockGroup(ctx, tx, peek.GroupID)
		if err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return ErrJoinRequestNotPending
			}
			return err
		}
		if actor.UserID != g.LeaderID && !canManagePlan(actor, plan) {
			return ErrNotGroupLeader
		}
		jr, err = tx.JoinRequest.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrJoinRequestNotFound)
		}
		if jr.Status != model.JoinRequestStatusPending {
			return ErrJoinRequestNotPending
		}

		status := model.JoinRequestStatusRejected
		if *req.Accept {
			status = model.JoinRequestStatusAccepted
			if err := requireMutable(plan, g); err != nil {
				return err
			}
			if err := requireEligible(ctx, tx, plan.PlanID, jr.RequesterID); err != nil {
				return err
			}
			if err := requireUngrouped(ctx, tx, jr.RequesterID); err != nil {
				return err
			}
		}
		now := s.wf.now()
		n, err := tx.JoinRequest.UpdateStatus(ctx, jr.RequestID, status, &actor.UserID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStateChanged
		}
		jr.Status = status
		jr.ResponderID = &actor.UserID
		jr.RespondedAt = &now
		if *req.Accept {
			if err := addMember(ctx, tx, s.wf, g.GroupID, jr.RequesterID, actor.UserID); err != nil {
				return err
			}
		}

		title := "入组申请被拒绝"
		if *req.Accept {
			title = "入组申请已通过"
		}
		emit(Event{
			Type:        EventJoinRequestResponded,
			Recipients:  []string{jr.RequesterID},
			Title:       title,
			Content:     g.Name,
			RelatedType: "join_request",
			RelatedID:   jr.RequestID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toJoinRequestResponse(jr)
	return &resp, nil
}

func (s *membershipService) CancelJoinRequest(ctx context.Context, actor lifecycle.Actor, requestID string) error {
	return s.wf.run(ctx, "membership.cancel_join_request", func(tx *repository.Repository, _ func(Event)) error {
		jr, err := tx.JoinRequest.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrJoinRequestNotFound)
		}
		if jr.RequesterID != actor.UserID {
			return ErrForbidden
		}
		if jr.Status != model.JoinRequestStatusPending {
			return ErrJoinRequestNotPending
		}
		n, err := tx.JoinRequest.UpdateStatus(ctx, jr.RequestID, model.JoinRequestStatusCancelled, nil, s.wf.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStateChanged
		}
		return nil
	})
}

// ────────────────────── 退出 ──────────────────────

func (s *membershipService) Leave(ctx context.Context, actor lifecycle.Actor) error {
	return s.wf.run(ctx, "membership.leave", func(tx *repository.Repository, emit func(Event)) error {
		m, err := tx.Membership.GetByUser(ctx, actor.UserID)
		if err != nil {
			return notFound(err, ErrNotGroupMember)
		}
		g, plan, err := lockGroup(ctx, tx, m.GroupID)
		if err != nil {
			return err
		}
		if err := requireMutable(plan, g); err != nil {
			return err
		}
		if g.LeaderID == actor.UserID && g.MemberCount > 1 {
			return ErrLeaderCannotLeave
		}

		n, err := tx.Membership.Delete(ctx, g.GroupID, actor.UserID)
		if err != nil {
			return err
		}
		if n == 0 {
			// 加锁前已被移出
			return ErrNotGroupMember
		}
		if err := s.wf.ledger.Release(ctx, tx, groupMembers(g.GroupID), 1); err != nil {
			return err
		}

		if g.MemberCount-1 == 0 {
			if err := dissolveGroup(ctx, tx, s.wf, g); err != nil {
				return err
			}
			emit(Event{
				Type:        EventGroupDissolved,
				Title:       "小组已解散",
				Content:     g.Name,
				RelatedType: "group",
				RelatedID:   g.GroupID,
				ActorID:     actor.UserID,
			})
			return nil
		}
		emit(Event{
			Type:        EventMemberLeft,
			Recipients:  []string{g.LeaderID},
			Title:       "有成员退出了小组",
			Content:     g.Name,
			RelatedType: "group",
			RelatedID:   g.GroupID,
			ActorID:     actor.UserID,
		})
		return nil
	})
}

// ────────────────────── 查询 ──────────────────────

func (s *membershipService) ListMyInvitations(ctx context.Context, actor lifecycle.Actor) (*dto.MyInvitationsResponse, error) {
	invs, err := s.wf.repo.Invitation.ListByInvitee(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("查询邀请失败", zap.Error(err))
		return nil, err
	}
	reqs, err := s.wf.repo.JoinRequest.ListByRequester(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("查询入组申请失败", zap.Error(err))
		return nil, err
	}
	return buildInbox(invs, reqs, s.wf.now()), nil
}

func (s *membershipService) ListGroupRequests(ctx context.Context, actor lifecycle.Actor, groupID string) (*dto.MyInvitationsResponse, error) {
	g, err := s.wf.repo.Group.GetByID(ctx, groupID)
	if err != nil {
		return nil, notFound(err, ErrGroupNotFound)
	}
	plan, err := s.wf.repo.Plan.GetByID(ctx, g.PlanID)
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	if !canManagePlan(actor, plan) {
		if err := requireMemberOf(ctx, s.wf.repo, actor.UserID, g.GroupID); err != nil {
			return nil, err
		}
	}
	invs, err := s.wf.repo.Invitation.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.wf.repo.JoinRequest.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return buildInbox(invs, reqs, s.wf.now()), nil
}

// ────────────────────── 辅助 ──────────────────────

func requireMemberOf(ctx context.Context, repo *repository.Repository, userID, groupID string) error {
	m, err := repo.Membership.GetByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotGroupMember
		}
		return err
	}
	if m.GroupID != groupID {
		return ErrNotGroupMember
	}
	return nil
}

func buildInbox(invs []model.Invitation, reqs []model.JoinRequest, now time.Time) *dto.MyInvitationsResponse {
	resp := &dto.MyInvitationsResponse{
		Invitations:  make([]dto.InvitationResponse, 0, len(invs)),
		JoinRequests: make([]dto.JoinRequestResponse, 0, len(reqs)),
	}
	for i := range invs {
		resp.Invitations = append(resp.Invitations, toInvitationResponse(&invs[i], now))
	}
	for i := range reqs {
		resp.JoinRequests = append(resp.JoinRequests, toJoinRequestResponse(&reqs[i]))
	}
	return resp
}

func toInvitationResponse(inv *model.Invitation, now time.Time) dto.InvitationResponse {
	return dto.InvitationResponse{
		ID:          inv.InvitationID,
		GroupID:     inv.GroupID,
		InviteeID:   inv.InviteeID,
		InviterID:   inv.InviterID,
		Message:     inv.Message,
		Status:      inv.EffectiveStatus(now),
		ExpiresAt:   formatTime(inv.ExpiresAt),
		RespondedAt: formatTimePtr(inv.RespondedAt),
		CreatedAt:   formatTime(inv.CreatedAt),
	}
}

func toJoinRequestResponse(jr *model.JoinRequest) dto.JoinRequestResponse {
	return dto.JoinRequestResponse{
		ID:          jr.RequestID,
		GroupID:     jr.GroupID,
		RequesterID: jr.RequesterID,
		Message:     jr.Message,
		Status:      jr.Status,
		ResponderID: jr.ResponderID,
		RespondedAt: formatTimePtr(jr.RespondedAt),
		CreatedAt:   formatTime(jr.CreatedAt),
	}
}
