package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// TopicService 课题业务接口
type TopicService interface {
	Propose(ctx context.Context, actor lifecycle.Actor, req *dto.ProposeTopicRequest) (*dto.TopicResponse, error)
	Update(ctx context.Context, actor lifecycle.Actor, id string, req *dto.UpdateTopicRequest) (*dto.TopicResponse, error)
	Submit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error)
	Resubmit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error)
	Decide(ctx context.Context, actor lifecycle.Actor, id string, req *dto.DecideTopicRequest) (*dto.TopicResponse, error)
	Lock(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error)
	// Register 小组登记课题；名额用尽时课题在同一事务内迁移到 full
	Register(ctx context.Context, actor lifecycle.Actor, topicID string, req *dto.RegisterTopicRequest) (*dto.AssignmentResponse, error)
	Get(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error)
	ListByPlan(ctx context.Context, actor lifecycle.Actor, req *dto.TopicListRequest) ([]dto.TopicResponse, error)
	GetGroupAssignment(ctx context.Context, actor lifecycle.Actor, groupID string) (*dto.AssignmentResponse, error)
}

type topicService struct {
	wf     *workflow
	logger *zap.Logger
}

// NewTopicService 创建 TopicService 实例
func NewTopicService(repo *repository.Repository, events EventSink, logger *zap.Logger) TopicService {
	return &topicService{wf: newWorkflow(repo, events, logger), logger: logger}
}

func (s *topicService) Propose(ctx context.Context, actor lifecycle.Actor, req *dto.ProposeTopicRequest) (*dto.TopicResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if !actor.IsAdvisor() {
		return nil, ErrForbidden
	}
	topic := &model.Topic{
		PlanID:      req.PlanID,
		AdvisorID:   actor.UserID,
		Title:       req.Title,
		Description: req.Description,
		MaxGroups:   req.MaxGroups,
		Status:      model.TopicStatusDraft,
	}
	topic.CreatedBy = &actor.UserID
	topic.UpdatedBy = &actor.UserID

	err := s.wf.run(ctx, "topic.propose", func(tx *repository.Repository, _ func(Event)) error {
		plan, err := tx.Plan.GetByIDForUpdate(ctx, req.PlanID)
		if err != nil {
			return notFound(err, ErrPlanNotFound)
		}
		if planClosed(plan) {
			return ErrPlanClosed
		}
		return tx.Topic.Create(ctx, topic)
	})
	if err != nil {
		return nil, err
	}
	return toTopicResponse(topic, actor), nil
}

func (s *topicService) Update(ctx context.Context, actor lifecycle.Actor, id string, req *dto.UpdateTopicRequest) (*dto.TopicResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var topic *model.Topic
	err := s.wf.run(ctx, "topic.update", func(tx *repository.Repository, _ func(Event)) error {
		var err error
		topic, err = tx.Topic.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrTopicNotFound)
		}
		if _, err := lifecycle.Topic.Next(topic.Status, lifecycle.ActionEdit, actor, topicFacts(topic, actor)); err != nil {
			return err
		}
		topic.Title = req.Title
		topic.Description = req.Description
		topic.MaxGroups = req.MaxGroups
		topic.UpdatedBy = &actor.UserID
		topic.Version = req.Version
		return tx.Topic.Update(ctx, topic)
	})
	if err != nil {
		return nil, err
	}
	return toTopicResponse(topic, actor), nil
}

// ────────────────────── 生命周期 ──────────────────────

func (s *topicService) Submit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionSubmit, func(t *model.Topic) Event {
		return Event{Type: EventTopicSubmitted, Title: "课题已提交审核", Content: t.Title}
	})
}

func (s *topicService) Resubmit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionResubmit, func(t *model.Topic) Event {
		return Event{Type: EventTopicSubmitted, Title: "课题已重新提交审核", Content: t.Title}
	})
}

func (s *topicService) Decide(ctx context.Context, actor lifecycle.Actor, id string, req *dto.DecideTopicRequest) (*dto.TopicResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	titles := map[string]string{
		lifecycle.ActionApprove:     "课题已审核通过",
		lifecycle.ActionReject:      "课题未通过审核",
		lifecycle.ActionRequestEdit: "课题需要修改",
	}
	return s.transition(ctx, actor, id, req.Decision, func(t *model.Topic) Event {
		t.ApproverID = &actor.UserID
		t.Reason = req.Reason
		return Event{
			Type:       EventTopicDecided,
			Recipients: []string{t.AdvisorID},
			Title:      titles[req.Decision],
			Content:    req.Reason,
		}
	})
}

func (s *topicService) Lock(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionLock, func(t *model.Topic) Event {
		return Event{Type: EventTopicDecided, Recipients: []string{t.AdvisorID}, Title: "课题已锁定", Content: t.Title}
	})
}

func (s *topicService) transition(
	ctx context.Context,
	actor lifecycle.Actor,
	id, action string,
	apply func(t *model.Topic) Event,
) (*dto.TopicResponse, error) {
	var topic *model.Topic
	err := s.wf.run(ctx, "topic."+action, func(tx *repository.Repository, emit func(Event)) error {
		var err error
		topic, err = tx.Topic.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrTopicNotFound)
		}
		to, err := lifecycle.Topic.Next(topic.Status, action, actor, topicFacts(topic, actor))
		if err != nil {
			return err
		}
		from := topic.Status
		topic.Status = to
		topic.UpdatedBy = &actor.UserID
		e := apply(topic)
		if err := tx.Topic.UpdateStatus(ctx, topic, from); err != nil {
			return stale(err)
		}
		e.RelatedType = "topic"
		e.RelatedID = topic.TopicID
		e.ActorID = actor.UserID
		emit(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toTopicResponse(topic, actor), nil
}

// ────────────────────── Register ──────────────────────

func (s *topicService) Register(ctx context.Context, actor lifecycle.Actor, topicID string, req *dto.RegisterTopicRequest) (*dto.AssignmentResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var a *model.Assignment
	err := s.wf.run(ctx, "topic.register", func(tx *repository.Repository, emit func(Event)) error {
		// 加锁顺序：计划 → 小组 → 课题
		g, plan, err := lockGroup(ctx, tx, req.GroupID)
		if err != nil {
			return err
		}
		if actor.UserID != g.LeaderID && !actor.IsAdmin() {
			return ErrNotGroupLeader
		}
		topic, err := tx.Topic.GetByIDForUpdate(ctx, topicID)
		if err != nil {
			return notFound(err, ErrTopicNotFound)
		}
		if topic.PlanID != g.PlanID {
			return ErrPlanMismatch
		}
		if !planOpen(plan) {
			return ErrPlanNotOpen
		}
		switch topic.Status {
		case model.TopicStatusApproved:
		case model.TopicStatusFull:
			return ErrTopicFull
		default:
			return ErrTopicNotOpen
		}
		if _, err := tx.Assignment.GetByGroup(ctx, g.GroupID); err == nil {
			return ErrGroupAlreadyAssigned
		} else if !isNotFound(err) {
			return err
		}
		if g.MemberCount < plan.MinMembers {
			return ErrGroupBelowMinimum
		}

		if err := s.wf.ledger.Reserve(ctx, tx, topicSlots(topic.TopicID), 1); err != nil {
			return err
		}
		a = &model.Assignment{
			GroupID:   g.GroupID,
			TopicID:   topic.TopicID,
			AdvisorID: topic.AdvisorID,
			Status:    model.AssignmentStatusInProgress,
		}
		a.CreatedBy = &actor.UserID
		a.UpdatedBy = &actor.UserID
		if err := tx.Assignment.Create(ctx, a); err != nil {
			return duplicate(err, ErrGroupAlreadyAssigned)
		}
		topic.RegisteredCount++

		emit(Event{
			Type:        EventTopicRegistered,
			Recipients:  []string{topic.AdvisorID, g.LeaderID},
			Title:       "小组已登记课题",
			Content:     fmt.Sprintf("%s / %s", g.Name, topic.Title),
			RelatedType: "topic",
			RelatedID:   topic.TopicID,
			ActorID:     actor.UserID,
		})
		return s.fillIfExhausted(ctx, tx, topic, emit)
	})
	if err != nil {
		return nil, err
	}
	resp := toAssignmentResponse(a)
	return &resp, nil
}

// fillIfExhausted 名额用尽时由系统操作者执行 fill 迁移
func (s *topicService) fillIfExhausted(ctx context.Context, tx *repository.Repository, topic *model.Topic, emit func(Event)) error {
	system := lifecycle.System()
	facts := lifecycle.Facts{RegisteredCount: topic.RegisteredCount, MaxGroups: topic.MaxGroups}
	if !lifecycle.Topic.Can(topic.Status, lifecycle.ActionFill, system, facts) {
		return nil
	}
	to, err := lifecycle.Topic.Next(topic.Status, lifecycle.ActionFill, system, facts)
	if err != nil {
		return err
	}
	from := topic.Status
	topic.Status = to
	if err := tx.Topic.UpdateStatus(ctx, topic, from); err != nil {
		return stale(err)
	}
	emit(Event{
		Type:        EventTopicFull,
		Recipients:  []string{topic.AdvisorID},
		Title:       "课题名额已满",
		Content:     topic.Title,
		RelatedType: "topic",
		RelatedID:   topic.TopicID,
	})
	return nil
}

// ────────────────────── 查询 ──────────────────────

func (s *topicService) Get(ctx context.Context, actor lifecycle.Actor, id string) (*dto.TopicResponse, error) {
	topic, err := s.wf.repo.Topic.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrTopicNotFound)
	}
	return toTopicResponse(topic, actor), nil
}

func (s *topicService) ListByPlan(ctx context.Context, actor lifecycle.Actor, req *dto.TopicListRequest) ([]dto.TopicResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	topics, err := s.wf.repo.Topic.List(ctx, repository.TopicFilter{PlanID: req.PlanID, Status: req.Status})
	if err != nil {
		s.logger.Error("查询课题列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.TopicResponse, 0, len(topics))
	for i := range topics {
		result = append(result, *toTopicResponse(&topics[i], actor))
	}
	return result, nil
}

func (s *topicService) GetGroupAssignment(ctx context.Context, _ lifecycle.Actor, groupID string) (*dto.AssignmentResponse, error) {
	a, err := s.wf.repo.Assignment.GetByGroup(ctx, groupID)
	if err != nil {
		return nil, notFound(err, ErrAssignmentNotFound)
	}
	resp := toAssignmentResponse(a)
	return &resp, nil
}

// ────────────────────── 转换 ──────────────────────

func topicFacts(t *model.Topic, actor lifecycle.Actor) lifecycle.Facts {
	return lifecycle.Facts{
		IsOwner:         t.AdvisorID == actor.UserID,
		RegisteredCount: t.RegisteredCount,
		MaxGroups:       t.MaxGroups,
	}
}

func toTopicResponse(t *model.Topic, actor lifecycle.Actor) *dto.TopicResponse {
	return &dto.TopicResponse{
		ID:              t.TopicID,
		PlanID:          t.PlanID,
		AdvisorID:       t.AdvisorID,
		Title:           t.Title,
		Description:     t.Description,
		MaxGroups:       t.MaxGroups,
		RegisteredCount: t.RegisteredCount,
		Status:          t.Status,
		ApproverID:      t.ApproverID,
		Reason:          t.Reason,
		AllowedActions:  lifecycle.Topic.Actions(t.Status, actor, topicFacts(t, actor)),
		Version:         t.Version,
		CreatedAt:       formatTime(t.CreatedAt),
	}
}

func toAssignmentResponse(a *model.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:        a.AssignmentID,
		GroupID:   a.GroupID,
		TopicID:   a.TopicID,
		AdvisorID: a.AdvisorID,
		Status:    a.Status,
		CreatedAt: formatTime(a.CreatedAt),
	}
}
