package service

import (
	"sync"
	"testing"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

func TestTopic_ProposeApproveRegisterFills(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	l := f.student(t, "S001", nil)
	f.enroll(t, plan, l)
	g := f.group(t, plan, l)
	topicID := f.approvedTopic(t, plan, 1)

	a, err := f.svc.Topic.Register(f.ctx, actorOf(l), topicID, &dto.RegisterTopicRequest{GroupID: g})
	if err != nil {
		t.Fatalf("登记课题失败: %v", err)
	}
	if a.Status != model.AssignmentStatusInProgress || a.AdvisorID != f.advisor.UserID {
		t.Errorf("选题记录 = %+v", a)
	}

	topic, err := f.svc.Topic.Get(f.ctx, actorOf(f.advisor), topicID)
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if topic.Status != model.TopicStatusFull || topic.RegisteredCount != 1 {
		t.Errorf("名额用尽后课题应为 full, got status=%s count=%d", topic.Status, topic.RegisteredCount)
	}
	if !f.sink.has(EventTopicRegistered) || !f.sink.has(EventTopicFull) {
		t.Error("应投递 topic.registered 与 topic.full 事件")
	}

	// 锁定是管理员对 full 课题的覆盖操作
	locked, err := f.svc.Topic.Lock(f.ctx, actorOf(f.admin), topicID)
	if err != nil {
		t.Fatalf("锁定失败: %v", err)
	}
	if locked.Status != model.TopicStatusLocked {
		t.Errorf("status = %s", locked.Status)
	}
	f.assertCounters(t)
}

// 两个小组并发争抢最后一个名额
func TestTopic_ConcurrentRegisterLastSlot(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	l1, l2 := f.student(t, "S001", nil), f.student(t, "S002", nil)
	f.enroll(t, plan, l1, l2)
	g1, g2 := f.group(t, plan, l1), f.group(t, plan, l2)
	topicID := f.approvedTopic(t, plan, 1)

	type call struct {
		leader *model.User
		group  string
	}
	calls := []call{{l1, g1}, {l2, g2}}
	errs := make([]error, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c call) {
			defer wg.Done()
			_, errs[i] = f.svc.Topic.Register(f.ctx, actorOf(c.leader), topicID, &dto.RegisterTopicRequest{GroupID: c.group})
		}(i, c)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case pkgerrors.KindOf(err) == pkgerrors.KindCapacityExceeded:
			full++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}
	if ok != 1 || full != 1 {
		t.Fatalf("期望 1 成功 1 容量不足, got ok=%d full=%d", ok, full)
	}
	if row := f.row(t, "thesis_topics", "topic_id", topicID); row["registered_count"] != int64(1) {
		t.Errorf("registered_count 应恰为 1, got %v", row["registered_count"])
	}
	f.assertCounters(t)
}

func TestTopic_RegisterRejections(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 2, 4, 0)
	l, m, solo := f.student(t, "S001", nil), f.student(t, "S002", nil), f.student(t, "S003", nil)
	f.enroll(t, plan, l, m, solo)
	g := f.group(t, plan, l, m)
	small := f.group(t, plan, solo)
	topicID := f.approvedTopic(t, plan, 3)

	_, err := f.svc.Topic.Register(f.ctx, actorOf(m), topicID, &dto.RegisterTopicRequest{GroupID: g})
	assertErr(t, err, ErrNotGroupLeader)

	_, err = f.svc.Topic.Register(f.ctx, actorOf(solo), topicID, &dto.RegisterTopicRequest{GroupID: small})
	assertErr(t, err, ErrGroupBelowMinimum)

	if _, err := f.svc.Topic.Register(f.ctx, actorOf(l), topicID, &dto.RegisterTopicRequest{GroupID: g}); err != nil {
		t.Fatalf("登记失败: %v", err)
	}
	_, err = f.svc.Topic.Register(f.ctx, actorOf(l), topicID, &dto.RegisterTopicRequest{GroupID: g})
	assertErr(t, err, ErrGroupAlreadyAssigned)

	other := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	foreign := f.approvedTopic(t, other, 1)
	_, err = f.svc.Topic.Register(f.ctx, actorOf(l), foreign, &dto.RegisterTopicRequest{GroupID: small})
	assertErr(t, err, ErrNotGroupLeader)
	_, err = f.svc.Topic.Register(f.ctx, actorOf(solo), foreign, &dto.RegisterTopicRequest{GroupID: small})
	assertErr(t, err, ErrPlanMismatch)
	f.assertCounters(t)
}

func TestTopic_RegisterRequiresApproved(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	l := f.student(t, "S001", nil)
	f.enroll(t, plan, l)
	g := f.group(t, plan, l)

	draft, err := f.svc.Topic.Propose(f.ctx, actorOf(f.advisor), &dto.ProposeTopicRequest{PlanID: plan.PlanID, Title: "草稿课题", MaxGroups: 1})
	if err != nil {
		t.Fatalf("提出课题失败: %v", err)
	}
	before := f.row(t, "thesis_topics", "topic_id", draft.ID)
	_, err = f.svc.Topic.Register(f.ctx, actorOf(l), draft.ID, &dto.RegisterTopicRequest{GroupID: g})
	assertErr(t, err, ErrTopicNotOpen)
	f.assertUnchanged(t, before, "thesis_topics", "topic_id", draft.ID)
}

// 非管理员的审核动作被拒绝且课题不变
func TestTopic_DecideGuards(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	topic, err := f.svc.Topic.Propose(f.ctx, actorOf(f.advisor), &dto.ProposeTopicRequest{PlanID: plan.PlanID, Title: "课题", MaxGroups: 2})
	if err != nil {
		t.Fatalf("提出课题失败: %v", err)
	}
	if _, err := f.svc.Topic.Submit(f.ctx, actorOf(f.advisor), topic.ID); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	before := f.row(t, "thesis_topics", "topic_id", topic.ID)

	for _, actor := range []lifecycle.Actor{actorOf(f.head), actorOf(f.advisor)} {
		_, err := f.svc.Topic.Decide(f.ctx, actor, topic.ID, &dto.DecideTopicRequest{Decision: lifecycle.ActionApprove})
		assertKind(t, err, pkgerrors.KindInvalidTransition)
	}
	f.assertUnchanged(t, before, "thesis_topics", "topic_id", topic.ID)

	resp, err := f.svc.Topic.Decide(f.ctx, actorOf(f.admin), topic.ID,
		&dto.DecideTopicRequest{Decision: lifecycle.ActionRequestEdit, Reason: "范围过大"})
	if err != nil {
		t.Fatalf("要求修改失败: %v", err)
	}
	if resp.Status != model.TopicStatusChangesRequested || resp.Reason != "范围过大" {
		t.Errorf("resp = %+v", resp)
	}

	// 待修改状态下导师可编辑并重新提交
	edited, err := f.svc.Topic.Update(f.ctx, actorOf(f.advisor), topic.ID,
		&dto.UpdateTopicRequest{Title: "缩小范围后的课题", MaxGroups: 1, Version: resp.Version})
	if err != nil {
		t.Fatalf("编辑失败: %v", err)
	}
	if _, err := f.svc.Topic.Resubmit(f.ctx, actorOf(f.advisor), edited.ID); err != nil {
		t.Fatalf("重新提交失败: %v", err)
	}
	rejected, err := f.svc.Topic.Decide(f.ctx, actorOf(f.admin), topic.ID, &dto.DecideTopicRequest{Decision: lifecycle.ActionReject})
	if err != nil {
		t.Fatalf("驳回失败: %v", err)
	}
	if rejected.Status != model.TopicStatusRejected || len(rejected.AllowedActions) != 0 {
		t.Errorf("rejected 为终态, got %+v", rejected)
	}
}

func TestTopic_ProposeRequiresAdvisor(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	s := f.student(t, "S001", nil)

	_, err := f.svc.Topic.Propose(f.ctx, actorOf(s), &dto.ProposeTopicRequest{PlanID: plan.PlanID, Title: "课题", MaxGroups: 1})
	assertErr(t, err, ErrForbidden)

	_, err = f.svc.Topic.Propose(f.ctx, actorOf(f.advisor), &dto.ProposeTopicRequest{PlanID: plan.PlanID, Title: "课题"})
	assertKind(t, err, pkgerrors.KindValidation)
}
