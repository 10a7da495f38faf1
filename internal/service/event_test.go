package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	applogger "github.com/Ynate-byte/gradpro-sub001/pkg/logger"
)

type fakePublisher struct {
	mu       sync.Mutex
	channel  string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = channel
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestInboxSink_DedupesRecipients(t *testing.T) {
	f := newFixture(t)
	sink := NewInboxSink(f.repo, zap.NewNop())

	sink.Publish(f.ctx, Event{
		Type:        EventTopicRegistered,
		Recipients:  []string{f.advisor.UserID, f.advisor.UserID, "", f.head.UserID},
		Title:       "小组已登记课题",
		RelatedType: "topic",
		RelatedID:   "t-1",
	})
	sink.Publish(f.ctx, Event{Type: EventPlanSubmitted})

	var n int64
	f.repo.DB().Table("notifications").Count(&n)
	if n != 2 {
		t.Fatalf("期望 2 条通知，实际 %d", n)
	}

	list, total, err := f.svc.Notification.List(f.ctx, actorOf(f.advisor), &dto.NotificationListRequest{UnreadOnly: true})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].RelatedID == nil || *list[0].RelatedID != "t-1" {
		t.Fatalf("导师通知 = %+v (total %d)", list, total)
	}

	marked, err := f.svc.Notification.MarkRead(f.ctx, actorOf(f.advisor), &dto.MarkReadRequest{})
	if err != nil {
		t.Fatalf("MarkRead 失败: %v", err)
	}
	if marked != 1 {
		t.Errorf("marked = %d, want 1", marked)
	}
	_, total, _ = f.svc.Notification.List(f.ctx, actorOf(f.advisor), &dto.NotificationListRequest{UnreadOnly: true})
	if total != 0 {
		t.Errorf("全部已读后未读数应为 0, got %d", total)
	}
}

func TestRedisSink_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	NewRedisSink(pub, "gradpro:events", zap.NewNop()).Publish(context.Background(), Event{Type: EventTopicFull, RelatedID: "t-1"})

	if pub.channel != "gradpro:events" || len(pub.payloads) != 1 {
		t.Fatalf("发布记录 = %+v", pub)
	}
	var e Event
	if err := json.Unmarshal(pub.payloads[0], &e); err != nil {
		t.Fatalf("载荷不是 JSON: %v", err)
	}
	if e.Type != EventTopicFull || e.RelatedID != "t-1" {
		t.Errorf("e = %+v", e)
	}

	// 发布失败只告警
	failing := &fakePublisher{err: errors.New("connection refused")}
	NewRedisSink(failing, "c", zap.NewNop()).Publish(context.Background(), Event{Type: EventTopicFull})
}

func TestMultiSink_FansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	NewMultiSink(a, NewLogSink(zap.NewNop()), b).Publish(context.Background(), Event{Type: EventGroupCreated})
	if !a.has(EventGroupCreated) || !b.has(EventGroupCreated) {
		t.Error("每个 sink 都应收到事件")
	}
}

func TestAsyncSink_DrainsOnClose(t *testing.T) {
	inner := &recordingSink{}
	sink := NewAsyncSink(inner, 16, zap.NewNop())
	for i := 0; i < 10; i++ {
		sink.Publish(context.Background(), Event{Type: EventMemberJoined})
	}
	sink.Close()
	if inner.count() != 10 {
		t.Errorf("Close 后应投递全部 10 个事件, got %d", inner.count())
	}

	// 关闭后的投递被忽略，重复 Close 安全
	sink.Publish(context.Background(), Event{Type: EventMemberJoined})
	sink.Close()
	if inner.count() != 10 {
		t.Errorf("关闭后不应再投递, got %d", inner.count())
	}
}

// 事务失败时缓冲的事件不投递
func TestWorkflow_EventsOnlyAfterCommit(t *testing.T) {
	f := newFixture(t)
	wf := newWorkflow(f.repo, f.sink, zap.NewNop())

	boom := errors.New("boom")
	err := wf.run(f.ctx, "test.rollback", func(_ *repository.Repository, emit func(Event)) error {
		emit(Event{Type: EventGroupCreated})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望原样返回错误, got %v", err)
	}
	if f.sink.count() != 0 {
		t.Fatalf("回滚的事务不应投递事件, got %d", f.sink.count())
	}

	if err := wf.run(f.ctx, "test.commit", func(_ *repository.Repository, emit func(Event)) error {
		emit(Event{Type: EventGroupCreated})
		return nil
	}); err != nil {
		t.Fatalf("run 失败: %v", err)
	}
	if !f.sink.has(EventGroupCreated) {
		t.Error("提交后应投递事件")
	}
}

func TestWorkflow_EventsCarryRequestID(t *testing.T) {
	f := newFixture(t)
	wf := newWorkflow(f.repo, f.sink, zap.NewNop())

	ctx := applogger.WithRequestID(f.ctx, "rid-7")
	if err := wf.run(ctx, "test.request_id", func(_ *repository.Repository, emit func(Event)) error {
		emit(Event{Type: EventGroupCreated})
		emit(Event{Type: EventMemberJoined})
		return nil
	}); err != nil {
		t.Fatalf("run 失败: %v", err)
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.events) != 2 {
		t.Fatalf("期望 2 个事件, got %d", len(f.sink.events))
	}
	for _, e := range f.sink.events {
		if e.RequestID != "rid-7" {
			t.Errorf("事件 %s 应带请求 ID, got %q", e.Type, e.RequestID)
		}
		if e.OccurredAt.IsZero() {
			t.Errorf("事件 %s 缺少发生时间", e.Type)
		}
	}
}
