package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
)

// ── 事件类型 ──

const (
	EventPlanSubmitted        = "plan.submitted"
	EventPlanDecided          = "plan.decided"
	EventPlanActivated        = "plan.activated"
	EventPlanCompleted        = "plan.completed"
	EventPlanCancelled        = "plan.cancelled"
	EventGroupsFormed         = "group.auto_formed"
	EventGroupCreated         = "group.created"
	EventGroupDissolved       = "group.dissolved"
	EventGroupLeaderChanged   = "group.leader_changed"
	EventMemberJoined         = "group.member_joined"
	EventMemberLeft           = "group.member_left"
	EventMemberRemoved        = "group.member_removed"
	EventInvitationCreated    = "invitation.created"
	EventInvitationResponded  = "invitation.responded"
	EventJoinRequestCreated   = "join_request.created"
	EventJoinRequestResponded = "join_request.responded"
	EventTopicSubmitted       = "topic.submitted"
	EventTopicDecided         = "topic.decided"
	EventTopicRegistered      = "topic.registered"
	EventTopicFull            = "topic.full"
	EventSubmissionCreated    = "submission.created"
	EventSubmissionReviewed   = "submission.reviewed"
)

// Event 领域事件（"通知用户"类副作用）
// 在事务内收集，提交成功后才投递；投递失败不影响业务结果
type Event struct {
	Type        string    `json:"type"`
	Recipients  []string  `json:"recipients"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	RelatedType string    `json:"related_type,omitempty"`
	RelatedID   string    `json:"related_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	RequestID   string    `json:"request_id,omitempty"` // 触发该事件的 HTTP 请求，由 workflow 填写
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventSink 事件投递接口（发后即忘）
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

// Publisher 消息通道发布接口（由 pkg/redis.Client 实现）
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ── 站内信 ──

type inboxSink struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewInboxSink 为每个接收人写入一条站内通知
func NewInboxSink(repo *repository.Repository, logger *zap.Logger) EventSink {
	return &inboxSink{repo: repo, logger: logger}
}

func (s *inboxSink) Publish(ctx context.Context, e Event) {
	if len(e.Recipients) == 0 {
		return
	}
	var relatedType, relatedID *string
	if e.RelatedType != "" {
		relatedType = &e.RelatedType
	}
	if e.RelatedID != "" {
		relatedID = &e.RelatedID
	}

	list := make([]model.Notification, 0, len(e.Recipients))
	for _, uid := range dedupe(e.Recipients) {
		list = append(list, model.Notification{
			UserID:      uid,
			Type:        e.Type,
			Title:       e.Title,
			Content:     e.Content,
			RelatedType: relatedType,
			RelatedID:   relatedID,
		})
	}
	if err := s.repo.Notification.BatchCreate(ctx, list); err != nil {
		s.logger.Warn("写入站内通知失败", zap.String("type", e.Type), zap.String("request_id", e.RequestID), zap.Error(err))
	}
}

// ── Redis 广播 ──

type redisSink struct {
	pub     Publisher
	channel string
	logger  *zap.Logger
}

// NewRedisSink 将事件以 JSON 发布到 Redis 频道
func NewRedisSink(pub Publisher, channel string, logger *zap.Logger) EventSink {
	return &redisSink{pub: pub, channel: channel, logger: logger}
}

func (s *redisSink) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("事件序列化失败", zap.String("type", e.Type), zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, s.channel, payload); err != nil {
		s.logger.Warn("事件发布失败", zap.String("type", e.Type), zap.String("request_id", e.RequestID), zap.Error(err))
	}
}

// ── 日志 ──

type logSink struct {
	logger *zap.Logger
}

// NewLogSink 仅记录事件日志
func NewLogSink(logger *zap.Logger) EventSink {
	return &logSink{logger: logger}
}

func (s *logSink) Publish(_ context.Context, e Event) {
	s.logger.Info("领域事件",
		zap.String("type", e.Type),
		zap.String("related_type", e.RelatedType),
		zap.String("related_id", e.RelatedID),
		zap.Int("recipients", len(e.Recipients)),
		zap.String("actor_id", e.ActorID),
		zap.String("request_id", e.RequestID),
	)
}

// ── 组合 ──

type multiSink []EventSink

// NewMultiSink 依次投递到多个 sink
func NewMultiSink(sinks ...EventSink) EventSink {
	return multiSink(sinks)
}

func (m multiSink) Publish(ctx context.Context, e Event) {
	for _, s := range m {
		s.Publish(ctx, e)
	}
}

// ── 异步 ──

// AsyncSink 有界队列异步投递，队列满时丢弃并告警，从不阻塞业务调用方
type AsyncSink struct {
	inner  EventSink
	queue  chan Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncSink 创建异步 sink 并启动投递协程
func NewAsyncSink(inner EventSink, buffer int, logger *zap.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 1
	}
	s := &AsyncSink{
		inner:  inner,
		queue:  make(chan Event, buffer),
		logger: logger,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *AsyncSink) loop() {
	defer s.wg.Done()
	for e := range s.queue {
		// 请求上下文此时可能已结束，投递使用独立的超时上下文
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.inner.Publish(ctx, e)
		cancel()
	}
}

func (s *AsyncSink) Publish(_ context.Context, e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.logger.Warn("事件队列已满，丢弃事件", zap.String("type", e.Type), zap.String("request_id", e.RequestID))
	}
}

// Close 停止接收新事件并等待队列排空
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
