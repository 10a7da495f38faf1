package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
	applogger "github.com/Ynate-byte/gradpro-sub001/pkg/logger"
)

// workflow 事务编排：一次业务操作 = 一个事务
//
// fn 内的守卫判断、计数器预留与行写入共享同一事务快照；任何错误都整体回滚。
// emit 收集的事件仅在提交成功后投递，并带上 ctx 中的请求追踪 ID。
type workflow struct {
	repo   *repository.Repository
	ledger Ledger
	events EventSink
	logger *zap.Logger
	now    func() time.Time
}

func newWorkflow(repo *repository.Repository, events EventSink, logger *zap.Logger) *workflow {
	if events == nil {
		events = NewLogSink(logger)
	}
	return &workflow{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (w *workflow) run(ctx context.Context, op string, fn func(tx *repository.Repository, emit func(Event)) error) error {
	var pending []Event
	requestID := applogger.RequestID(ctx)
	err := w.repo.Transaction(ctx, func(tx *repository.Repository) error {
		pending = pending[:0]
		return fn(tx, func(e Event) {
			if e.OccurredAt.IsZero() {
				e.OccurredAt = w.now()
			}
			e.RequestID = requestID
			pending = append(pending, e)
		})
	})
	if err != nil {
		return w.fail(ctx, op, err)
	}
	for _, e := range pending {
		w.events.Publish(ctx, e)
	}
	return nil
}

// fail 统一错误出口：未归类的唯一约束冲突归为 uniqueness，基础设施错误记录日志
func (w *workflow) fail(ctx context.Context, op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) && pkgerrors.KindOf(err) == pkgerrors.KindInternal {
		return ErrDuplicate.Wrap(err)
	}
	if pkgerrors.KindOf(err) == pkgerrors.KindInternal &&
		!errors.Is(err, pkgerrors.ErrOptimisticLock) &&
		!errors.Is(err, context.Canceled) {
		applogger.For(ctx, w.logger).Error("业务操作失败", zap.String("op", op), zap.Error(err))
	}
	return err
}

// ── 通用守卫 ──

// planOpen 计划处于可组队 / 选题的状态
func planOpen(plan *model.ThesisPlan) bool {
	return plan.Status == model.PlanStatusApproved || plan.Status == model.PlanStatusInProgress
}

// planClosed 计划已进入终态
func planClosed(plan *model.ThesisPlan) bool {
	return plan.Status == model.PlanStatusCompleted || plan.Status == model.PlanStatusCancelled
}

// canManagePlan 计划创建者、管理员、系主任
func canManagePlan(actor lifecycle.Actor, plan *model.ThesisPlan) bool {
	return actor.UserID == plan.CreatorID || actor.IsAdmin() || actor.IsDepartmentHead()
}

// ── 时间格式 ──

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func strPtr(s string) *string { return &s }
