package service

import (
	"context"
	"fmt"

	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
)

// Counter 冗余计数器标识
type Counter struct {
	Kind repository.CounterKind
	ID   string
}

func groupMembers(groupID string) Counter {
	return Counter{Kind: repository.CounterGroupMembers, ID: groupID}
}

func topicSlots(topicID string) Counter {
	return Counter{Kind: repository.CounterTopicSlots, ID: topicID}
}

func planGroups(planID string) Counter {
	return Counter{Kind: repository.CounterPlanGroups, ID: planID}
}

// Ledger 容量账本：所有计数器增减的唯一入口
//
// Reserve / Release 必须使用调用方的事务聚合，与其保护的行（成员、选题、小组）同一事务提交。
// 每次预留都是一条带上限条件的 UPDATE，并发下只有条件仍成立的一方命中。
type Ledger struct{}

// Reserve 预留 n 个名额，超限时返回容量错误
func (Ledger) Reserve(ctx context.Context, tx *repository.Repository, c Counter, n int) error {
	if n <= 0 {
		return fmt.Errorf("预留数量必须为正: %d", n)
	}
	ok, err := tx.Capacity.Increment(ctx, c.Kind, c.ID, n)
	if err != nil {
		return fmt.Errorf("预留 %s 失败: %w", c.Kind, err)
	}
	if !ok {
		return capacityError(c.Kind)
	}
	return nil
}

// Release 释放 n 个名额；下溢说明计数与实际行不一致，按内部错误处理
func (Ledger) Release(ctx context.Context, tx *repository.Repository, c Counter, n int) error {
	if n <= 0 {
		return fmt.Errorf("释放数量必须为正: %d", n)
	}
	ok, err := tx.Capacity.Decrement(ctx, c.Kind, c.ID, n)
	if err != nil {
		return fmt.Errorf("释放 %s 失败: %w", c.Kind, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrCounterInconsistent, c.Kind, c.ID)
	}
	return nil
}

func capacityError(kind repository.CounterKind) error {
	switch kind {
	case repository.CounterTopicSlots:
		return ErrTopicFull
	case repository.CounterPlanGroups:
		return ErrPlanGroupLimit
	default:
		return ErrGroupFull
	}
}
