package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsKindSentinel(t *testing.T) {
	errFull := New(KindCapacityExceeded, "小组人数已满")

	if !errors.Is(errFull, ErrCapacityExceeded) {
		t.Error("业务错误应匹配同分类哨兵")
	}
	if errors.Is(errFull, ErrValidation) {
		t.Error("业务错误不应匹配其他分类哨兵")
	}

	wrapped := fmt.Errorf("注册失败: %w", errFull)
	if !errors.Is(wrapped, errFull) {
		t.Error("fmt 包装后仍应匹配原错误")
	}
	if !errors.Is(wrapped, ErrCapacityExceeded) {
		t.Error("fmt 包装后仍应匹配分类哨兵")
	}
}

func TestError_BusinessSentinelsAreDistinct(t *testing.T) {
	a := New(KindUniqueness, "已是小组成员")
	b := New(KindUniqueness, "已发送过邀请")

	if errors.Is(a, b) {
		t.Error("同分类不同消息的业务错误不应互相匹配")
	}
	if !errors.Is(a.Wrap(errors.New("duplicate key")), a) {
		t.Error("Wrap 后应匹配模板错误")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"typed", New(KindNotFound, "不存在"), KindNotFound},
		{"wrapped", fmt.Errorf("x: %w", New(KindUnauthorized, "无权限")), KindUnauthorized},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("期望 %q，实际 %q", tt.want, got)
			}
		})
	}
}

func TestValidation_Fields(t *testing.T) {
	err := Validation("参数校验失败", FieldError{Field: "group_size", Message: "最小为2"})
	fields := FieldsOf(fmt.Errorf("wrap: %w", err))
	if len(fields) != 1 || fields[0].Field != "group_size" {
		t.Errorf("字段详情丢失: %+v", fields)
	}
}
