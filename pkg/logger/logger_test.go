package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Ynate-byte/gradpro-sub001/config"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		if _, err := NewLogger(&config.LogConfig{Level: "info", Format: format}); err != nil {
			t.Errorf("格式 %s 初始化失败: %v", format, err)
		}
	}
	if _, err := NewLogger(&config.LogConfig{Level: "verbose"}); err == nil {
		t.Error("未知日志级别应返回错误")
	}
}

func TestFor_AddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithActor(WithRequestID(context.Background(), "rid-1"), "u-1", "advisor")
	For(ctx, base).Info("自动分组完成")
	For(context.Background(), base).Info("后台任务")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("期望 2 条日志，实际 %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "rid-1" || fields["user_id"] != "u-1" || fields["role"] != "advisor" {
		t.Errorf("请求内日志应带追踪字段: %v", fields)
	}
	if len(entries[1].Context) != 0 {
		t.Errorf("请求外日志不应附加字段: %v", entries[1].ContextMap())
	}
	if RequestID(context.Background()) != "" {
		t.Error("空 context 的请求 ID 应为空串")
	}
}
