package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ynate-byte/gradpro-sub001/config"
)

// NewLogger 根据配置初始化 Zap 日志实例
// 所有日志带 service=gradpro，便于与同机其他服务的日志区分
func NewLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "time"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]interface{}{"service": "gradpro"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("初始化日志器失败: %w", err)
	}

	return logger, nil
}

// ── 请求上下文 ──

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
)

// WithRequestID 将请求追踪 ID 写入 context，供 Service 层日志与领域事件使用
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 读取请求追踪 ID；不在请求内时返回空串
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

// WithActor 将已认证的操作者写入 context（仅用于日志，不参与权限判断）
func WithActor(ctx context.Context, userID, role string) context.Context {
	return context.WithValue(ctx, actorKey, [2]string{userID, role})
}

// For 返回带请求 ID 与操作者字段的子日志器
func For(ctx context.Context, l *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	if rid := RequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if a, ok := ctx.Value(actorKey).([2]string); ok {
		fields = append(fields, zap.String("user_id", a[0]), zap.String("role", a[1]))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
