package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	applogger "github.com/Ynate-byte/gradpro-sub001/pkg/logger"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

const requestIDMaxLen = 64

// RequestID 请求追踪 ID 中间件
// 外部传入的 X-Request-ID 仅在长度与字符集合法时沿用，否则生成 UUID。
// ID 同时写入 gin.Context（响应体 request_id）与 request context（Service 日志、领域事件）。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if !validRequestID(rid) {
			rid = uuid.New().String()
		}

		c.Set(response.RequestIDKey, rid)
		c.Request = c.Request.WithContext(applogger.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-ID", rid)

		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > requestIDMaxLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
