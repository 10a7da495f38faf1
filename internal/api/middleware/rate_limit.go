package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// Limiter 窗口计数器（由 pkg/redis.Client 实现）
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 计算限流键；返回空串表示本次请求不计数
type KeyFunc func(c *gin.Context) string

// ByIP 按客户端 IP 计数
func ByIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

// ByActor 按已认证用户计数，须挂在 JWTAuth 之后；未认证时退化为 IP
func ByActor(c *gin.Context) string {
	if uid := c.GetString(ctxUserID); uid != "" {
		return "user:" + uid
	}
	return ByIP(c)
}

// ByLoginCode 按登录学号 + IP 计数，防止针对单个账号的口令猜测
// 须挂在 BodyLimit 之后；读取后恢复请求体供 handler 再次绑定
func ByLoginCode(c *gin.Context) string {
	body, err := c.GetRawData()
	if err != nil {
		return ByIP(c)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req struct {
		StudentCode string `json:"student_code"`
	}
	if err := binding.JSON.BindBody(body, &req); err != nil || strings.TrimSpace(req.StudentCode) == "" {
		return ByIP(c)
	}
	return fmt.Sprintf("login:%s:%s", strings.ToUpper(strings.TrimSpace(req.StudentCode)), c.ClientIP())
}

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// limiter 为 nil 或规则未启用时放行；Redis 出错时降级放行（与 JWTAuth 策略一致）
func RateLimit(limiter Limiter, scope string, rule config.RateLimitRule, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !rule.Enabled() {
			c.Next()
			return
		}
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), "rate_limit:"+scope+":"+key, rule.Limit, rule.Window)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rule.Window.Seconds())))
			response.TooManyRequests(c, codeRateLimited, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
