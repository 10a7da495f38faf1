package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/pkg/jwt"
	applogger "github.com/Ynate-byte/gradpro-sub001/pkg/logger"
	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// gin.Context 键，与 handler.MustGetActor 读取的键一致
const (
	ctxUserID  = "user_id"
	ctxRole    = "role"
	ctxMajorID = "major_id"
	ctxClaims  = "claims"
)

// 中间件直接返回的业务码（其余业务码由 handler 按错误分类映射）
const (
	codeUnauthenticated = 10002
	codeForbidden       = 10003
	codeBodyTooLarge    = 10005
	codeRateLimited     = 10006
)

// TokenChecker 查询 jti 是否已被吊销
type TokenChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token。
// checker 为 nil 时跳过黑名单检查（未配置 Redis）
func JWTAuth(jwtMgr *jwt.Manager, checker TokenChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, codeUnauthenticated, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, codeUnauthenticated, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, codeUnauthenticated, "Token 无效或已过期")
			c.Abort()
			return
		}

		if checker != nil && claims.ID != "" {
			revoked, err := checker.IsBlacklisted(c.Request.Context(), claims.ID)
			// Redis 出错时降级放行
			if err == nil && revoked {
				response.Unauthorized(c, codeUnauthenticated, "Token 已注销")
				c.Abort()
				return
			}
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxMajorID, claims.MajorID)
		c.Set(ctxClaims, claims)
		c.Request = c.Request.WithContext(applogger.WithActor(c.Request.Context(), claims.UserID, claims.Role))

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(ctxRole)
		if userRole == "" {
			response.Unauthorized(c, codeUnauthenticated, "未认证")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, codeForbidden, "无权限访问")
		c.Abort()
	}
}
