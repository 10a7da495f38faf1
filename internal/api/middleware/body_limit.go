package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ynate-byte/gradpro-sub001/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 声明了 Content-Length 且超限时直接 413；分块上传等未声明长度的请求由 MaxBytesReader 截断，
// 读取失败时 handler 绑定识别 *http.MaxBytesError 并返回 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.PayloadTooLarge(c, codeBodyTooLarge, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
