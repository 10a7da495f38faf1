package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Ynate-byte/gradpro-sub001/config"
	"github.com/Ynate-byte/gradpro-sub001/pkg/jwt"
	applogger "github.com/Ynate-byte/gradpro-sub001/pkg/logger"
)

type fakeLimiter struct {
	mu    sync.Mutex
	hits  map[string]int
	calls []string
	err   error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hits == nil {
		f.hits = map[string]int{}
	}
	f.calls = append(f.calls, key)
	if f.err != nil {
		return false, f.err
	}
	f.hits[key]++
	return f.hits[key] <= limit, nil
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_ByLoginCode(t *testing.T) {
	limiter := &fakeLimiter{}
	rule := config.RateLimitRule{Limit: 2, Window: time.Minute}

	r := gin.New()
	r.POST("/login", RateLimit(limiter, "login", rule, ByLoginCode), func(c *gin.Context) {
		var req struct {
			StudentCode string `json:"student_code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, "bind")
			return
		}
		c.String(http.StatusOK, req.StudentCode)
	})

	for i := 0; i < 2; i++ {
		w := postJSON(r, "/login", `{"student_code":" s001 "}`)
		if w.Code != http.StatusOK {
			t.Fatalf("第 %d 次登录期望 200，实际 %d", i+1, w.Code)
		}
		if w.Body.String() != " s001 " {
			t.Fatalf("handler 应能再次读取请求体，实际 %q", w.Body.String())
		}
	}

	w := postJSON(r, "/login", `{"student_code":"S001"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("超限后期望 429，实际 %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After 期望 60，实际 %q", w.Header().Get("Retry-After"))
	}

	// 其他学号不受影响
	if w := postJSON(r, "/login", `{"student_code":"S002"}`); w.Code != http.StatusOK {
		t.Errorf("其他学号期望 200，实际 %d", w.Code)
	}

	if len(limiter.calls) == 0 || !strings.HasPrefix(limiter.calls[0], "rate_limit:login:login:S001:") {
		t.Errorf("限流键应包含规范化学号，实际 %v", limiter.calls)
	}
}

func TestRateLimit_PassThrough(t *testing.T) {
	tests := []struct {
		name    string
		limiter Limiter
		rule    config.RateLimitRule
	}{
		{"未配置 Redis", nil, config.RateLimitRule{Limit: 1, Window: time.Minute}},
		{"规则未启用", &fakeLimiter{}, config.RateLimitRule{}},
		{"Redis 出错降级", &fakeLimiter{err: errors.New("redis down")}, config.RateLimitRule{Limit: 1, Window: time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/p", RateLimit(tt.limiter, "import", tt.rule, ByIP), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			for i := 0; i < 3; i++ {
				if w := postJSON(r, "/p", `{}`); w.Code != http.StatusOK {
					t.Fatalf("第 %d 次期望放行，实际 %d", i+1, w.Code)
				}
			}
		})
	}
}

func TestRateLimit_ByActor(t *testing.T) {
	limiter := &fakeLimiter{}
	r, mgr := newTestEngine(nil, RateLimit(limiter, "auto_group", config.RateLimitRule{Limit: 1, Window: time.Minute}, ByActor))
	token, _ := mgr.GenerateAccessToken("u9", "admin", "")

	if w := doGet(r, "Bearer "+token); w.Code != http.StatusOK {
		t.Fatalf("首次请求期望 200，实际 %d", w.Code)
	}
	if w := doGet(r, "Bearer "+token); w.Code != http.StatusTooManyRequests {
		t.Fatalf("同一用户第二次期望 429，实际 %d", w.Code)
	}
	if limiter.calls[0] != "rate_limit:auto_group:user:u9" {
		t.Errorf("限流键应按用户计数，实际 %q", limiter.calls[0])
	}
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		AllowOrigins:  []string{"https://thesis.example.edu/"},
		AllowHeaders:  []string{"Content-Type", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        time.Hour,
	}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("预检请求", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/p", nil)
		req.Header.Set("Origin", "https://thesis.example.edu")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("期望 204，实际 %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
			t.Errorf("Allow-Headers 不符: %q", got)
		}
		if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
			t.Errorf("Max-Age 期望 3600，实际 %q", got)
		}
	})

	t.Run("白名单 Origin 暴露导出头", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Origin", "https://thesis.example.edu")
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://thesis.example.edu" {
			t.Errorf("Allow-Origin 不符: %q", got)
		}
		if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Content-Disposition") {
			t.Errorf("应暴露 Content-Disposition，实际 %q", got)
		}
	})

	t.Run("未知 Origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/p", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		r.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("未知 Origin 不应回写 Allow-Origin")
		}
		if w.Header().Get("Access-Control-Allow-Methods") != "" {
			t.Error("未知 Origin 的预检不应回写 Allow-Methods")
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(config.SecurityConfig{
		ContentSecurityPolicy: "default-src 'none'",
		HSTSMaxAge:            24 * time.Hour,
	}))
	r.GET("/api/v1/groups", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil))
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains" {
		t.Errorf("HSTS 不符: %q", got)
	}
	if w.Header().Get("Content-Security-Policy") != "default-src 'none'" {
		t.Errorf("CSP 应取自配置，实际 %q", w.Header().Get("Content-Security-Policy"))
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("API 响应应禁止缓存，实际 %q", w.Header().Get("Cache-Control"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("Cache-Control") != "" {
		t.Errorf("非 API 路径不应设置 Cache-Control，实际 %q", w.Header().Get("Cache-Control"))
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("缺少 X-Frame-Options")
	}
}

func TestSecurityHeaders_NoHSTSByDefault(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(config.SecurityConfig{}))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("未配置 HSTS 时不应下发")
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/p", BodyLimit(16), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	if w := postJSON(r, "/p", `{"a":1}`); w.Code != http.StatusOK {
		t.Errorf("小请求体期望 200，实际 %d", w.Code)
	}
	if w := postJSON(r, "/p", `{"student_code":"S0000000001"}`); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("超限请求体期望 413，实际 %d", w.Code)
	}

	// 未声明长度时由 MaxBytesReader 截断
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/p", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("分块请求体超限期望 413，实际 %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	var ctxID string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/p", func(c *gin.Context) {
		ctxID = applogger.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"合法 ID 沿用", "abc-123_x.y", true},
		{"含非法字符", "abc\n123", false},
		{"超长", strings.Repeat("a", 65), false},
		{"缺省", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if tt.keep && got != tt.header {
				t.Errorf("期望沿用 %q，实际 %q", tt.header, got)
			}
			if !tt.keep && (got == "" || got == tt.header) {
				t.Errorf("应生成新 ID，实际 %q", got)
			}
			if ctxID != got {
				t.Errorf("request context 中的 ID %q 与响应头 %q 不一致", ctxID, got)
			}
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "middleware-test-secret", AccessTokenTTL: time.Hour})
	engine := gin.New()
	engine.Use(RequestID(), Logger(zap.New(core)))
	engine.GET("/api/v1/groups/:id", JWTAuth(mgr, nil), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})
	token, _ := mgr.GenerateAccessToken("u1", "student", "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/g-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", "rid-1")
	engine.ServeHTTP(w, req)

	entries := logs.FilterMessage("业务冲突").All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条业务冲突日志，实际 %d", logs.Len())
	}
	fields := entries[0].ContextMap()
	want := map[string]string{
		"request_id":  "rid-1",
		"user_id":     "u1",
		"role":        "student",
		"route":       "/api/v1/groups/:id",
		"resource_id": "g-1",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("字段 %s 期望 %q，实际 %v", k, v, fields[k])
		}
	}
}
