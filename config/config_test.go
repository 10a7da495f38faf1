package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
db:
  driver: sqlite
  path: ":memory:"
auth:
  jwt_secret: "0123456789abcdef0123"
membership:
  invitation_ttl: 48h
grouping:
  default_group_size: 4
rate_limit:
  login:
    limit: 5
    window: 30s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	t.Setenv("GRADPRO_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("期望 port=9090，实际=%d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("期望 driver=sqlite，实际=%s", cfg.Database.Driver)
	}
	if cfg.Membership.InvitationTTL != 48*time.Hour {
		t.Errorf("期望 invitation_ttl=48h，实际=%s", cfg.Membership.InvitationTTL)
	}
	if cfg.Grouping.DefaultGroupSize != 4 {
		t.Errorf("期望 default_group_size=4，实际=%d", cfg.Grouping.DefaultGroupSize)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("环境变量应覆盖日志级别，实际=%s", cfg.Log.Level)
	}
	if cfg.Grouping.DefaultPriority != "major" {
		t.Errorf("期望默认优先级 major，实际=%s", cfg.Grouping.DefaultPriority)
	}
	if cfg.RateLimit.Login.Limit != 5 || cfg.RateLimit.Login.Window != 30*time.Second {
		t.Errorf("登录限流应取文件配置，实际=%+v", cfg.RateLimit.Login)
	}
	if !cfg.RateLimit.Import.Enabled() || cfg.RateLimit.Import.Window != time.Minute {
		t.Errorf("导入限流应取默认值，实际=%+v", cfg.RateLimit.Import)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("期望默认上传上限 10MiB，实际=%d", cfg.Server.MaxUploadBytes)
	}
	found := false
	for _, h := range cfg.Server.CORS.ExposeHeaders {
		if h == "Content-Disposition" {
			found = true
		}
	}
	if !found {
		t.Errorf("默认 CORS 应暴露 Content-Disposition，实际=%v", cfg.Server.CORS.ExposeHeaders)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:     ServerConfig{Port: 8080, MaxBodyBytes: 1 << 20, MaxUploadBytes: 10 << 20},
			Database:   DatabaseConfig{Driver: "postgres"},
			Auth:       AuthConfig{JWTSecret: "0123456789abcdef"},
			Membership: MembershipConfig{InvitationTTL: time.Hour},
			Grouping:   GroupingConfig{DefaultGroupSize: 3, DefaultPriority: "none"},
			RateLimit:  RateLimitConfig{Login: RateLimitRule{Limit: 10, Window: time.Minute}},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("基础配置应合法: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"短密钥", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }},
		{"未知驱动", func(c *Config) { c.Database.Driver = "mysql" }},
		{"邀请有效期为零", func(c *Config) { c.Membership.InvitationTTL = 0 }},
		{"分组人数过小", func(c *Config) { c.Grouping.DefaultGroupSize = 1 }},
		{"未知优先级", func(c *Config) { c.Grouping.DefaultPriority = "dept" }},
		{"请求体上限为零", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"上传上限小于请求体上限", func(c *Config) { c.Server.MaxUploadBytes = 1024 }},
		{"限流缺少窗口", func(c *Config) { c.RateLimit.Import = RateLimitRule{Limit: 5} }},
		{"限流次数为负", func(c *Config) { c.RateLimit.Login.Limit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}
