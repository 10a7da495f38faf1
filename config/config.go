package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Membership MembershipConfig `mapstructure:"membership"`
	Grouping   GroupingConfig   `mapstructure:"grouping"`
	Events     EventsConfig     `mapstructure:"events"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port           int            `mapstructure:"port"`
	BaseURL        string         `mapstructure:"base_url"`
	MaxBodyBytes   int64          `mapstructure:"max_body_bytes"`   // JSON 请求体上限
	MaxUploadBytes int64          `mapstructure:"max_upload_bytes"` // Excel 导入上限
	CORS           CORSConfig     `mapstructure:"cors"`
	Security       SecurityConfig `mapstructure:"security"`
}

// CORSConfig 跨域配置
// expose_headers 需包含 Content-Disposition，前端才能读到导出文件名
type CORSConfig struct {
	AllowOrigins  []string      `mapstructure:"allow_origins"`
	AllowHeaders  []string      `mapstructure:"allow_headers"`
	ExposeHeaders []string      `mapstructure:"expose_headers"`
	MaxAge        time.Duration `mapstructure:"max_age"`
}

// SecurityConfig 安全响应头
type SecurityConfig struct {
	ContentSecurityPolicy string        `mapstructure:"content_security_policy"`
	HSTSMaxAge            time.Duration `mapstructure:"hsts_max_age"` // 0 表示不发送 HSTS（本地 HTTP）
}

// RateLimitRule 单条限流规则：window 内至多 limit 次
type RateLimitRule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitConfig 限流配置
// login 按学号 + IP 计数；import 与 auto_group 按操作者计数
type RateLimitConfig struct {
	Login     RateLimitRule `mapstructure:"login"`
	Import    RateLimitRule `mapstructure:"import"`
	AutoGroup RateLimitRule `mapstructure:"auto_group"`
}

// DatabaseConfig 数据库配置
// driver=postgres 用于生产；driver=sqlite 用于本地开发（path 为文件路径或 :memory:）
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MembershipConfig 组队邀请配置
type MembershipConfig struct {
	// InvitationTTL 邀请有效期，创建时写入 expires_at，之后仅在读取/接受时惰性判断
	InvitationTTL time.Duration `mapstructure:"invitation_ttl"`
}

// GroupingConfig 自动分组默认参数
type GroupingConfig struct {
	DefaultGroupSize int    `mapstructure:"default_group_size"`
	DefaultPriority  string `mapstructure:"default_priority"`
	NamePrefix       string `mapstructure:"name_prefix"`
}

// EventsConfig 事件投递配置
type EventsConfig struct {
	RedisChannel string `mapstructure:"redis_channel"`
	Buffer       int    `mapstructure:"buffer"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.cors.allow_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("server.cors.expose_headers", []string{"X-Request-ID", "Content-Disposition"})
	v.SetDefault("server.cors.max_age", "24h")
	v.SetDefault("server.security.content_security_policy", "default-src 'none'; frame-ancestors 'none'")
	v.SetDefault("server.security.hsts_max_age", "0s")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.path", "gradpro.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "gradpro")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "2h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("membership.invitation_ttl", "168h")

	v.SetDefault("grouping.default_group_size", 3)
	v.SetDefault("grouping.default_priority", "major")
	v.SetDefault("grouping.name_prefix", "Nhóm")

	v.SetDefault("events.redis_channel", "gradpro:events")
	v.SetDefault("events.buffer", 256)

	v.SetDefault("rate_limit.login.limit", 10)
	v.SetDefault("rate_limit.login.window", "1m")
	v.SetDefault("rate_limit.import.limit", 5)
	v.SetDefault("rate_limit.import.window", "1m")
	v.SetDefault("rate_limit.auto_group.limit", 3)
	v.SetDefault("rate_limit.auto_group.window", "1m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("GRADPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("配置校验失败: db.driver 仅支持 postgres 或 sqlite")
	}
	if c.Membership.InvitationTTL <= 0 {
		return fmt.Errorf("配置校验失败: membership.invitation_ttl 必须为正")
	}
	if c.Grouping.DefaultGroupSize < 2 {
		return fmt.Errorf("配置校验失败: grouping.default_group_size 不能小于 2")
	}
	switch c.Grouping.DefaultPriority {
	case "major", "class", "none":
	default:
		return fmt.Errorf("配置校验失败: grouping.default_priority 仅支持 major/class/none")
	}
	if c.Server.MaxBodyBytes <= 0 || c.Server.MaxUploadBytes < c.Server.MaxBodyBytes {
		return fmt.Errorf("配置校验失败: server.max_body_bytes 必须为正且不大于 max_upload_bytes")
	}
	for name, r := range map[string]RateLimitRule{
		"login":      c.RateLimit.Login,
		"import":     c.RateLimit.Import,
		"auto_group": c.RateLimit.AutoGroup,
	} {
		if r.Limit < 0 || (r.Limit > 0 && r.Window <= 0) {
			return fmt.Errorf("配置校验失败: rate_limit.%s 需要 limit>=0，启用时 window 必须为正", name)
		}
	}
	return nil
}

// Enabled limit 为 0 时不限流
func (r RateLimitRule) Enabled() bool { return r.Limit > 0 }
