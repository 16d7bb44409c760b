package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Couple    CoupleConfig    `mapstructure:"couple"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BaseURL   string     `mapstructure:"base_url"`
	BodyLimit int64      `mapstructure:"body_limit"` // 请求体上限（字节）
	CORS      CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
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

// RedisConfig Redis 配置（限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 身份令牌校验配置
// 身份令牌由外部身份提供方签发，本服务只负责验签并提取 uid / email
type AuthConfig struct {
	TokenSecret          string        `mapstructure:"token_secret"`
	Issuer               string        `mapstructure:"issuer"`
	Audience             string        `mapstructure:"audience"`
	ClockSkew            time.Duration `mapstructure:"clock_skew"`
	RequireVerifiedEmail bool          `mapstructure:"require_verified_email"`
}

// StorageConfig S3 兼容对象存储配置（头像上传）
type StorageConfig struct {
	Region        string        `mapstructure:"region"`
	Endpoint      string        `mapstructure:"endpoint"`
	Bucket        string        `mapstructure:"bucket"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	PresignTTL    time.Duration `mapstructure:"presign_ttl"`
}

// CoupleConfig 情侣空间业务配置
type CoupleConfig struct {
	MaxCodeAttempts  int           `mapstructure:"max_code_attempts"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinWindow   time.Duration `mapstructure:"join_window"`
	GlobalLimit  int           `mapstructure:"global_limit"`
	GlobalWindow time.Duration `mapstructure:"global_window"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"` // stdout / stderr / 文件路径
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

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
	v.SetEnvPrefix("COUPLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.base_url", "http://localhost:4000")
	v.SetDefault("server.body_limit", 10<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000", "http://localhost:8081"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "couple_app_db")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.clock_skew", "30s")
	v.SetDefault("auth.require_verified_email", false)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucket", "couple-app-avatars")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.presign_ttl", "15m")

	v.SetDefault("couple.max_code_attempts", 20)
	v.SetDefault("couple.operation_timeout", "5s")

	v.SetDefault("rate_limit.join_limit", 10)
	v.SetDefault("rate_limit.join_window", "1m")
	v.SetDefault("rate_limit.global_limit", 300)
	v.SetDefault("rate_limit.global_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("配置校验失败: auth.token_secret 不能为空")
	}
	if len(c.Auth.TokenSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.token_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Couple.MaxCodeAttempts < 1 {
		return fmt.Errorf("配置校验失败: couple.max_code_attempts 必须大于 0")
	}
	if c.Couple.OperationTimeout <= 0 {
		return fmt.Errorf("配置校验失败: couple.operation_timeout 必须大于 0")
	}
	return nil
}
