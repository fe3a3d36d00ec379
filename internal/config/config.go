package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Tracing     TracingConfig `mapstructure:"tracing"`
	Redis       RedisConfig
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Rewards     RewardConfig      `mapstructure:"rewards"`
	Quiz        QuizConfig        `mapstructure:"quiz"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Log         LogConfig         `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// LogConfig Level 为空时 debug 模式输出 debug 级别，其余为 info
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"` // mysql | postgres | sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	Path      string `mapstructure:"path"` // sqlite 文件路径
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Host     string
	Port     int
	Password string
	DB       int
}

// RewardConfig 积分奖励规则，支持热更新
type RewardConfig struct {
	EnrollmentPoints       int   `mapstructure:"enrollment_points"`
	ModuleCompletionPoints int   `mapstructure:"module_completion_points"`
	QuizPassPoints         int   `mapstructure:"quiz_pass_points"`
	QuizScoreBonusDivisor  int   `mapstructure:"quiz_score_bonus_divisor"`
	LevelThresholds        []int `mapstructure:"level_thresholds"`
	MaxPropagationDepth    int   `mapstructure:"max_propagation_depth"`
}

type QuizConfig struct {
	DefaultPassingScore  int `mapstructure:"default_passing_score"`
	DefaultTimeLimit     int `mapstructure:"default_time_limit"` // 分钟
	ExpiryGraceMinutes   int `mapstructure:"expiry_grace_minutes"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
}

type LeaderboardConfig struct {
	CacheKey              string `mapstructure:"cache_key"`
	DefaultLimit          int    `mapstructure:"default_limit"`
	RerankIntervalMinutes int    `mapstructure:"rerank_interval_minutes"`
}

// DefaultRewardConfig 与线上默认值保持一致
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		EnrollmentPoints:       10,
		ModuleCompletionPoints: 50,
		QuizPassPoints:         20,
		QuizScoreBonusDivisor:  4,
		LevelThresholds:        []int{100, 250, 500, 1000},
		MaxPropagationDepth:    8,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/edumate.db")

	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("tracing.service_name", "edumate-backend")

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)

	d := DefaultRewardConfig()
	v.SetDefault("rewards.enrollment_points", d.EnrollmentPoints)
	v.SetDefault("rewards.module_completion_points", d.ModuleCompletionPoints)
	v.SetDefault("rewards.quiz_pass_points", d.QuizPassPoints)
	v.SetDefault("rewards.quiz_score_bonus_divisor", d.QuizScoreBonusDivisor)
	v.SetDefault("rewards.level_thresholds", d.LevelThresholds)
	v.SetDefault("rewards.max_propagation_depth", d.MaxPropagationDepth)

	v.SetDefault("quiz.default_passing_score", 70)
	v.SetDefault("quiz.default_time_limit", 30)
	v.SetDefault("quiz.expiry_grace_minutes", 2)
	v.SetDefault("quiz.sweep_interval_minutes", 5)

	v.SetDefault("leaderboard.cache_key", "leaderboard:points")
	v.SetDefault("leaderboard.default_limit", 10)
	v.SetDefault("leaderboard.rerank_interval_minutes", 10)

	v.SetDefault("log.file", "logs/edumate.log")
}

func LoadConfig(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EDUMATE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Rewards.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 等级阈值必须严格递增
func (r RewardConfig) Validate() error {
	for i := 1; i < len(r.LevelThresholds); i++ {
		if r.LevelThresholds[i] <= r.LevelThresholds[i-1] {
			return fmt.Errorf("rewards.level_thresholds must be strictly increasing, got %v", r.LevelThresholds)
		}
	}
	if r.QuizScoreBonusDivisor < 0 {
		return fmt.Errorf("rewards.quiz_score_bonus_divisor must not be negative")
	}
	return nil
}
