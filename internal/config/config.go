package config

import (
	"errors"
	"log"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config 运行配置，全部来自环境变量（可由 .env 提供）
type Config struct {
	Port          string        `env:"PORT,default=8080"`
	DatabaseURL   string        `env:"DATABASE_URL,default=host=localhost user=postgres password=postgres dbname=plforum port=5432 sslmode=disable TimeZone=Asia/Shanghai"`
	SessionSecret string        `env:"SESSION_SECRET,default=plforum-dev-session"`
	JWTSecret     string        `env:"JWT_SECRET,default=plforum-dev-jwt"`
	JWTTTL        time.Duration `env:"JWT_TTL,default=168h"`
	TimeZone      string        `env:"TIME_ZONE,default=Asia/Shanghai"`
	GinMode       string        `env:"GIN_MODE,default=debug"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogJSON  bool   `env:"LOG_JSON,default=false"`

	DownloadDailyLimit int `env:"DOWNLOAD_DAILY_LIMIT,default=3"`
	PostPointsDailyCap int `env:"POST_POINTS_DAILY_CAP,default=6"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=0.5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=30"`

	// 过期封禁/禁言清理任务，cron 表达式，为空则不启动
	SweepCron          string `env:"SWEEP_CRON,default=@every 10m"`
	AuditRetentionDays int    `env:"AUDIT_RETENTION_DAYS,default=30"`

	loc *time.Location
}

// Load 读取 .env（若存在）并解析环境变量
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) init() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return err
	}
	c.loc = loc
	return nil
}

// Location 业务日期、年度窗口所用时区
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		if err := c.init(); err != nil {
			return time.UTC
		}
	}
	return c.loc
}
