package config

import (
	"log"
	"os"
	"time"

	"TourGuard/pkg/logger"
	"TourGuard/pkg/util"
)

// config/config.go
type Config struct {
	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`
	Log      logger.LogConfig
	Addr     string `env:"ADDR"`
	Mode     string `env:"MODE"`

	APIPrefix string `env:"API_PREFIX"`

	// 外部依赖调用上限，超时后返回 DependencyUnavailable
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT"`
	FanoutTimeout time.Duration `env:"FANOUT_TIMEOUT"`

	// 升级扫描：超过注意力窗口仍未处理的高危告警自动升级
	EscalationSweepCron string        `env:"ESCALATION_SWEEP_CRON"`
	AttentionWindow     time.Duration `env:"ATTENTION_WINDOW"`

	// 数字身份证有效期（天）
	DigitalIDValidDays int `env:"DIGITAL_ID_VALID_DAYS"`

	// 数据库备份。表达式留空则不启用
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
	BackupPath     string `env:"BACKUP_PATH"`

	CacheType     string `env:"CACHE_TYPE"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnv("MODE"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		StoreTimeout:        util.GetDurationEnv("STORE_TIMEOUT"),
		FanoutTimeout:       util.GetDurationEnv("FANOUT_TIMEOUT"),
		EscalationSweepCron: util.GetEnvDefault("ESCALATION_SWEEP_CRON", "*/5 * * * *"),
		AttentionWindow:     util.GetDurationEnv("ATTENTION_WINDOW"),
		DigitalIDValidDays:  int(util.GetIntEnv("DIGITAL_ID_VALID_DAYS")),
		BackupSchedule:      util.GetEnv("BACKUP_SCHEDULE"),
		BackupPath:          util.GetEnvDefault("BACKUP_PATH", "backups"),
		CacheType:           util.GetEnvDefault("CACHE_TYPE", "local"),
		RedisAddr:           util.GetEnv("REDIS_ADDR"),
		RedisPassword:       util.GetEnv("REDIS_PASSWORD"),
		RedisDB:             int(util.GetIntEnv("REDIS_DB")),
	}
	if GlobalConfig.StoreTimeout <= 0 {
		GlobalConfig.StoreTimeout = 5 * time.Second
	}
	if GlobalConfig.FanoutTimeout <= 0 {
		GlobalConfig.FanoutTimeout = 2 * time.Second
	}
	if GlobalConfig.AttentionWindow <= 0 {
		GlobalConfig.AttentionWindow = 15 * time.Minute
	}
	if GlobalConfig.DigitalIDValidDays <= 0 {
		GlobalConfig.DigitalIDValidDays = 30
	}
	return nil
}
