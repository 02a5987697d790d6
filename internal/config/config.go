package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// 不安全的默认值列表 (生产环境不应使用)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"":                                     true,
}

type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Trial     TrialConfig
	SCM       SCMConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type JWTConfig struct {
	SecretKey string
}

// TrialConfig controls the trial service client and session lifecycle
type TrialConfig struct {
	MetadataURL         string
	HTTPTimeout         time.Duration
	AutoRefreshInterval time.Duration // 0 disables background refresh
	SessionIdleTTL      time.Duration
}

// SCMConfig controls the management endpoint clients
type SCMConfig struct {
	HTTPTimeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"), // 默认为 release 模式
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Trial: TrialConfig{
			MetadataURL:         getEnv("TRIAL_METADATA_URL", models.DefaultMetadataURL),
			HTTPTimeout:         getEnvDuration("TRIAL_HTTP_TIMEOUT", 30*time.Second),
			AutoRefreshInterval: getEnvDuration("TRIAL_AUTO_REFRESH_INTERVAL", time.Minute),
			SessionIdleTTL:      getEnvDuration("TRIAL_SESSION_IDLE_TTL", 2*time.Hour),
		},
		SCM: SCMConfig{
			HTTPTimeout: getEnvDuration("SCM_HTTP_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 2),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Log: LogConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	// 日志脱敏: 不记录敏感配置
	log.Printf("[config] Trial App Service loaded: port=%s metadata=%s refresh=%s idle_ttl=%s",
		cfg.Server.Port, cfg.Trial.MetadataURL, cfg.Trial.AutoRefreshInterval, cfg.Trial.SessionIdleTTL)

	return cfg
}

// Validate 验证配置有效性，生产环境必须设置安全的密钥
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}
	if c.Trial.MetadataURL == "" {
		return fmt.Errorf("TRIAL_METADATA_URL must not be empty")
	}
	if c.Trial.AutoRefreshInterval < 0 {
		return fmt.Errorf("TRIAL_AUTO_REFRESH_INTERVAL must not be negative")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
