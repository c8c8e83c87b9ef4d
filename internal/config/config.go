package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	// RabbitMQURL is optional; completion events are not published without it.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	WebhookURL        string `env:"WEBHOOK_URL"`
	WebhookTimeoutSec int    `env:"WEBHOOK_TIMEOUT_SEC,default=30"`
	WebhookRetryCount int    `env:"WEBHOOK_RETRY_COUNT,default=3"`
	SendDelaySec      int    `env:"SEND_DELAY_SEC,default=3"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=5"`

	LibreOfficePath   string `env:"LIBREOFFICE_PATH,default=libreoffice"`
	ConvertTimeoutSec int    `env:"CONVERT_TIMEOUT_SEC,default=60"`
	WorkDir           string `env:"WORK_DIR"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS,default=10"`
	ShutdownTimeoutSec int `env:"SHUTDOWN_TIMEOUT_SEC,default=30"`

	SSEKeepAliveSec int    `env:"SSE_KEEPALIVE_SEC,default=30"`
	APIPort         int    `env:"API_PORT,default=8080"`
	LogLevel        string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.WebhookTimeoutSec < 5 || c.WebhookTimeoutSec > 120 {
		return fmt.Errorf("WEBHOOK_TIMEOUT_SEC must be between 5 and 120, got %d", c.WebhookTimeoutSec)
	}
	if c.WebhookRetryCount < 0 || c.WebhookRetryCount > 5 {
		return fmt.Errorf("WEBHOOK_RETRY_COUNT must be between 0 and 5, got %d", c.WebhookRetryCount)
	}
	if c.SendDelaySec < 0 {
		return fmt.Errorf("SEND_DELAY_SEC must not be negative, got %d", c.SendDelaySec)
	}
	if c.ConvertTimeoutSec <= 0 {
		return fmt.Errorf("CONVERT_TIMEOUT_SEC must be positive, got %d", c.ConvertTimeoutSec)
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns)
	}
	if c.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SEC must be positive, got %d", c.ShutdownTimeoutSec)
	}
	if c.SSEKeepAliveSec <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE_SEC must be positive, got %d", c.SSEKeepAliveSec)
	}
	return nil
}

func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSec) * time.Second
}

func (c *Config) SendDelay() time.Duration {
	return time.Duration(c.SendDelaySec) * time.Second
}

func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.ConvertTimeoutSec) * time.Second
}

func (c *Config) SSEKeepAlive() time.Duration {
	return time.Duration(c.SSEKeepAliveSec) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// WebhookDefaults is the delivery config used where no stored setting
// overrides it.
func (c *Config) WebhookDefaults() domain.WebhookConfig {
	return domain.WebhookConfig{
		URL:        c.WebhookURL,
		Timeout:    c.WebhookTimeout(),
		RetryCount: c.WebhookRetryCount,
		SendDelay:  c.SendDelay(),
	}
}
