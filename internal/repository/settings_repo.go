package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"gorm.io/gorm"
)

type SettingsRepository interface {
	GetImageConfig(ctx context.Context) (domain.ImageConfig, error)
	GetWebhookConfig(ctx context.Context, defaults domain.WebhookConfig) (domain.WebhookConfig, error)
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

// GetImageConfig returns the saved print range, or the template defaults
// when nothing is stored.
func (r *GormSettingsRepo) GetImageConfig(ctx context.Context) (domain.ImageConfig, error) {
	raw, err := r.get(ctx, domain.SettingKeyExcelConfig)
	if err != nil {
		return domain.ImageConfig{}, err
	}
	return decodeImageConfig(raw)
}

// GetWebhookConfig overlays the stored webhook settings on defaults.
func (r *GormSettingsRepo) GetWebhookConfig(ctx context.Context, defaults domain.WebhookConfig) (domain.WebhookConfig, error) {
	raw, err := r.get(ctx, domain.SettingKeyWebhookConfig)
	if err != nil {
		return domain.WebhookConfig{}, err
	}
	return decodeWebhookConfig(raw, defaults)
}

func (r *GormSettingsRepo) get(ctx context.Context, key string) (string, error) {
	var model AppSettingModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.Value, nil
}

func decodeImageConfig(raw string) (domain.ImageConfig, error) {
	var cfg domain.ImageConfig
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return domain.ImageConfig{}, fmt.Errorf("failed to decode %s setting: %w", domain.SettingKeyExcelConfig, err)
		}
	}
	return cfg.WithDefaults(), nil
}

type webhookSetting struct {
	WebhookURL     *string  `json:"webhook_url"`
	Timeout        *float64 `json:"timeout"`
	RetryCount     *int     `json:"retry_count"`
	SendDelay      *float64 `json:"send_delay"`
	MessageContent *string  `json:"message_content"`
}

func decodeWebhookConfig(raw string, defaults domain.WebhookConfig) (domain.WebhookConfig, error) {
	cfg := defaults
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}

	var stored webhookSetting
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return domain.WebhookConfig{}, fmt.Errorf("failed to decode %s setting: %w", domain.SettingKeyWebhookConfig, err)
	}

	if stored.WebhookURL != nil && strings.TrimSpace(*stored.WebhookURL) != "" {
		cfg.URL = strings.TrimSpace(*stored.WebhookURL)
	}
	if stored.Timeout != nil {
		cfg.Timeout = seconds(*stored.Timeout)
	}
	if stored.RetryCount != nil {
		cfg.RetryCount = *stored.RetryCount
	}
	if stored.SendDelay != nil {
		cfg.SendDelay = seconds(*stored.SendDelay)
	}
	if stored.MessageContent != nil {
		cfg.MessageContent = *stored.MessageContent
	}
	return cfg, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
