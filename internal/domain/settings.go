package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Settings keys stored in app_settings.
const (
	SettingKeyExcelConfig   = "excel_config"
	SettingKeyWebhookConfig = "webhook_config"
)

// Print area defaults of the salary slip template.
const (
	DefaultImageStartCol = "B"
	DefaultImageEndCol   = "H"
	DefaultImageStartRow = 4
	DefaultImageEndRow   = 29
)

var columnPattern = regexp.MustCompile(`^[A-Z]{1,3}$`)

// ImageConfig selects the template range rendered into a slip image.
type ImageConfig struct {
	StartCol string `json:"image_start_col"`
	EndCol   string `json:"image_end_col"`
	StartRow int    `json:"image_start_row"`
	EndRow   int    `json:"image_end_row"`
}

func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		StartCol: DefaultImageStartCol,
		EndCol:   DefaultImageEndCol,
		StartRow: DefaultImageStartRow,
		EndRow:   DefaultImageEndRow,
	}
}

// WithDefaults fills zero fields from DefaultImageConfig.
func (c ImageConfig) WithDefaults() ImageConfig {
	def := DefaultImageConfig()
	c.StartCol = strings.ToUpper(strings.TrimSpace(c.StartCol))
	c.EndCol = strings.ToUpper(strings.TrimSpace(c.EndCol))
	if c.StartCol == "" {
		c.StartCol = def.StartCol
	}
	if c.EndCol == "" {
		c.EndCol = def.EndCol
	}
	if c.StartRow <= 0 {
		c.StartRow = def.StartRow
	}
	if c.EndRow <= 0 {
		c.EndRow = def.EndRow
	}
	return c
}

func (c ImageConfig) Validate() error {
	if !columnPattern.MatchString(c.StartCol) {
		return fmt.Errorf("%w: invalid image start column %q", ErrValidation, c.StartCol)
	}
	if !columnPattern.MatchString(c.EndCol) {
		return fmt.Errorf("%w: invalid image end column %q", ErrValidation, c.EndCol)
	}
	if c.StartRow <= 0 || c.EndRow < c.StartRow {
		return fmt.Errorf("%w: invalid image rows %d..%d", ErrValidation, c.StartRow, c.EndRow)
	}
	return nil
}

// PrintArea renders the range as B4:H29.
func (c ImageConfig) PrintArea() string {
	return fmt.Sprintf("%s%d:%s%d", c.StartCol, c.StartRow, c.EndCol, c.EndRow)
}

// WebhookConfig configures one send batch.
type WebhookConfig struct {
	URL            string
	Timeout        time.Duration
	RetryCount     int
	SendDelay      time.Duration
	MessageContent string
}

const (
	MinWebhookTimeout = 5 * time.Second
	MaxWebhookTimeout = 120 * time.Second
	MaxRetryCount     = 5
)

func (c WebhookConfig) Validate() error {
	if c.Timeout < MinWebhookTimeout || c.Timeout > MaxWebhookTimeout {
		return fmt.Errorf("%w: webhook timeout must be between %s and %s", ErrValidation, MinWebhookTimeout, MaxWebhookTimeout)
	}
	if c.RetryCount < 0 || c.RetryCount > MaxRetryCount {
		return fmt.Errorf("%w: retry count must be between 0 and %d", ErrValidation, MaxRetryCount)
	}
	if c.SendDelay < 0 {
		return fmt.Errorf("%w: send delay must not be negative", ErrValidation)
	}
	return nil
}
