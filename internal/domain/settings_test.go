package domain

import (
	"errors"
	"testing"
	"time"
)

func TestImageConfigWithDefaults(t *testing.T) {
	t.Parallel()

	got := ImageConfig{StartCol: " c ", EndRow: 40}.WithDefaults()
	want := ImageConfig{StartCol: "C", EndCol: DefaultImageEndCol, StartRow: DefaultImageStartRow, EndRow: 40}
	if got != want {
		t.Fatalf("WithDefaults() = %+v, want %+v", got, want)
	}
	if got.PrintArea() != "C4:H40" {
		t.Fatalf("PrintArea() = %q, want C4:H40", got.PrintArea())
	}
}

func TestImageConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ImageConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultImageConfig()},
		{name: "lowercase column", cfg: ImageConfig{StartCol: "b", EndCol: "H", StartRow: 1, EndRow: 2}, wantErr: true},
		{name: "inverted rows", cfg: ImageConfig{StartCol: "B", EndCol: "H", StartRow: 10, EndRow: 2}, wantErr: true},
		{name: "zero start row", cfg: ImageConfig{StartCol: "B", EndCol: "H", EndRow: 2}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestWebhookConfigValidate(t *testing.T) {
	t.Parallel()

	valid := WebhookConfig{Timeout: 30 * time.Second, RetryCount: 3, SendDelay: 3 * time.Second}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tooShort := valid
	tooShort.Timeout = time.Second
	if err := tooShort.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	tooManyRetries := valid
	tooManyRetries.RetryCount = MaxRetryCount + 1
	if err := tooManyRetries.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
