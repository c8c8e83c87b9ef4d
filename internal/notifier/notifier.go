package notifier

import (
	"context"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
)

// Message is one salary slip delivery.
type Message struct {
	Phone       string
	Name        string
	Salary      int64
	ImageBase64 string
	Content     string
}

// Result is the delivery outcome after the notifier's own retries.
type Result struct {
	Status  domain.SendStatus
	Message string
}

func (r Result) Succeeded() bool {
	return r.Status == domain.SendStatusSuccess
}

// Notifier is the outbound delivery port. Delivery failures are reported
// through Result; the error return is reserved for misuse.
type Notifier interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// Factory builds a notifier for one send batch.
type Factory func(cfg domain.WebhookConfig) (Notifier, error)
