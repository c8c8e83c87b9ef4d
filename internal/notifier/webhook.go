package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultWebhookTimeout = 30 * time.Second
	defaultRetryDelay     = time.Second

	MessageNotConfigured = "webhook URL not configured"
)

type webhookRequest struct {
	Phone   string `json:"sdt"`
	Name    string `json:"ten"`
	Salary  int64  `json:"luong"`
	Image   string `json:"hinhanh"`
	Content string `json:"content"`
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WebhookNotifier posts salary slips to an automation webhook (n8n style).
type WebhookNotifier struct {
	client     *resty.Client
	endpoint   string
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewWebhookNotifier(cfg domain.WebhookConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	client := resty.New()
	client.SetRetryCount(0)

	return NewWebhookNotifierWithClient(cfg, client, logger)
}

func NewWebhookNotifierWithClient(cfg domain.WebhookConfig, client *resty.Client, logger *zap.Logger) (*WebhookNotifier, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint != "" {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("%w: invalid webhook url: %v", domain.ErrValidation, err)
		}
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	attempts := cfg.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	return &WebhookNotifier{
		client:     client,
		endpoint:   endpoint,
		timeout:    timeout,
		attempts:   attempts,
		retryDelay: defaultRetryDelay,
		logger:     logger,
		sleep:      sleepWithContext,
	}, nil
}

// NewFactory returns a Factory producing webhook notifiers.
func NewFactory(logger *zap.Logger) Factory {
	return func(cfg domain.WebhookConfig) (Notifier, error) {
		return NewWebhookNotifier(cfg, logger)
	}
}

// Send delivers msg, retrying transient failures with a linearly growing pause.
func (n *WebhookNotifier) Send(ctx context.Context, msg Message) (Result, error) {
	if n == nil || n.client == nil {
		return Result{}, errors.New("notifier is not initialized")
	}
	if n.endpoint == "" {
		return Result{Status: domain.SendStatusFailed, Message: MessageNotConfigured}, nil
	}

	body := webhookRequest{
		Phone:   msg.Phone,
		Name:    msg.Name,
		Salary:  msg.Salary,
		Image:   msg.ImageBase64,
		Content: msg.Content,
	}

	var lastErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		result, err := n.post(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == n.attempts {
			break
		}

		n.logger.Warn("webhook delivery attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", n.attempts),
			zap.Error(err),
		)
		if err := n.sleep(ctx, n.retryDelay*time.Duration(attempt)); err != nil {
			lastErr = &ProviderError{Message: "delivery cancelled", Cause: err}
			break
		}
	}

	return Result{Status: domain.SendStatusFailed, Message: failureMessage(lastErr)}, nil
}

func (n *WebhookNotifier) post(ctx context.Context, body webhookRequest) (Result, error) {
	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(n.endpoint)
	if err != nil {
		return Result{}, n.classifyTransportError(err)
	}
	if response == nil {
		return Result{}, &ProviderError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return Result{}, &ProviderError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", statusCode, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	return parseWebhookResponse(response.Body()), nil
}

func (n *WebhookNotifier) classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &ProviderError{Message: "delivery cancelled", Cause: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ProviderError{
			Message:   fmt.Sprintf("request timeout after %s", n.timeout),
			Transient: true,
			Cause:     err,
		}
	}

	return &ProviderError{
		Message:   fmt.Sprintf("request error: %v", err),
		Transient: true,
		Cause:     err,
	}
}

// parseWebhookResponse reads the optional {status, message} body. Bodies
// that are empty or not JSON objects count as success.
func parseWebhookResponse(raw []byte) Result {
	var parsed webhookResponse
	if len(strings.TrimSpace(string(raw))) == 0 || json.Unmarshal(raw, &parsed) != nil {
		return Result{Status: domain.SendStatusSuccess}
	}

	status := strings.ToLower(strings.TrimSpace(parsed.Status))
	if status == "" || status == domain.SendStatusSuccess.String() {
		return Result{Status: domain.SendStatusSuccess, Message: parsed.Message}
	}

	message := strings.TrimSpace(parsed.Message)
	if message == "" {
		message = fmt.Sprintf("webhook reported status %q", parsed.Status)
	}
	return Result{Status: domain.SendStatusFailed, Message: message}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
