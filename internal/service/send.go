package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/kursadbilgin/payslip-dispatch/internal/notifier"
	"github.com/kursadbilgin/payslip-dispatch/internal/observability"
	"github.com/kursadbilgin/payslip-dispatch/internal/queue"
	"github.com/kursadbilgin/payslip-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	msgEmployeeNotFound = "employee not found"
	msgPhoneMissing     = "phone number is missing"
	msgImageMissing     = "salary image has not been generated"
)

// SendRequest describes one delivery batch.
type SendRequest struct {
	BatchID     string
	EmployeeIDs []string
	Config      domain.WebhookConfig
}

// SendOrchestrator delivers rendered salary slips one employee at a time,
// pausing Config.SendDelay between deliveries.
type SendOrchestrator struct {
	employees repository.EmployeeRepository
	history   repository.SendHistoryRepository
	notifiers notifier.Factory
	limiter   ratelimit.Limiter
	tracker   *tracker
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewSendOrchestrator(
	employees repository.EmployeeRepository,
	history repository.SendHistoryRepository,
	notifiers notifier.Factory,
	limiter ratelimit.Limiter,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*SendOrchestrator, error) {
	if employees == nil {
		return nil, fmt.Errorf("employee repository is required")
	}
	if history == nil {
		return nil, fmt.Errorf("send history repository is required")
	}
	if notifiers == nil {
		return nil, fmt.Errorf("notifier factory is required")
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SendOrchestrator{
		employees: employees,
		history:   history,
		notifiers: notifiers,
		limiter:   limiter,
		tracker:   newTracker(batch.KindSend, publisher, logger),
		logger:    logger,
		sleep:     sleepContext,
	}, nil
}

func (s *SendOrchestrator) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.tracker.metrics = metrics
}

// StartBatchSend registers a send batch and returns its id. A missing id is
// generated. Only setup failures are returned; delivery failures are
// reported per item.
func (s *SendOrchestrator) StartBatchSend(_ context.Context, req SendRequest) (string, error) {
	req.BatchID = strings.TrimSpace(req.BatchID)
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}
	if err := req.Config.Validate(); err != nil {
		return "", err
	}
	n, err := s.notifiers(req.Config)
	if err != nil {
		return "", fmt.Errorf("failed to build notifier: %w", err)
	}

	ids := uniqueIDs(req.EmployeeIDs)
	items := make([]batch.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, batch.Item{ID: id})
	}
	st := batch.NewState(batch.KindSend, req.BatchID, items, s.tracker.now())
	if !s.tracker.registry.Register(st) {
		return "", fmt.Errorf("%w: send batch %s is already running", domain.ErrConflict, req.BatchID)
	}

	if err := s.tracker.launch(st, func(ctx context.Context, st *batch.State) {
		s.run(ctx, st, ids, req.Config, n)
	}); err != nil {
		return "", err
	}

	s.logger.Info("send batch started",
		zap.String("batchId", req.BatchID),
		zap.Int("total", len(ids)),
	)
	return req.BatchID, nil
}

// CancelAllRunning flags every registered send batch as cancelled. Items not
// yet attempted stay pending.
func (s *SendOrchestrator) CancelAllRunning() int {
	return s.tracker.cancelAll()
}

func (s *SendOrchestrator) GetProgress(batchID string) (batch.Snapshot, bool) {
	return s.tracker.progress(batchID)
}

func (s *SendOrchestrator) Subscribe(batchID string) (*batch.Subscription, error) {
	return s.tracker.subscribe(batchID)
}

func (s *SendOrchestrator) Unsubscribe(batchID string, sub *batch.Subscription) {
	s.tracker.unsubscribe(batchID, sub)
}

func (s *SendOrchestrator) Cleanup(batchID string) error {
	return s.tracker.cleanup(batchID)
}

func (s *SendOrchestrator) Shutdown(ctx context.Context) error {
	return s.tracker.shutdown(ctx)
}

func (s *SendOrchestrator) run(
	ctx context.Context,
	st *batch.State,
	ids []string,
	cfg domain.WebhookConfig,
	n notifier.Notifier,
) {
	logger := observability.WithBatch(s.logger, batch.KindSend.String(), st.Key())
	defer s.tracker.finish(logger, st)

	if len(ids) == 0 {
		return
	}

	employees, err := s.employees.GetByIDs(ctx, ids)
	if err != nil {
		logger.Error("failed to load employees", zap.Error(err))
		reason := fmt.Sprintf("failed to load employees: %v", err)
		for i, id := range ids {
			s.tracker.apply(logger, st, batch.Change{ItemID: id, Status: batch.StatusFailed, Error: reason, Index: intPtr(i)})
		}
		return
	}
	byID := make(map[string]*domain.Employee, len(employees))
	for i := range employees {
		byID[employees[i].ID] = &employees[i]
	}

	destination := ratelimit.Destination(cfg.URL)
	last := len(ids) - 1
	for i, id := range ids {
		if ctx.Err() != nil || st.Cancelled() {
			logger.Info("send batch stopped before completion", zap.Int("remaining", len(ids)-i))
			return
		}

		emp, ok := byID[id]
		if !ok {
			s.tracker.apply(logger, st, batch.Change{ItemID: id, Status: batch.StatusFailed, Error: msgEmployeeNotFound, Index: intPtr(i)})
			continue
		}
		if reason := recipientProblem(emp); reason != "" {
			s.record(ctx, logger, id, domain.SendStatusFailed, reason)
			s.tracker.apply(logger, st, batch.Change{ItemID: id, Label: emp.Name, Status: batch.StatusFailed, Error: reason, Index: intPtr(i)})
			continue
		}

		s.tracker.apply(logger, st, batch.Change{ItemID: id, Label: emp.Name, Status: batch.StatusSending, Index: intPtr(i)})
		res := s.deliver(ctx, logger, n, destination, emp, cfg.MessageContent)
		change := batch.Change{ItemID: id, Status: batch.StatusSuccess, Index: intPtr(i)}
		if !res.Succeeded() {
			change.Status = batch.StatusFailed
			change.Error = res.Message
		}
		s.record(ctx, logger, id, res.Status, change.Error)
		s.tracker.apply(logger, st, change)

		if i < last && cfg.SendDelay > 0 {
			if err := s.sleep(ctx, cfg.SendDelay); err != nil {
				logger.Info("send delay interrupted", zap.Error(err))
				return
			}
		}
	}
}

// deliver performs one notifier call. Errors become failed results.
func (s *SendOrchestrator) deliver(
	ctx context.Context,
	logger *zap.Logger,
	n notifier.Notifier,
	destination string,
	emp *domain.Employee,
	content string,
) notifier.Result {
	if err := s.limiter.Wait(ctx, destination); err != nil {
		return notifier.Result{Status: domain.SendStatusFailed, Message: fmt.Sprintf("rate limiter wait failed: %v", err)}
	}

	start := s.tracker.now()
	res, err := n.Send(ctx, notifier.Message{
		Phone:       emp.PhoneNumber(),
		Name:        emp.Name,
		Salary:      emp.SalaryAmount(),
		ImageBase64: emp.ImageBase64(),
		Content:     content,
	})
	if err != nil {
		logger.Warn("notifier returned error",
			zap.String("employeeId", emp.ID),
			zap.Error(err),
		)
		res = notifier.Result{Status: domain.SendStatusFailed, Message: err.Error()}
	}
	if res.Status == "" {
		res.Status = domain.SendStatusFailed
	}
	s.tracker.metrics.ObserveNotificationSendDuration(res.Status.String(), s.tracker.now().Sub(start))
	return res
}

// record appends a send history row; failures are logged only.
func (s *SendOrchestrator) record(ctx context.Context, logger *zap.Logger, employeeID string, status domain.SendStatus, message string) {
	h := &domain.SendHistory{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		SentAt:     s.tracker.now().UTC(),
		Status:     status,
	}
	if message != "" {
		msg := message
		h.ErrorMessage = &msg
	}
	if err := s.history.Append(ctx, h); err != nil {
		logger.Error("failed to append send history",
			zap.String("employeeId", employeeID),
			zap.Error(err),
		)
	}
}

func recipientProblem(emp *domain.Employee) string {
	if emp.PhoneNumber() == "" {
		return msgPhoneMissing
	}
	if emp.ImageBase64() == "" {
		return msgImageMissing
	}
	return ""
}

func uniqueIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func intPtr(v int) *int { return &v }

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
