package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/converter"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/kursadbilgin/payslip-dispatch/internal/observability"
	"github.com/kursadbilgin/payslip-dispatch/internal/queue"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	msgCodeRequired       = "Employee code is required"
	msgConversionFailed   = "image generation failed"
	msgNoConversionResult = "no conversion result returned"
	msgGenerationCanceled = "generation cancelled"
)

// GenerationRequest describes one image generation batch for a session.
type GenerationRequest struct {
	SessionID  string
	SourcePath string
	Employees  []domain.Employee
	Config     domain.ImageConfig
}

// GenerationOrchestrator renders salary slip images for a session in the
// background. Conversions run one at a time.
//
// Starting a batch for a session replaces that session's running batch: the
// old batch drops its remaining results silently and emits nothing further.
// Running batches of other sessions are cancelled instead. They stay current
// for their own session, so their unconverted items are recorded as failed
// with "generation cancelled" and their subscribers still receive complete.
type GenerationOrchestrator struct {
	employees repository.EmployeeRepository
	converter converter.Converter
	worker    *semaphore.Weighted
	tracker   *tracker
	logger    *zap.Logger
}

func NewGenerationOrchestrator(
	employees repository.EmployeeRepository,
	conv converter.Converter,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*GenerationOrchestrator, error) {
	if employees == nil {
		return nil, fmt.Errorf("employee repository is required")
	}
	if conv == nil {
		return nil, fmt.Errorf("converter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GenerationOrchestrator{
		employees: employees,
		converter: conv,
		worker:    semaphore.NewWeighted(1),
		tracker:   newTracker(batch.KindGeneration, publisher, logger),
		logger:    logger,
	}, nil
}

func (g *GenerationOrchestrator) SetMetrics(metrics *observability.Metrics) {
	if g == nil {
		return
	}
	g.tracker.metrics = metrics
}

// StartGeneration registers a batch keyed by the session id and returns the
// key. Work continues after the call returns.
func (g *GenerationOrchestrator) StartGeneration(_ context.Context, req GenerationRequest) (string, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		return "", fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	req.Employees = uniqueEmployees(req.Employees)
	if strings.TrimSpace(req.SourcePath) == "" && hasCodes(req.Employees) {
		return "", fmt.Errorf("%w: source file is required", domain.ErrValidation)
	}
	req.Config = req.Config.WithDefaults()
	if err := req.Config.Validate(); err != nil {
		return "", err
	}

	items := make([]batch.Item, 0, len(req.Employees))
	for _, e := range req.Employees {
		items = append(items, batch.Item{ID: e.ID, Label: e.Name})
	}
	st := batch.NewState(batch.KindGeneration, req.SessionID, items, g.tracker.now())

	superseded := g.tracker.registry.Supersede(st)
	if err := g.tracker.launch(st, func(ctx context.Context, st *batch.State) {
		g.run(ctx, st, req)
	}); err != nil {
		return "", err
	}

	g.logger.Info("generation batch started",
		zap.String("sessionId", req.SessionID),
		zap.Int("total", len(items)),
		zap.Int("superseded", len(superseded)),
	)
	return req.SessionID, nil
}

// CancelAllRunning flags every registered generation batch as cancelled.
func (g *GenerationOrchestrator) CancelAllRunning() int {
	return g.tracker.cancelAll()
}

func (g *GenerationOrchestrator) GetProgress(sessionID string) (batch.Snapshot, bool) {
	return g.tracker.progress(sessionID)
}

func (g *GenerationOrchestrator) Subscribe(sessionID string) (*batch.Subscription, error) {
	return g.tracker.subscribe(sessionID)
}

func (g *GenerationOrchestrator) Unsubscribe(sessionID string, sub *batch.Subscription) {
	g.tracker.unsubscribe(sessionID, sub)
}

func (g *GenerationOrchestrator) Cleanup(sessionID string) error {
	return g.tracker.cleanup(sessionID)
}

func (g *GenerationOrchestrator) Shutdown(ctx context.Context) error {
	return g.tracker.shutdown(ctx)
}

func (g *GenerationOrchestrator) run(ctx context.Context, st *batch.State, req GenerationRequest) {
	logger := observability.WithBatch(g.logger, batch.KindGeneration.String(), st.Key())
	defer g.tracker.finish(logger, st)

	if !g.tracker.live(st) {
		return
	}

	idsByCode := make(map[string][]string)
	codes := make([]string, 0, len(req.Employees))
	for _, e := range req.Employees {
		code := e.Code()
		if code == "" {
			g.fail(ctx, logger, st, e.ID, msgCodeRequired)
			continue
		}
		if _, seen := idsByCode[code]; !seen {
			codes = append(codes, code)
		}
		idsByCode[code] = append(idsByCode[code], e.ID)
	}
	if len(codes) == 0 {
		return
	}

	var convErr error
	if g.markProcessing(ctx, logger, st, codes, idsByCode) {
		convErr = g.convert(ctx, logger, st, req, codes, idsByCode)
	}

	leftover := st.ItemsWithStatus(batch.StatusProcessing)
	if len(leftover) == 0 {
		return
	}
	var reason string
	switch {
	case !g.tracker.registry.IsCurrent(st):
		return
	case st.Cancelled():
		reason = msgGenerationCanceled
	case convErr != nil:
		reason = convErr.Error()
	default:
		reason = msgNoConversionResult
	}
	for _, id := range leftover {
		g.fail(ctx, logger, st, id, reason)
	}
}

// markProcessing moves every eligible employee to processing. It reports
// false when the batch was cancelled part way.
func (g *GenerationOrchestrator) markProcessing(
	ctx context.Context,
	logger *zap.Logger,
	st *batch.State,
	codes []string,
	idsByCode map[string][]string,
) bool {
	for _, code := range codes {
		for _, id := range idsByCode[code] {
			if !g.tracker.live(st) {
				return false
			}
			if err := g.employees.UpdateImageStatus(ctx, id, domain.ImageStatusProcessing, nil); err != nil {
				logger.Error("failed to persist image status",
					zap.String("employeeId", id),
					zap.Error(err),
				)
			}
			g.tracker.apply(logger, st, batch.Change{ItemID: id, Status: batch.StatusProcessing})
		}
	}
	return true
}

// convert runs the converter on the single worker and applies its streamed
// outcomes on the calling goroutine.
func (g *GenerationOrchestrator) convert(
	ctx context.Context,
	logger *zap.Logger,
	st *batch.State,
	req GenerationRequest,
	codes []string,
	idsByCode map[string][]string,
) error {
	if err := g.worker.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for converter: %w", err)
	}
	if !g.tracker.live(st) {
		g.worker.Release(1)
		return nil
	}

	results := make(chan converter.Outcome, len(codes))
	done := make(chan error, 1)
	go func() {
		defer g.worker.Release(1)
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("converter panic: %v", r)
			}
			close(results)
			done <- err
		}()
		err = g.converter.ConvertBatch(ctx, req.SourcePath, codes, req.Config, func(o converter.Outcome) {
			results <- o
		})
	}()

	for outcome := range results {
		g.applyOutcome(ctx, logger, st, idsByCode, outcome)
	}

	err := <-done
	if err != nil {
		logger.Error("conversion batch failed", zap.Error(err))
	}
	return err
}

func (g *GenerationOrchestrator) applyOutcome(
	ctx context.Context,
	logger *zap.Logger,
	st *batch.State,
	idsByCode map[string][]string,
	o converter.Outcome,
) {
	if !g.tracker.live(st) {
		logger.Debug("dropping conversion result of cancelled batch", zap.String("employeeCode", o.Code))
		return
	}
	ids, ok := idsByCode[strings.TrimSpace(o.Code)]
	if !ok {
		logger.Warn("conversion result for unknown employee code", zap.String("employeeCode", o.Code))
		return
	}

	for _, id := range ids {
		if it, ok := st.Item(id); !ok || it.Status != batch.StatusProcessing {
			continue
		}
		if !o.Success {
			reason := strings.TrimSpace(o.Error)
			if reason == "" {
				reason = msgConversionFailed
			}
			g.fail(ctx, logger, st, id, reason)
			continue
		}

		if err := g.employees.SaveImageResult(ctx, id, domain.ImageDataURLPrefix+o.Image, o.Salary); err != nil {
			logger.Error("failed to persist image result",
				zap.String("employeeId", id),
				zap.Error(err),
			)
			g.fail(ctx, logger, st, id, fmt.Sprintf("failed to save image: %v", err))
			continue
		}
		g.tracker.apply(logger, st, batch.Change{ItemID: id, Status: batch.StatusCompleted, HasImage: true})
	}
}

// fail persists and publishes a failed item.
func (g *GenerationOrchestrator) fail(ctx context.Context, logger *zap.Logger, st *batch.State, id string, reason string) {
	msg := reason
	if err := g.employees.UpdateImageStatus(ctx, id, domain.ImageStatusFailed, &msg); err != nil {
		logger.Error("failed to persist image status",
			zap.String("employeeId", id),
			zap.Error(err),
		)
	}
	g.tracker.apply(logger, st, batch.Change{ItemID: id, Status: batch.StatusFailed, Error: reason})
}

func uniqueEmployees(in []domain.Employee) []domain.Employee {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Employee, 0, len(in))
	for _, e := range in {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func hasCodes(employees []domain.Employee) bool {
	for i := range employees {
		if employees[i].Code() != "" {
			return true
		}
	}
	return false
}
