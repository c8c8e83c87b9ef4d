package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"github.com/kursadbilgin/payslip-dispatch/internal/service"
	"go.uber.org/zap"
)

const maxSendBatchSize = 1000

type SendService interface {
	ProgressSource
	StartBatchSend(ctx context.Context, req service.SendRequest) (string, error)
}

type SendHandler struct {
	service  SendService
	settings repository.SettingsRepository
	history  repository.SendHistoryRepository
	defaults domain.WebhookConfig
	progress progressRoutes
}

// NewSendHandler builds the send endpoints. defaults fill webhook settings
// that are not stored in the database.
func NewSendHandler(
	svc SendService,
	settings repository.SettingsRepository,
	history repository.SendHistoryRepository,
	defaults domain.WebhookConfig,
	keepAlive time.Duration,
	logger *zap.Logger,
) (*SendHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("send service is required")
	}
	if settings == nil || history == nil {
		return nil, fmt.Errorf("settings and send history repositories are required")
	}
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SendHandler{
		service:  svc,
		settings: settings,
		history:  history,
		defaults: defaults,
		progress: progressRoutes{
			kind:      batch.KindSend,
			source:    svc,
			param:     "batchId",
			keepAlive: keepAlive,
			logger:    logger,
		},
	}, nil
}

func RegisterSendRoutes(router fiber.Router, h *SendHandler) {
	v1 := router.Group("/v1")
	v1.Post("/sends", h.StartBatchSend)
	v1.Get("/sends/:batchId/progress", h.progress.Progress)
	v1.Get("/sends/:batchId/events", h.progress.Events)
	v1.Delete("/sends/:batchId", h.progress.Cleanup)
	v1.Get("/employees/:employeeId/send-history", h.SendHistory)
}

type startSendRequest struct {
	BatchID     string   `json:"batchId"`
	EmployeeIDs []string `json:"employeeIds"`
}

type startSendResponse struct {
	BatchID string `json:"batchId"`
	Total   int    `json:"total"`
}

type sendHistoryResponse struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	SentAt       time.Time `json:"sentAt"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
}

func (h *SendHandler) StartBatchSend(c *fiber.Ctx) error {
	var req startSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.EmployeeIDs) == 0 {
		return toHTTPError(fmt.Errorf("%w: employeeIds is required", domain.ErrValidation))
	}
	if len(req.EmployeeIDs) > maxSendBatchSize {
		return toHTTPError(fmt.Errorf("%w: at most %d employees per batch", domain.ErrValidation, maxSendBatchSize))
	}

	employeeIDs, err := parseIDs("employeeIds", req.EmployeeIDs)
	if err != nil {
		return toHTTPError(err)
	}

	cfg, err := h.settings.GetWebhookConfig(c.Context(), h.defaults)
	if err != nil {
		return fmt.Errorf("failed to load webhook config: %w", err)
	}

	batchID, err := h.service.StartBatchSend(c.Context(), service.SendRequest{
		BatchID:     strings.TrimSpace(req.BatchID),
		EmployeeIDs: employeeIDs,
		Config:      cfg,
	})
	if err != nil {
		return toHTTPError(err)
	}

	snap, _ := h.service.GetProgress(batchID)
	return c.Status(fiber.StatusAccepted).JSON(startSendResponse{
		BatchID: batchID,
		Total:   snap.Total,
	})
}

func (h *SendHandler) SendHistory(c *fiber.Ctx) error {
	employeeID, err := parseID("employeeId", c.Params("employeeId"))
	if err != nil {
		return toHTTPError(err)
	}

	rows, err := h.history.ListByEmployee(c.Context(), employeeID)
	if err != nil {
		return toHTTPError(err)
	}

	out := make([]sendHistoryResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, sendHistoryResponse{
			ID:           r.ID,
			EmployeeID:   r.EmployeeID,
			SentAt:       r.SentAt,
			Status:       r.Status.String(),
			ErrorMessage: r.ErrorMessage,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": out})
}
