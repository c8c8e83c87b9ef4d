package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"github.com/kursadbilgin/payslip-dispatch/internal/service"
	"go.uber.org/zap"
)

type GenerationService interface {
	ProgressSource
	StartGeneration(ctx context.Context, req service.GenerationRequest) (string, error)
}

type GenerationHandler struct {
	service   GenerationService
	sessions  repository.ImportSessionRepository
	employees repository.EmployeeRepository
	settings  repository.SettingsRepository
	progress  progressRoutes
}

func NewGenerationHandler(
	svc GenerationService,
	sessions repository.ImportSessionRepository,
	employees repository.EmployeeRepository,
	settings repository.SettingsRepository,
	keepAlive time.Duration,
	logger *zap.Logger,
) (*GenerationHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("generation service is required")
	}
	if sessions == nil || employees == nil || settings == nil {
		return nil, fmt.Errorf("session, employee and settings repositories are required")
	}
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GenerationHandler{
		service:   svc,
		sessions:  sessions,
		employees: employees,
		settings:  settings,
		progress: progressRoutes{
			kind:      batch.KindGeneration,
			source:    svc,
			param:     "sessionId",
			keepAlive: keepAlive,
			logger:    logger,
		},
	}, nil
}

func RegisterGenerationRoutes(router fiber.Router, h *GenerationHandler) {
	v1 := router.Group("/v1")
	v1.Post("/sessions/:sessionId/images", h.StartGeneration)
	v1.Get("/sessions/:sessionId/images/progress", h.progress.Progress)
	v1.Get("/sessions/:sessionId/images/events", h.progress.Events)
	v1.Delete("/sessions/:sessionId/images", h.progress.Cleanup)
}

type startGenerationResponse struct {
	SessionID string `json:"sessionId"`
	Total     int    `json:"total"`
}

func (h *GenerationHandler) StartGeneration(c *fiber.Ctx) error {
	sessionID, err := parseID("sessionId", c.Params("sessionId"))
	if err != nil {
		return toHTTPError(err)
	}

	session, err := h.sessions.GetByID(c.Context(), sessionID)
	if err != nil {
		return toHTTPError(err)
	}
	employees, err := h.employees.ListBySession(c.Context(), session.ID)
	if err != nil {
		return fmt.Errorf("failed to list session employees: %w", err)
	}
	cfg, err := h.settings.GetImageConfig(c.Context())
	if err != nil {
		return fmt.Errorf("failed to load image config: %w", err)
	}

	key, err := h.service.StartGeneration(c.Context(), service.GenerationRequest{
		SessionID:  session.ID,
		SourcePath: session.FilePath,
		Employees:  employees,
		Config:     cfg,
	})
	if err != nil {
		return toHTTPError(err)
	}

	snap, _ := h.service.GetProgress(key)
	return c.Status(fiber.StatusAccepted).JSON(startGenerationResponse{
		SessionID: key,
		Total:     snap.Total,
	})
}
