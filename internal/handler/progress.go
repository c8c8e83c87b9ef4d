package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/kursadbilgin/payslip-dispatch/internal/observability"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultKeepAlive = 30 * time.Second

// ProgressSource is the observation side of an orchestrator.
type ProgressSource interface {
	GetProgress(key string) (batch.Snapshot, bool)
	Subscribe(key string) (*batch.Subscription, error)
	Unsubscribe(key string, sub *batch.Subscription)
	Cleanup(key string) error
}

// progressRoutes serves snapshot, event stream and cleanup endpoints for one
// batch kind.
type progressRoutes struct {
	kind      batch.Kind
	source    ProgressSource
	param     string
	keepAlive time.Duration
	logger    *zap.Logger
}

func (p progressRoutes) key(c *fiber.Ctx) (string, error) {
	key := strings.TrimSpace(c.Params(p.param))
	if key == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, p.param)
	}
	return key, nil
}

// Progress returns the current snapshot, or an empty one for unknown batches.
func (p progressRoutes) Progress(c *fiber.Ctx) error {
	key, err := p.key(c)
	if err != nil {
		return toHTTPError(err)
	}

	snap, ok := p.source.GetProgress(key)
	if !ok {
		snap = batch.EmptySnapshot(p.kind)
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

// Events streams progress as server-sent events until the batch completes or
// the client goes away.
func (p progressRoutes) Events(c *fiber.Ctx) error {
	key, err := p.key(c)
	if err != nil {
		return toHTTPError(err)
	}

	sub, err := p.source.Subscribe(key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return toHTTPError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := observability.WithBatch(p.logger, p.kind.String(), key)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if sub == nil {
			empty := batch.EmptySnapshot(p.kind)
			_ = writeEvent(w, batch.Event{Type: batch.EventInit, Progress: &empty})
			return
		}
		defer p.source.Unsubscribe(key, sub)

		err := batch.Stream(context.Background(), sub, p.keepAlive, func(ev batch.Event) error {
			return writeEvent(w, ev)
		})
		if err != nil {
			logger.Debug("progress stream closed", zap.Error(err))
		}
	}))
	return nil
}

// Cleanup forgets a finished batch.
func (p progressRoutes) Cleanup(c *fiber.Ctx) error {
	key, err := p.key(c)
	if err != nil {
		return toHTTPError(err)
	}
	if err := p.source.Cleanup(key); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeEvent(w *bufio.Writer, ev batch.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
