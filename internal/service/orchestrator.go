package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/kursadbilgin/payslip-dispatch/internal/observability"
	"github.com/kursadbilgin/payslip-dispatch/internal/queue"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

var ErrShuttingDown = errors.New("orchestrator is shutting down")

// tracker owns the batch registry and the background goroutines of one
// orchestrator. Both orchestrators share it for observation, cleanup and
// shutdown.
type tracker struct {
	kind      batch.Kind
	registry  *batch.Registry
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	subs   sync.Map

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newTracker(kind batch.Kind, publisher queue.Publisher, logger *zap.Logger) *tracker {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &tracker{
		kind:      kind,
		registry:  batch.NewRegistry(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// launch runs fn for st on its own goroutine. The caller has already
// registered st; it is removed again when the tracker is closed.
func (t *tracker) launch(st *batch.State, fn func(ctx context.Context, st *batch.State)) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.registry.Remove(st)
		return ErrShuttingDown
	}
	t.wg.Add(1)
	t.mu.Unlock()

	t.metrics.BatchStarted(t.kind.String())
	go func() {
		defer t.wg.Done()
		defer func() {
			t.metrics.BatchFinished(t.kind.String(), t.now().Sub(st.StartedAt()))
		}()
		fn(t.ctx, st)
	}()
	return nil
}

// live reports whether st may still mutate items.
func (t *tracker) live(st *batch.State) bool {
	return !st.Cancelled() && t.registry.IsCurrent(st)
}

// apply performs one transition and records the item metric. Transition
// errors are logged; they only occur on duplicate collaborator results.
func (t *tracker) apply(logger *zap.Logger, st *batch.State, c batch.Change) bool {
	if _, err := st.Apply(c); err != nil {
		logger.Warn("batch item transition rejected",
			zap.String("employeeId", c.ItemID),
			zap.String("status", c.Status.String()),
			zap.Error(err),
		)
		return false
	}
	if c.Status != t.kind.InFlightStatus() {
		t.metrics.IncBatchItem(t.kind.String(), c.Status.String())
	}
	return true
}

// finish emits complete for a current batch and discards a superseded one.
func (t *tracker) finish(logger *zap.Logger, st *batch.State) {
	if !t.registry.IsCurrent(st) {
		st.Discard()
		logger.Info("batch superseded, state discarded")
		return
	}

	ev := st.Finish()
	snap := *ev.Progress
	logger.Info("batch completed",
		zap.Int("total", snap.Total),
		zap.Int("completed", snap.Completed),
		zap.Int("failed", snap.Failed),
		zap.Int("unresolved", snap.InFlight+snap.Pending),
		zap.Bool("cancelled", st.Cancelled()),
	)

	msg := queue.BatchCompletedMessage{
		BatchID:    st.Key(),
		Kind:       t.kind.String(),
		Total:      snap.Total,
		Succeeded:  snap.Completed,
		Failed:     snap.Failed,
		Unresolved: snap.InFlight + snap.Pending,
		Cancelled:  st.Cancelled(),
		StartedAt:  st.StartedAt().UTC(),
		FinishedAt: t.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), publishTimeout)
	defer cancel()
	if err := t.publisher.PublishBatchCompleted(ctx, msg); err != nil {
		logger.Warn("failed to publish batch completion", zap.Error(err))
	}
}

func (t *tracker) progress(key string) (batch.Snapshot, bool) {
	st, ok := t.registry.Get(key)
	if !ok {
		return batch.Snapshot{}, false
	}
	return st.Snapshot(), true
}

func (t *tracker) subscribe(key string) (*batch.Subscription, error) {
	st, ok := t.registry.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s batch %s", domain.ErrNotFound, t.kind, key)
	}
	sub := st.Subscribe()
	t.subs.Store(sub, struct{}{})
	t.metrics.IncProgressSubscribers(t.kind.String())
	return sub, nil
}

func (t *tracker) unsubscribe(key string, sub *batch.Subscription) {
	if sub == nil {
		return
	}
	if st, ok := t.registry.Get(key); ok {
		st.Unsubscribe(sub)
	}
	if _, ok := t.subs.LoadAndDelete(sub); ok {
		t.metrics.DecProgressSubscribers(t.kind.String())
	}
}

// cleanup forgets a finished batch and closes its remaining subscribers.
func (t *tracker) cleanup(key string) error {
	st, ok := t.registry.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s batch %s", domain.ErrNotFound, t.kind, key)
	}
	if st.IsRunning() {
		return fmt.Errorf("%w: %s batch %s is still running", domain.ErrConflict, t.kind, key)
	}
	if t.registry.Remove(st) {
		st.Discard()
	}
	return nil
}

func (t *tracker) cancelAll() int {
	return len(t.registry.CancelAll())
}

// shutdown stops new batches, cancels the process context and every
// registered batch, then waits for the batch goroutines.
func (t *tracker) shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.registry.CancelAll()
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s batches: %w", t.kind, ctx.Err())
	}
}
