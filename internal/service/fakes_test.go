package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/payslip-dispatch/internal/batch"
	"github.com/kursadbilgin/payslip-dispatch/internal/converter"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/kursadbilgin/payslip-dispatch/internal/notifier"
	"github.com/kursadbilgin/payslip-dispatch/internal/queue"
)

type imageStatusUpdate struct {
	id     string
	status domain.ImageStatus
	err    string
}

type savedImage struct {
	url    string
	salary *int64
}

type fakeEmployeeRepo struct {
	getByIDsFn          func(ctx context.Context, ids []string) ([]domain.Employee, error)
	updateImageStatusFn func(ctx context.Context, id string, status domain.ImageStatus, imageErr *string) error
	saveImageResultFn   func(ctx context.Context, id string, imageURL string, salary *int64) error

	mu      sync.Mutex
	updates []imageStatusUpdate
	saved   map[string]savedImage
}

func (f *fakeEmployeeRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Employee, error) {
	if f.getByIDsFn != nil {
		return f.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeEmployeeRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.Employee, error) {
	return nil, nil
}

func (f *fakeEmployeeRepo) UpdateImageStatus(ctx context.Context, id string, status domain.ImageStatus, imageErr *string) error {
	u := imageStatusUpdate{id: id, status: status}
	if imageErr != nil {
		u.err = *imageErr
	}
	f.mu.Lock()
	f.updates = append(f.updates, u)
	f.mu.Unlock()

	if f.updateImageStatusFn != nil {
		return f.updateImageStatusFn(ctx, id, status, imageErr)
	}
	return nil
}

func (f *fakeEmployeeRepo) SaveImageResult(ctx context.Context, id string, imageURL string, salary *int64) error {
	if f.saveImageResultFn != nil {
		if err := f.saveImageResultFn(ctx, id, imageURL, salary); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]savedImage)
	}
	f.saved[id] = savedImage{url: imageURL, salary: salary}
	return nil
}

func (f *fakeEmployeeRepo) lastUpdate(id string) (imageStatusUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].id == id {
			return f.updates[i], true
		}
	}
	return imageStatusUpdate{}, false
}

func (f *fakeEmployeeRepo) savedImage(id string) (savedImage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.saved[id]
	return s, ok
}

type fakeSendHistoryRepo struct {
	appendFn func(ctx context.Context, h *domain.SendHistory) error

	mu   sync.Mutex
	rows []domain.SendHistory
}

func (f *fakeSendHistoryRepo) Append(ctx context.Context, h *domain.SendHistory) error {
	if f.appendFn != nil {
		if err := f.appendFn(ctx, h); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.rows = append(f.rows, *h)
	f.mu.Unlock()
	return nil
}

func (f *fakeSendHistoryRepo) ListByEmployee(ctx context.Context, employeeID string) ([]domain.SendHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SendHistory
	for _, r := range f.rows {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSendHistoryRepo) all() []domain.SendHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SendHistory(nil), f.rows...)
}

type fakeConverter struct {
	convertFn func(ctx context.Context, sourcePath string, codes []string, cfg domain.ImageConfig, onResult func(converter.Outcome)) error
}

func (f *fakeConverter) ConvertBatch(ctx context.Context, sourcePath string, codes []string, cfg domain.ImageConfig, onResult func(converter.Outcome)) error {
	if f.convertFn != nil {
		return f.convertFn(ctx, sourcePath, codes, cfg, onResult)
	}
	return nil
}

type fakeNotifier struct {
	sendFn func(ctx context.Context, msg notifier.Message) (notifier.Result, error)

	mu    sync.Mutex
	calls []notifier.Message
}

func (f *fakeNotifier) Send(ctx context.Context, msg notifier.Message) (notifier.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return notifier.Result{Status: domain.SendStatusSuccess}, nil
}

func (f *fakeNotifier) sent() []notifier.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.Message(nil), f.calls...)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, destination string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, destination string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, destination string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, destination)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.BatchCompletedMessage) error

	mu   sync.Mutex
	msgs []queue.BatchCompletedMessage
}

func (f *fakePublisher) PublishBatchCompleted(ctx context.Context, msg queue.BatchCompletedMessage) error {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()

	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

func (f *fakePublisher) published() []queue.BatchCompletedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.BatchCompletedMessage(nil), f.msgs...)
}

// gate blocks the first caller until open is called.
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) {
	select {
	case <-g.ch:
	case <-ctx.Done():
	}
}

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

func collectEvents(t *testing.T, sub *batch.Subscription) []batch.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []batch.Event
	err := batch.Stream(ctx, sub, 0, func(ev batch.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v, events so far = %d", err, len(events))
	}
	return events
}

func statusEvents(events []batch.Event) []batch.Event {
	var out []batch.Event
	for _, ev := range events {
		if ev.Type == batch.EventStatus {
			out = append(out, ev)
		}
	}
	return out
}

func lastEvent(t *testing.T, events []batch.Event) batch.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	return events[len(events)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }
