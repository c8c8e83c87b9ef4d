package batch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrUnknownItem       = errors.New("unknown batch item")
	ErrInvalidTransition = errors.New("invalid item transition")
)

// Kind selects the status vocabulary of a batch.
type Kind string

const (
	KindGeneration Kind = "generation"
	KindSend       Kind = "send"
)

func (k Kind) String() string { return string(k) }

// InFlightStatus is the status of an item handed to a collaborator.
func (k Kind) InFlightStatus() ItemStatus {
	if k == KindSend {
		return StatusSending
	}
	return StatusProcessing
}

// DoneStatus is the successful terminal status of an item.
func (k Kind) DoneStatus() ItemStatus {
	if k == KindSend {
		return StatusSuccess
	}
	return StatusCompleted
}

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusSending    ItemStatus = "sending"
	StatusSuccess    ItemStatus = "success"
	StatusFailed     ItemStatus = "failed"
)

func (s ItemStatus) String() string { return string(s) }

// Item is the tracked state of one unit of work.
type Item struct {
	ID     string
	Label  string
	Status ItemStatus
	Error  string
}

// Change moves one item to a new status. A non-empty Label replaces the
// item's label before the event is built.
type Change struct {
	ItemID   string
	Label    string
	Status   ItemStatus
	Error    string
	HasImage bool
	Index    *int
}

// State tracks a single batch. Counters and items are written by the batch's
// own goroutine; the mutex only makes reads from observers consistent.
type State struct {
	key       string
	kind      Kind
	startedAt time.Time

	mu        sync.RWMutex
	order     []string
	items     map[string]*Item
	completed int
	failed    int
	inFlight  int
	running   bool
	subs      map[*Subscription]struct{}

	cancelled atomic.Bool
}

// NewState registers items as pending. Duplicate ids are tracked once.
func NewState(kind Kind, key string, items []Item, startedAt time.Time) *State {
	s := &State{
		key:       key,
		kind:      kind,
		startedAt: startedAt,
		items:     make(map[string]*Item, len(items)),
		subs:      make(map[*Subscription]struct{}),
		running:   true,
	}
	for _, it := range items {
		if _, ok := s.items[it.ID]; ok {
			continue
		}
		s.order = append(s.order, it.ID)
		s.items[it.ID] = &Item{ID: it.ID, Label: it.Label, Status: StatusPending}
	}
	return s
}

func (s *State) Key() string          { return s.key }
func (s *State) Kind() Kind           { return s.kind }
func (s *State) StartedAt() time.Time { return s.startedAt }

// Cancel flags the batch as superseded. It never clears.
func (s *State) Cancel() { s.cancelled.Store(true) }

func (s *State) Cancelled() bool { return s.cancelled.Load() }

func (s *State) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	total := len(s.order)
	return Snapshot{
		Kind:      s.kind,
		Total:     total,
		Completed: s.completed,
		Failed:    s.failed,
		InFlight:  s.inFlight,
		Pending:   total - s.completed - s.failed - s.inFlight,
		IsRunning: s.running,
	}
}

func (s *State) Item(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Items returns a copy of every item in registration order.
func (s *State) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// ItemsWithStatus returns ids of items currently in status, in registration order.
func (s *State) ItemsWithStatus(status ItemStatus) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		if s.items[id].Status == status {
			out = append(out, id)
		}
	}
	return out
}

func (s *State) allowed(from, to ItemStatus) bool {
	inFlight := s.kind.InFlightStatus()
	switch from {
	case StatusPending:
		return to == inFlight || to == StatusFailed
	case inFlight:
		return to == s.kind.DoneStatus() || to == StatusFailed
	}
	return false
}

// Apply performs a status transition, updates counters and fans the
// resulting status event out to every subscriber.
func (s *State) Apply(c Change) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[c.ItemID]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownItem, c.ItemID)
	}
	if !s.allowed(it.Status, c.Status) {
		return Event{}, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, c.ItemID, it.Status, c.Status)
	}

	if it.Status == s.kind.InFlightStatus() {
		s.inFlight--
	}
	switch c.Status {
	case s.kind.InFlightStatus():
		s.inFlight++
	case s.kind.DoneStatus():
		s.completed++
	case StatusFailed:
		s.failed++
	}
	it.Status = c.Status
	it.Error = c.Error
	if c.Label != "" {
		it.Label = c.Label
	}

	snap := s.snapshotLocked()
	ev := Event{
		Type:       EventStatus,
		EmployeeID: it.ID,
		Name:       it.Label,
		Status:     c.Status,
		Error:      c.Error,
		HasImage:   c.HasImage,
		Index:      c.Index,
		Progress:   &snap,
	}
	s.publishLocked(ev)
	return ev, nil
}

// Finish marks the batch as no longer running and emits the complete event.
func (s *State) Finish() Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	snap := s.snapshotLocked()
	ev := Event{Type: EventComplete, Progress: &snap}
	s.publishLocked(ev)
	return ev
}

// Discard stops the batch without a complete event and closes every subscriber.
func (s *State) Discard() {
	s.mu.Lock()
	s.running = false
	subs := s.subs
	s.subs = make(map[*Subscription]struct{})
	s.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

// Subscribe registers a new observer and queues an init snapshot for it.
func (s *State) Subscribe() *Subscription {
	sub := newSubscription()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	sub.push(Event{Type: EventInit, Progress: &snap})
	s.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe is idempotent.
func (s *State) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.close()
}

func (s *State) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *State) publishLocked(ev Event) {
	for sub := range s.subs {
		sub.push(ev)
	}
}
