package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is an unbounded, ordered event queue owned by one observer.
// Producers never block on it.
type Subscription struct {
	mu     sync.Mutex
	buf    *queue.Queue
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func newSubscription() *Subscription {
	return &Subscription{
		buf:   queue.New(),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.buf.Add(ev)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Len reports queued events not yet read.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Length()
}

// Next returns the next queued event. If nothing arrives within idle it
// returns a ping event; idle <= 0 waits indefinitely. Events queued before
// the subscription was closed are still delivered, after which Next
// returns ErrSubscriptionClosed.
func (s *Subscription) Next(ctx context.Context, idle time.Duration) (Event, error) {
	for {
		s.mu.Lock()
		if s.buf.Length() > 0 {
			ev := s.buf.Remove().(Event)
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Event{}, ErrSubscriptionClosed
		}

		var (
			timer   *time.Timer
			timeout <-chan time.Time
		)
		if idle > 0 {
			timer = time.NewTimer(idle)
			timeout = timer.C
		}

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return Event{}, ctx.Err()
		case <-timeout:
			return pingEvent(), nil
		}
		if timer != nil {
			timer.Stop()
		}
	}
}
