package batch

import "sync"

// Registry holds the current batch per key. Registration and supersession
// run under one lock so concurrent starts cannot both become current.
type Registry struct {
	mu      sync.Mutex
	batches map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*State)}
}

func (r *Registry) Get(key string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.batches[key]
	return s, ok
}

// IsCurrent reports whether s is still the registered batch for its key.
func (r *Registry) IsCurrent(s *State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[s.Key()] == s
}

// Supersede cancels every registered batch and registers s as current for
// its key. It returns the batches that were cancelled.
func (r *Registry) Supersede(s *State) []*State {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := r.cancelAllLocked()
	r.batches[s.Key()] = s
	return cancelled
}

// Register adds s unless a running batch already owns its key.
func (r *Registry) Register(s *State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.batches[s.Key()]; ok && cur.IsRunning() {
		return false
	}
	r.batches[s.Key()] = s
	return true
}

// CancelAll flags every registered batch as cancelled.
func (r *Registry) CancelAll() []*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelAllLocked()
}

func (r *Registry) cancelAllLocked() []*State {
	out := make([]*State, 0, len(r.batches))
	for _, s := range r.batches {
		if s.IsRunning() && !s.Cancelled() {
			out = append(out, s)
		}
		s.Cancel()
	}
	return out
}

// Remove deletes s if it is still current for its key.
func (r *Registry) Remove(s *State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batches[s.Key()] != s {
		return false
	}
	delete(r.batches, s.Key())
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}
