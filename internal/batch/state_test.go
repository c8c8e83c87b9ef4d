package batch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newGenerationState(ids ...string) *State {
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, Item{ID: id, Label: "name-" + id})
	}
	return NewState(KindGeneration, "session-1", items, time.Unix(0, 0))
}

func assertInvariant(t *testing.T, snap Snapshot) {
	t.Helper()
	if snap.Pending != snap.Total-snap.Completed-snap.Failed-snap.InFlight {
		t.Fatalf("snapshot invariant broken: %+v", snap)
	}
	if snap.Pending < 0 || snap.InFlight < 0 {
		t.Fatalf("negative counters: %+v", snap)
	}
}

func TestStateApplyKeepsCountersConsistent(t *testing.T) {
	t.Parallel()

	s := newGenerationState("a", "b", "c")
	steps := []Change{
		{ItemID: "a", Status: StatusFailed, Error: "Employee code is required"},
		{ItemID: "b", Status: StatusProcessing},
		{ItemID: "c", Status: StatusProcessing},
		{ItemID: "b", Status: StatusCompleted, HasImage: true},
		{ItemID: "c", Status: StatusFailed, Error: "render failed"},
	}

	for _, c := range steps {
		ev, err := s.Apply(c)
		if err != nil {
			t.Fatalf("Apply(%+v) unexpected error = %v", c, err)
		}
		if ev.Type != EventStatus || ev.Status != c.Status || ev.EmployeeID != c.ItemID {
			t.Fatalf("Apply(%+v) event = %+v", c, ev)
		}
		assertInvariant(t, *ev.Progress)
	}

	snap := s.Snapshot()
	want := Snapshot{Kind: KindGeneration, Total: 3, Completed: 1, Failed: 2, IsRunning: true}
	if snap != want {
		t.Fatalf("Snapshot() = %+v, want %+v", snap, want)
	}

	item, ok := s.Item("c")
	if !ok || item.Error != "render failed" || item.Label != "name-c" {
		t.Fatalf("Item(c) = %+v, %v", item, ok)
	}
}

func TestStateRejectsBackwardTransitions(t *testing.T) {
	t.Parallel()

	s := newGenerationState("a")
	if _, err := s.Apply(Change{ItemID: "a", Status: StatusCompleted}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> completed error = %v, want ErrInvalidTransition", err)
	}
	if _, err := s.Apply(Change{ItemID: "a", Status: StatusProcessing}); err != nil {
		t.Fatalf("pending -> processing unexpected error = %v", err)
	}
	if _, err := s.Apply(Change{ItemID: "a", Status: StatusCompleted}); err != nil {
		t.Fatalf("processing -> completed unexpected error = %v", err)
	}
	if _, err := s.Apply(Change{ItemID: "a", Status: StatusFailed}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed -> failed error = %v, want ErrInvalidTransition", err)
	}
	if _, err := s.Apply(Change{ItemID: "missing", Status: StatusFailed}); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("unknown item error = %v, want ErrUnknownItem", err)
	}
	if _, err := s.Apply(Change{ItemID: "a", Status: StatusSending}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("send status on generation batch error = %v, want ErrInvalidTransition", err)
	}
}

func TestStateDeduplicatesItems(t *testing.T) {
	t.Parallel()

	s := newGenerationState("a", "a", "b")
	if got := s.Snapshot().Total; got != 2 {
		t.Fatalf("Total = %d, want 2", got)
	}
	if got := len(s.Items()); got != 2 {
		t.Fatalf("len(Items()) = %d, want 2", got)
	}
}

func TestStateFinishAndCancel(t *testing.T) {
	t.Parallel()

	s := newGenerationState()
	if !s.IsRunning() {
		t.Fatal("new state should be running")
	}
	ev := s.Finish()
	if ev.Type != EventComplete || ev.Progress.IsRunning {
		t.Fatalf("Finish() event = %+v", ev)
	}
	if s.IsRunning() {
		t.Fatal("state should not run after Finish")
	}

	s.Cancel()
	s.Cancel()
	if !s.Cancelled() {
		t.Fatal("Cancelled() = false after Cancel")
	}
}

func TestSnapshotJSONUsesKindVocabulary(t *testing.T) {
	t.Parallel()

	gen, err := json.Marshal(Snapshot{Kind: KindGeneration, Total: 3, Completed: 1, InFlight: 1, Pending: 1, IsRunning: true})
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}
	if string(gen) != `{"total":3,"completed":1,"failed":0,"processing":1,"pending":1,"is_running":true}` {
		t.Fatalf("generation snapshot json = %s", gen)
	}

	send, err := json.Marshal(Snapshot{Kind: KindSend, Total: 3, Completed: 2, Failed: 1})
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}
	if string(send) != `{"total":3,"sent":2,"failed":1,"sending":0,"pending":0,"is_running":false}` {
		t.Fatalf("send snapshot json = %s", send)
	}
}

func TestEventJSONOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	idx := 0
	snap := Snapshot{Kind: KindSend, Total: 1, InFlight: 1, IsRunning: true}
	raw, err := json.Marshal(Event{Type: EventStatus, EmployeeID: "e1", Name: "An", Status: StatusSending, Index: &idx, Progress: &snap})
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}
	want := `{"type":"status","employee_id":"e1","name":"An","status":"sending","index":0,"progress":{"total":1,"sent":0,"failed":0,"sending":1,"pending":0,"is_running":true}}`
	if string(raw) != want {
		t.Fatalf("event json = %s, want %s", raw, want)
	}

	ping, _ := json.Marshal(pingEvent())
	if string(ping) != `{"type":"ping"}` {
		t.Fatalf("ping json = %s", ping)
	}
}
