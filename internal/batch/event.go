package batch

import "encoding/json"

type EventType string

const (
	EventInit     EventType = "init"
	EventStatus   EventType = "status"
	EventComplete EventType = "complete"
	EventPing     EventType = "ping"
)

// Snapshot is a consistent view of the batch counters.
// Pending is always Total - Completed - Failed - InFlight.
type Snapshot struct {
	Kind      Kind
	Total     int
	Completed int
	Failed    int
	InFlight  int
	Pending   int
	IsRunning bool
}

type generationSnapshotJSON struct {
	Total      int  `json:"total"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Processing int  `json:"processing"`
	Pending    int  `json:"pending"`
	IsRunning  bool `json:"is_running"`
}

type sendSnapshotJSON struct {
	Total     int  `json:"total"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Sending   int  `json:"sending"`
	Pending   int  `json:"pending"`
	IsRunning bool `json:"is_running"`
}

// MarshalJSON renders the counters with the names observers of each kind expect.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.Kind == KindSend {
		return json.Marshal(sendSnapshotJSON{
			Total:     s.Total,
			Sent:      s.Completed,
			Failed:    s.Failed,
			Sending:   s.InFlight,
			Pending:   s.Pending,
			IsRunning: s.IsRunning,
		})
	}
	return json.Marshal(generationSnapshotJSON{
		Total:      s.Total,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Processing: s.InFlight,
		Pending:    s.Pending,
		IsRunning:  s.IsRunning,
	})
}

// EmptySnapshot is reported for batches that are not registered.
func EmptySnapshot(kind Kind) Snapshot {
	return Snapshot{Kind: kind}
}

// Event is an immutable progress notification delivered to subscribers.
type Event struct {
	Type       EventType  `json:"type"`
	EmployeeID string     `json:"employee_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Status     ItemStatus `json:"status,omitempty"`
	Error      string     `json:"error,omitempty"`
	HasImage   bool       `json:"has_image,omitempty"`
	Index      *int       `json:"index,omitempty"`
	Progress   *Snapshot  `json:"progress,omitempty"`
}

func pingEvent() Event {
	return Event{Type: EventPing}
}
