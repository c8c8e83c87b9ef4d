package queue

import (
	"fmt"
	"strings"
	"time"
)

// BatchCompletedMessage summarizes a finished generation or send batch.
type BatchCompletedMessage struct {
	BatchID    string    `json:"batchId"`
	Kind       string    `json:"kind"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Unresolved int       `json:"unresolved"`
	Cancelled  bool      `json:"cancelled"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (m BatchCompletedMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if _, ok := routingKeys[m.Kind]; !ok {
		return fmt.Errorf("invalid batch kind %q", m.Kind)
	}
	if m.Total < 0 || m.Succeeded+m.Failed+m.Unresolved != m.Total {
		return fmt.Errorf("counts do not add up: total=%d succeeded=%d failed=%d unresolved=%d",
			m.Total, m.Succeeded, m.Failed, m.Unresolved)
	}
	return nil
}
