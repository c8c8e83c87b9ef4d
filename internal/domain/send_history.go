package domain

import (
	"fmt"
	"strings"
	"time"
)

// SendStatus is the outcome recorded for one delivery attempt.
type SendStatus string

const (
	SendStatusPending SendStatus = "pending"
	SendStatusSending SendStatus = "sending"
	SendStatusSuccess SendStatus = "success"
	SendStatusFailed  SendStatus = "failed"
)

func (s SendStatus) String() string { return string(s) }

func (s SendStatus) IsValid() bool {
	switch s {
	case SendStatusPending, SendStatusSending, SendStatusSuccess, SendStatusFailed:
		return true
	}
	return false
}

func ParseSendStatusFromString(s string) (SendStatus, error) {
	st := SendStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid send status %q", ErrValidation, s)
	}
	return st, nil
}

// SendHistory records a single notification attempt for an employee.
type SendHistory struct {
	ID           string
	EmployeeID   string
	SentAt       time.Time
	Status       SendStatus
	ErrorMessage *string
}
