package domain

import (
	"fmt"
	"strings"
	"time"
)

// ImageStatus is the salary-slip rendering state persisted on an employee row.
type ImageStatus string

const (
	ImageStatusPending    ImageStatus = "pending"
	ImageStatusProcessing ImageStatus = "processing"
	ImageStatusCompleted  ImageStatus = "completed"
	ImageStatusFailed     ImageStatus = "failed"
)

func (s ImageStatus) String() string { return string(s) }

func (s ImageStatus) IsValid() bool {
	switch s {
	case ImageStatusPending, ImageStatusProcessing, ImageStatusCompleted, ImageStatusFailed:
		return true
	}
	return false
}

func ParseImageStatusFromString(s string) (ImageStatus, error) {
	st := ImageStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid image status %q", ErrValidation, s)
	}
	return st, nil
}

// ImageDataURLPrefix prefixes rendered slips stored in SalaryImageURL.
const ImageDataURLPrefix = "data:image/png;base64,"

// Employee is one roster row of an import session.
type Employee struct {
	ID             string
	SessionID      string
	RowNumber      int
	EmployeeCode   *string
	Name           string
	Phone          *string
	Salary         *int64
	SalaryImageURL *string
	ImageStatus    ImageStatus
	ImageError     *string
	CreatedAt      time.Time
}

// Code returns the trimmed employee code, or "" when absent.
func (e *Employee) Code() string {
	if e == nil || e.EmployeeCode == nil {
		return ""
	}
	return strings.TrimSpace(*e.EmployeeCode)
}

// PhoneNumber returns the trimmed phone, or "" when absent.
func (e *Employee) PhoneNumber() string {
	if e == nil || e.Phone == nil {
		return ""
	}
	return strings.TrimSpace(*e.Phone)
}

// ImageBase64 returns the rendered slip without its data URL prefix.
func (e *Employee) ImageBase64() string {
	if e == nil || e.SalaryImageURL == nil {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(*e.SalaryImageURL), ImageDataURLPrefix)
}

func (e *Employee) SalaryAmount() int64 {
	if e == nil || e.Salary == nil {
		return 0
	}
	return *e.Salary
}
