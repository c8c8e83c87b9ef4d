package repository

import (
	"time"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
)

// ImportSessionModel is the persistence model for import_sessions.
type ImportSessionModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	Filename   string    `gorm:"type:varchar(255);not null"`
	SheetName  string    `gorm:"type:varchar(100);not null"`
	FilePath   *string   `gorm:"type:varchar(500)"`
	ImportedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	TotalRows  int       `gorm:"not null;default:0"`
	Status     string    `gorm:"type:varchar(20);not null;default:active"`
}

func (ImportSessionModel) TableName() string {
	return "import_sessions"
}

// EmployeeModel is the persistence model for employees.
type EmployeeModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	SessionID      string             `gorm:"type:uuid;not null"`
	RowNumber      int                `gorm:"not null"`
	EmployeeCode   *string            `gorm:"type:varchar(50)"`
	Name           string             `gorm:"type:varchar(255);not null"`
	Phone          *string            `gorm:"type:varchar(20)"`
	Salary         *int64             `gorm:"type:bigint"`
	SalaryImageURL *string            `gorm:"type:text"`
	ImageStatus    domain.ImageStatus `gorm:"type:varchar(20);not null;default:pending"`
	ImageError     *string            `gorm:"type:text"`
	CreatedAt      time.Time
}

func (EmployeeModel) TableName() string {
	return "employees"
}

// SendHistoryModel is the persistence model for send_history.
type SendHistoryModel struct {
	ID           string            `gorm:"type:uuid;primaryKey"`
	EmployeeID   string            `gorm:"type:uuid;not null"`
	SentAt       time.Time         `gorm:"type:timestamptz;not null"`
	Status       domain.SendStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage *string           `gorm:"type:text"`
}

func (SendHistoryModel) TableName() string {
	return "send_history"
}

// AppSettingModel stores one JSON document per settings key.
type AppSettingModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Value     string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (AppSettingModel) TableName() string {
	return "app_settings"
}

func importSessionModelToDomain(m *ImportSessionModel) *domain.ImportSession {
	if m == nil {
		return nil
	}

	s := &domain.ImportSession{
		ID:         m.ID,
		Filename:   m.Filename,
		SheetName:  m.SheetName,
		ImportedAt: m.ImportedAt,
		TotalRows:  m.TotalRows,
		Status:     m.Status,
	}
	if m.FilePath != nil {
		s.FilePath = *m.FilePath
	}
	return s
}

func employeeModelToDomain(m *EmployeeModel) *domain.Employee {
	if m == nil {
		return nil
	}

	return &domain.Employee{
		ID:             m.ID,
		SessionID:      m.SessionID,
		RowNumber:      m.RowNumber,
		EmployeeCode:   m.EmployeeCode,
		Name:           m.Name,
		Phone:          m.Phone,
		Salary:         m.Salary,
		SalaryImageURL: m.SalaryImageURL,
		ImageStatus:    m.ImageStatus,
		ImageError:     m.ImageError,
		CreatedAt:      m.CreatedAt,
	}
}

func sendHistoryModelFromDomain(h *domain.SendHistory) *SendHistoryModel {
	if h == nil {
		return nil
	}

	return &SendHistoryModel{
		ID:           h.ID,
		EmployeeID:   h.EmployeeID,
		SentAt:       h.SentAt,
		Status:       h.Status,
		ErrorMessage: h.ErrorMessage,
	}
}

func sendHistoryModelToDomain(m *SendHistoryModel) *domain.SendHistory {
	if m == nil {
		return nil
	}

	return &domain.SendHistory{
		ID:           m.ID,
		EmployeeID:   m.EmployeeID,
		SentAt:       m.SentAt,
		Status:       m.Status,
		ErrorMessage: m.ErrorMessage,
	}
}
