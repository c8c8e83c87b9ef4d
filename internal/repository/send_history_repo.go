package repository

import (
	"context"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"gorm.io/gorm"
)

type SendHistoryRepository interface {
	Append(ctx context.Context, h *domain.SendHistory) error
	ListByEmployee(ctx context.Context, employeeID string) ([]domain.SendHistory, error)
}

type GormSendHistoryRepo struct {
	db *gorm.DB
}

func NewGormSendHistoryRepo(db *gorm.DB) *GormSendHistoryRepo {
	return &GormSendHistoryRepo{db: db}
}

func (r *GormSendHistoryRepo) Append(ctx context.Context, h *domain.SendHistory) error {
	model := sendHistoryModelFromDomain(h)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if h != nil {
		*h = *sendHistoryModelToDomain(model)
	}
	return nil
}

func (r *GormSendHistoryRepo) ListByEmployee(ctx context.Context, employeeID string) ([]domain.SendHistory, error) {
	var models []SendHistoryModel
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("sent_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	history := make([]domain.SendHistory, 0, len(models))
	for i := range models {
		history = append(history, *sendHistoryModelToDomain(&models[i]))
	}
	return history, nil
}
