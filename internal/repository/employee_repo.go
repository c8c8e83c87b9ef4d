package repository

import (
	"context"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"gorm.io/gorm"
)

type EmployeeRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.Employee, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Employee, error)
	UpdateImageStatus(ctx context.Context, id string, status domain.ImageStatus, imageErr *string) error
	SaveImageResult(ctx context.Context, id string, imageURL string, salary *int64) error
}

type GormEmployeeRepo struct {
	db *gorm.DB
}

func NewGormEmployeeRepo(db *gorm.DB) *GormEmployeeRepo {
	return &GormEmployeeRepo{db: db}
}

func (r *GormEmployeeRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []EmployeeModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	employees := make([]domain.Employee, 0, len(models))
	for i := range models {
		employees = append(employees, *employeeModelToDomain(&models[i]))
	}
	return employees, nil
}

func (r *GormEmployeeRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.Employee, error) {
	var models []EmployeeModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("row_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	employees := make([]domain.Employee, 0, len(models))
	for i := range models {
		employees = append(employees, *employeeModelToDomain(&models[i]))
	}
	return employees, nil
}

func (r *GormEmployeeRepo) UpdateImageStatus(ctx context.Context, id string, status domain.ImageStatus, imageErr *string) error {
	result := r.db.WithContext(ctx).
		Model(&EmployeeModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"image_status": status,
			"image_error":  imageErr,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveImageResult stores a rendered slip and marks the row completed. The
// salary column is only overwritten when a value was extracted.
func (r *GormEmployeeRepo) SaveImageResult(ctx context.Context, id string, imageURL string, salary *int64) error {
	values := map[string]any{
		"salary_image_url": imageURL,
		"image_status":     domain.ImageStatusCompleted,
		"image_error":      nil,
	}
	if salary != nil {
		values["salary"] = *salary
	}

	result := r.db.WithContext(ctx).
		Model(&EmployeeModel{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
