package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"gorm.io/gorm"
)

type ImportSessionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ImportSession, error)
}

type GormImportSessionRepo struct {
	db *gorm.DB
}

func NewGormImportSessionRepo(db *gorm.DB) *GormImportSessionRepo {
	return &GormImportSessionRepo{db: db}
}

func (r *GormImportSessionRepo) GetByID(ctx context.Context, id string) (*domain.ImportSession, error) {
	var model ImportSessionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return importSessionModelToDomain(&model), nil
}
