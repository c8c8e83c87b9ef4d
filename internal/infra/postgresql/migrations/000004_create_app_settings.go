package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createAppSettingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_app_settings",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.AppSettingModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AppSettingModel{})
		},
	}
}
