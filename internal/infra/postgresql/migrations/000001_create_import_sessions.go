package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createImportSessionsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_import_sessions",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.ImportSessionModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ImportSessionModel{})
		},
	}
}
