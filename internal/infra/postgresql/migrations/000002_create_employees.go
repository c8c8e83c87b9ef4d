package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createEmployeesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_employees",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmployeeModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE employees ADD CONSTRAINT fk_employees_session FOREIGN KEY (session_id) REFERENCES import_sessions (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_employees_session_id ON employees (session_id)`,
				`CREATE INDEX IF NOT EXISTS idx_employees_image_status ON employees (image_status)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmployeeModel{})
		},
	}
}
