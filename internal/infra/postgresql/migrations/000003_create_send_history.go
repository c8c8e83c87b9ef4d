package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createSendHistoryTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_send_history",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SendHistoryModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE send_history ADD CONSTRAINT fk_send_history_employee FOREIGN KEY (employee_id) REFERENCES employees (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_send_history_employee_sent_at ON send_history (employee_id, sent_at DESC)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SendHistoryModel{})
		},
	}
}
