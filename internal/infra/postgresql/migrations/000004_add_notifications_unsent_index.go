package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Partial indexes backing the unsent-record sweep and the countdown scan.
func addNotificationsUnsentIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_add_notifications_unsent_index",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_notifications_unsent_retry ON notifications (retry_count, created_at) WHERE sent = false`,
				`CREATE INDEX IF NOT EXISTS idx_relationships_countdown_active ON relationships (id) WHERE countdown_enabled = true AND countdown_notify_enabled = true`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`DROP INDEX IF EXISTS idx_relationships_countdown_active`,
				`DROP INDEX IF EXISTS idx_notifications_unsent_retry`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
