package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/outreach-dispatch/internal/repository"
)

func createOutreachActivitiesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_outreach_activities",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ActivityModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_outreach_activities_sent_recipient ON outreach_activities (LOWER(TRIM(recipient_email))) WHERE status = 'sent' AND activity_type = 'email'`,
				`CREATE INDEX IF NOT EXISTS idx_outreach_activities_queue_item ON outreach_activities (queue_item_id) WHERE queue_item_id IS NOT NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ActivityModel{})
		},
	}
}
