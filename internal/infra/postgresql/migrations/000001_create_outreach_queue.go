package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/outreach-dispatch/internal/repository"
)

// projects is owned upstream; AutoMigrate only fills in what the join needs.
func createOutreachQueueTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_outreach_queue",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProjectModel{}, &repository.QueueItemModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_outreach_queue_pending_priority ON outreach_queue (priority_score DESC, created_at ASC) WHERE status = 'pending'`,
				`CREATE INDEX IF NOT EXISTS idx_outreach_queue_project_id ON outreach_queue (project_id) WHERE project_id IS NOT NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.QueueItemModel{})
		},
	}
}
