package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Backlogs created before the retry policy existed lack these columns.
func addOutreachRetryColumns() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_outreach_retry_columns",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`ALTER TABLE outreach_queue ADD COLUMN IF NOT EXISTS attempt_count INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE outreach_queue ADD COLUMN IF NOT EXISTS next_retry_at TIMESTAMPTZ`,
				`CREATE INDEX IF NOT EXISTS idx_outreach_queue_failed_retry ON outreach_queue (sent_at) WHERE status = 'failed'`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`DROP INDEX IF EXISTS idx_outreach_queue_failed_retry`,
				`ALTER TABLE outreach_queue DROP COLUMN IF EXISTS next_retry_at`,
				`ALTER TABLE outreach_queue DROP COLUMN IF EXISTS attempt_count`,
			})
		},
	}
}
