package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddPeriodIndexes, downAddPeriodIndexes)
}

var addPeriodIndexesUp = []string{
	`CREATE INDEX idx_drive_records_user_date ON drive_records(user_id, drive_date DESC);`,
	`CREATE INDEX idx_monthly_submissions_period_status ON monthly_submissions(year, month, status);`,
}

var addPeriodIndexesDown = []string{
	`DROP INDEX IF EXISTS idx_monthly_submissions_period_status;`,
	`DROP INDEX IF EXISTS idx_drive_records_user_date;`,
}

func upAddPeriodIndexes(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, addPeriodIndexesUp)
}

func downAddPeriodIndexes(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, addPeriodIndexesDown)
}
