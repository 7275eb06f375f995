package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddSettlementBreakdown, downAddSettlementBreakdown)
}

var addSettlementBreakdownUp = []string{
	`ALTER TABLE monthly_submissions
		ADD COLUMN total_distance NUMERIC(10,1),
		ADD COLUMN fuel_cost BIGINT,
		ADD COLUMN depreciation_cost BIGINT;`,
}

var addSettlementBreakdownDown = []string{
	`ALTER TABLE monthly_submissions
		DROP COLUMN IF EXISTS depreciation_cost,
		DROP COLUMN IF EXISTS fuel_cost,
		DROP COLUMN IF EXISTS total_distance;`,
}

func upAddSettlementBreakdown(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, addSettlementBreakdownUp)
}

func downAddSettlementBreakdown(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, addSettlementBreakdownDown)
}
