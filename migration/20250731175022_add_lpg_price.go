package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddLPGPrice, downAddLPGPrice)
}

// LPG vehicles get their own price column. Existing months start at 0, which
// settles as a missing price until an admin fills it in.
var addLPGPriceUp = []string{
	`ALTER TABLE monthly_fuel_prices
		ADD COLUMN lpg_price NUMERIC(10,2) NOT NULL DEFAULT 0;`,
	`ALTER TABLE users
		ADD CONSTRAINT chk_users_vehicle_type
		CHECK (vehicle_type IS NULL OR vehicle_type IN ('gasoline', 'diesel', 'lpg', 'electric'));`,
}

var addLPGPriceDown = []string{
	`ALTER TABLE users DROP CONSTRAINT IF EXISTS chk_users_vehicle_type;`,
	`ALTER TABLE monthly_fuel_prices DROP COLUMN IF EXISTS lpg_price;`,
}

func upAddLPGPrice(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, addLPGPriceUp)
}

func downAddLPGPrice(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, addLPGPriceDown)
}
