package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitTables, downInitTables)
}

var initTablesUp = []string{
	`CREATE TABLE users (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255) UNIQUE,
			role VARCHAR(20) NOT NULL CHECK (role IN ('employee', 'admin')),
			vehicle_type VARCHAR(20),
			fuel_efficiency NUMERIC(6,2),
			pin VARCHAR(4),
			password_hash VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	`CREATE TABLE drive_records (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			drive_date DATE NOT NULL,
			departure VARCHAR(255) NOT NULL,
			destination VARCHAR(255) NOT NULL,
			waypoints TEXT[] NOT NULL DEFAULT '{}',
			distance NUMERIC(8,1) NOT NULL DEFAULT 0 CHECK (distance >= 0),
			is_manual_distance BOOLEAN NOT NULL DEFAULT FALSE,
			client_name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_drive_records_user
				FOREIGN KEY(user_id)
				REFERENCES users(id)
				ON DELETE CASCADE
		);`,
	`CREATE TABLE monthly_submissions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'completed')),
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMPTZ,
			completed_by UUID,
			settlement_amount BIGINT,
			CONSTRAINT uq_monthly_submissions_user_period UNIQUE (user_id, year, month),
			CONSTRAINT fk_monthly_submissions_user
				FOREIGN KEY(user_id)
				REFERENCES users(id)
				ON DELETE CASCADE
		);`,
	`CREATE TABLE monthly_fuel_prices (
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			gasoline_price NUMERIC(10,2) NOT NULL,
			diesel_price NUMERIC(10,2) NOT NULL,
			electric_price NUMERIC(10,2) NOT NULL,
			depreciation_cost NUMERIC(10,2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (year, month)
		);`,
}

var initTablesDown = []string{
	`DROP TABLE IF EXISTS monthly_fuel_prices;`,
	`DROP TABLE IF EXISTS monthly_submissions;`,
	`DROP TABLE IF EXISTS drive_records;`,
	`DROP TABLE IF EXISTS users;`,
}

func upInitTables(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, initTablesUp)
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, initTablesDown)
}
