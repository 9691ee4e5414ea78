package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS read_events (
		id               BIGSERIAL PRIMARY KEY,
		session_id       UUID NOT NULL,
		plate            TEXT NOT NULL,
		normalized_plate TEXT NOT NULL,
		direction        TEXT NOT NULL,
		first_text       TEXT NOT NULL,
		last_text        TEXT NOT NULL,
		reads            JSONB,
		event_time       TIMESTAMPTZ NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_read_events_session_id ON read_events(session_id);`,
	`CREATE INDEX IF NOT EXISTS idx_read_events_normalized_plate ON read_events(normalized_plate);`,
	`CREATE INDEX IF NOT EXISTS idx_read_events_event_time ON read_events(event_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
