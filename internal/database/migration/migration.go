package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// The supply-request schema is normally owned by the management web
// application; this bootstrap exists so the worker can run against a fresh
// database in development and integration environments.

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id      SERIAL PRIMARY KEY,
  name    TEXT NOT NULL,
  surname TEXT NOT NULL
);`,
	},
	{
		Name: "create_table_vendors",
		SQL: `CREATE TABLE IF NOT EXISTS vendors (
  id   SERIAL PRIMARY KEY,
  name TEXT NOT NULL
);`,
	},
	{
		Name: "create_table_items",
		SQL: `CREATE TABLE IF NOT EXISTS items (
  id        SERIAL PRIMARY KEY,
  name      TEXT NOT NULL,
  vendor_id INT  NOT NULL REFERENCES vendors (id)
);`,
	},
	{
		Name: "create_table_supply_requests",
		SQL: `CREATE TABLE IF NOT EXISTS supply_requests (
  id                  SERIAL      PRIMARY KEY,
  status              INT         NOT NULL DEFAULT 0,
  created_by_user_id  INT         NOT NULL REFERENCES users (id),
  approved_by_user_id INT         REFERENCES users (id),
  delivered_by_user_id INT        REFERENCES users (id),
  claims_text         TEXT,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_item_supply_requests",
		SQL: `CREATE TABLE IF NOT EXISTS item_supply_requests (
  item_id           INT NOT NULL REFERENCES items (id),
  supply_request_id INT NOT NULL REFERENCES supply_requests (id),
  PRIMARY KEY (item_id, supply_request_id)
);`,
	},
	{
		Name: "create_index_supply_requests_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_supply_requests_status ON supply_requests (status);`,
	},
}

// EnsureMigrated checks if the 'supply_requests' table exists and runs the
// bootstrap steps if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *logrus.Logger) error {
	start := time.Now()

	var exists bool
	const sentinel = "SELECT to_regclass('public.supply_requests') IS NOT NULL"
	if err := db.QueryRowContext(ctx, sentinel).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("schema already exists, skipping migration")
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.WithFields(logrus.Fields{
				"migration_step": step.Name,
				"duration_ms":    time.Since(start).Milliseconds(),
			}).WithError(err).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.WithFields(logrus.Fields{
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Info("migration step applied")
	}

	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("schema migration completed")
	return nil
}
