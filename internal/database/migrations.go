package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS dates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    day TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    origin TEXT NOT NULL UNIQUE,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS area_collections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS areas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    parent_id INTEGER REFERENCES area_collections(id)
);

CREATE TABLE IF NOT EXISTS daily_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date_id INTEGER NOT NULL REFERENCES dates(id),
    request_id INTEGER NOT NULL REFERENCES requests(id),
    area_id INTEGER NOT NULL REFERENCES areas(id),
    cases INTEGER NOT NULL DEFAULT 0,
    cured INTEGER NOT NULL DEFAULT 0,
    deaths INTEGER NOT NULL DEFAULT 0,
    UNIQUE (date_id, request_id, area_id)
);

CREATE INDEX IF NOT EXISTS idx_areas_parent ON areas(parent_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "daily_stats update tracking and series index",
		Up: func(tx *sql.Tx) error {
			has, err := hasColumn(tx, "daily_stats", "updated_at")
			if err != nil {
				return err
			}
			if !has {
				// SQLite rejects non-constant defaults on ADD COLUMN.
				if _, err := tx.Exec(`ALTER TABLE daily_stats ADD COLUMN updated_at TEXT`); err != nil {
					return err
				}
			}
			_, err = tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_daily_stats_area_request ON daily_stats(area_id, request_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
