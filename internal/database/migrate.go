package database

import (
	"database/sql"
	"fmt"
	"log"
)

func schemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// hasUnversionedStats reports whether a daily_stats table exists in a
// database that was never stamped with a user_version.
func hasUnversionedStats(conn *sql.DB) (bool, error) {
	var count int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='daily_stats'",
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking for unversioned tables: %w", err)
	}
	return count > 0, nil
}

// migrate applies every migration newer than the stored user_version.
// Unversioned databases replay all migrations; the DDL is idempotent, so
// tables that already exist are left untouched and missing ones are added.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		found, err := hasUnversionedStats(conn)
		if err != nil {
			return err
		}
		if found {
			log.Printf("found unversioned statistics tables, upgrading in place")
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(conn *sql.DB, m Migration) error {
	log.Printf("applying migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return storageErr(fmt.Sprintf("begin migration %d", m.Version), err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return storageErr(fmt.Sprintf("migration %d (%s)", m.Version, m.Description), err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(fmt.Sprintf("commit migration %d", m.Version), err)
	}

	// modernc/sqlite ignores user_version changes made inside a transaction.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return storageErr(fmt.Sprintf("stamp version %d", m.Version), err)
	}
	return nil
}
