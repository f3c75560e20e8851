package datasource

import (
	"database/sql"
	"fmt"
	"strconv"
)

// SchemaVersion is recorded in the meta table.
const SchemaVersion = 1

func createSchema(db *sql.DB) error {
	if err := createCoreTables(db); err != nil {
		return fmt.Errorf("create core tables: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if err := createMetaTable(db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

func createCoreTables(db *sql.DB) error {
	documentsSQL := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			year INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := db.Exec(documentsSQL); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_documents_year ON documents(year)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(date DESC)`,
		// Slugs are unique unless blank.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_slug ON documents(slug) WHERE slug != ''`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createMetaTable(db *sql.DB) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`
	if _, err := db.Exec(metaSQL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(SchemaVersion))
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}
