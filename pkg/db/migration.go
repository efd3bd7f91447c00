package db

import "fmt"

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS merge_jobs (
		id VARCHAR(36) PRIMARY KEY,
		template_id TEXT NOT NULL,
		document_id TEXT NOT NULL DEFAULT '',
		title VARCHAR(255) NOT NULL,
		folder_id TEXT NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		operations INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_merge_jobs_updated_at ON merge_jobs(updated_at);

	CREATE TABLE IF NOT EXISTS oauth_tokens (
		account VARCHAR(255) PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`

// go-sqlite3 only converts columns declared exactly as TIMESTAMP/DATETIME/DATE.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS merge_jobs (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		document_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		folder_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		operations INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_merge_jobs_updated_at ON merge_jobs(updated_at);

	CREATE TABLE IF NOT EXISTS oauth_tokens (
		account TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`

// createTables creates the store's tables if they don't exist
func (s *SQLStore) createTables() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.dialect.schema); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
