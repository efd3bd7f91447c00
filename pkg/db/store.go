package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"
	"golang.org/x/oauth2"
)

var log = commonlog.GetLogger("docmerge.db")

type dialect struct {
	driver string
	schema string
	rebind func(query string) string
}

var positional = regexp.MustCompile(`\$(\d+)`)

var (
	postgresDialect = dialect{
		driver: "postgres",
		schema: postgresSchema,
		rebind: func(query string) string { return query },
	}
	sqliteDialect = dialect{
		driver: "sqlite3",
		schema: sqliteSchema,
		rebind: func(query string) string { return positional.ReplaceAllString(query, "?$1") },
	}
)

const jobColumns = `id, template_id, document_id, title, folder_id, status, operations, error, created_at, updated_at`

// SQLStore implements IMergeStore and ITokenStore over database/sql
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewPostgresStore opens a PostgreSQL backed store
func NewPostgresStore(connStr string) (*SQLStore, error) {
	return open(postgresDialect, connStr)
}

// NewSQLiteStore opens a SQLite backed store at path
func NewSQLiteStore(path string) (*SQLStore, error) {
	return open(sqliteDialect, path)
}

// NewStore opens a store for the named driver ("postgres" or "sqlite3")
func NewStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case postgresDialect.driver:
		return NewPostgresStore(dsn)
	case sqliteDialect.driver:
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func open(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: d}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Infof("opened %s store", d.driver)
	return store, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) query(query string) string {
	return s.dialect.rebind(query)
}

func scanJob(row interface{ Scan(...any) error }) (*MergeJob, error) {
	job := &MergeJob{}
	err := row.Scan(
		&job.ID,
		&job.TemplateID,
		&job.DocumentID,
		&job.Title,
		&job.FolderID,
		&job.Status,
		&job.Operations,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	return job, err
}

func (s *SQLStore) CreateJob(templateID, title, folderID string) (*MergeJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query := s.query(`
		INSERT INTO merge_jobs (` + jobColumns + `)
		VALUES ($1, $2, '', $3, $4, $5, 0, '', $6, $7)
	`)

	if _, err := s.db.Exec(query, id, templateID, title, folderID, string(StatusPending), now, now); err != nil {
		return nil, fmt.Errorf("failed to create merge job: %w", err)
	}

	return s.GetJob(id)
}

func (s *SQLStore) GetJob(id string) (*MergeJob, error) {
	query := s.query(`
		SELECT ` + jobColumns + `
		FROM merge_jobs
		WHERE id = $1
	`)

	job, err := scanJob(s.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get merge job: %w", err)
	}

	return job, nil
}

func (s *SQLStore) UpdateJob(id string, updates *MergeJobUpdate) (*MergeJob, error) {
	// Build dynamic SET clauses for provided fields
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.DocumentID != nil {
		sets = append(sets, fmt.Sprintf("document_id = $%d", argPos))
		args = append(args, *updates.DocumentID)
		argPos++
	}
	if updates.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*updates.Status))
		argPos++
	}
	if updates.Operations != nil {
		sets = append(sets, fmt.Sprintf("operations = $%d", argPos))
		args = append(args, *updates.Operations)
		argPos++
	}
	if updates.Error != nil {
		sets = append(sets, fmt.Sprintf("error = $%d", argPos))
		args = append(args, *updates.Error)
		argPos++
	}

	if len(sets) == 0 {
		// Nothing to update; return current job
		return s.GetJob(id)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)

	query := s.query(fmt.Sprintf(`
		UPDATE merge_jobs
		SET %s
		WHERE id = $%d
	`, strings.Join(sets, ", "), argPos))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update merge job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrJobNotFound
	}

	return s.GetJob(id)
}

func (s *SQLStore) DeleteJob(id string) error {
	result, err := s.db.Exec(s.query(`DELETE FROM merge_jobs WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("failed to delete merge job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}

func (s *SQLStore) ListJobs() ([]*MergeJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM merge_jobs
		ORDER BY updated_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*MergeJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return jobs, nil
}

// LoadToken returns the token last saved for account
func (s *SQLStore) LoadToken(account string) (*oauth2.Token, error) {
	var raw string
	err := s.db.QueryRow(s.query(`SELECT token FROM oauth_tokens WHERE account = $1`), account).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

// SaveToken stores token for account, replacing any previous one
func (s *SQLStore) SaveToken(account string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	query := s.query(`
		INSERT INTO oauth_tokens (account, token, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`)
	if _, err := s.db.Exec(query, account, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Compile-time checks that SQLStore implements both store interfaces
var (
	_ IMergeStore = (*SQLStore)(nil)
	_ ITokenStore = (*SQLStore)(nil)
)
