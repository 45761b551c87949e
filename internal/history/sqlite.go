package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/audit-mailer/internal/model"
)

// SQLiteStore appends audit records to a table of a local SQLite database.
type SQLiteStore struct {
	db    *sqlx.DB
	table string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, runs any pending schema migrations and creates the
// audit table named table if it does not exist.
func NewSQLiteStore(dbPath, table string) (*SQLiteStore, error) {
	if strings.TrimSpace(table) == "" {
		return nil, &StoreWriteError{Backend: BackendSQLite, Target: dbPath, Err: errors.New("no table name")}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps :memory: databases shared and matches the
	// single-writer run.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, table: table}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.ensureTable(); err != nil {
		db.Close()
		return nil, &StoreWriteError{Backend: BackendSQLite, Target: table, Err: err}
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) ensureTable() error {
	table := quoteIdent(s.table)
	index := quoteIdent("idx_" + s.table + "_token")
	if _, err := s.db.Exec(fmt.Sprintf(auditTableSQL, table, index, table)); err != nil {
		return fmt.Errorf("creating audit table: %w", err)
	}
	return nil
}

// AppendRecord inserts rec as a new row.
func (s *SQLiteStore) AppendRecord(ctx context.Context, rec model.AuditRecord) error {
	names := columnNames()
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (:%s)",
		quoteIdent(s.table),
		strings.Join(names, ", "),
		strings.Join(names, ", :"),
	)

	rec.SentAt = rec.SentAt.UTC()
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return &StoreWriteError{Backend: BackendSQLite, Target: s.table, Err: err}
	}
	return nil
}

// ListRecords returns up to limit records, newest first. A limit below 1
// returns every record.
func (s *SQLiteStore) ListRecords(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY seq DESC",
		strings.Join(columnNames(), ", "),
		quoteIdent(s.table),
	)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var records []model.AuditRecord
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("listing records from %s: %w", s.table, err)
	}
	return records, nil
}

// RecordRun stores the summary of a finished run.
func (s *SQLiteStore) RecordRun(ctx context.Context, run model.RunSummary) error {
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO dispatch_runs (
			run_id, started_at, finished_at, dry_run,
			processed, succeeded, failed, previewed
		) VALUES (
			:run_id, :started_at, :finished_at, :dry_run,
			:processed, :succeeded, :failed, :previewed
		)`, run)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRuns returns the stored run summaries, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context) ([]model.RunSummary, error) {
	var runs []model.RunSummary
	err := s.db.SelectContext(ctx, &runs, `
		SELECT run_id, started_at, finished_at, dry_run,
		       processed, succeeded, failed, previewed
		FROM dispatch_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

func columnNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// quoteIdent quotes a SQLite identifier; table names come from
// configuration and may contain spaces.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
