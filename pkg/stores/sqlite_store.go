package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/hostsync/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
}

// Config holds SQLite store configuration
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	return &SQLiteStore{
		path:        cfg.Path,
		busyTimeout: cfg.BusyTimeout,
	}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	pragmas := []string{
		"foreign_keys(1)",
		fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()),
	}
	if s.path != MemoryPath {
		pragmas = append(pragmas, "journal_mode(WAL)", "synchronous(NORMAL)")
	}
	dsn := s.path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// A single CLI process writes history; one connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// RecordReport stores a finished execution report and its operation results
// in one transaction.
func (s *SQLiteStore) RecordReport(ctx context.Context, kind engine.PlanKind, hostname string, report *engine.ExecutionReport) (*Run, error) {
	if report == nil {
		return nil, fmt.Errorf("report is required")
	}
	if report.ID == "" {
		return nil, fmt.Errorf("report has no id")
	}

	run := &Run{
		ID:          report.ID,
		Kind:        kind,
		Status:      report.Status,
		Hostname:    hostname,
		StartedAt:   report.StartedAt,
		CompletedAt: report.CompletedAt,
		Summary:     report.Summary,
		Fatal:       make([]string, 0, len(report.Fatal)),
	}
	for _, f := range report.Fatal {
		run.Fatal = append(run.Fatal, f.Error())
	}
	fatal, err := json.Marshal(run.Fatal)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fatal errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, hostname, started_at, completed_at, total, succeeded, failed, skipped, fatal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Kind),
		string(run.Status),
		run.Hostname,
		toNanos(run.StartedAt),
		toNanos(run.CompletedAt),
		run.Summary.Total,
		run.Summary.Succeeded,
		run.Summary.Failed,
		run.Summary.Skipped,
		string(fatal),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operation_results (run_id, seq, subsystem, verb, target, detail, status, reason, error_class, error_code, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare operation insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range report.Results {
		var class, code string
		if res.Error != nil {
			class = string(res.Error.Class)
			code = res.Error.Code
		}
		_, err := stmt.ExecContext(ctx,
			run.ID,
			i,
			res.Operation.Subsystem,
			string(res.Operation.Verb),
			res.Operation.Target,
			res.Operation.Detail,
			string(res.Status),
			res.Reason,
			class,
			code,
			toNanos(res.StartedAt),
			int64(res.Duration),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record operation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

const runColumns = `id, kind, status, hostname, started_at, completed_at, total, succeeded, failed, skipped, fatal`

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := make([]any, 0, 4)
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun deletes a run and its operation results.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// PruneRuns keeps the newest keep runs and deletes the rest. It returns the
// number of deleted runs.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

const operationColumns = `run_id, seq, subsystem, verb, target, detail, status, reason, error_class, error_code, started_at, duration_ns`

// ListOperations returns the operation results of a run in execution order.
func (s *SQLiteStore) ListOperations(ctx context.Context, runID string) ([]*OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operation_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return collectOperations(rows)
}

// TargetHistory returns the most recent operations on one resource, newest first.
func (s *SQLiteStore) TargetHistory(ctx context.Context, subsystem, target string, limit int) ([]*OperationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+operationColumns+` FROM operation_results
		WHERE subsystem = ? AND target = ?
		ORDER BY started_at DESC, seq DESC
		LIMIT ?
	`, subsystem, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query target history: %w", err)
	}
	return collectOperations(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                  Run
		kind, status, fatal  string
		startedAt, completed int64
	)
	err := row.Scan(
		&run.ID,
		&kind,
		&status,
		&run.Hostname,
		&startedAt,
		&completed,
		&run.Summary.Total,
		&run.Summary.Succeeded,
		&run.Summary.Failed,
		&run.Summary.Skipped,
		&fatal,
	)
	if err != nil {
		return nil, err
	}
	run.Kind = engine.PlanKind(kind)
	run.Status = engine.RunStatus(status)
	run.StartedAt = fromNanos(startedAt)
	run.CompletedAt = fromNanos(completed)
	if err := json.Unmarshal([]byte(fatal), &run.Fatal); err != nil {
		return nil, fmt.Errorf("failed to decode fatal errors: %w", err)
	}
	return &run, nil
}

func collectOperations(rows *sql.Rows) ([]*OperationRecord, error) {
	defer rows.Close()

	records := []*OperationRecord{}
	for rows.Next() {
		var (
			rec                      OperationRecord
			verb, status, class      string
			startedAt, durationNanos int64
		)
		err := rows.Scan(
			&rec.RunID,
			&rec.Seq,
			&rec.Operation.Subsystem,
			&verb,
			&rec.Operation.Target,
			&rec.Operation.Detail,
			&status,
			&rec.Reason,
			&class,
			&rec.ErrorCode,
			&startedAt,
			&durationNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		rec.Operation.Verb = engine.Verb(verb)
		rec.Status = engine.OperationStatus(status)
		rec.ErrorClass = engine.ErrorClass(class)
		rec.StartedAt = fromNanos(startedAt)
		rec.Duration = time.Duration(durationNanos)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return records, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
