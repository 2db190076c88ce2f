package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/roadan/incubator-amaterasu/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const actionColumns = `job_id, action, executor_id, runner, launcher, dispatch_id, status, executable_path, command, message, created_at, updated_at`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

// RecordDispatch inserts rec, replacing any previous record for the same
// job and action. CreatedAt and UpdatedAt default to now.
func (r *Repository) RecordDispatch(ctx context.Context, rec *repository.ActionRecord) error {
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = repository.StatusDispatched
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actions (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, action) DO UPDATE SET
			executor_id = excluded.executor_id,
			runner = excluded.runner,
			launcher = excluded.launcher,
			dispatch_id = excluded.dispatch_id,
			status = excluded.status,
			executable_path = excluded.executable_path,
			command = excluded.command,
			message = excluded.message,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		rec.JobID, rec.Action, rec.ExecutorID, rec.Runner, rec.Launcher, rec.DispatchID,
		string(rec.Status), rec.ExecutablePath, rec.Command, rec.Message,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert action %s/%s: %w", rec.JobID, rec.Action, err)
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, jobID, action string, status repository.Status, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE actions SET status = ?, message = ?, updated_at = ? WHERE job_id = ? AND action = ?`,
		string(status), message, r.now().UnixNano(), jobID, action,
	)
	if err != nil {
		return fmt.Errorf("update action %s/%s: %w", jobID, action, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action %s/%s: %w", jobID, action, err)
	}
	if n == 0 {
		return fmt.Errorf("update action %s/%s: %w", jobID, action, repository.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetAction(ctx context.Context, jobID, action string) (*repository.ActionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE job_id = ? AND action = ?`, jobID, action)
	rec, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get action %s/%s: %w", jobID, action, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get action %s/%s: %w", jobID, action, err)
	}
	return rec, nil
}

func (r *Repository) ListActions(ctx context.Context, filter repository.ActionFilter) ([]*repository.ActionRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.JobID != nil {
		where = append(where, "job_id = ?")
		args = append(args, *filter.JobID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT ` + actionColumns + ` FROM actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, job_id, action"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	return r.query(ctx, query, args...)
}

func (r *Repository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*repository.ActionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, `
		SELECT `+actionColumns+` FROM actions
		WHERE status IN (?, ?) AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?`,
		string(repository.StatusDispatched), string(repository.StatusRunning), olderThan.UnixNano(), limit,
	)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*repository.ActionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []*repository.ActionRecord
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(s scanner) (*repository.ActionRecord, error) {
	var (
		rec                  repository.ActionRecord
		status               string
		createdAt, updatedAt int64
	)
	err := s.Scan(&rec.JobID, &rec.Action, &rec.ExecutorID, &rec.Runner, &rec.Launcher, &rec.DispatchID,
		&status, &rec.ExecutablePath, &rec.Command, &rec.Message, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = repository.Status(status)
	rec.CreatedAt = time.Unix(0, createdAt)
	rec.UpdatedAt = time.Unix(0, updatedAt)
	return &rec, nil
}
