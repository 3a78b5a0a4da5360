// Package history persists one record per execution attempt in a local
// sqlite database. Records are append-only; nothing updates or deletes them.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"jobbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// timeLayout keeps the fractional part fixed-width so that the TEXT
// started_at column sorts chronologically. RFC3339Nano trims trailing
// zeros, which breaks lexical ordering within the same second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Record is one execution attempt. Attempt starts at 1; a job run with two
// retries that never succeeds leaves three records.
type Record struct {
	ID        string
	JobName   string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   Outcome
	Error     string
	Attempt   int
}

type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(path string, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log.With(logx.String("component", "history"))}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one attempt record. The ID is assigned here when empty.
func (s *Store) Append(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions(id, job_name, started_at, ended_at, outcome, error, attempt)
		 VALUES(?,?,?,?,?,?,?)`,
		r.ID, r.JobName,
		r.StartedAt.UTC().Format(timeLayout),
		r.EndedAt.UTC().Format(timeLayout),
		string(r.Outcome), r.Error, r.Attempt,
	)
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// List returns the most recent records for a job, newest first. A limit of
// zero or less means a default page of 20.
func (s *Store) List(ctx context.Context, jobName string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_name, started_at, ended_at, outcome, error, attempt
		 FROM executions WHERE job_name = ?
		 ORDER BY started_at DESC, attempt DESC LIMIT ?`,
		jobName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var started, ended string
		if err := rows.Scan(&r.ID, &r.JobName, &started, &ended, &r.Outcome, &r.Error, &r.Attempt); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.EndedAt, _ = time.Parse(timeLayout, ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastEndedAt returns when the job's most recent attempt finished, or a zero
// time when it never ran.
func (s *Store) LastEndedAt(ctx context.Context, jobName string) (time.Time, error) {
	var ended string
	err := s.db.QueryRowContext(ctx,
		`SELECT ended_at FROM executions WHERE job_name = ?
		 ORDER BY started_at DESC, attempt DESC LIMIT 1`,
		jobName,
	).Scan(&ended)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(timeLayout, ended)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
