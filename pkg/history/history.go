// Package history keeps generated posts in a local sqlite database so earlier
// runs can be listed, reprinted and compared.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/germanamz/postcraft/pkg/modeladapter/usage"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pmezard/go-difflib/difflib"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("history: run not found")

// Run is one persisted generation.
type Run struct {
	ID              string
	CreatedAt       time.Time
	Name            string
	ContentType     string
	TargetCompanies []string
	Prompt          string
	Output          string
	Images          []string
	Usage           usage.TokenCount
}

// Store is a sqlite-backed run history. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	target_companies TEXT NOT NULL,
	prompt TEXT NOT NULL,
	output TEXT NOT NULL,
	images TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}

	// sqlite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores run, assigning an id and timestamp when they are empty, and
// returns the stored run.
func (s *Store) Save(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	companies, err := json.Marshal(nonNil(run.TargetCompanies))
	if err != nil {
		return Run{}, fmt.Errorf("history: save: %w", err)
	}

	images, err := json.Marshal(nonNil(run.Images))
	if err != nil {
		return Run{}, fmt.Errorf("history: save: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, name, content_type, target_companies, prompt, output, images, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), run.Name, run.ContentType, string(companies),
		run.Prompt, run.Output, string(images), run.Usage.InputTokens, run.Usage.OutputTokens,
	)
	if err != nil {
		return Run{}, fmt.Errorf("history: save: %w", err)
	}

	return run, nil
}

// timeLayout is fixed width so created_at sorts as text. RFC3339Nano trims
// trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectRun = `SELECT id, created_at, name, content_type, target_companies, prompt, output, images, input_tokens, output_tokens FROM runs`

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)

	run, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("history: get: %w", err)
	}

	return run, nil
}

// List returns the most recent runs first. limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}

	return runs, nil
}

// Diff returns a unified diff of the outputs of runs a and b, or an empty
// string when they are identical.
func (s *Store) Diff(ctx context.Context, a, b string) (string, error) {
	runA, err := s.Get(ctx, a)
	if err != nil {
		return "", err
	}

	runB, err := s.Get(ctx, b)
	if err != nil {
		return "", err
	}

	return DiffOutputs(runA, runB)
}

// DiffOutputs returns a unified diff between the outputs of two runs.
func DiffOutputs(a, b Run) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a.Output),
		B:        difflib.SplitLines(b.Output),
		FromFile: a.ID,
		ToFile:   b.ID,
		Context:  3,
	}

	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("history: diff: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Run, error) {
	var (
		run               Run
		created           string
		companies, images string
	)

	err := row.Scan(&run.ID, &created, &run.Name, &run.ContentType, &companies,
		&run.Prompt, &run.Output, &images, &run.Usage.InputTokens, &run.Usage.OutputTokens)
	if err != nil {
		return Run{}, err
	}

	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("created_at: %w", err)
	}

	if err := json.Unmarshal([]byte(companies), &run.TargetCompanies); err != nil {
		return Run{}, fmt.Errorf("target_companies: %w", err)
	}

	if err := json.Unmarshal([]byte(images), &run.Images); err != nil {
		return Run{}, fmt.Errorf("images: %w", err)
	}

	return run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
