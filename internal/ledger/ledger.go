// Package ledger keeps a SQLite history of screening runs: which databases
// were set up, which triples were scanned, and which pairs were summarized.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Run status values.
const (
	RunCompleted = "completed"
	RunCanceled  = "canceled"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix matches more than one run")
)

// Setup is one database readiness outcome.
type Setup struct {
	Database string
	Status   string
	Error    string
	Duration time.Duration
}

// Scan is one (sample, category, database) outcome.
type Scan struct {
	Sample   string
	Category string
	Database string
	Status   string
	Error    string
	Bytes    int
	Duration time.Duration
}

// Pair is one (category, database) aggregation outcome.
type Pair struct {
	Category string
	Database string
	Status   string
	Results  int
	Error    string
}

// Run is everything recorded about one pipeline run.
type Run struct {
	ID         string
	InputDir   string
	OutputRoot string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Samples    int
	Skipped    int
	Setups     []Setup
	Scans      []Scan
	Pairs      []Pair
}

// RunSummary is the per-run row listed by Recent.
type RunSummary struct {
	ID           string
	InputDir     string
	OutputRoot   string
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Samples      int
	SetupFailed  int
	ScansWritten int
	ScansFailed  int
	Summarized   int
	NoResults    int
}

// Store is the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
	logger *zap.Logger
}

// Open creates or opens the ledger at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Debug("ledger opened", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_dir TEXT NOT NULL,
		output_root TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		samples INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		setup_failed INTEGER NOT NULL,
		scans_written INTEGER NOT NULL,
		scans_failed INTEGER NOT NULL,
		summarized INTEGER NOT NULL,
		no_results INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS setups (
		run_id TEXT NOT NULL REFERENCES runs(id),
		database_name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, database_name)
	);

	CREATE TABLE IF NOT EXISTS scans (
		run_id TEXT NOT NULL REFERENCES runs(id),
		sample TEXT NOT NULL,
		category TEXT NOT NULL,
		database_name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		bytes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, sample, category, database_name)
	);
	CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);

	CREATE TABLE IF NOT EXISTS summaries (
		run_id TEXT NOT NULL REFERENCES runs(id),
		category TEXT NOT NULL,
		database_name TEXT NOT NULL,
		status TEXT NOT NULL,
		results INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, category, database_name)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

// Record stores a finished run and all of its outcomes in one transaction.
func (s *Store) Record(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := summarize(run)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, output_root, status, started_at, finished_at,
			samples, skipped, setup_failed, scans_written, scans_failed, summarized, no_results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.InputDir, run.OutputRoot, run.Status,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Samples, run.Skipped, sum.SetupFailed, sum.ScansWritten, sum.ScansFailed,
		sum.Summarized, sum.NoResults)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, su := range run.Setups {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO setups (run_id, database_name, status, error, duration_ms)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, su.Database, su.Status, nullable(su.Error), su.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert setup %s: %w", su.Database, err)
		}
	}

	for _, sc := range run.Scans {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scans (run_id, sample, category, database_name, status, error, bytes, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, sc.Sample, sc.Category, sc.Database, sc.Status, nullable(sc.Error),
			sc.Bytes, sc.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert scan %s/%s/%s: %w", sc.Category, sc.Database, sc.Sample, err)
		}
	}

	for _, p := range run.Pairs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO summaries (run_id, category, database_name, status, results, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, p.Category, p.Database, p.Status, p.Results, nullable(p.Error)); err != nil {
			return fmt.Errorf("failed to insert summary %s/%s: %w", p.Category, p.Database, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Info("run recorded",
		zap.String("run_id", run.ID),
		zap.Int("scans", len(run.Scans)),
		zap.Int("pairs", len(run.Pairs)))
	return nil
}

// summarize derives the counters stored on the runs row.
func summarize(run *Run) RunSummary {
	sum := RunSummary{
		ID:         run.ID,
		InputDir:   run.InputDir,
		OutputRoot: run.OutputRoot,
		Status:     run.Status,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Samples:    run.Samples,
	}
	for _, su := range run.Setups {
		if su.Status == "failed" {
			sum.SetupFailed++
		}
	}
	for _, sc := range run.Scans {
		if sc.Status == "written" {
			sum.ScansWritten++
		} else {
			sum.ScansFailed++
		}
	}
	for _, p := range run.Pairs {
		switch p.Status {
		case "summarized":
			sum.Summarized++
		case "no_results":
			sum.NoResults++
		}
	}
	return sum
}

// =============================================================================
// READS
// =============================================================================

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		n = 10
	}
	return s.queryRuns(ctx, runColumns+`
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, n)
}

// FindRun returns the run whose id starts with prefix. The short ids shown
// by history are accepted.
func (s *Store) FindRun(ctx context.Context, prefix string) (RunSummary, error) {
	if prefix == "" {
		return RunSummary{}, ErrRunNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.queryRuns(ctx, runColumns+`
		FROM runs
		WHERE substr(id, 1, length(?)) = ?
		ORDER BY id
		LIMIT 2
	`, prefix, prefix)
	if err != nil {
		return RunSummary{}, err
	}
	switch len(runs) {
	case 0:
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return runs[0], nil
	default:
		return RunSummary{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
	}
}

const runColumns = `
		SELECT id, input_dir, output_root, status, started_at, finished_at,
			samples, setup_failed, scans_written, scans_failed, summarized, no_results`

// queryRuns expects s.mu to be held.
func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &r.InputDir, &r.OutputRoot, &r.Status, &started, &finished,
			&r.Samples, &r.SetupFailed, &r.ScansWritten, &r.ScansFailed, &r.Summarized, &r.NoResults); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FailedScans lists the unsuccessful triples of one run.
func (s *Store) FailedScans(ctx context.Context, runID string) ([]Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sample, category, database_name, status, COALESCE(error, ''), bytes, duration_ms
		FROM scans
		WHERE run_id = ? AND status != 'written'
		ORDER BY sample, category, database_name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		var sc Scan
		var ms int64
		if err := rows.Scan(&sc.Sample, &sc.Category, &sc.Database, &sc.Status, &sc.Error, &sc.Bytes, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sc.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, sc)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
