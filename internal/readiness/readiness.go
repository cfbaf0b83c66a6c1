// Package readiness makes sure every catalog database is usable before any
// scan starts, setting databases up on demand.
package readiness

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contigscreen/internal/catalog"
	"contigscreen/internal/logging"
	"contigscreen/internal/scanner"
)

// Status is the readiness outcome for one database.
type Status string

const (
	StatusReady     Status = "ready"     // already usable
	StatusInstalled Status = "installed" // set up during this run
	StatusFailed    Status = "failed"
)

// ErrStillUnready is returned when setup succeeded but the database is still
// not reported as usable.
var ErrStillUnready = errors.New("database not ready after setup")

// Outcome records what happened to one database.
type Outcome struct {
	Database string
	Status   Status
	Err      error
	Duration time.Duration
}

// Report lists outcomes in the catalog's first-seen database order.
type Report struct {
	Outcomes []Outcome
}

// Failed returns the outcomes whose database could not be made ready.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Config configures a Manager.
type Config struct {
	Workers int // concurrent databases, minimum 1
	Logger  *zap.Logger
}

// Manager checks and sets up databases through a Scanner.
type Manager struct {
	scanner scanner.Scanner
	workers int
	logger  *zap.Logger
}

// NewManager creates a readiness manager.
func NewManager(sc scanner.Scanner, cfg Config) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{scanner: sc, workers: cfg.Workers, logger: cfg.Logger}
}

// EnsureReady visits every distinct database in cat exactly once. A failure
// for one database never stops the others.
func (m *Manager) EnsureReady(ctx context.Context, cat *catalog.Catalog) Report {
	timer := logging.StartTimer(m.logger, "readiness")
	defer timer.StopWithInfo()

	dbs := cat.Databases()
	outcomes := make([]Outcome, len(dbs))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, db := range dbs {
		g.Go(func() error {
			outcomes[i] = m.ensureOne(ctx, db)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Outcomes: outcomes}
	m.logger.Info("readiness complete",
		zap.Int("databases", len(dbs)),
		zap.Int("failed", len(report.Failed())))
	return report
}

func (m *Manager) ensureOne(ctx context.Context, db string) Outcome {
	start := time.Now()
	out := Outcome{Database: db}
	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		out.Duration = time.Since(start)
		m.logger.Error("database setup failed", zap.String("database", db), zap.Error(err))
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	ready, err := m.scanner.Check(ctx, db)
	if err != nil {
		return fail(err)
	}
	if ready {
		out.Status = StatusReady
		out.Duration = time.Since(start)
		m.logger.Info("database ready", zap.String("database", db))
		return out
	}

	m.logger.Info("setting up database", zap.String("database", db))
	if err := m.scanner.Setup(ctx, db); err != nil {
		return fail(err)
	}

	ready, err = m.scanner.Check(ctx, db)
	if err != nil {
		return fail(err)
	}
	if !ready {
		return fail(ErrStillUnready)
	}

	out.Status = StatusInstalled
	out.Duration = time.Since(start)
	m.logger.Info("database installed", zap.String("database", db), zap.Duration("duration", out.Duration))
	return out
}
