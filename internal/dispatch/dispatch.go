// Package dispatch fans every sample out across every (category, database)
// pair of the catalog and stores each scan result at its canonical path.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contigscreen/internal/catalog"
	"contigscreen/internal/discovery"
	"contigscreen/internal/layout"
	"contigscreen/internal/logging"
	"contigscreen/internal/scanner"
)

// Status is the outcome of one (sample, category, database) triple.
type Status string

const (
	StatusWritten  Status = "written"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled" // never started
)

// Outcome records one triple.
type Outcome struct {
	Sample   string
	Category catalog.Category
	Database string
	Path     string // canonical result path, written only when Status is StatusWritten
	Status   Status
	Err      error
	Bytes    int
	Duration time.Duration
}

// Report lists outcomes in canonical order: sample, then category, then
// database.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many outcomes have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that did not produce an artifact.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status != StatusWritten {
			out = append(out, o)
		}
	}
	return out
}

// FailuresByPair counts unsuccessful triples per pair.
func (r Report) FailuresByPair() map[catalog.Pair]int {
	m := make(map[catalog.Pair]int)
	for _, o := range r.Failed() {
		m[catalog.Pair{Category: o.Category, Database: o.Database}]++
	}
	return m
}

// DefaultSlowScan is the scan duration above which a warning is logged.
const DefaultSlowScan = 10 * time.Minute

// Config configures a Dispatcher.
type Config struct {
	Workers  int           // concurrent triples, minimum 1
	SlowScan time.Duration // warn threshold, DefaultSlowScan when 0
	Logger   *zap.Logger
}

// Dispatcher runs scans and persists their results.
type Dispatcher struct {
	scanner  scanner.Scanner
	layout   layout.Layout
	workers  int
	slowScan time.Duration
	logger   *zap.Logger
}

// New creates a dispatcher writing under l.
func New(sc scanner.Scanner, l layout.Layout, cfg Config) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SlowScan <= 0 {
		cfg.SlowScan = DefaultSlowScan
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{scanner: sc, layout: l, workers: cfg.Workers, slowScan: cfg.SlowScan, logger: cfg.Logger}
}

type task struct {
	sample discovery.Sample
	pair   catalog.Pair
}

// Run scans every sample against every pair. A failed triple is logged and
// recorded; it never stops the others. Run returns once all work is done.
func (d *Dispatcher) Run(ctx context.Context, cat *catalog.Catalog, samples []discovery.Sample) Report {
	timer := logging.StartTimer(d.logger, "dispatch")
	defer timer.StopWithInfo()

	pairs := cat.Pairs()
	tasks := make([]task, 0, len(samples)*len(pairs))
	for _, s := range samples {
		for _, p := range pairs {
			tasks = append(tasks, task{sample: s, pair: p})
		}
	}

	d.logger.Info("dispatching scans",
		zap.Int("samples", len(samples)),
		zap.Int("pairs", len(pairs)),
		zap.Int("triples", len(tasks)),
		zap.Int("workers", d.workers))

	outcomes := make([]Outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, t := range tasks {
		if ctx.Err() != nil {
			outcomes[i] = d.canceled(t, ctx.Err())
			continue
		}
		g.Go(func() error {
			outcomes[i] = d.runOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Outcomes: outcomes}
	d.logger.Info("dispatch complete",
		zap.Int("written", report.Count(StatusWritten)),
		zap.Int("failed", report.Count(StatusFailed)),
		zap.Int("canceled", report.Count(StatusCanceled)))
	return report
}

func (d *Dispatcher) canceled(t task, err error) Outcome {
	return Outcome{
		Sample:   t.sample.Name,
		Category: t.pair.Category,
		Database: t.pair.Database,
		Path:     d.layout.ResultPath(t.pair.Category, t.pair.Database, t.sample.Name),
		Status:   StatusCanceled,
		Err:      err,
	}
}

func (d *Dispatcher) runOne(ctx context.Context, t task) Outcome {
	if err := ctx.Err(); err != nil {
		return d.canceled(t, err)
	}

	start := time.Now()
	out := Outcome{
		Sample:   t.sample.Name,
		Category: t.pair.Category,
		Database: t.pair.Database,
		Path:     d.layout.ResultPath(t.pair.Category, t.pair.Database, t.sample.Name),
	}
	logger := d.logger.With(
		zap.String("sample", out.Sample),
		zap.String("category", string(out.Category)),
		zap.String("database", out.Database))

	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		out.Duration = time.Since(start)
		logger.Error("scan failed", zap.Error(err))
		return out
	}

	if err := d.layout.EnsurePairDir(t.pair.Category, t.pair.Database); err != nil {
		return fail(err)
	}

	timer := logging.StartTimer(logger, "scan")
	data, err := d.scanner.Scan(ctx, t.pair.Database, t.sample.Path)
	timer.StopWithThreshold(d.slowScan)
	if err != nil {
		return fail(err)
	}

	if err := layout.WriteFile(out.Path, data); err != nil {
		return fail(err)
	}

	out.Status = StatusWritten
	out.Bytes = len(data)
	out.Duration = time.Since(start)
	logger.Info("scan written", zap.String("path", out.Path), zap.Int("bytes", out.Bytes), zap.Duration("duration", out.Duration))
	return out
}
