// Package aggregate merges the per-sample results of each (category,
// database) pair into one summary. It must run after dispatch has finished.
package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contigscreen/internal/catalog"
	"contigscreen/internal/layout"
	"contigscreen/internal/logging"
	"contigscreen/internal/scanner"
)

// Status is the outcome for one pair.
type Status string

const (
	StatusSummarized Status = "summarized"
	StatusNoResults  Status = "no_results"
	StatusFailed     Status = "failed"
)

// Outcome records one pair.
type Outcome struct {
	Category catalog.Category
	Database string
	Path     string // summary path, written only when Status is StatusSummarized
	Results  int
	Status   Status
	Err      error
	Duration time.Duration
}

// Note is the one-line human description of the outcome.
func (o Outcome) Note() string {
	switch o.Status {
	case StatusSummarized:
		return "summary written"
	case StatusNoResults:
		return "no results for this database"
	default:
		if o.Err != nil {
			return "summary failed: " + o.Err.Error()
		}
		return "summary failed"
	}
}

// Report lists outcomes in catalog pair order.
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

// Config configures an Aggregator.
type Config struct {
	Workers int // concurrent pairs, minimum 1
	Logger  *zap.Logger
}

// Aggregator produces summaries through a Scanner.
type Aggregator struct {
	scanner scanner.Scanner
	layout  layout.Layout
	workers int
	logger  *zap.Logger
}

// New creates an aggregator reading and writing under l.
func New(sc scanner.Scanner, l layout.Layout, cfg Config) *Aggregator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Aggregator{scanner: sc, layout: l, workers: cfg.Workers, logger: cfg.Logger}
}

// Run summarizes every pair in cat that has at least one result. Pairs with
// none get a StatusNoResults outcome and no file.
func (a *Aggregator) Run(ctx context.Context, cat *catalog.Catalog) Report {
	timer := logging.StartTimer(a.logger, "aggregate")
	defer timer.StopWithInfo()

	pairs := cat.Pairs()
	outcomes := make([]Outcome, len(pairs))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, p := range pairs {
		g.Go(func() error {
			outcomes[i] = a.runOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Outcomes: outcomes}
	a.logger.Info("aggregation complete",
		zap.Int("summarized", report.Count(StatusSummarized)),
		zap.Int("no_results", report.Count(StatusNoResults)),
		zap.Int("failed", report.Count(StatusFailed)))
	return report
}

func (a *Aggregator) runOne(ctx context.Context, p catalog.Pair) Outcome {
	start := time.Now()
	out := Outcome{
		Category: p.Category,
		Database: p.Database,
		Path:     a.layout.SummaryPath(p.Category, p.Database),
	}
	logger := a.logger.With(zap.String("category", string(p.Category)), zap.String("database", p.Database))

	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		out.Duration = time.Since(start)
		logger.Error("summary failed", zap.Error(err))
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	results, err := a.layout.Results(p.Category, p.Database)
	if err != nil {
		return fail(err)
	}
	out.Results = len(results)
	if len(results) == 0 {
		out.Status = StatusNoResults
		out.Duration = time.Since(start)
		logger.Info("no results for database")
		return out
	}

	data, err := a.scanner.Summarize(ctx, results)
	if err != nil {
		return fail(err)
	}
	if err := layout.WriteFile(out.Path, data); err != nil {
		return fail(err)
	}

	out.Status = StatusSummarized
	out.Duration = time.Since(start)
	logger.Info("summary written", zap.String("path", out.Path), zap.Int("results", out.Results))
	return out
}
