// Package pipeline runs one complete screening pass: readiness, discovery,
// dispatch, and aggregation, in that order, each phase finishing before the
// next begins.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"contigscreen/internal/aggregate"
	"contigscreen/internal/catalog"
	"contigscreen/internal/discovery"
	"contigscreen/internal/dispatch"
	"contigscreen/internal/layout"
	"contigscreen/internal/ledger"
	"contigscreen/internal/logging"
	"contigscreen/internal/readiness"
	"contigscreen/internal/scanner"
)

// Options configures a run.
type Options struct {
	InputDir     string
	Suffix       string
	OutputRoot   string
	ManifestPath string // defaults to {OutputRoot}/sample_manifest.txt

	Catalog *catalog.Catalog // defaults to catalog.Default()
	Scanner scanner.Scanner

	SetupWorkers   int
	ScanWorkers    int
	SummaryWorkers int
	SlowScan       time.Duration // dispatch warn threshold

	Ledger *ledger.Store // optional
	Logger *zap.Logger   // untagged; each phase adds its category
	RunID  string        // generated when empty
}

// Report is the result of one run.
type Report struct {
	RunID      string
	InputDir   string
	OutputRoot string
	Manifest   string
	StartedAt  time.Time
	FinishedAt time.Time
	Canceled   bool

	Discovery discovery.Result
	Readiness readiness.Report
	Dispatch  dispatch.Report
	Aggregate aggregate.Report
}

// ErrNoScanner is returned when Options.Scanner is nil.
var ErrNoScanner = errors.New("pipeline: scanner is required")

// Run executes a full screening pass. The only error it returns for a
// problem with the data is *discovery.InvalidInputError, raised before any
// directory is created or any tool invoked. Every other failure is recorded
// in the report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Scanner == nil {
		return nil, ErrNoScanner
	}
	if err := discovery.ValidateRoot(opts.InputDir); err != nil {
		logging.For(opts.Logger, logging.CategoryBoot).Error("invalid input", zap.Error(err))
		return nil, err
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	base := opts.Logger
	if base == nil {
		base = zap.NewNop()
	}
	base = base.With(zap.String("run_id", opts.RunID))
	boot := logging.For(base, logging.CategoryBoot)

	out := layout.New(opts.OutputRoot)
	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(out.Root, discovery.DefaultManifest)
	}

	report := &Report{
		RunID:      opts.RunID,
		InputDir:   opts.InputDir,
		OutputRoot: out.Root,
		Manifest:   manifestPath,
		StartedAt:  time.Now(),
	}
	boot.Info("run started",
		zap.String("input", opts.InputDir),
		zap.String("output", out.Root),
		zap.Int("databases", len(opts.Catalog.Databases())),
		zap.Int("pairs", opts.Catalog.Len()))

	report.Readiness = readiness.NewManager(opts.Scanner, readiness.Config{
		Workers: opts.SetupWorkers,
		Logger:  logging.For(base, logging.CategoryReadiness),
	}).EnsureReady(ctx, opts.Catalog)

	discLog := logging.For(base, logging.CategoryDiscovery)
	found, err := discovery.Discover(opts.InputDir, opts.Suffix, discLog)
	if err != nil {
		return nil, err
	}
	report.Discovery = found
	recordManifest(manifestPath, found.Samples, discLog)

	report.Dispatch = dispatch.New(opts.Scanner, out, dispatch.Config{
		Workers:  opts.ScanWorkers,
		SlowScan: opts.SlowScan,
		Logger:   logging.For(base, logging.CategoryDispatch),
	}).Run(ctx, opts.Catalog, found.Samples)

	// Dispatch has returned, so every pair's artifact set is final.
	report.Aggregate = aggregate.New(opts.Scanner, out, aggregate.Config{
		Workers: opts.SummaryWorkers,
		Logger:  logging.For(base, logging.CategoryAggregate),
	}).Run(ctx, opts.Catalog)

	report.FinishedAt = time.Now()
	report.Canceled = ctx.Err() != nil

	if opts.Ledger != nil {
		// Record even when canceled, on a context that is still live.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := opts.Ledger.Record(recCtx, report.LedgerRun()); err != nil {
			logging.For(base, logging.CategoryLedger).Error("failed to record run", zap.Error(err))
		}
		cancel()
	}

	boot.Info("run finished",
		zap.Bool("canceled", report.Canceled),
		zap.Int("samples", len(found.Samples)),
		zap.Int("scans_written", report.Dispatch.Count(dispatch.StatusWritten)),
		zap.Int("scans_failed", len(report.Dispatch.Failed())),
		zap.Int("summaries", report.Aggregate.Count(aggregate.StatusSummarized)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func recordManifest(path string, samples []discovery.Sample, logger *zap.Logger) {
	m, err := discovery.OpenManifest(path)
	if err != nil {
		logger.Error("manifest unavailable", zap.Error(err))
		return
	}
	if err := m.Record(samples); err != nil {
		logger.Error("manifest write failed", zap.Error(err))
	} else {
		logger.Info("manifest updated", zap.String("path", m.Path()), zap.Int("samples", len(samples)))
	}
	if err := m.Close(); err != nil {
		logger.Error("manifest close failed", zap.Error(err))
	}
}
