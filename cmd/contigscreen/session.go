package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"contigscreen/internal/catalog"
	"contigscreen/internal/config"
	"contigscreen/internal/ledger"
	"contigscreen/internal/logging"
	"contigscreen/internal/pipeline"
	"contigscreen/internal/scanner"
	"contigscreen/internal/tactile"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if outputRoot != "" {
		cfg.Output.Root = outputRoot
	}
	if ledgerPath != "" {
		cfg.Ledger.Path = ledgerPath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if workers > 0 {
		cfg.Concurrency.Scans = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// session holds everything acquired for one command: log sinks, the
// scanner, and the optional ledger. Close releases all of it.
type session struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	sinks   *logging.Sinks
	scanner scanner.Scanner
	ledger  *ledger.Store
}

func openSession(cfg *config.Config) (*session, error) {
	cat, err := cfg.BuildCatalog()
	if err != nil {
		return nil, err
	}

	sinks, err := logging.Open(cfg.Logging.Options(cfg.Output.Root))
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, catalog: cat, sinks: sinks}

	execCfg := tactile.DefaultExecutorConfig()
	execCfg.DefaultTimeout = cfg.GetScanTimeout()
	execCfg.MaxTimeout = 0
	if cfg.Scanner.MaxOutputBytes > 0 {
		execCfg.MaxOutputBytes = cfg.Scanner.MaxOutputBytes
	}
	execCfg.AllowedEnvironment = cfg.Scanner.AllowedEnv
	execCfg.Logger = sinks.Logger(logging.CategoryScanner)

	s.scanner = scanner.NewAbricate(tactile.NewDirectExecutorWithConfig(execCfg), scanner.AbricateOptions{
		Binary:       cfg.Scanner.Binary,
		SetupBinary:  cfg.Scanner.SetupBinary,
		ScanTimeout:  cfg.GetScanTimeout(),
		SetupTimeout: cfg.GetSetupTimeout(),
		MinIdentity:  cfg.Scanner.MinIdentity,
		MinCoverage:  cfg.Scanner.MinCoverage,
		Threads:      cfg.Scanner.Threads,
		Logger:       sinks.Logger(logging.CategoryScanner),
	})

	if cfg.Ledger.Path != "" {
		store, err := ledger.Open(cfg.Ledger.Path, sinks.Logger(logging.CategoryLedger))
		if err != nil {
			sinks.Close()
			return nil, err
		}
		s.ledger = store
	}

	sinks.Logger(logging.CategoryBoot).Info("session opened",
		zap.String("config", configPath),
		zap.String("scanner", cfg.Scanner.Binary),
		zap.String("output", cfg.Output.Root),
		zap.Bool("ledger", s.ledger != nil))
	return s, nil
}

// screen runs one full screening pass over inputDir.
func (s *session) screen(ctx context.Context, inputDir string) (*pipeline.Report, error) {
	return pipeline.Run(ctx, pipeline.Options{
		InputDir:       inputDir,
		Suffix:         s.cfg.Input.Suffix,
		OutputRoot:     s.cfg.Output.Root,
		ManifestPath:   s.cfg.ManifestPath(),
		Catalog:        s.catalog,
		Scanner:        s.scanner,
		SetupWorkers:   s.cfg.Concurrency.SetupWorkers(),
		ScanWorkers:    s.cfg.Concurrency.ScanWorkers(),
		SummaryWorkers: s.cfg.Concurrency.SummaryWorkers(),
		SlowScan:       s.cfg.GetSlowScanThreshold(),
		Ledger:         s.ledger,
		Logger:         s.sinks.Base(),
	})
}

func (s *session) Close() error {
	var errs []error
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	s.sinks.Logger(logging.CategoryBoot).Info("session closed", zap.Time("at", time.Now()))
	errs = append(errs, s.sinks.Close())
	return errors.Join(errs...)
}
