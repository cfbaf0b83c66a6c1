// Package logging provides the process-wide log sinks for a screening run.
// Informational output is appended to one file and warnings/errors to another.
// Sinks are acquired once at startup and must be closed on every exit path.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category tags log lines with the subsystem that produced them.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config, shutdown
	CategoryReadiness Category = "readiness" // Database check/setup
	CategoryDiscovery Category = "discovery" // Input enumeration, manifest
	CategoryDispatch  Category = "dispatch"  // Per-sample scans
	CategoryAggregate Category = "aggregate" // Per-database summaries
	CategoryScanner   Category = "scanner"   // External tool invocations
	CategoryLedger    Category = "ledger"    // Run history persistence
	CategoryWatch     Category = "watch"     // Input directory watcher
)

// Default file names, relative to Options.Dir.
const (
	DefaultInfoFile  = "screening.log"
	DefaultErrorFile = "screening_errors.log"
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Dir       string
	InfoFile  string
	ErrorFile string
	Level     string // debug, info, warn, error
	Format    string // text, json
	Stderr    bool   // mirror warnings and errors to stderr
}

// Sinks owns the two append-mode log files and the zap core writing to them.
type Sinks struct {
	mu     sync.Mutex
	info   *os.File
	errs   *os.File
	base   *zap.Logger
	closed bool
}

// Open creates (or appends to) the info and error log files and returns the
// sinks. The caller must Close them.
func Open(opts Options) (*Sinks, error) {
	if opts.InfoFile == "" {
		opts.InfoFile = DefaultInfoFile
	}
	if opts.ErrorFile == "" {
		opts.ErrorFile = DefaultErrorFile
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	infoPath := resolve(opts.Dir, opts.InfoFile)
	errPath := resolve(opts.Dir, opts.ErrorFile)
	if filepath.Clean(infoPath) == filepath.Clean(errPath) {
		return nil, fmt.Errorf("info and error log must be different files: %s", infoPath)
	}

	info, err := openAppend(infoPath)
	if err != nil {
		return nil, err
	}
	errs, err := openAppend(errPath)
	if err != nil {
		info.Close()
		return nil, err
	}

	level := ParseLevel(opts.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(info),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= level && l < zapcore.WarnLevel })),
		zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(errs),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= level && l >= zapcore.WarnLevel })),
	}
	if opts.Stderr {
		cores = append(cores, zapcore.NewCore(newEncoder("text"), zapcore.Lock(os.Stderr), zapcore.WarnLevel))
	}

	return &Sinks{
		info: info,
		errs: errs,
		base: zap.New(zapcore.NewTee(cores...)),
	}, nil
}

func resolve(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger returns a logger tagged with the given category.
func (s *Sinks) Logger(category Category) *zap.Logger {
	return For(s.base, category)
}

// Base returns the untagged logger writing to both sinks.
func (s *Sinks) Base() *zap.Logger {
	return s.base
}

// For tags base with category. A nil base yields a no-op logger.
func For(base *zap.Logger, category Category) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.With(zap.String("category", string(category)))
}

// Close flushes and closes both files. It is safe to call more than once.
func (s *Sinks) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	// Sync on a regular file can report EINVAL on some platforms; only close errors matter.
	_ = s.base.Sync()
	if err := s.info.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.errs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
