package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"contigscreen/internal/tactile"
)

// AbricateOptions configures the abricate adapter.
type AbricateOptions struct {
	Binary       string // abricate
	SetupBinary  string // abricate-get_db
	ScanTimeout  time.Duration
	SetupTimeout time.Duration
	MinIdentity  float64
	MinCoverage  float64
	Threads      int
	Logger       *zap.Logger
}

// Abricate drives the abricate command-line tool through an executor.
type Abricate struct {
	exec   tactile.Executor
	opts   AbricateOptions
	logger *zap.Logger

	mu     sync.Mutex
	listed map[string]bool // memoized --list output, nil until loaded
}

// NewAbricate returns an abricate-backed Scanner.
func NewAbricate(exec tactile.Executor, opts AbricateOptions) *Abricate {
	if opts.Binary == "" {
		opts.Binary = "abricate"
	}
	if opts.SetupBinary == "" {
		opts.SetupBinary = "abricate-get_db"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Abricate{exec: exec, opts: opts, logger: logger}
}

// Check reports whether database appears in `abricate --list`.
func (a *Abricate) Check(ctx context.Context, database string) (bool, error) {
	dbs, err := a.databases(ctx)
	if err != nil {
		return false, err
	}
	return dbs[database], nil
}

func (a *Abricate) databases(ctx context.Context) (map[string]bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listed != nil {
		return a.listed, nil
	}

	out, err := a.run(ctx, Failure{Op: OpCheck}, a.opts.ScanTimeout, a.opts.Binary, "--list")
	if err != nil {
		return nil, err
	}
	a.listed = parseList(out)
	a.logger.Debug("loaded database list", zap.Int("databases", len(a.listed)))
	return a.listed, nil
}

// parseList extracts database names from the first column of --list output.
func parseList(out []byte) map[string]bool {
	dbs := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] == "DATABASE" || strings.HasPrefix(fields[0], "#") {
			continue
		}
		dbs[fields[0]] = true
	}
	return dbs
}

// Setup downloads and indexes database, then forgets the cached list so the
// next Check observes the result.
func (a *Abricate) Setup(ctx context.Context, database string) error {
	_, err := a.run(ctx, Failure{Op: OpSetup, Database: database}, a.opts.SetupTimeout,
		a.opts.SetupBinary, "--db", database)

	a.mu.Lock()
	a.listed = nil
	a.mu.Unlock()

	return err
}

// Scan runs abricate for one database and sample, returning its TSV output.
func (a *Abricate) Scan(ctx context.Context, database, samplePath string) ([]byte, error) {
	args := []string{"--db", database}
	if a.opts.MinIdentity > 0 {
		args = append(args, "--minid", formatFloat(a.opts.MinIdentity))
	}
	if a.opts.MinCoverage > 0 {
		args = append(args, "--mincov", formatFloat(a.opts.MinCoverage))
	}
	if a.opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(a.opts.Threads))
	}
	args = append(args, "--quiet", samplePath)

	tmpl := Failure{Op: OpScan, Database: database, Sample: filepath.Base(samplePath)}
	out, err := a.run(ctx, tmpl, a.opts.ScanTimeout, a.opts.Binary, args...)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		tmpl.Reason = "empty output"
		return nil, &tmpl
	}
	return out, nil
}

// Summarize runs `abricate --summary` over the given result files.
func (a *Abricate) Summarize(ctx context.Context, resultPaths []string) ([]byte, error) {
	tmpl := Failure{Op: OpSummarize}
	if len(resultPaths) > 0 {
		tmpl.Database = filepath.Base(filepath.Dir(resultPaths[0]))
	}
	if len(resultPaths) == 0 {
		tmpl.Reason = "no result files"
		return nil, &tmpl
	}

	args := append([]string{"--summary"}, resultPaths...)
	out, err := a.run(ctx, tmpl, a.opts.ScanTimeout, a.opts.Binary, args...)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		tmpl.Reason = "empty output"
		return nil, &tmpl
	}
	return out, nil
}

// run executes one tool invocation and converts anything short of a clean
// zero exit into a *Failure built from tmpl.
func (a *Abricate) run(ctx context.Context, tmpl Failure, timeout time.Duration, binary string, args ...string) ([]byte, error) {
	tags := map[string]string{"op": string(tmpl.Op)}
	if tmpl.Database != "" {
		tags["database"] = tmpl.Database
	}
	if tmpl.Sample != "" {
		tags["sample"] = tmpl.Sample
	}

	res, err := a.exec.Execute(ctx, tactile.Command{
		Binary:    binary,
		Arguments: args,
		Limits:    &tactile.ResourceLimits{Timeout: timeout},
		Tags:      tags,
	})
	if err != nil {
		tmpl.Reason = err.Error()
		return nil, &tmpl
	}

	if res.Clean() {
		return res.Stdout, nil
	}

	tmpl.ExitCode = res.ExitCode
	switch {
	case res.IsError():
		tmpl.Reason = res.Error
	case res.Killed:
		tmpl.Reason = res.KillReason
	case res.Truncated:
		tmpl.Reason = fmt.Sprintf("output truncated (%d bytes discarded)", res.TruncatedBytes)
	default:
		tmpl.Reason = fmt.Sprintf("exit status %d", res.ExitCode)
	}

	tmpl.Stderr = excerpt(res.Stderr)
	return nil, &tmpl
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
