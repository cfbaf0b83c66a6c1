// Package scanner abstracts the external screening tool behind the four
// capabilities the orchestrator needs: readiness check, database setup,
// per-sample scan, and multi-result summary. Outputs are opaque bytes.
package scanner

import (
	"context"
	"fmt"
	"strings"
)

// Scanner is the external screening capability.
type Scanner interface {
	// Check reports whether a database is usable without further setup.
	Check(ctx context.Context, database string) (bool, error)

	// Setup prepares a database for use.
	Setup(ctx context.Context, database string) error

	// Scan screens one sample file against one database and returns the
	// tabular result.
	Scan(ctx context.Context, database, samplePath string) ([]byte, error)

	// Summarize merges result files into one report.
	Summarize(ctx context.Context, resultPaths []string) ([]byte, error)
}

// Op names a scanner capability.
type Op string

const (
	OpCheck     Op = "check"
	OpSetup     Op = "setup"
	OpScan      Op = "scan"
	OpSummarize Op = "summarize"
)

// Failure is returned when an invocation of the external tool did not
// produce a usable result.
type Failure struct {
	Op       Op
	Database string
	Sample   string
	ExitCode int
	Reason   string
	Stderr   string
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", f.Op)
	if f.Database != "" {
		fmt.Fprintf(&b, " for database %s", f.Database)
	}
	if f.Sample != "" {
		fmt.Fprintf(&b, " on %s", f.Sample)
	}
	fmt.Fprintf(&b, ": %s", f.Reason)
	if f.Stderr != "" {
		fmt.Fprintf(&b, " (stderr: %s)", f.Stderr)
	}
	return b.String()
}

// maxStderrExcerpt bounds the stderr text carried in a Failure.
const maxStderrExcerpt = 512

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderrExcerpt {
		return s
	}
	return "..." + s[len(s)-maxStderrExcerpt:]
}
