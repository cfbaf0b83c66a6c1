package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contigscreen/internal/tactile"
)

// recordingExecutor returns canned results keyed by the first argument.
type recordingExecutor struct {
	mu       sync.Mutex
	commands []tactile.Command
	respond  func(cmd tactile.Command) (*tactile.ExecutionResult, error)
}

func (r *recordingExecutor) Execute(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
	return r.respond(cmd)
}

func (r *recordingExecutor) Validate(tactile.Command) error { return nil }

func (r *recordingExecutor) count(binary, firstArg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Binary == binary && len(c.Arguments) > 0 && c.Arguments[0] == firstArg {
			n++
		}
	}
	return n
}

func ok(stdout string) *tactile.ExecutionResult {
	return &tactile.ExecutionResult{Success: true, Stdout: []byte(stdout)}
}

const listOutput = "DATABASE\tSEQUENCES\tDBTYPE\tDATE\n" +
	"card\t2631\tnucl\t2024-Jan-01\n" +
	"vfdb\t2597\tnucl\t2024-Jan-01\n"

func TestParseList(t *testing.T) {
	dbs := parseList([]byte(listOutput + "\n"))
	assert.Equal(t, map[string]bool{"card": true, "vfdb": true}, dbs)
}

func TestAbricate_CheckMemoizesList(t *testing.T) {
	rec := &recordingExecutor{respond: func(tactile.Command) (*tactile.ExecutionResult, error) {
		return ok(listOutput), nil
	}}
	a := NewAbricate(rec, AbricateOptions{})

	ready, err := a.Check(context.Background(), "card")
	require.NoError(t, err)
	assert.True(t, ready)

	ready, err = a.Check(context.Background(), "ncbi")
	require.NoError(t, err)
	assert.False(t, ready)

	assert.Equal(t, 1, rec.count("abricate", "--list"))
}

func TestAbricate_SetupInvalidatesList(t *testing.T) {
	installed := false
	rec := &recordingExecutor{respond: func(cmd tactile.Command) (*tactile.ExecutionResult, error) {
		if cmd.Binary == "abricate-get_db" {
			installed = true
			return ok("done\n"), nil
		}
		if installed {
			return ok(listOutput + "ncbi\t5386\tnucl\t2024-Jan-01\n"), nil
		}
		return ok(listOutput), nil
	}}
	a := NewAbricate(rec, AbricateOptions{})
	ctx := context.Background()

	ready, err := a.Check(ctx, "ncbi")
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, a.Setup(ctx, "ncbi"))

	ready, err = a.Check(ctx, "ncbi")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 2, rec.count("abricate", "--list"))
	assert.Equal(t, 1, rec.count("abricate-get_db", "--db"))
}

func TestAbricate_ScanArguments(t *testing.T) {
	rec := &recordingExecutor{respond: func(tactile.Command) (*tactile.ExecutionResult, error) {
		return ok("#FILE\tSEQUENCE\n"), nil
	}}
	a := NewAbricate(rec, AbricateOptions{
		MinIdentity: 80,
		MinCoverage: 60.5,
		Threads:     4,
		ScanTimeout: time.Minute,
	})

	out, err := a.Scan(context.Background(), "card", "/in/s1.fasta")
	require.NoError(t, err)
	assert.Equal(t, "#FILE\tSEQUENCE\n", string(out))

	require.Len(t, rec.commands, 1)
	cmd := rec.commands[0]
	assert.Equal(t, "abricate", cmd.Binary)
	assert.Equal(t, []string{"--db", "card", "--minid", "80", "--mincov", "60.5", "--threads", "4", "--quiet", "/in/s1.fasta"}, cmd.Arguments)
	assert.Equal(t, time.Minute, cmd.Limits.Timeout)
	assert.Equal(t, "s1.fasta", cmd.Tags["sample"])
}

func TestAbricate_ScanFailures(t *testing.T) {
	tests := []struct {
		name   string
		result *tactile.ExecutionResult
		reason string
	}{
		{"non-zero exit", &tactile.ExecutionResult{Success: true, ExitCode: 2, Stderr: "boom"}, "exit status 2"},
		{"killed", &tactile.ExecutionResult{Success: true, Killed: true, KillReason: "timeout after 1s"}, "timeout after 1s"},
		{"did not start", &tactile.ExecutionResult{Success: false, Error: "exec: not found"}, "exec: not found"},
		{"truncated", &tactile.ExecutionResult{Success: true, Truncated: true, TruncatedBytes: 9, Stdout: []byte("x")}, "output truncated"},
		{"empty output", ok("  \n"), "empty output"},
		{"infrastructure error with zero exit", &tactile.ExecutionResult{Success: true, Error: "wait: io error", Stdout: []byte("hit\n")}, "wait: io error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingExecutor{respond: func(tactile.Command) (*tactile.ExecutionResult, error) {
				return tt.result, nil
			}}
			a := NewAbricate(rec, AbricateOptions{})

			out, err := a.Scan(context.Background(), "card", "/in/s1.fasta")
			assert.Nil(t, out)

			var failure *Failure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, OpScan, failure.Op)
			assert.Equal(t, "card", failure.Database)
			assert.Equal(t, "s1.fasta", failure.Sample)
			assert.Contains(t, failure.Reason, tt.reason)
		})
	}
}

func TestAbricate_ExecutorError(t *testing.T) {
	rec := &recordingExecutor{respond: func(tactile.Command) (*tactile.ExecutionResult, error) {
		return nil, errors.New("binary is required")
	}}
	a := NewAbricate(rec, AbricateOptions{})

	err := a.Setup(context.Background(), "card")
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, OpSetup, failure.Op)
	assert.Contains(t, err.Error(), "binary is required")
}

func TestAbricate_Summarize(t *testing.T) {
	rec := &recordingExecutor{respond: func(tactile.Command) (*tactile.ExecutionResult, error) {
		return ok("#FILE\tNUM_FOUND\n"), nil
	}}
	a := NewAbricate(rec, AbricateOptions{})

	paths := []string{"/out/AMR/card/a.tsv", "/out/AMR/card/b.tsv"}
	out, err := a.Summarize(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, "#FILE\tNUM_FOUND\n", string(out))
	assert.Equal(t, append([]string{"--summary"}, paths...), rec.commands[0].Arguments)

	_, err = a.Summarize(context.Background(), nil)
	assert.Error(t, err)
	assert.Len(t, rec.commands, 1, "empty input must not invoke the tool")
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Op: OpScan, Database: "card", Sample: "s1.fasta", Reason: "exit status 1", Stderr: "bad fasta"}
	assert.Equal(t, "scan failed for database card on s1.fasta: exit status 1 (stderr: bad fasta)", f.Error())

	long := make([]byte, maxStderrExcerpt*2)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, excerpt(string(long)), maxStderrExcerpt+3)
}

// writeFakeAbricate installs a shell script that mimics the abricate CLI.
func writeFakeAbricate(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := `#!/bin/sh
case "$1" in
  --list)
    printf 'DATABASE\tSEQUENCES\tDBTYPE\tDATE\n'
    printf 'card\t10\tnucl\t2024-Jan-01\n'
    ;;
  --summary)
    shift
    printf '#FILE\tNUM_FOUND\n'
    for f in "$@"; do printf '%s\t1\n' "$f"; done
    ;;
  --db)
    if [ "$2" = "broken" ]; then echo "cannot read db" >&2; exit 1; fi
    for last; do :; done
    printf '#FILE\tSEQUENCE\tDATABASE\n%s\tcontig_1\t%s\n' "$last" "$2"
    ;;
esac
`
	path := filepath.Join(dir, "abricate")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestAbricate_WithDirectExecutor(t *testing.T) {
	bin := writeFakeAbricate(t)
	a := NewAbricate(tactile.NewDirectExecutor(), AbricateOptions{Binary: bin, ScanTimeout: 10 * time.Second})
	ctx := context.Background()

	ready, err := a.Check(ctx, "card")
	require.NoError(t, err)
	assert.True(t, ready)

	out, err := a.Scan(ctx, "card", "s1.fasta")
	require.NoError(t, err)
	assert.Contains(t, string(out), "s1.fasta\tcontig_1\tcard")

	_, err = a.Scan(ctx, "broken", "s1.fasta")
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 1, failure.ExitCode)
	assert.Equal(t, "cannot read db", failure.Stderr)

	summary, err := a.Summarize(ctx, []string{"x/card/a.tsv"})
	require.NoError(t, err)
	assert.Contains(t, string(summary), "x/card/a.tsv\t1")
}
