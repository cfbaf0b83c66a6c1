// Package scannertest provides an in-memory Scanner for tests.
package scannertest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"contigscreen/internal/scanner"
)

// Call records one invocation of the fake.
type Call struct {
	Op       scanner.Op
	Database string
	Sample   string
	Paths    []string
}

// Fake is a deterministic Scanner. The zero value has no ready databases
// and every setup succeeds.
type Fake struct {
	// Delay is applied to every Scan, which lets tests observe parallelism.
	Delay time.Duration

	mu             sync.Mutex
	ready          map[string]bool
	setupFails     map[string]bool
	setupNoEffect  map[string]bool
	scanFails      map[string]bool
	summarizeFails map[string]bool
	emptyScan      map[string]bool
	calls          []Call
	inFlight       int
	maxInFlight    int
}

// New returns a Fake with the given databases already ready.
func New(ready ...string) *Fake {
	f := &Fake{}
	for _, db := range ready {
		f.setReady(db)
	}
	return f
}

func (f *Fake) setReady(db string) {
	if f.ready == nil {
		f.ready = make(map[string]bool)
	}
	f.ready[db] = true
}

func set(m *map[string]bool, key string) {
	if *m == nil {
		*m = make(map[string]bool)
	}
	(*m)[key] = true
}

// FailSetup makes Setup for db return an error.
func (f *Fake) FailSetup(db string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	set(&f.setupFails, db)
	return f
}

// SetupWithoutEffect makes Setup for db succeed while leaving it not ready.
func (f *Fake) SetupWithoutEffect(db string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	set(&f.setupNoEffect, db)
	return f
}

// FailScan makes Scan fail for db on the sample file with the given base name.
func (f *Fake) FailScan(db, sample string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	set(&f.scanFails, db+"|"+sample)
	return f
}

// EmptyScan makes Scan for db on sample return no output.
func (f *Fake) EmptyScan(db, sample string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	set(&f.emptyScan, db+"|"+sample)
	return f
}

// FailSummarize makes Summarize fail when the result files live in a
// directory named db.
func (f *Fake) FailSummarize(db string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	set(&f.summarizeFails, db)
	return f
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *Fake) Check(ctx context.Context, database string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.record(Call{Op: scanner.OpCheck, Database: database})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready[database], nil
}

func (f *Fake) Setup(ctx context.Context, database string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record(Call{Op: scanner.OpSetup, Database: database})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setupFails[database] {
		return &scanner.Failure{Op: scanner.OpSetup, Database: database, ExitCode: 1, Reason: "exit status 1"}
	}
	if !f.setupNoEffect[database] {
		f.setReady(database)
	}
	return nil
}

func (f *Fake) Scan(ctx context.Context, database, samplePath string) ([]byte, error) {
	sample := filepath.Base(samplePath)
	f.record(Call{Op: scanner.OpScan, Database: database, Sample: sample})

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	fail := f.scanFails[database+"|"+sample]
	empty := f.emptyScan[database+"|"+sample]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case fail:
		return nil, &scanner.Failure{Op: scanner.OpScan, Database: database, Sample: sample, ExitCode: 1, Reason: "exit status 1"}
	case empty:
		return nil, &scanner.Failure{Op: scanner.OpScan, Database: database, Sample: sample, Reason: "empty output"}
	}
	return ScanOutput(database, samplePath), nil
}

// Summarize concatenates the result files under a fixed header.
func (f *Fake) Summarize(ctx context.Context, resultPaths []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.record(Call{Op: scanner.OpSummarize, Paths: append([]string(nil), resultPaths...)})
	if len(resultPaths) == 0 {
		return nil, &scanner.Failure{Op: scanner.OpSummarize, Reason: "no result files"}
	}

	db := filepath.Base(filepath.Dir(resultPaths[0]))
	f.mu.Lock()
	fail := f.summarizeFails[db]
	f.mu.Unlock()
	if fail {
		return nil, &scanner.Failure{Op: scanner.OpSummarize, Database: db, ExitCode: 1, Reason: "exit status 1"}
	}

	var buf bytes.Buffer
	buf.WriteString(SummaryHeader)
	for _, p := range resultPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &scanner.Failure{Op: scanner.OpSummarize, Database: db, Reason: err.Error()}
		}
		fmt.Fprintf(&buf, "%s\t%d\n", filepath.Base(p), len(data))
	}
	return buf.Bytes(), nil
}

// SummaryHeader starts every summary the fake produces.
const SummaryHeader = "#FILE\tSIZE\n"

// ScanOutput is the exact result the fake produces for a successful scan.
func ScanOutput(database, samplePath string) []byte {
	return []byte(fmt.Sprintf("#FILE\tSEQUENCE\tDATABASE\n%s\tcontig_1\t%s\n", filepath.Base(samplePath), database))
}

// Calls returns the recorded invocations of op, in call order.
func (f *Fake) Calls(op scanner.Op) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// CallCount counts invocations of op for database.
func (f *Fake) CallCount(op scanner.Op, database string) int {
	n := 0
	for _, c := range f.Calls(op) {
		if c.Database == database {
			n++
		}
	}
	return n
}

// MaxConcurrentScans reports the highest number of overlapping Scan calls.
func (f *Fake) MaxConcurrentScans() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

var _ scanner.Scanner = (*Fake)(nil)
