package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(started time.Time) *Run {
	return &Run{
		ID:         uuid.NewString(),
		InputDir:   "/data/assemblies",
		OutputRoot: "/data/results",
		Status:     RunCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Samples:    2,
		Skipped:    1,
		Setups: []Setup{
			{Database: "dbX", Status: "ready"},
			{Database: "dbY", Status: "failed", Error: "setup failed for database dbY: exit status 1"},
		},
		Scans: []Scan{
			{Sample: "a", Category: "AMR", Database: "dbX", Status: "written", Bytes: 40, Duration: 1500 * time.Millisecond},
			{Sample: "a", Category: "Virulence", Database: "dbY", Status: "failed", Error: "exit status 1"},
			{Sample: "b", Category: "AMR", Database: "dbX", Status: "written", Bytes: 41},
			{Sample: "b", Category: "Virulence", Database: "dbY", Status: "failed", Error: "exit status 1"},
		},
		Pairs: []Pair{
			{Category: "AMR", Database: "dbX", Status: "summarized", Results: 2},
			{Category: "Virulence", Database: "dbY", Status: "no_results"},
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := sampleRun(base)
	newer := sampleRun(base.Add(time.Hour))
	require.NoError(t, s.Record(ctx, older))
	require.NoError(t, s.Record(ctx, newer))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)

	r := runs[0]
	assert.Equal(t, RunCompleted, r.Status)
	assert.Equal(t, "/data/assemblies", r.InputDir)
	assert.Equal(t, 2, r.Samples)
	assert.Equal(t, 1, r.SetupFailed)
	assert.Equal(t, 2, r.ScansWritten)
	assert.Equal(t, 2, r.ScansFailed)
	assert.Equal(t, 1, r.Summarized)
	assert.Equal(t, 1, r.NoResults)
	assert.True(t, r.StartedAt.Equal(base.Add(time.Hour)))
	assert.True(t, r.FinishedAt.Equal(base.Add(time.Hour+time.Minute)))

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFailedScans(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run := sampleRun(time.Now())
	require.NoError(t, s.Record(ctx, run))

	failed, err := s.FailedScans(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "a", failed[0].Sample)
	assert.Equal(t, "dbY", failed[0].Database)
	assert.Equal(t, "exit status 1", failed[0].Error)

	none, err := s.FailedScans(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	first := sampleRun(time.Now())
	first.ID = "aaaa1111-0000"
	second := sampleRun(time.Now())
	second.ID = "aaaa2222-0000"
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	got, err := s.FindRun(ctx, "aaaa1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, 2, got.ScansFailed)

	got, err = s.FindRun(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.FindRun(ctx, "aaaa")
	assert.True(t, errors.Is(err, ErrAmbiguousRun))

	_, err = s.FindRun(ctx, "zzzz")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = s.FindRun(ctx, "")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecord_DuplicateRunRejected(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run := sampleRun(time.Now())

	require.NoError(t, s.Record(ctx, run))
	assert.Error(t, s.Record(ctx, run))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "failed transaction must not leave a partial run")
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleRun(time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
