package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWatcher(t *testing.T, dir string, fired chan<- []string) *Watcher {
	t.Helper()
	w, err := New(Config{
		Dir:      dir,
		Suffix:   ".fasta",
		Debounce: 150 * time.Millisecond,
		Tick:     10 * time.Millisecond,
	}, func(_ context.Context, paths []string) {
		fired <- paths
	})
	require.NoError(t, err)
	return w
}

func TestWatcher_TriggersOnceForBurst(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan []string, 4)
	w := newTestWatcher(t, dir, fired)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for _, name := range []string{"b.fasta", "a.fasta", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(">c\nA\n"), 0o644))
	}

	select {
	case paths := <-fired:
		assert.Equal(t, []string{filepath.Join(dir, "a.fasta"), filepath.Join(dir, "b.fasta")}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("trigger not fired")
	}

	select {
	case paths := <-fired:
		t.Fatalf("unexpected second trigger: %v", paths)
	case <-time.After(400 * time.Millisecond):
	}

	stats := w.Stats()
	assert.Equal(t, 1, stats.Triggers)
	assert.GreaterOrEqual(t, stats.Events, 2)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan []string, 1)
	w := newTestWatcher(t, dir, fired)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644))

	select {
	case paths := <-fired:
		t.Fatalf("unexpected trigger: %v", paths)
	case <-time.After(400 * time.Millisecond):
	}
	w.Stop()
	w.Stop()
	assert.Zero(t, w.Stats().Events)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, make(chan []string, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w := newTestWatcher(t, filepath.Join(t.TempDir(), "missing"), make(chan []string, 1))
	assert.Error(t, w.Start(context.Background()))
}

func TestNew_RequiresTrigger(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, ErrNoTrigger)
}
