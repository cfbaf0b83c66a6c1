package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestOpen_SplitsInfoAndErrors(t *testing.T) {
	dir := t.TempDir()
	sinks, err := Open(Options{Dir: dir, Level: "info"})
	require.NoError(t, err)

	logger := sinks.Logger(CategoryDispatch)
	logger.Info("scan finished")
	logger.Warn("sample skipped")
	logger.Error("scan failed")
	logger.Debug("hidden at info level")
	require.NoError(t, sinks.Close())

	info := readFile(t, filepath.Join(dir, DefaultInfoFile))
	errs := readFile(t, filepath.Join(dir, DefaultErrorFile))

	assert.Contains(t, info, "scan finished")
	assert.Contains(t, info, "dispatch")
	assert.NotContains(t, info, "scan failed")
	assert.NotContains(t, info, "sample skipped")
	assert.NotContains(t, info, "hidden at info level")

	assert.Contains(t, errs, "scan failed")
	assert.Contains(t, errs, "sample skipped")
	assert.NotContains(t, errs, "scan finished")
}

func TestOpen_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first run", "second run"} {
		sinks, err := Open(Options{Dir: dir})
		require.NoError(t, err)
		sinks.Logger(CategoryBoot).Info(msg)
		require.NoError(t, sinks.Close())
	}

	info := readFile(t, filepath.Join(dir, DefaultInfoFile))
	assert.Contains(t, info, "first run")
	assert.Contains(t, info, "second run")
	assert.Equal(t, 2, strings.Count(info, "\n"))
}

func TestOpen_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	sinks, err := Open(Options{Dir: dir, Format: "json"})
	require.NoError(t, err)
	sinks.Logger(CategoryReadiness).Info("database ready")
	require.NoError(t, sinks.Close())

	info := readFile(t, filepath.Join(dir, DefaultInfoFile))
	assert.Contains(t, info, `"category":"readiness"`)
	assert.Contains(t, info, `"msg":"database ready"`)
}

func TestOpen_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	sinks, err := Open(Options{Dir: dir, Level: "debug"})
	require.NoError(t, err)
	sinks.Logger(CategoryScanner).Debug("running abricate")
	require.NoError(t, sinks.Close())

	assert.Contains(t, readFile(t, filepath.Join(dir, DefaultInfoFile)), "running abricate")
}

func TestOpen_CreatesDirAndCustomNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	sinks, err := Open(Options{Dir: dir, InfoFile: "out.log", ErrorFile: "err.log"})
	require.NoError(t, err)
	require.NoError(t, sinks.Close())

	assert.FileExists(t, filepath.Join(dir, "out.log"))
	assert.FileExists(t, filepath.Join(dir, "err.log"))
}

func TestOpen_RejectsSameFile(t *testing.T) {
	_, err := Open(Options{Dir: t.TempDir(), InfoFile: "x.log", ErrorFile: "x.log"})
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	sinks, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, sinks.Close())
	assert.NoError(t, sinks.Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", ParseLevel("DEBUG").String())
	assert.Equal(t, "warn", ParseLevel("warning").String())
	assert.Equal(t, "error", ParseLevel("error").String())
	assert.Equal(t, "info", ParseLevel("bogus").String())
}

func TestTimer(t *testing.T) {
	dir := t.TempDir()
	sinks, err := Open(Options{Dir: dir})
	require.NoError(t, err)

	timer := StartTimer(sinks.Logger(CategoryAggregate), "summarize card")
	elapsed := timer.StopWithInfo()
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))

	slow := StartTimer(sinks.Logger(CategoryAggregate), "summarize vfdb")
	time.Sleep(2 * time.Millisecond)
	slow.StopWithThreshold(time.Nanosecond)
	require.NoError(t, sinks.Close())

	assert.Contains(t, readFile(t, filepath.Join(dir, DefaultInfoFile)), "summarize card completed")
	assert.Contains(t, readFile(t, filepath.Join(dir, DefaultErrorFile)), "summarize vfdb was slow")
}

func TestFor(t *testing.T) {
	assert.NotNil(t, For(nil, CategoryDispatch))

	core, logs := observer.New(zapcore.InfoLevel)
	For(zap.New(core), CategoryDispatch).Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "dispatch", logs.All()[0].ContextMap()["category"])
}
