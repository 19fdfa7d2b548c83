package telemetry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	logger, err := NewLogger("")
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync()
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger("not-a-level")
	require.Error(t, err)
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.Candidates.Add(3)
	m.PassErrors.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "sharder_split_candidates_found_total 3")
	assert.Contains(t, string(body), "sharder_pass_errors_total 1")
}

func TestDumpReconCacheWritesElapsed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, DumpReconCache(dir, 2500*time.Millisecond))

	b, err := os.ReadFile(filepath.Join(dir, reconFile))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 2.5, got["container_sharder_pass_completed"])
}

func TestDumpReconCachePreservesOtherKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, reconFile), []byte(`{"other_stat": 7}`), 0o644))

	require.NoError(t, DumpReconCache(dir, time.Second))

	b, err := os.ReadFile(filepath.Join(dir, reconFile))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, float64(7), got["other_stat"])
	assert.Equal(t, float64(1), got["container_sharder_pass_completed"])
}
