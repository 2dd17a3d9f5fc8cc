package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readProgress(t *testing.T, path string) *ProgressFile {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var pf ProgressFile
	require.NoError(t, json.Unmarshal(data, &pf))
	return &pf
}

func TestUpdateWithKnownTotalComputesPercent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	w := NewWriter(path, 100)

	require.NoError(t, w.Update(50, 50, 75))

	pf := readProgress(t, path)
	require.Equal(t, "running", pf.Status)
	require.Equal(t, 50.0, pf.Progress.PercentComplete)
	require.Equal(t, 75, pf.Events.Total)
	require.Equal(t, uint64(100), pf.Range.End)
}

func TestUpdateWithUnknownTotalReportsUnknownRemaining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	w := NewWriter(path, 0)

	require.NoError(t, w.Update(10, 10, 10))

	pf := readProgress(t, path)
	require.Equal(t, 0.0, pf.Progress.PercentComplete)
	require.Equal(t, "unknown", pf.Performance.Remaining)
}

func TestCompleteWritesFinalStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	w := NewWriter(path, 0)

	require.NoError(t, w.Complete(20, 30))

	pf := readProgress(t, path)
	require.Equal(t, "completed", pf.Status)
	require.Equal(t, 100.0, pf.Progress.PercentComplete)
	require.Equal(t, "0s", pf.Performance.Remaining)
}

func TestFailedWritesErrorStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	w := NewWriter(path, 0)

	require.NoError(t, w.Failed(5, 5, 8, assert.AnError))

	pf := readProgress(t, path)
	require.Contains(t, pf.Status, "failed:")
	require.Contains(t, pf.Status, assert.AnError.Error())
}

func TestFormatDurationBoundaries(t *testing.T) {
	require.Equal(t, "0s", formatDuration(0))
	require.Equal(t, "5s", formatDuration(5*time.Second))
	require.Equal(t, "1m 5s", formatDuration(65*time.Second))
	require.Equal(t, "1h 0m 1s", formatDuration(3601*time.Second))
}
