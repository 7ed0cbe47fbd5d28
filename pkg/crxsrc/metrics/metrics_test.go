package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := metrics.New()

	r.EntryExtracted("sweep", 100)
	r.EntryExtracted("sweep", 50)
	r.NormalizeFailed("script")
	r.ModulesWritten(3, 10)
	r.Conflicts(2)
	r.CacheHit()
	r.ObserveRun("sweep", 150*time.Millisecond, errors.New("x"))

	count, err := testutil.GatherAndCount(r.Registry(), "crxsrc_entries_extracted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP crxsrc_bytes_written_total Bytes written to output directories
# TYPE crxsrc_bytes_written_total counter
crxsrc_bytes_written_total 160
# HELP crxsrc_modules_reconstructed_total Module files emitted by bundle reconstruction
# TYPE crxsrc_modules_reconstructed_total counter
crxsrc_modules_reconstructed_total 3
# HELP crxsrc_artifacts_failed_total Artifacts whose extraction returned an error
# TYPE crxsrc_artifacts_failed_total counter
crxsrc_artifacts_failed_total 1
`
	err = testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"crxsrc_bytes_written_total", "crxsrc_modules_reconstructed_total", "crxsrc_artifacts_failed_total")
	assert.NoError(t, err)
}

func TestRecorder_Nil(t *testing.T) {
	var r *metrics.Recorder

	assert.NotPanics(t, func() {
		r.EntryExtracted("sweep", 1)
		r.NormalizeFailed("json")
		r.ModulesWritten(1, 1)
		r.Conflicts(1)
		r.CacheHit()
		r.ObserveRun("targeted", time.Second, nil)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteFile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestRecorder_WriteFile(t *testing.T) {
	r := metrics.New()
	r.EntryExtracted("targeted", 7)

	path := filepath.Join(t.TempDir(), "textfile", "crxsrc.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `crxsrc_entries_extracted_total{mode="targeted"} 1`)
	assert.Contains(t, string(data), "go_goroutines")
}
