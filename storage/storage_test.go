package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	quorumbench "quorum-bench"
	"quorum-bench/logparse"
)

var testKey = quorumbench.ConfigurationKey{Name: "N5_W3_R3", N: 5, W: 3, R: 3}

func TestSweepLogAppendTagsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "latency_configs.log")
	sl, err := OpenSweepLog(path)
	require.NoError(t, err)

	n, err := sl.Append(testKey, []string{
		"PUT key=key0 latency=0.12ms",
		"",
		"not a latency line",
		"GET key=key1 latency=0.34ms",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	other := quorumbench.ConfigurationKey{Name: "N3_W1_R1", N: 3, W: 1, R: 1}
	_, err = sl.Append(other, []string{"GET key=key2 latency=1ms"})
	require.NoError(t, err)
	assert.Equal(t, 3, sl.Lines())
	require.NoError(t, sl.Close())

	records, err := logparse.ReadConfigLog(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, testKey, records[0].Key)
	assert.Equal(t, quorumbench.OpPut, records[0].Record.Operation)
	assert.Equal(t, testKey, records[1].Key)
	assert.Equal(t, other, records[2].Key)
}

func TestSweepLogTruncatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency_configs.log")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0644))

	sl, err := OpenSweepLog(path)
	require.NoError(t, err)
	require.NoError(t, sl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestOpenSweepLogFailsOnDirectory(t *testing.T) {
	_, err := OpenSweepLog(t.TempDir())
	assert.Error(t, err)
}

func TestWriteBasicLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.log")
	require.NoError(t, WriteBasicLog(path, []string{"GET key=a latency=1ms\n", "PUT key=b latency=2ms"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "GET key=a latency=1ms\nPUT key=b latency=2ms\n", string(data))

	records, err := logparse.ReadBasicLog(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExportRecordsParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.parquet")
	records := []quorumbench.TaggedRecord{
		{Key: testKey, Record: quorumbench.LatencyRecord{Operation: quorumbench.OpGet, LatencyMs: 1.5}},
		{Key: testKey, Record: quorumbench.LatencyRecord{Operation: quorumbench.OpPut, LatencyMs: 2.5}},
		{Key: testKey, Record: quorumbench.LatencyRecord{Operation: quorumbench.OpGet, LatencyMs: 3.5}},
	}

	n, err := ExportRecords(path, records)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	file, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer file.Close()

	pr, err := reader.NewParquetReader(file, new(quorumbench.LatencyRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(3), pr.GetNumRows())
	rows := make([]quorumbench.LatencyRow, 3)
	require.NoError(t, pr.Read(&rows))
	assert.Equal(t, quorumbench.NewLatencyRow(records[1], 1), rows[1])
	assert.Equal(t, int64(2), rows[2].Sequence)
}

func TestPrometheusExporter(t *testing.T) {
	pe := NewPrometheusExporter()

	pe.RecordRun(testKey, "Completed", 2*time.Second)
	pe.RecordRun(testKey, "TimedOut", 300*time.Second)
	pe.ObserveRecords(testKey, []quorumbench.LatencyRecord{
		{Operation: quorumbench.OpGet, LatencyMs: 0.5},
		{Operation: quorumbench.OpGet, LatencyMs: 1.5},
	})
	pe.UpdateSummary(testKey, quorumbench.OpGet, quorumbench.PercentileSummary{P50: 1, P95: 1.4, P99: 1.48})
	pe.UpdateHostStats(testKey, 12.5, 40)

	assert.Equal(t, 1.0, testutil.ToFloat64(pe.runsCounter.WithLabelValues(testKey.Name, "Completed")))
	assert.Equal(t, 300.0, testutil.ToFloat64(pe.durationGauge.WithLabelValues(testKey.Name)))
	assert.Equal(t, 1.48, testutil.ToFloat64(pe.quantileGauge.WithLabelValues(testKey.Name, "GET", "0.99")))
	assert.Equal(t, 12.5, testutil.ToFloat64(pe.cpuGauge.WithLabelValues(testKey.Name)))
	assert.Equal(t, 1, testutil.CollectAndCount(pe.latencyHistogram))

	path := filepath.Join(t.TempDir(), "quorum_bench.prom")
	require.NoError(t, pe.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `quorum_bench_runs_total{config="N5_W3_R3",state="TimedOut"} 1`))
}
