package visualisation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quorumbench "quorum-bench"
	"quorum-bench/logparse"
	"quorum-bench/storage"
)

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func basicLog(t *testing.T, dir string) string {
	path := filepath.Join(dir, "latency.log")
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines,
			fmt.Sprintf("[2024-01-01T00:00:%02dZ] GET key=key%d latency=%.2fms", i%60, i, 1+float64(i)*0.1),
			fmt.Sprintf("PUT key=key%d latency=%.2fms", i, 2+float64(i%7)),
		)
	}
	writeLines(t, path, lines)
	return path
}

func configLog(t *testing.T, dir string, triples [][3]int) string {
	path := filepath.Join(dir, "latency_configs.log")
	var lines []string
	for _, tr := range triples {
		key := quorumbench.ConfigurationKey{Name: fmt.Sprintf("N%d_W%d_R%d", tr[0], tr[1], tr[2]), N: tr[0], W: tr[1], R: tr[2]}
		for i := 0; i < 10; i++ {
			for _, raw := range []string{
				fmt.Sprintf("GET key=key%d latency=%.2fms", i, float64(tr[2])+float64(i)*0.5),
				fmt.Sprintf("PUT key=key%d latency=%.2fms", i, float64(tr[1])+float64(i)),
			} {
				line, ok := logparse.FormatConfigLine(key, raw)
				require.True(t, ok)
				lines = append(lines, line)
			}
		}
	}
	writeLines(t, path, lines)
	return path
}

func newTestBuilder(t *testing.T) (*Builder, string, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	dir := filepath.Join(t.TempDir(), "report")
	return NewBuilder(dir, logger), dir, hook
}

func TestBuildFullReport(t *testing.T) {
	in := t.TempDir()
	basic := basicLog(t, in)
	sweep := configLog(t, in, [][3]int{
		{3, 1, 1}, {3, 2, 2},
		{20, 10, 1}, {20, 10, 10}, {20, 10, 20},
		{20, 1, 10}, {20, 20, 10},
	})

	b, dir, _ := newTestBuilder(t)
	report, err := b.Build(basic, sweep)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Conflicts)

	want := []string{
		ReadHistogramFile, WriteHistogramFile, PercentilesFile, CDFFile,
		GetBoxplotFile, PutBoxplotFile, MedianFile, P99File,
		VaryingRFile, VaryingWFile,
	}
	require.Len(t, report.Files, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), report.Files[i])
		info, err := os.Stat(report.Files[i])
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}

func TestBuildSkipsMissingLogs(t *testing.T) {
	in := t.TempDir()
	b, _, hook := newTestBuilder(t)

	report, err := b.Build(filepath.Join(in, "absent.log"), filepath.Join(in, "absent_configs.log"))
	require.NoError(t, err)
	assert.Empty(t, report.Files)
	assert.Equal(t, []string{StageBasic, StageConfig, StageQuorum}, report.Skipped)

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.HasPrefix(e.Message, "Skipped:") {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestBuildSkipsQuorumStageWithoutPivotN(t *testing.T) {
	in := t.TempDir()
	sweep := configLog(t, in, [][3]int{{3, 1, 1}, {5, 3, 3}, {10, 5, 5}})
	b, dir, _ := newTestBuilder(t)

	report, err := b.Build(filepath.Join(in, "absent.log"), sweep)
	require.NoError(t, err)
	assert.Equal(t, []string{StageBasic, StageQuorum}, report.Skipped)
	assert.Len(t, report.Files, 4)
	assert.NoFileExists(t, filepath.Join(dir, VaryingRFile))
	assert.FileExists(t, filepath.Join(dir, MedianFile))
}

func TestBuildReportsKeyConflicts(t *testing.T) {
	in := t.TempDir()
	path := filepath.Join(in, "latency_configs.log")
	writeLines(t, path, []string{
		"[cfg] GET key=a latency=1.00ms N=3 W=1 R=1",
		"[cfg] GET key=b latency=2.00ms N=3 W=2 R=2",
		"[other] PUT key=c latency=3.00ms N=3 W=1 R=1",
		"[cfg] PUT key=d latency=4.00ms N=3 W=1 R=1",
	})
	b, _, _ := newTestBuilder(t)

	report, err := b.Build(filepath.Join(in, "absent.log"), path)
	require.NoError(t, err)
	assert.Len(t, report.Conflicts, 2)
	assert.Len(t, report.Files, 4)
}

func TestHistogramChartEmptyValues(t *testing.T) {
	dir := t.TempDir()
	path, err := HistogramChart(dir, ReadHistogramFile, "Read Latency Distribution", nil, getColor)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

var metricName = regexp.MustCompile(`quorum_bench_[a-z_]+`)

func TestDashboardQueriesExportedMetrics(t *testing.T) {
	exporter := storage.NewPrometheusExporter()
	key := quorumbench.ConfigurationKey{Name: "N3_W1_R1", N: 3, W: 1, R: 1}
	exporter.RecordRun(key, "Completed", time.Second)
	exporter.ObserveRecords(key, []quorumbench.LatencyRecord{{Operation: quorumbench.OpGet, LatencyMs: 1}})
	exporter.UpdateSummary(key, quorumbench.OpGet, quorumbench.PercentileSummary{P50: 1, P95: 1, P99: 1})
	exporter.UpdateHostStats(key, 10, 20)

	families, err := exporter.Registry().Gather()
	require.NoError(t, err)
	exported := map[string]bool{}
	for _, mf := range families {
		exported[mf.GetName()] = true
	}

	dashboard := CreateSweepDashboard()
	require.NotEmpty(t, dashboard.Dashboard.Panels)
	for _, panel := range dashboard.Dashboard.Panels {
		require.NotEmpty(t, panel.Targets, panel.Title)
		for _, target := range panel.Targets {
			for _, name := range metricName.FindAllString(target.Expr, -1) {
				name = strings.TrimSuffix(name, "_bucket")
				assert.True(t, exported[name], "%s queries unknown metric %s", panel.Title, name)
			}
		}
	}

	out := filepath.Join(t.TempDir(), "grafana", "quorum-bench-dashboard.json")
	require.NoError(t, SaveDashboard(dashboard, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Quorum Benchmark Sweep", decoded["dashboard"].(map[string]interface{})["title"])
}
