package logparse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quorumbench "quorum-bench"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		op      quorumbench.Operation
		latency float64
		format  string
	}{
		{"timestamped", "[2024-01-01 10:00:00] GET key=key1 latency=1.25ms", true, quorumbench.OpGet, 1.25, "timestamped"},
		{"plain", "PUT key=key42 latency=0.75ms", true, quorumbench.OpPut, 0.75, "plain"},
		{"minimal", "GET key=key3 latency=12", true, quorumbench.OpGet, 12, "minimal"},
		{"lower case op", "get key=k latency=2.5ms", true, quorumbench.OpGet, 2.5, "plain"},
		{"mixed case op", "[x] Put key=k latency=3ms", true, quorumbench.OpPut, 3, "timestamped"},
		{"config tagged is still basic", "[N3_W2_R2] GET key=k latency=4.5ms N=3 W=2 R=2", true, quorumbench.OpGet, 4.5, "timestamped"},
		{"unknown op", "DELETE key=k latency=1.0ms", false, "", 0, ""},
		{"no latency", "GET key=k", false, "", 0, ""},
		{"bad float", "GET key=k latency=1.2.3ms", false, "", 0, ""},
		{"only dot", "GET key=k latency=.ms", false, "", 0, ""},
		{"empty", "", false, "", 0, ""},
		{"progress output", "  Progress: 200/1000 operations", false, "", 0, ""},
		{"op inside word", "budget key=k latency=1ms", false, "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := ParseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.format, LineFormat(tt.line))
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.op, rec.Operation)
			assert.InDelta(t, tt.latency, rec.LatencyMs, 1e-9)
		})
	}
}

func TestParseLinePriority(t *testing.T) {
	// the first recognizer wins even though later ones would also match
	line := "[ts] GET key=a latency=5ms trailing PUT key=b latency=9"
	rec, ok := ParseLine(line)
	require.True(t, ok)
	assert.Equal(t, quorumbench.OpGet, rec.Operation)
	assert.Equal(t, 5.0, rec.LatencyMs)
	assert.Equal(t, "timestamped", LineFormat(line))
}

func TestParseConfigLine(t *testing.T) {
	rec, ok := ParseConfigLine("[N20_W10_R5] PUT key=key7 latency=0.42ms N=20 W=10 R=5")
	require.True(t, ok)
	assert.Equal(t, quorumbench.ConfigurationKey{Name: "N20_W10_R5", N: 20, W: 10, R: 5}, rec.Key)
	assert.Equal(t, quorumbench.OpPut, rec.Record.Operation)
	assert.Equal(t, 0.42, rec.Record.LatencyMs)

	rejected := []string{
		"PUT key=key7 latency=0.42ms N=20 W=10 R=5",
		"[N20_W10_R5] PUT key=key7 latency=0.42ms N=20 W=10",
		"[N20_W10_R5] PUT key=key7 latency=0.42ms N=20 W=x R=5",
		"[N20_W10_R5] PUT key=key7 latency=0.42 N=20 W=10 R=5",
		"[N20_W10_R5] PUT key=key7 latency=1..2ms N=20 W=10 R=5",
		"[] PUT key=key7 latency=0.42ms N=20 W=10 R=5",
	}
	for _, line := range rejected {
		_, ok := ParseConfigLine(line)
		assert.False(t, ok, line)
	}
}

func TestFormatConfigLineRoundTrip(t *testing.T) {
	key := quorumbench.ConfigurationKey{Name: "N5_W3_R4", N: 5, W: 3, R: 4}

	for _, raw := range []string{
		"GET key=key1 latency=1.37ms",
		"[10:00:01] PUT key=key2 latency=0.5ms",
		"get key=key3 latency=7",
	} {
		line, ok := FormatConfigLine(key, raw)
		require.True(t, ok, raw)

		rec, ok := ParseConfigLine(line)
		require.True(t, ok, line)
		assert.Equal(t, key, rec.Key)

		want, _ := ParseLine(raw)
		assert.Equal(t, want, rec.Record)
	}

	_, ok := FormatConfigLine(key, "Benchmark complete!")
	assert.False(t, ok)
}

func TestReadBasicLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.log")
	content := strings.Join([]string{
		"GET key=key1 latency=1.00ms",
		"garbage",
		"PUT key=key2 latency=2.00ms",
		"",
		"GET key=key3 latency=3",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := ReadBasicLog(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, quorumbench.LatencyRecord{Operation: quorumbench.OpGet, LatencyMs: 1}, records[0])
	assert.Equal(t, quorumbench.LatencyRecord{Operation: quorumbench.OpPut, LatencyMs: 2}, records[1])
	assert.Equal(t, quorumbench.LatencyRecord{Operation: quorumbench.OpGet, LatencyMs: 3}, records[2])
}

func TestReadMissingLogIsNoData(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.log")

	records, err := ReadBasicLog(missing)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, records)

	tagged, err := ReadConfigLog(missing)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, tagged)

	lines, err := ReadLines(missing)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, lines)
}

func TestReadConfigLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency_configs.log")
	content := "[N3_W1_R1] GET key=k latency=1.5ms N=3 W=1 R=1\n" +
		"[N3_W1_R1] PUT key=k latency=2.5ms N=3 W=1 R=1\n" +
		"GET key=k latency=1.5ms\n" +
		"[N5_W2_R2] GET key=k latency=3.5ms N=5 W=2 R=2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := ReadConfigLog(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "N3_W1_R1", records[0].Key.Name)
	assert.Equal(t, "N5_W2_R2", records[2].Key.Name)
}

func TestParseLines(t *testing.T) {
	records := ParseLines([]string{"GET key=a latency=1ms", "noise", "PUT key=b latency=2ms"})
	assert.Len(t, records, 2)
}
