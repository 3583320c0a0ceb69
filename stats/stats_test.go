package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quorumbench "quorum-bench"
)

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, quorumbench.PercentileSummary{}, Summarize(nil))
	assert.Equal(t, quorumbench.PercentileSummary{}, Summarize([]float64{}))
}

func TestSummarizeSingle(t *testing.T) {
	s := Summarize([]float64{7.5})
	assert.Equal(t, quorumbench.PercentileSummary{
		Count: 1, P50: 7.5, P95: 7.5, P99: 7.5, Mean: 7.5, Min: 7.5, Max: 7.5,
	}, s)
}

func TestPercentileLinearInterpolation(t *testing.T) {
	tests := []struct {
		values []float64
		p      float64
		want   float64
	}{
		{[]float64{1, 2, 3, 4}, 50, 2.5},
		{[]float64{1, 2, 3, 4, 5}, 50, 3},
		{[]float64{1, 2, 3, 4, 5}, 95, 4.8},
		{[]float64{1, 2, 3, 4, 5}, 99, 4.96},
		{[]float64{10, 20}, 25, 12.5},
		{[]float64{3, 1, 2}, 0, 1},
		{[]float64{3, 1, 2}, 100, 3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(tt.values, tt.p), 1e-9, "p%v of %v", tt.p, tt.values)
	}
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestSummarizeDoesNotMutateInput(t *testing.T) {
	values := []float64{5, 3, 9, 1}
	Summarize(values)
	assert.Equal(t, []float64{5, 3, 9, 1}, values)
}

func TestSummarizePermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 500)
	for i := range values {
		values[i] = rng.ExpFloat64() * 3
	}
	want := Summarize(values)

	for i := 0; i < 5; i++ {
		shuffled := append([]float64(nil), values...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Summarize(shuffled)
		assert.Equal(t, want.P50, got.P50)
		assert.Equal(t, want.P95, got.P95)
		assert.Equal(t, want.P99, got.P99)
		assert.Equal(t, want.Min, got.Min)
		assert.Equal(t, want.Max, got.Max)
		assert.InDelta(t, want.Mean, got.Mean, 1e-9)
	}
}

func TestSummarizeDuplicatedSamples(t *testing.T) {
	values := []float64{4, 1, 7, 2, 9, 3}
	doubled := append(append([]float64(nil), values...), values...)

	a, b := Summarize(values), Summarize(doubled)
	assert.InDelta(t, a.P50, b.P50, 1e-9)
	assert.InDelta(t, a.Mean, b.Mean, 1e-9)
	assert.Equal(t, a.Min, b.Min)
	assert.Equal(t, a.Max, b.Max)
	assert.Equal(t, 2*a.Count, b.Count)

	// upper percentiles stay ordered and inside the sample range
	for _, s := range []quorumbench.PercentileSummary{a, b} {
		assert.LessOrEqual(t, s.Min, s.P50)
		assert.LessOrEqual(t, s.P50, s.P95)
		assert.LessOrEqual(t, s.P95, s.P99)
		assert.LessOrEqual(t, s.P99, s.Max)
	}
}

func TestSummarizeTailLatency(t *testing.T) {
	values := make([]float64, 0, 1000)
	for i := 0; i < 900; i++ {
		values = append(values, 1.0+4.0*float64(i)/899)
	}
	for i := 0; i < 100; i++ {
		values = append(values, 50)
	}

	s := Summarize(values)
	assert.GreaterOrEqual(t, s.P99, 50.0)
	assert.GreaterOrEqual(t, s.P50, 1.0)
	assert.LessOrEqual(t, s.P50, 5.0)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
}

func TestCDF(t *testing.T) {
	xs, ys := CDF([]float64{3, 1, 2, 4})
	require.Len(t, xs, 4)
	assert.Equal(t, []float64{1, 2, 3, 4}, xs)
	assert.Equal(t, []float64{25, 50, 75, 100}, ys)

	xs, ys = CDF(nil)
	assert.Nil(t, xs)
	assert.Nil(t, ys)
}
