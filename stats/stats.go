package stats

import (
	"math"
	"sort"

	quorumbench "quorum-bench"
)

// Summarize computes percentile statistics over a set of latencies.
// An empty input yields a zero summary.
func Summarize(values []float64) quorumbench.PercentileSummary {
	if len(values) == 0 {
		return quorumbench.PercentileSummary{}
	}

	sorted := sortedCopy(values)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return quorumbench.PercentileSummary{
		Count: len(sorted),
		P50:   percentileSorted(sorted, 50),
		P95:   percentileSorted(sorted, 95),
		P99:   percentileSorted(sorted, 99),
		Mean:  sum / float64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between the closest ranks. Returns 0 for an empty input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return percentileSorted(sortedCopy(values), p)
}

// Median is Percentile(values, 50)
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// CDF returns the sorted values and, for each, the cumulative share of samples in percent
func CDF(values []float64) (xs, ys []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	xs = sortedCopy(values)
	ys = make([]float64, len(xs))
	for i := range xs {
		ys[i] = float64(i+1) / float64(len(xs)) * 100
	}
	return xs, ys
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func percentileSorted(sorted []float64, p float64) float64 {
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}

	rank := float64(len(sorted)-1) * p / 100
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
