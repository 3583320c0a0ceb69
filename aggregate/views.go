package aggregate

import "sort"

// The quorum sweep fixes N and pivots on the (W=10, R=10) configuration.
const (
	PivotN = 20
	PivotW = 10
	PivotR = 10
)

// QuorumPoint is one bucket of a quorum sweep, indexed by the varied parameter.
type QuorumPoint struct {
	Value  int
	Bucket *Bucket
}

// QuorumSweep is the "fix one quorum parameter, vary the other" view.
type QuorumSweep struct {
	// VaryingR holds the N=PivotN, W=PivotW buckets sorted by R.
	VaryingR []QuorumPoint
	// VaryingW holds the N=PivotN, R=PivotR buckets sorted by W.
	VaryingW []QuorumPoint
}

// Empty reports whether no bucket had N=PivotN.
func (q QuorumSweep) Empty() bool {
	return len(q.VaryingR) == 0 && len(q.VaryingW) == 0
}

// QuorumSweep partitions the N=PivotN buckets into the varying-R and varying-W
// views. The pivot bucket appears in both.
func (a *Aggregator) QuorumSweep() QuorumSweep {
	var view QuorumSweep
	for _, b := range a.Buckets() {
		if b.Key.N != PivotN {
			continue
		}
		if b.Key.W == PivotW {
			view.VaryingR = append(view.VaryingR, QuorumPoint{Value: b.Key.R, Bucket: b})
		}
		if b.Key.R == PivotR {
			view.VaryingW = append(view.VaryingW, QuorumPoint{Value: b.Key.W, Bucket: b})
		}
	}
	sortPoints(view.VaryingR)
	sortPoints(view.VaryingW)
	return view
}

func sortPoints(points []QuorumPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value < points[j].Value
	})
}

// Values returns the varied parameter of each point, in order.
func Values(points []QuorumPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
