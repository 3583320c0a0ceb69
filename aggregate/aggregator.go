// Package aggregate groups parsed latency records into per-configuration
// buckets and derives the comparison views used by the reports.
package aggregate

import (
	"sort"

	"github.com/pkg/errors"

	quorumbench "quorum-bench"
	"quorum-bench/stats"
)

var (
	// ErrKeyConflict is returned when a record would bind a configuration name
	// to a second (N, W, R) triple, or a triple to a second name.
	ErrKeyConflict = errors.New("configuration key conflict")
	// ErrFrozen is returned when adding to an aggregator after Freeze.
	ErrFrozen = errors.New("aggregator is frozen")
)

// DefaultKey is the implicit configuration of untagged basic-log records.
var DefaultKey = quorumbench.ConfigurationKey{Name: "basic", N: 3, W: 2, R: 2}

// Bucket holds the latencies collected for one configuration, split by operation.
type Bucket struct {
	Key quorumbench.ConfigurationKey

	values map[quorumbench.Operation][]float64
}

func newBucket(key quorumbench.ConfigurationKey) *Bucket {
	return &Bucket{
		Key: key,
		values: map[quorumbench.Operation][]float64{
			quorumbench.OpGet: {},
			quorumbench.OpPut: {},
		},
	}
}

// Values returns the latencies of op in arrival order. The slice must not be modified.
func (b *Bucket) Values(op quorumbench.Operation) []float64 {
	return b.values[op]
}

// Count returns the number of samples recorded for op.
func (b *Bucket) Count(op quorumbench.Operation) int {
	return len(b.values[op])
}

// Total returns the number of samples across all operations.
func (b *Bucket) Total() int {
	n := 0
	for _, v := range b.values {
		n += len(v)
	}
	return n
}

// Summary computes the percentile summary for op. Nothing is cached.
func (b *Bucket) Summary(op quorumbench.Operation) quorumbench.PercentileSummary {
	return stats.Summarize(b.values[op])
}

// Label returns the chart label of the bucket's configuration.
func (b *Bucket) Label() string {
	return b.Key.Label()
}

// Aggregator maps configuration names to buckets. Buckets are created
// explicitly on the first record of a configuration and kept in that order.
type Aggregator struct {
	buckets  map[string]*Bucket
	byTriple map[[3]int]string
	order    []string
	frozen   bool
}

// New creates an empty aggregator
func New() *Aggregator {
	return &Aggregator{
		buckets:  make(map[string]*Bucket),
		byTriple: make(map[[3]int]string),
	}
}

// FromBasic aggregates untagged records under DefaultKey.
func FromBasic(records []quorumbench.LatencyRecord) *Aggregator {
	agg := New()
	for _, rec := range records {
		// DefaultKey can not conflict with itself
		_ = agg.AddRecord(rec)
	}
	agg.Freeze()
	return agg
}

// AddRecord adds an untagged record under DefaultKey.
func (a *Aggregator) AddRecord(rec quorumbench.LatencyRecord) error {
	return a.Add(quorumbench.TaggedRecord{Key: DefaultKey, Record: rec})
}

// Add appends a tagged record to its configuration's bucket.
func (a *Aggregator) Add(rec quorumbench.TaggedRecord) error {
	if a.frozen {
		return ErrFrozen
	}
	bucket, err := a.bucketFor(rec.Key)
	if err != nil {
		return err
	}
	bucket.values[rec.Record.Operation] = append(bucket.values[rec.Record.Operation], rec.Record.LatencyMs)
	return nil
}

// AddAll adds every record, skipping the conflicting ones. The conflicts are
// returned so the caller can report them.
func (a *Aggregator) AddAll(records []quorumbench.TaggedRecord) []error {
	var errs []error
	for _, rec := range records {
		if err := a.Add(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (a *Aggregator) bucketFor(key quorumbench.ConfigurationKey) (*Bucket, error) {
	triple := [3]int{key.N, key.W, key.R}

	if bucket, ok := a.buckets[key.Name]; ok {
		if !bucket.Key.SameQuorum(key) {
			return nil, errors.Wrapf(ErrKeyConflict, "%s is bound to %s, record has %s",
				key.Name, bucket.Key.Label(), key.Label())
		}
		return bucket, nil
	}

	if other, ok := a.byTriple[triple]; ok {
		return nil, errors.Wrapf(ErrKeyConflict, "%s is already recorded as %s", key.Label(), other)
	}

	bucket := newBucket(key)
	a.buckets[key.Name] = bucket
	a.byTriple[triple] = key.Name
	a.order = append(a.order, key.Name)
	return bucket, nil
}

// Freeze marks the end of the parse pass; later Adds fail with ErrFrozen.
func (a *Aggregator) Freeze() {
	a.frozen = true
}

// Bucket returns the bucket for a configuration name.
func (a *Aggregator) Bucket(name string) (*Bucket, bool) {
	b, ok := a.buckets[name]
	return b, ok
}

// Buckets returns all buckets in first-seen order.
func (a *Aggregator) Buckets() []*Bucket {
	out := make([]*Bucket, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.buckets[name])
	}
	return out
}

// Len returns the number of buckets.
func (a *Aggregator) Len() int {
	return len(a.order)
}

// Samples returns every latency of op across all buckets.
func (a *Aggregator) Samples(op quorumbench.Operation) []float64 {
	var out []float64
	for _, name := range a.order {
		out = append(out, a.buckets[name].values[op]...)
	}
	return out
}

// ByConfiguration returns the buckets sorted by ascending W. Ties keep
// first-seen order.
func (a *Aggregator) ByConfiguration() []*Bucket {
	buckets := a.Buckets()
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Key.W < buckets[j].Key.W
	})
	return buckets
}
