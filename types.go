package quorumbench

import (
	"fmt"
	"strings"
)

// Operation is the type of a benchmarked key-value operation
type Operation string

const (
	OpGet Operation = "GET"
	OpPut Operation = "PUT"
)

// Operations lists the operation types in reporting order
var Operations = []Operation{OpGet, OpPut}

// ParseOperation parses an operation name case-insensitively
func ParseOperation(s string) (Operation, bool) {
	switch Operation(strings.ToUpper(s)) {
	case OpGet:
		return OpGet, true
	case OpPut:
		return OpPut, true
	}
	return "", false
}

// LatencyRecord represents the latency of a single benchmarked operation
type LatencyRecord struct {
	Operation Operation
	LatencyMs float64
}

// ConfigurationKey identifies one quorum configuration of a sweep
type ConfigurationKey struct {
	Name string
	N    int
	W    int
	R    int
}

// Label returns the axis label used in comparison charts
func (k ConfigurationKey) Label() string {
	return fmt.Sprintf("N=%d,W=%d,R=%d", k.N, k.W, k.R)
}

// SameQuorum reports whether both keys carry the same (N, W, R) triple
func (k ConfigurationKey) SameQuorum(other ConfigurationKey) bool {
	return k.N == other.N && k.W == other.W && k.R == other.R
}

// TaggedRecord is a latency record together with the configuration it was measured under
type TaggedRecord struct {
	Key    ConfigurationKey
	Record LatencyRecord
}

// PercentileSummary holds summary statistics for one sequence of latencies
type PercentileSummary struct {
	Count int
	P50   float64
	P95   float64
	P99   float64
	Mean  float64
	Min   float64
	Max   float64
}

// LatencyRow is the columnar form of a tagged record
type LatencyRow struct {
	Config    string  `parquet:"name=config, type=BYTE_ARRAY, convertedtype=UTF8"`
	N         int32   `parquet:"name=n, type=INT32"`
	W         int32   `parquet:"name=w, type=INT32"`
	R         int32   `parquet:"name=r, type=INT32"`
	Operation string  `parquet:"name=operation, type=BYTE_ARRAY, convertedtype=UTF8"`
	LatencyMs float64 `parquet:"name=latency_ms, type=DOUBLE"`
	Sequence  int64   `parquet:"name=sequence, type=INT64"`
}

// NewLatencyRow converts a tagged record into a row; seq is its position in the source log
func NewLatencyRow(rec TaggedRecord, seq int64) LatencyRow {
	return LatencyRow{
		Config:    rec.Key.Name,
		N:         int32(rec.Key.N),
		W:         int32(rec.Key.W),
		R:         int32(rec.Key.R),
		Operation: string(rec.Record.Operation),
		LatencyMs: rec.Record.LatencyMs,
		Sequence:  seq,
	}
}
