package sparsedex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordCommit is called after each commit (builder-to-segment flush).
	RecordCommit(rowCount int, duration time.Duration, err error)

	// RecordSearch is called after each search operation. brute reports
	// whether the brute-force path was used.
	RecordSearch(k int, brute bool, duration time.Duration, err error)

	// RecordMerge is called after each background merge.
	RecordMerge(inputSegments int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)                {}
func (NoopMetricsCollector) RecordCommit(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordSearch(int, bool, time.Duration, error)     {}
func (NoopMetricsCollector) RecordMerge(int, time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	CommitCount      atomic.Int64
	CommitRows       atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	BruteSearches    atomic.Int64
	MergeCount       atomic.Int64
	MergeErrors      atomic.Int64
}

func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordCommit(rowCount int, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitRows.Add(int64(rowCount))
}

func (b *BasicMetricsCollector) RecordSearch(k int, brute bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if brute {
		b.BruteSearches.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordMerge(inputSegments int, duration time.Duration, err error) {
	b.MergeCount.Add(1)
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: b.avgNanos(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		CommitCount:    b.CommitCount.Load(),
		CommitRows:     b.CommitRows.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.avgNanos(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		BruteSearches:  b.BruteSearches.Load(),
		MergeCount:     b.MergeCount.Load(),
		MergeErrors:    b.MergeErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	CommitCount    int64
	CommitRows     int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	BruteSearches  int64
	MergeCount     int64
	MergeErrors    int64
}
