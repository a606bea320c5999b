// Package metrics collects real-time counters and timing histograms for
// the storage and query-execution core: page I/O, record-level
// insert/update/delete/get, and per-operator next() calls.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects real-time performance metrics for the
// storage and query engine.
type MetricsCollector struct {
	insertsExecuted uint64
	insertsFailed   uint64
	totalInsertTime uint64 // nanoseconds

	updatesExecuted uint64
	updatesFailed   uint64
	totalUpdateTime uint64

	deletesExecuted uint64
	deletesFailed   uint64
	totalDeleteTime uint64

	getsExecuted uint64
	getsFailed   uint64
	totalGetTime uint64

	pageReads  uint64
	pageWrites uint64

	mu            sync.RWMutex
	operatorNexts map[string]uint64 // keyed by operator kind: heap_scan, aggregate, hash_eq_join, nested_loop_join

	insertTimings *TimingHistogram
	updateTimings *TimingHistogram
	deleteTimings *TimingHistogram
	getTimings    *TimingHistogram

	startTime time.Time
}

// TimingHistogram stores timing data in buckets for histogram generation,
// plus a bounded recent-timings window for percentile estimates.
type TimingHistogram struct {
	bucket0_1ms      uint64 // 0-1ms
	bucket1_10ms     uint64 // 1-10ms
	bucket10_100ms   uint64 // 10-100ms
	bucket100_1000ms uint64 // 100-1000ms
	bucket1000ms     uint64 // >1s

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operatorNexts: make(map[string]uint64),
		insertTimings: NewTimingHistogram(1000),
		updateTimings: NewTimingHistogram(1000),
		deleteTimings: NewTimingHistogram(1000),
		getTimings:    NewTimingHistogram(1000),
		startTime:     time.Now(),
	}
}

// NewTimingHistogram creates a new timing histogram.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// RecordInsert records a StorageManager.InsertValue call.
func (mc *MetricsCollector) RecordInsert(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.insertsExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.insertsFailed, 1)
	}
	atomic.AddUint64(&mc.totalInsertTime, uint64(duration.Nanoseconds()))
	mc.insertTimings.Record(duration)
}

// RecordUpdate records a StorageManager.UpdateValue call.
func (mc *MetricsCollector) RecordUpdate(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.updatesExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.updatesFailed, 1)
	}
	atomic.AddUint64(&mc.totalUpdateTime, uint64(duration.Nanoseconds()))
	mc.updateTimings.Record(duration)
}

// RecordDelete records a StorageManager.DeleteValue call.
func (mc *MetricsCollector) RecordDelete(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.deletesExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.deletesFailed, 1)
	}
	atomic.AddUint64(&mc.totalDeleteTime, uint64(duration.Nanoseconds()))
	mc.deleteTimings.Record(duration)
}

// RecordGet records a StorageManager.GetValue call.
func (mc *MetricsCollector) RecordGet(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.getsExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.getsFailed, 1)
	}
	atomic.AddUint64(&mc.totalGetTime, uint64(duration.Nanoseconds()))
	mc.getTimings.Record(duration)
}

// RecordPageRead records one HeapFile page read.
func (mc *MetricsCollector) RecordPageRead() {
	atomic.AddUint64(&mc.pageReads, 1)
}

// RecordPageWrite records one HeapFile page write.
func (mc *MetricsCollector) RecordPageWrite() {
	atomic.AddUint64(&mc.pageWrites, 1)
}

// RecordOperatorNext records one next() call served by the named operator
// kind (e.g. "heap_scan", "aggregate", "hash_eq_join", "nested_loop_join").
func (mc *MetricsCollector) RecordOperatorNext(kind string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.operatorNexts[kind]++
}

// Record adds a timing to the histogram.
func (th *TimingHistogram) Record(duration time.Duration) {
	ms := duration.Milliseconds()
	switch {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, duration)
}

// GetBuckets returns the histogram bucket counts.
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// GetPercentiles calculates P50, P95, P99 from recent timings.
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	p50idx := len(sorted) * 50 / 100
	p95idx := len(sorted) * 95 / 100
	p99idx := len(sorted) * 99 / 100

	return map[string]time.Duration{
		"p50": sorted[p50idx],
		"p95": sorted[p95idx],
		"p99": sorted[p99idx],
	}
}

// GetMetrics returns a snapshot of all metrics.
func (mc *MetricsCollector) GetMetrics() map[string]interface{} {
	insertsExecuted := atomic.LoadUint64(&mc.insertsExecuted)
	insertsFailed := atomic.LoadUint64(&mc.insertsFailed)
	totalInsertTime := atomic.LoadUint64(&mc.totalInsertTime)

	updatesExecuted := atomic.LoadUint64(&mc.updatesExecuted)
	updatesFailed := atomic.LoadUint64(&mc.updatesFailed)
	totalUpdateTime := atomic.LoadUint64(&mc.totalUpdateTime)

	deletesExecuted := atomic.LoadUint64(&mc.deletesExecuted)
	deletesFailed := atomic.LoadUint64(&mc.deletesFailed)
	totalDeleteTime := atomic.LoadUint64(&mc.totalDeleteTime)

	getsExecuted := atomic.LoadUint64(&mc.getsExecuted)
	getsFailed := atomic.LoadUint64(&mc.getsFailed)
	totalGetTime := atomic.LoadUint64(&mc.totalGetTime)

	pageReads := atomic.LoadUint64(&mc.pageReads)
	pageWrites := atomic.LoadUint64(&mc.pageWrites)

	var avgInsertTime, avgUpdateTime, avgDeleteTime, avgGetTime float64
	if insertsExecuted > 0 {
		avgInsertTime = float64(totalInsertTime) / float64(insertsExecuted) / 1e6
	}
	if updatesExecuted > 0 {
		avgUpdateTime = float64(totalUpdateTime) / float64(updatesExecuted) / 1e6
	}
	if deletesExecuted > 0 {
		avgDeleteTime = float64(totalDeleteTime) / float64(deletesExecuted) / 1e6
	}
	if getsExecuted > 0 {
		avgGetTime = float64(totalGetTime) / float64(getsExecuted) / 1e6
	}

	mc.mu.RLock()
	operatorNexts := make(map[string]uint64, len(mc.operatorNexts))
	for k, v := range mc.operatorNexts {
		operatorNexts[k] = v
	}
	mc.mu.RUnlock()

	uptime := time.Since(mc.startTime)

	return map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),

		"inserts": map[string]interface{}{
			"total":              insertsExecuted,
			"failed":             insertsFailed,
			"success_rate":       calculateSuccessRate(insertsExecuted, insertsFailed),
			"avg_duration_ms":    avgInsertTime,
			"timing_histogram":   mc.insertTimings.GetBuckets(),
			"timing_percentiles": mc.insertTimings.GetPercentiles(),
		},

		"updates": map[string]interface{}{
			"total":              updatesExecuted,
			"failed":             updatesFailed,
			"success_rate":       calculateSuccessRate(updatesExecuted, updatesFailed),
			"avg_duration_ms":    avgUpdateTime,
			"timing_histogram":   mc.updateTimings.GetBuckets(),
			"timing_percentiles": mc.updateTimings.GetPercentiles(),
		},

		"deletes": map[string]interface{}{
			"total":              deletesExecuted,
			"failed":             deletesFailed,
			"success_rate":       calculateSuccessRate(deletesExecuted, deletesFailed),
			"avg_duration_ms":    avgDeleteTime,
			"timing_histogram":   mc.deleteTimings.GetBuckets(),
			"timing_percentiles": mc.deleteTimings.GetPercentiles(),
		},

		"gets": map[string]interface{}{
			"total":              getsExecuted,
			"failed":             getsFailed,
			"success_rate":       calculateSuccessRate(getsExecuted, getsFailed),
			"avg_duration_ms":    avgGetTime,
			"timing_histogram":   mc.getTimings.GetBuckets(),
			"timing_percentiles": mc.getTimings.GetPercentiles(),
		},

		"page_io": map[string]interface{}{
			"reads":  pageReads,
			"writes": pageWrites,
		},

		"operator_next_calls": operatorNexts,
	}
}

// Reset resets all metrics to zero.
func (mc *MetricsCollector) Reset() {
	atomic.StoreUint64(&mc.insertsExecuted, 0)
	atomic.StoreUint64(&mc.insertsFailed, 0)
	atomic.StoreUint64(&mc.totalInsertTime, 0)

	atomic.StoreUint64(&mc.updatesExecuted, 0)
	atomic.StoreUint64(&mc.updatesFailed, 0)
	atomic.StoreUint64(&mc.totalUpdateTime, 0)

	atomic.StoreUint64(&mc.deletesExecuted, 0)
	atomic.StoreUint64(&mc.deletesFailed, 0)
	atomic.StoreUint64(&mc.totalDeleteTime, 0)

	atomic.StoreUint64(&mc.getsExecuted, 0)
	atomic.StoreUint64(&mc.getsFailed, 0)
	atomic.StoreUint64(&mc.totalGetTime, 0)

	atomic.StoreUint64(&mc.pageReads, 0)
	atomic.StoreUint64(&mc.pageWrites, 0)

	mc.mu.Lock()
	mc.operatorNexts = make(map[string]uint64)
	mc.insertTimings = NewTimingHistogram(1000)
	mc.updateTimings = NewTimingHistogram(1000)
	mc.deleteTimings = NewTimingHistogram(1000)
	mc.getTimings = NewTimingHistogram(1000)
	mc.mu.Unlock()

	mc.startTime = time.Now()
}

func calculateSuccessRate(total, failed uint64) float64 {
	if total == 0 {
		return 0
	}
	succeeded := total - failed
	return float64(succeeded) / float64(total) * 100
}
