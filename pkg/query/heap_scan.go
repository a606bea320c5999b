package query

import (
	"fmt"

	"github.com/adrienmorel/corvusdb/pkg/metrics"
	"github.com/adrienmorel/corvusdb/pkg/storage"
)

// HeapScan is the leaf operator that decodes every live record of one
// storage container into Tuples using a fixed schema's wire codec.
type HeapScan struct {
	sm          *storage.StorageManager
	containerID storage.ContainerID
	schema      TableSchema
	metrics     *metrics.MetricsCollector

	open bool
	iter *storage.ContainerIterator
}

// NewHeapScan builds a scan over containerID, decoding records according
// to schema. collector may be nil (metrics are optional instrumentation).
func NewHeapScan(sm *storage.StorageManager, containerID storage.ContainerID, schema TableSchema, collector *metrics.MetricsCollector) *HeapScan {
	return &HeapScan{sm: sm, containerID: containerID, schema: schema, metrics: collector}
}

// Configure has no children to propagate a rewind hint to.
func (hs *HeapScan) Configure(willRewind bool) {}

// Open acquires a fresh container iterator positioned at the start.
func (hs *HeapScan) Open() error {
	if hs.open {
		return nil
	}
	iter, err := hs.sm.Iterator(hs.containerID)
	if err != nil {
		return fmt.Errorf("query: heap scan open: %w", err)
	}
	hs.iter = iter
	hs.open = true
	return nil
}

// Next decodes and returns the next live record as a Tuple.
func (hs *HeapScan) Next() (Tuple, bool, error) {
	if !hs.open {
		panic(notOpenMsg)
	}
	if hs.metrics != nil {
		hs.metrics.RecordOperatorNext("heap_scan")
	}
	raw, _, ok, err := hs.iter.Next()
	if err != nil {
		return Tuple{}, false, fmt.Errorf("query: heap scan next: %w", err)
	}
	if !ok {
		return Tuple{}, false, nil
	}
	t, _, err := DecodeTuple(raw, hs.schema)
	if err != nil {
		return Tuple{}, false, fmt.Errorf("query: heap scan decode: %w", err)
	}
	return t, true, nil
}

// Close releases the container iterator.
func (hs *HeapScan) Close() error {
	if hs.iter != nil {
		hs.iter.Close()
		hs.iter = nil
	}
	hs.open = false
	return nil
}

// Rewind re-acquires a container iterator positioned at the start, since
// the underlying HeapFileIterator is not itself restartable.
func (hs *HeapScan) Rewind() error {
	if !hs.open {
		panic(notOpenMsg)
	}
	if hs.iter != nil {
		hs.iter.Close()
	}
	iter, err := hs.sm.Iterator(hs.containerID)
	if err != nil {
		return fmt.Errorf("query: heap scan rewind: %w", err)
	}
	hs.iter = iter
	return nil
}

// Schema returns the scan's output schema.
func (hs *HeapScan) Schema() TableSchema {
	return hs.schema
}
