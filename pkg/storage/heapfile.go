package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/adrienmorel/corvusdb/pkg/compression"
	"github.com/adrienmorel/corvusdb/pkg/concurrent"
)

// HeapFile is an ordered sequence of fixed-size pages persisted as one
// backing file. Pages are addressed positionally: page i lives at byte
// offset i*stride.
type HeapFile struct {
	mu       sync.Mutex
	f        *os.File
	numPages uint32
	stride   int64
	codec    *compression.CompressedPage

	reads  *concurrent.Counter
	writes *concurrent.Counter
}

// OpenHeapFile opens (creating if necessary) the file at path as a
// HeapFile. codec may be nil, in which case pages are stored as raw
// PageSize-byte buffers; otherwise every page is compressed on write and
// decompressed on read, and the on-disk slot widens to
// PageSize+compression.CompressedPageHeaderSize to absorb the header
// (CompressPage guarantees the payload itself never exceeds PageSize).
func OpenHeapFile(path string, codec *compression.CompressedPage) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open heap file %q: %w", path, err)
	}

	stride := int64(PageSize)
	if codec != nil {
		stride = int64(PageSize + compression.CompressedPageHeaderSize)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: stat heap file %q: %w", path, err)
	}
	if info.Size()%stride != 0 {
		f.Close()
		return nil, fmt.Errorf("storage: heap file %q has non-page-aligned size %d", path, info.Size())
	}

	return &HeapFile{
		f:        f,
		numPages: uint32(info.Size() / stride),
		stride:   stride,
		codec:    codec,
		reads:    concurrent.NewCounter(),
		writes:   concurrent.NewCounter(),
	}, nil
}

// NumPages returns the number of pages currently in the file.
func (hf *HeapFile) NumPages() uint32 {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.numPages
}

// ReadPage loads the page at id, decompressing it first if the file was
// opened with a codec.
func (hf *HeapFile) ReadPage(id PageID) (*Page, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if uint32(id) >= hf.numPages {
		return nil, fmt.Errorf("storage: page %d out of range (numPages=%d)", id, hf.numPages)
	}

	buf := make([]byte, hf.stride)
	if _, err := hf.f.ReadAt(buf, int64(id)*hf.stride); err != nil {
		return nil, fmt.Errorf("storage: read page %d: %w", id, err)
	}
	hf.reads.Inc()

	if hf.codec == nil {
		return FromBytes(buf)
	}
	raw, err := hf.codec.DecompressPage(buf)
	if err != nil {
		return nil, fmt.Errorf("storage: decompress page %d: %w", id, err)
	}
	return FromBytes(raw)
}

// WritePage persists page at its existing slot, or appends it as a new
// page if its id equals the current page count. If the file was opened
// with a codec, the page is compressed first.
func (hf *HeapFile) WritePage(p *Page) error {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	id := uint32(p.ID())
	if id > hf.numPages {
		return fmt.Errorf("storage: cannot write page %d, file has %d pages", id, hf.numPages)
	}

	out := p.ToBytes()
	if hf.codec != nil {
		compressed, err := hf.codec.CompressPage(out)
		if err != nil {
			return fmt.Errorf("storage: compress page %d: %w", id, err)
		}
		out = make([]byte, hf.stride)
		copy(out, compressed)
	}

	if _, err := hf.f.WriteAt(out, int64(id)*hf.stride); err != nil {
		return fmt.Errorf("storage: write page %d: %w", id, err)
	}
	hf.writes.Inc()

	if id == hf.numPages {
		hf.numPages++
	}
	return nil
}

// AppendPage allocates a brand-new page at the next page id and persists
// it immediately.
func (hf *HeapFile) AppendPage() (*Page, error) {
	hf.mu.Lock()
	next := hf.numPages
	hf.mu.Unlock()

	p := NewPage(PageID(next))
	if err := hf.WritePage(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the backing file descriptor.
func (hf *HeapFile) Close() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.f.Close()
}

// Stats reports read/write counters and size, in a human-readable form.
func (hf *HeapFile) Stats() map[string]interface{} {
	hf.mu.Lock()
	numPages := hf.numPages
	stride := hf.stride
	hf.mu.Unlock()

	size := uint64(numPages) * uint64(stride)
	return map[string]interface{}{
		"num_pages":    numPages,
		"total_reads":  hf.reads.Load(),
		"total_writes": hf.writes.Load(),
		"size_bytes":   size,
		"size_human":   humanize.Bytes(size),
	}
}
