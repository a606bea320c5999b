package compression

import (
	"encoding/binary"
	"fmt"
)

// CompressedPageHeaderSize is the size of the compressed page header:
// [1-byte algorithm][4-byte original size][4-byte compressed size].
const CompressedPageHeaderSize = 9

// CompressedPage wraps a fixed-size page buffer with compression for
// at-rest storage. It operates on raw bytes rather than a storage.Page
// directly so this package carries no dependency on pkg/storage — storage
// is the one that depends on compression, wiring a CompressedPage into
// HeapFile's read/write path, and a dependency the other way would cycle.
type CompressedPage struct {
	compressor *Compressor
}

// NewCompressedPage creates a new compressed page handler.
func NewCompressedPage(config *Config) (*CompressedPage, error) {
	compressor, err := NewCompressor(config)
	if err != nil {
		return nil, err
	}
	return &CompressedPage{compressor: compressor}, nil
}

// CompressPage compresses a page's on-disk bytes, returning
// [header][payload]. If compression does not shrink the page (the common
// case for already-dense or random payloads), the payload falls back to
// the original bytes tagged AlgorithmNone instead of the configured
// algorithm, so the result is never larger than
// CompressedPageHeaderSize+len(pageBytes) regardless of algorithm or input.
func (cp *CompressedPage) CompressPage(pageBytes []byte) ([]byte, error) {
	compressed, err := cp.compressor.Compress(pageBytes)
	if err != nil {
		return nil, fmt.Errorf("compression: compress page: %w", err)
	}

	algo := cp.compressor.config.Algorithm
	payload := compressed
	if len(compressed) >= len(pageBytes) {
		algo = AlgorithmNone
		payload = pageBytes
	}

	result := make([]byte, CompressedPageHeaderSize+len(payload))
	result[0] = byte(algo)
	binary.LittleEndian.PutUint32(result[1:5], uint32(len(pageBytes)))
	binary.LittleEndian.PutUint32(result[5:9], uint32(len(payload)))
	copy(result[CompressedPageHeaderSize:], payload)

	return result, nil
}

// DecompressPage reverses CompressPage, returning the original page bytes.
// The algorithm tag in the header (not the handler's configured algorithm)
// decides how the payload is interpreted, so a payload stored via the
// AlgorithmNone fallback decodes correctly even though the handler itself
// is configured for a different algorithm.
func (cp *CompressedPage) DecompressPage(data []byte) ([]byte, error) {
	if len(data) < CompressedPageHeaderSize {
		return nil, fmt.Errorf("compression: invalid compressed page data: too short")
	}

	algorithm := Algorithm(data[0])
	originalSize := binary.LittleEndian.Uint32(data[1:5])
	compressedSize := binary.LittleEndian.Uint32(data[5:9])

	if len(data) < CompressedPageHeaderSize+int(compressedSize) {
		return nil, fmt.Errorf("compression: compressed page data too short: need %d more bytes",
			CompressedPageHeaderSize+int(compressedSize)-len(data))
	}
	payload := data[CompressedPageHeaderSize : CompressedPageHeaderSize+int(compressedSize)]

	var decompressed []byte
	if algorithm == AlgorithmNone {
		decompressed = payload
	} else {
		if algorithm != cp.compressor.config.Algorithm {
			return nil, fmt.Errorf("compression: algorithm mismatch: expected %v, got %v",
				cp.compressor.config.Algorithm, algorithm)
		}
		var err error
		decompressed, err = cp.compressor.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("compression: decompress page: %w", err)
		}
	}

	if len(decompressed) != int(originalSize) {
		return nil, fmt.Errorf("compression: decompressed size mismatch: expected %d, got %d",
			originalSize, len(decompressed))
	}
	return decompressed, nil
}

// Close closes the compressed page handler.
func (cp *CompressedPage) Close() error {
	return cp.compressor.Close()
}

// PageCompressionStats holds statistics about one page's compression.
type PageCompressionStats struct {
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	SpaceSavings   float64
	Algorithm      string
}

// GetPageCompressionStats returns compression statistics for a page's
// bytes without keeping the compressed payload around.
func (cp *CompressedPage) GetPageCompressionStats(pageBytes []byte) (*PageCompressionStats, error) {
	compressed, err := cp.compressor.Compress(pageBytes)
	if err != nil {
		return nil, fmt.Errorf("compression: compress page: %w", err)
	}

	originalSize := len(pageBytes)
	compressedSize := len(compressed)

	return &PageCompressionStats{
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Ratio:          CompressionRatio(originalSize, compressedSize),
		SpaceSavings:   SpaceSavings(originalSize, compressedSize),
		Algorithm:      cp.compressor.config.Algorithm.String(),
	}, nil
}
