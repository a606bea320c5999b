package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adrienmorel/corvusdb/pkg/compression"
)

// Config tunes a StorageManager. The PageSize field is read from config
// files but not applied: every page is the constant PageSize bytes,
// whatever the field holds.
type Config struct {
	StorageDir  string `yaml:"storage_dir"`
	PageSize    int    `yaml:"page_size"`
	Compression string `yaml:"compression"`
}

// DefaultConfig returns production defaults: the given directory, full
// PageSize pages, and compression disabled.
func DefaultConfig(storageDir string) Config {
	return Config{
		StorageDir:  storageDir,
		PageSize:    PageSize,
		Compression: "",
	}
}

// LoadConfig reads a YAML config file, falling back to DefaultConfig
// values for any key the file omits. Unrecognized keys are ignored, not
// rejected: config files are forgiving by design.
func LoadConfig(path string, storageDir string) (Config, error) {
	cfg := DefaultConfig(storageDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("storage: read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("storage: parse config %q: %w", path, err)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = PageSize
	}
	return cfg, nil
}

// pageCodec builds the compression.CompressedPage every HeapFile opened
// under cfg should use, or nil if cfg.Compression names no algorithm.
// Compression is configured by name rather than by injecting a codec
// directly because Config is a plain, YAML-serializable value; the
// mapping lives here, in storage, rather than in pkg/compression, since
// compression must not import storage (storage already imports it to
// reach this factory, and the reverse edge would cycle).
func (cfg Config) pageCodec() (*compression.CompressedPage, error) {
	var compCfg *compression.Config
	switch cfg.Compression {
	case "", "none":
		return nil, nil
	case "snappy":
		compCfg = compression.SnappyConfig()
	case "zstd":
		compCfg = compression.ZstdConfig(3)
	case "gzip":
		compCfg = compression.GzipConfig(-1) // clamps to gzip.DefaultCompression
	case "zlib":
		compCfg = &compression.Config{Algorithm: compression.AlgorithmZlib, Level: 6}
	default:
		return nil, fmt.Errorf("storage: unknown compression algorithm %q", cfg.Compression)
	}
	return compression.NewCompressedPage(compCfg)
}
