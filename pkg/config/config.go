// Package config loads this module's recognized options (spec.md §4.3.5 and
// §4.4's MaintenanceEverySteps) from a file plus environment variables,
// following the teacher's pkg/config.LoadConfig: viper for file/env merging
// and validation, go-humanize for the size-valued options so callers may
// write "512MB" or "1GiB" instead of a raw byte count.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors, named after the option they guard, matching
// the teacher's ErrInvalidPort/ErrInvalidConcurrent style.
var (
	ErrInvalidDataPath            = errors.New("data path must not be empty")
	ErrInvalidMaxMemoryBytes      = errors.New("max memory bytes must be positive")
	ErrInvalidCompactionThreshold = errors.New("compaction threshold must be positive")
	ErrInvalidSpillThreshold      = errors.New("spill threshold must be in (0,1]")
	ErrInvalidSizeFormat          = errors.New("invalid size format")
)

// Default configuration values.
const (
	defaultMaxMemoryBytes      = "256MB"
	defaultCompactionThreshold = 8
	defaultWriteBufferSize     = "16MB"
	defaultBlockCacheSize      = "64MB"
	defaultSpillThreshold      = 0.75
	defaultMaintenanceEvery    = 0
)

// Config holds every recognized option from spec.md §4.3.5 (storage) and
// §4.4 (circuit).
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Circuit CircuitConfig `mapstructure:"circuit"`
}

// StorageConfig is spec.md §4.3.5's "the only recognized options" table,
// verbatim: DataPath, MaxMemoryBytes, CompactionThreshold, WriteBufferSize,
// BlockCacheSize, SpillThreshold. The three byte-size fields are read as
// humanize-formatted strings and resolved to ints by Resolve.
type StorageConfig struct {
	DataPath            string  `mapstructure:"data_path"`
	MaxMemoryBytes      string  `mapstructure:"max_memory_bytes"`
	CompactionThreshold int     `mapstructure:"compaction_threshold"`
	WriteBufferSize     string  `mapstructure:"write_buffer_size"`
	BlockCacheSize      string  `mapstructure:"block_cache_size"`
	SpillThreshold      float64 `mapstructure:"spill_threshold"`
}

// CircuitConfig is spec.md §4.4's single circuit-level option.
type CircuitConfig struct {
	MaintenanceEverySteps int `mapstructure:"maintenance_every_steps"`
}

// Resolved is StorageConfig with its humanize size strings parsed to byte
// counts, ready to hand to storage/lsm and storage/hybrid.
type Resolved struct {
	DataPath            string
	MaxMemoryBytes      int64
	CompactionThreshold int
	WriteBufferSize     int64
	BlockCacheSize      int64
	SpillThreshold      float64
}

// Resolve parses the humanize size strings and validates every option,
// matching the shape of the teacher's pkg/framework/config.go
// applySizeParams/buildConfigFromBudget (humanize.ParseBytes, wrapped in
// ErrInvalidSizeFormat on failure).
func (s StorageConfig) Resolve() (Resolved, error) {
	if s.DataPath == "" {
		return Resolved{}, ErrInvalidDataPath
	}

	maxMemory, err := parseSize(s.MaxMemoryBytes, "max_memory_bytes")
	if err != nil {
		return Resolved{}, err
	}

	if maxMemory <= 0 {
		return Resolved{}, fmt.Errorf("%w: %d", ErrInvalidMaxMemoryBytes, maxMemory)
	}

	if s.CompactionThreshold <= 0 {
		return Resolved{}, fmt.Errorf("%w: %d", ErrInvalidCompactionThreshold, s.CompactionThreshold)
	}

	writeBuffer, err := parseSize(s.WriteBufferSize, "write_buffer_size")
	if err != nil {
		return Resolved{}, err
	}

	blockCache, err := parseSize(s.BlockCacheSize, "block_cache_size")
	if err != nil {
		return Resolved{}, err
	}

	if s.SpillThreshold <= 0 || s.SpillThreshold > 1 {
		return Resolved{}, fmt.Errorf("%w: %v", ErrInvalidSpillThreshold, s.SpillThreshold)
	}

	return Resolved{
		DataPath:            s.DataPath,
		MaxMemoryBytes:      maxMemory,
		CompactionThreshold: s.CompactionThreshold,
		WriteBufferSize:     writeBuffer,
		BlockCacheSize:      blockCache,
		SpillThreshold:      s.SpillThreshold,
	}, nil
}

func parseSize(raw, field string) (int64, error) {
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %q", ErrInvalidSizeFormat, field, raw)
	}

	return int64(n), nil
}

// Load reads configPath (or the default search path: ./config.yaml,
// ./config/config.yaml) merged with DBSPGO_-prefixed environment
// variables, overlaying the option defaults below, exactly the precedence
// order of the teacher's LoadConfig (file overrides defaults, env
// overrides file).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DBSPGO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.data_path", "")
	v.SetDefault("storage.max_memory_bytes", defaultMaxMemoryBytes)
	v.SetDefault("storage.compaction_threshold", defaultCompactionThreshold)
	v.SetDefault("storage.write_buffer_size", defaultWriteBufferSize)
	v.SetDefault("storage.block_cache_size", defaultBlockCacheSize)
	v.SetDefault("storage.spill_threshold", defaultSpillThreshold)

	v.SetDefault("circuit.maintenance_every_steps", defaultMaintenanceEvery)
}
