package sparsedex

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/sparsedex/resource"
	"github.com/hupe1980/sparsedex/weight"
)

// FileConfig is the YAML-decodable form of Open/Create's functional
// options, for CLI-adjacent tooling that wants to configure an index from
// a config file rather than Go call sites. The on-disk index itself has
// no YAML in it anywhere (spec §6's manifest/segment formats are
// unaffected); this is purely a convenience layer over Option.
type FileConfig struct {
	ElementType    string `yaml:"element_type"`
	MergeThreshold int    `yaml:"merge_threshold"`
	LogLevel       string `yaml:"log_level"`
	Resource       struct {
		MemoryLimitBytes     int64 `yaml:"memory_limit_bytes"`
		MaxBackgroundWorkers int64 `yaml:"max_background_workers"`
		IOLimitBytesPerSec   int64 `yaml:"io_limit_bytes_per_sec"`
	} `yaml:"resource"`
}

// LoadConfig reads and decodes a YAML config file at path.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, IOError("read config file", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, InvalidArgument("decode config file", err)
	}
	return &fc, nil
}

// Options converts fc into the Option slice Open/Create expect. Zero
// fields are left at their Option default (e.g. an empty ElementType
// doesn't override the f32 default).
func (fc *FileConfig) Options() ([]Option, error) {
	var opts []Option

	if fc.ElementType != "" {
		t, err := weight.ParseType(fc.ElementType)
		if err != nil {
			return nil, InvalidArgument(fmt.Sprintf("config: element_type %q", fc.ElementType), err)
		}
		opts = append(opts, WithElementType(t))
	}
	if fc.MergeThreshold > 0 {
		opts = append(opts, WithMergeThreshold(fc.MergeThreshold))
	}
	if fc.Resource.MemoryLimitBytes > 0 || fc.Resource.MaxBackgroundWorkers > 0 || fc.Resource.IOLimitBytesPerSec > 0 {
		opts = append(opts, WithResourceLimits(resource.Config{
			MemoryLimitBytes:     fc.Resource.MemoryLimitBytes,
			MaxBackgroundWorkers: fc.Resource.MaxBackgroundWorkers,
			IOLimitBytesPerSec:   fc.Resource.IOLimitBytesPerSec,
		}))
	}
	if fc.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(fc.LogLevel)); err != nil {
			return nil, InvalidArgument(fmt.Sprintf("config: log_level %q", fc.LogLevel), err)
		}
		opts = append(opts, WithLogLevel(level))
	}
	return opts, nil
}
