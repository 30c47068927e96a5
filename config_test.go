package sparsedex

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/weight"
)

func TestLoadConfigDecodesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
element_type: f16
merge_threshold: 8
log_level: debug
resource:
  memory_limit_bytes: 1048576
  max_background_workers: 2
  io_limit_bytes_per_sec: 4096
`), 0644))

	fc, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "f16", fc.ElementType)
	require.Equal(t, 8, fc.MergeThreshold)
	require.Equal(t, "debug", fc.LogLevel)
	require.EqualValues(t, 1048576, fc.Resource.MemoryLimitBytes)

	opts, err := fc.Options()
	require.NoError(t, err)
	require.Len(t, opts, 4)

	o := applyOptions(opts)
	require.Equal(t, weight.TypeF16, o.elementType)
	require.Equal(t, 8, o.mergeThreshold)
	require.EqualValues(t, 2, o.resourceConfig.MaxBackgroundWorkers)
	require.True(t, o.logger.Enabled(nil, slog.LevelDebug))
}

func TestLoadConfigRejectsInvalidElementType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("element_type: bogus\n"), 0644))

	fc, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = fc.Options()
	require.Error(t, err)
}

func TestFileConfigDefaultsLeaveOptionsUnset(t *testing.T) {
	fc := &FileConfig{}
	opts, err := fc.Options()
	require.NoError(t, err)
	require.Empty(t, opts)
}
