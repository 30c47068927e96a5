package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/model"
)

func TestLoadEmptyDirectoryReturnsFreshManifest(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(fs.Default, dir)

	m, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, m.Version)
	require.Equal(t, uint64(0), m.Generation)
	require.Empty(t, m.Segments)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(fs.Default, dir)

	m := &Manifest{
		Generation:    1,
		NextSegmentID: model.SegmentID(5),
		Segments: []SegmentInfo{
			{ID: 1, Tier: 0, RowCount: 10, Path: "segment-a.idx"},
			{ID: 2, Tier: 0, RowCount: 20, Path: "segment-b.idx"},
		},
	}
	require.NoError(t, s.Save(m))

	reloaded, err := NewStore(fs.Default, dir).Load()
	require.NoError(t, err)
	require.Equal(t, m.Generation, reloaded.Generation)
	require.Equal(t, m.NextSegmentID, reloaded.NextSegmentID)
	require.Equal(t, m.Segments, reloaded.Segments)
}

func TestSaveAdvancesCurrentPointer(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(fs.Default, dir)

	require.NoError(t, s.Save(&Manifest{Generation: 1}))
	require.NoError(t, s.Save(&Manifest{Generation: 2, NextSegmentID: model.SegmentID(1)}))

	reloaded, err := NewStore(fs.Default, dir).Load()
	require.NoError(t, err)
	require.Equal(t, uint64(2), reloaded.Generation)
}

func TestPrunePreservesHistoryRetentionWindow(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(fs.Default, dir)

	for gen := uint64(1); gen <= uint64(HistoryRetention)+2; gen++ {
		require.NoError(t, s.Save(&Manifest{Generation: gen}))
	}
	require.NoError(t, s.Prune())

	for gen := uint64(1); gen <= 2; gen++ {
		path := manifestPath(dir, gen)
		_, err := fs.Default.Stat(path)
		require.True(t, os.IsNotExist(err), "expected generation %d to be pruned", gen)
	}
	for gen := uint64(3); gen <= uint64(HistoryRetention)+2; gen++ {
		path := manifestPath(dir, gen)
		_, err := fs.Default.Stat(path)
		require.NoError(t, err, "expected generation %d to survive pruning", gen)
	}
}

func manifestPath(dir string, gen uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%06d.json", ManifestFileName, gen))
}
