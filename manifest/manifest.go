// Package manifest persists the durable description of an index's segment
// set: which segments exist, their tier, and the next segment id to hand
// out. Updates are published via a tmp-file-then-rename plus CURRENT
// pointer swap, each followed by a directory fsync, so a crash mid-write
// never leaves readers observing a half-written manifest.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/sparsedex/internal/fs"
	"github.com/hupe1980/sparsedex/model"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	CurrentVersion   = 1

	// HistoryRetention is the number of superseded manifest generations kept
	// on disk after a Save, so a search holding a stale snapshot can still
	// resolve segment paths until it releases its reference (spec §5:
	// readers never block a merge, and a merge never invalidates an
	// in-flight reader).
	HistoryRetention = 3
)

// Manifest describes the durable segment set of an index at one generation.
type Manifest struct {
	Version       int             `json:"version"`
	Generation    uint64          `json:"generation"`
	NextSegmentID model.SegmentID `json:"next_segment_id"`
	Segments      []SegmentInfo   `json:"segments"`
}

// SegmentInfo describes one sealed, immutable segment file.
type SegmentInfo struct {
	ID       model.SegmentID `json:"id"`
	Tier     int             `json:"tier"` // merge tier; 0 is newly-flushed
	RowCount uint32          `json:"row_count"`
	Path     string          `json:"path"` // relative to the index directory
}

// Store manages the manifest file and its atomic updates for one index
// directory.
type Store struct {
	fs  fs.FileSystem
	dir string
	mu  sync.Mutex

	// history is kept in memory as the generation numbers of manifests this
	// Store itself has written, so Prune can clean up everything older than
	// HistoryRetention generations once the caller confirms no snapshot
	// still references them.
	history []uint64
}

// NewStore creates a new manifest store rooted at dir.
func NewStore(fsys fs.FileSystem, dir string) *Store {
	return &Store{fs: fsys, dir: dir}
}

// Load loads the current manifest, or an empty generation-0 manifest if the
// index directory has never been written to.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readFile := func(path string) ([]byte, error) {
		f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	currentPath := filepath.Join(s.dir, CurrentFileName)
	content, err := readFile(currentPath)
	if os.IsNotExist(err) {
		return &Manifest{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(s.dir, string(content))
	data, err := readFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}

// Save atomically publishes a new generation of the manifest. The caller
// must have already incremented Generation and NextSegmentID as needed;
// Save does not mutate m beyond stamping Version.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion

	filename := fmt.Sprintf("%s-%06d.json", ManifestFileName, m.Generation)
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	if err := s.writeAtomic(path, data); err != nil {
		return err
	}
	if err := s.writeAtomic(filepath.Join(s.dir, CurrentFileName), []byte(filename)); err != nil {
		return err
	}

	s.history = append(s.history, m.Generation)
	return nil
}

// Prune removes manifest files older than HistoryRetention generations,
// keeping CURRENT and the most recent retained generations intact. Called
// by the index when a superseded snapshot retires (after a commit or a
// merge), i.e. once no search still holds a reference to it.
func (s *Store) Prune() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) <= HistoryRetention {
		return nil
	}
	stale := s.history[:len(s.history)-HistoryRetention]
	s.history = s.history[len(s.history)-HistoryRetention:]

	for _, gen := range stale {
		filename := fmt.Sprintf("%s-%06d.json", ManifestFileName, gen)
		if err := s.fs.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	return s.syncDir(s.dir)
}

func (s *Store) syncDir(dir string) error {
	f, err := s.fs.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
