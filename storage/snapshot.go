package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitfsorg/royalties-go/record"
)

// SnapshotName is the snapshot's file name inside the data directory.
const SnapshotName = "records.json.gz"

// MaxSnapshotSize caps the decompressed snapshot size (64 MB).
const MaxSnapshotSize = 64 << 20

type snapshotFile struct {
	LoadedAt time.Time       `json:"loadedAt"`
	Records  []record.Record `json:"records"`
}

// Snapshot persists the last successfully loaded record list as gzipped
// JSON so a restarted client can show it before the first load finishes.
type Snapshot struct {
	path string
	mu   sync.Mutex
}

// NewSnapshot returns a snapshot stored at path. The parent directory is
// created on first Save.
func NewSnapshot(path string) (*Snapshot, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	return &Snapshot{path: path}, nil
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string { return s.path }

// Save writes records atomically (temp file + rename).
func (s *Snapshot) Save(records []record.Record, loadedAt time.Time) error {
	raw, err := json.Marshal(snapshotFile{LoadedAt: loadedAt.UTC(), Records: records})
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Load reads the snapshot. A missing file is ErrNotFound.
func (s *Snapshot) Load() ([]record.Record, time.Time, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, MaxSnapshotSize+1))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if len(raw) > MaxSnapshotSize {
		return nil, time.Time{}, ErrSnapshotTooLarge
	}

	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return snap.Records, snap.LoadedAt, nil
}

// Restore loads the snapshot into store. It reports whether anything was
// restored; a missing snapshot is not an error.
func (s *Snapshot) Restore(store *RecordStore) (bool, error) {
	records, loadedAt, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	store.Replace(records, loadedAt)
	return true, nil
}
