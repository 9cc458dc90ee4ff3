package storage

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// SnapshotFile persists snapshots to a single file. Writes go to a sibling
// temp file that is synced and renamed over the target.
type SnapshotFile struct {
	path     string
	compress bool
	codec    *ZstdCompression
}

// NewSnapshotFile returns a file at path. When compress is set, snapshots
// are written zstd-compressed; reads detect the format either way.
func NewSnapshotFile(path string, compress bool) (*SnapshotFile, error) {
	codec, err := NewZstdCompressor()
	if err != nil {
		return nil, err
	}
	return &SnapshotFile{path: path, compress: compress, codec: codec}, nil
}

func (f *SnapshotFile) Path() string { return f.path }

// Save writes snap atomically.
func (f *SnapshotFile) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if f.compress {
		data = f.codec.Compress(data)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}

	tmpFile := f.path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("closing snapshot: %w", err)
	}

	return os.Rename(tmpFile, f.path)
}

// Load reads the snapshot. A missing file returns (nil, nil).
func (f *SnapshotFile) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	if IsZstd(data) {
		data, err = f.codec.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing snapshot: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *SnapshotFile) Close() {
	f.codec.Close()
}
