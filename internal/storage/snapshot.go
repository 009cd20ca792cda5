package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"privacyPool/internal/model"
)

// FileSnapshotStore keeps the latest pool snapshot in a JSON file.
type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// SaveSnapshot writes the snapshot through a temp file and renames it into place.
func (s *FileSnapshotStore) SaveSnapshot(snap model.PoolSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return WriteFileAtomic(s.path, data)
}

// LoadSnapshot reads the snapshot. ok is false when none was saved yet.
func (s *FileSnapshotStore) LoadSnapshot() (model.PoolSnapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.PoolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// WriteFileAtomic replaces path with data through a temp file and rename.
func WriteFileAtomic(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
