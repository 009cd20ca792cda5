package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"privacyPool/internal/storage"
	"privacyPool/internal/storage/postgres"
)

// StateStore persists the last journal sequence whose windows are final.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, seq uint64) error
}

// FileStateStore keeps progress in a local JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	LastSequence uint64    `json:"last_sequence"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read state: %w", err)
	}
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false, fmt.Errorf("parse state: %w", err)
	}
	return rec.LastSequence, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, seq uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	data, err := json.Marshal(stateRecord{LastSequence: seq, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return storage.WriteFileAtomic(s.Path, data)
}

// DBStateStore keeps progress in the aggregator_state table under Name.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, seq uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, seq)
}
