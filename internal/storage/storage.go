package storage

import "privacyPool/internal/model"

// Storage defines a sink for journaled pool events.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// SnapshotStore persists the latest pool snapshot.
type SnapshotStore interface {
	SaveSnapshot(snap model.PoolSnapshot) error
	LoadSnapshot() (model.PoolSnapshot, bool, error)
}
