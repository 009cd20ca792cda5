package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"privacyPool/internal/model"
)

func TestJsonlStorageAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	store := NewJsonlStorage(path)

	require.NoError(t, store.PutLogBatch(nil))
	require.NoError(t, store.PutLogBatch([]model.LogRecord{
		{Sequence: 1, EventName: "SwapConfidential", Topics: []string{"0x01"}, Data: "0x"},
		{Sequence: 2, EventName: "DecryptionRequested", Topics: []string{"0x02"}, Data: "0x"},
	}))
	require.NoError(t, store.PutLogBatch([]model.LogRecord{
		{Sequence: 3, EventName: "SwapSettled", Topics: []string{"0x03"}, Data: "0x"},
	}))

	var seqs []uint64
	require.NoError(t, store.ReadLogs(func(r model.LogRecord) error {
		seqs = append(seqs, r.Sequence)
		return nil
	}))
	require.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestJsonlStorageMissingFile(t *testing.T) {
	store := NewJsonlStorage(filepath.Join(t.TempDir(), "absent.jsonl"))
	called := false
	require.NoError(t, store.ReadLogs(func(model.LogRecord) error {
		called = true
		return nil
	}))
	require.False(t, called)
}

func TestScanLogsReportsLine(t *testing.T) {
	input := "{\"sequence\":1}\n\nnot-json\n"
	err := ScanLogs(strings.NewReader(input), func(model.LogRecord) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	store := NewFileSnapshotStore(path)

	_, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.False(t, ok)

	snap := model.PoolSnapshot{
		Address:         "0x00000000000000000000000000000000000000f0",
		FeeBps:          3000,
		Seeded:          true,
		Reserve0:        "2099700000000000000000",
		Reserve1Virtual: "714387",
		Fees1Virtual:    "0",
		EventSequence:   4,
	}
	require.NoError(t, store.SaveSnapshot(snap))

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	loaded, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.Reserve0, loaded.Reserve0)
	require.Equal(t, snap.Reserve1Virtual, loaded.Reserve1Virtual)
	require.Equal(t, snap.EventSequence, loaded.EventSequence)
}
