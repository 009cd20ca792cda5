package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyPool/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS pool_snapshots (
	pool_address      TEXT PRIMARY KEY,
	token0            TEXT NOT NULL,
	token1            TEXT NOT NULL,
	fee               INTEGER NOT NULL,
	reserve0          NUMERIC(78,0) NOT NULL,
	reserve1_virtual  NUMERIC(78,0) NOT NULL,
	fees1_virtual     NUMERIC(78,0) NOT NULL,
	event_sequence    BIGINT NOT NULL,
	taken_at          BIGINT NOT NULL,
	snapshot          JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS epoch_window_metrics (
	pool_address         TEXT NOT NULL,
	window_size_seconds  BIGINT NOT NULL,
	window_start_ts      TIMESTAMPTZ NOT NULL,
	window_end_ts        TIMESTAMPTZ NOT NULL,
	swap_count           BIGINT NOT NULL,
	settled_count        BIGINT NOT NULL,
	rejected_count       BIGINT NOT NULL,
	volume0              NUMERIC(78,0) NOT NULL,
	fee0                 NUMERIC(78,0) NOT NULL,
	mint_count           BIGINT NOT NULL,
	burn_count           BIGINT NOT NULL,
	rewards_claimed      NUMERIC(78,0) NOT NULL,
	fee_rate             NUMERIC,
	last_sequence        BIGINT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS aggregator_state (
	name               TEXT PRIMARY KEY,
	last_sequence      BIGINT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for pool snapshots and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// UpsertPoolSnapshot stores the latest snapshot of a pool. Older sequences never overwrite newer ones.
func (s *Store) UpsertPoolSnapshot(ctx context.Context, snap model.PoolSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (
			pool_address, token0, token1, fee, reserve0, reserve1_virtual, fees1_virtual,
			event_sequence, taken_at, snapshot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (pool_address)
		DO UPDATE SET
			token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			fee = EXCLUDED.fee,
			reserve0 = EXCLUDED.reserve0,
			reserve1_virtual = EXCLUDED.reserve1_virtual,
			fees1_virtual = EXCLUDED.fees1_virtual,
			event_sequence = EXCLUDED.event_sequence,
			taken_at = EXCLUDED.taken_at,
			snapshot = EXCLUDED.snapshot,
			updated_at = now()
		WHERE pool_snapshots.event_sequence <= EXCLUDED.event_sequence
	`,
		snap.Address,
		snap.Token0,
		snap.Token1,
		int64(snap.FeeBps),
		numeric(snap.Reserve0),
		numeric(snap.Reserve1Virtual),
		numeric(snap.Fees1Virtual),
		int64(snap.EventSequence),
		int64(snap.TakenAt),
		payload,
	)
	return err
}

// LoadPoolSnapshot returns the stored snapshot for a pool.
func (s *Store) LoadPoolSnapshot(ctx context.Context, address string) (model.PoolSnapshot, bool, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM pool_snapshots WHERE pool_address=$1`, address)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, err
	}
	var snap model.PoolSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// UpsertEpochMetrics inserts or updates window metrics.
func (s *Store) UpsertEpochMetrics(ctx context.Context, metrics []model.EpochWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO epoch_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, settled_count, rejected_count, volume0, fee0,
				mint_count, burn_count, rewards_claimed, fee_rate, last_sequence, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				settled_count = EXCLUDED.settled_count,
				rejected_count = EXCLUDED.rejected_count,
				volume0 = EXCLUDED.volume0,
				fee0 = EXCLUDED.fee0,
				mint_count = EXCLUDED.mint_count,
				burn_count = EXCLUDED.burn_count,
				rewards_claimed = EXCLUDED.rewards_claimed,
				fee_rate = EXCLUDED.fee_rate,
				last_sequence = EXCLUDED.last_sequence,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.SettledCount),
			int64(m.RejectedCount),
			numeric(m.Volume0),
			numeric(m.Fee0),
			int64(m.MintCount),
			int64(m.BurnCount),
			numeric(m.RewardsClaimed),
			m.FeeRate,
			int64(m.LastSequence),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last aggregated journal sequence for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_sequence FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts the last aggregated journal sequence for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_sequence, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET last_sequence = EXCLUDED.last_sequence, updated_at = EXCLUDED.updated_at
	`, name, int64(seq), time.Now().UTC())
	return err
}

func numeric(value string) string {
	if value == "" {
		return "0"
	}
	return value
}
