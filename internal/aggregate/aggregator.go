package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"privacyPool/internal/events"
	"privacyPool/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// LogSource yields journal records in sequence order.
type LogSource interface {
	ReadLogs(fn func(model.LogRecord) error) error
}

// MetricsSink persists window metrics.
type MetricsSink interface {
	UpsertEpochMetrics(ctx context.Context, metrics []model.EpochWindowMetrics) error
}

// Aggregator folds journaled pool events into per-window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	decoder      *events.Decoder
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, sink MetricsSink, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := events.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("init decoder: %w", err)
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		decoder:      decoder,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}, nil
}

// Stats summarizes one aggregation run.
type Stats struct {
	Total   int
	Decoded int
	Skipped int
	Failed  int
	Windows int
}

// Run aggregates every journal record past the saved state.
func (a *Aggregator) Run(ctx context.Context, source LogSource) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("metrics sink is nil")
	}
	if source == nil {
		return stats, fmt.Errorf("log source is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startSeq, err := a.loadStartSequence(ctx)
	if err != nil {
		return stats, err
	}
	var fromTs uint64
	if a.cfg.RecomputeFrom > 0 {
		fromTs = windowStart(a.cfg.RecomputeFrom, a.cfg.WindowSeconds)
	}

	batch := make([]model.EpochWindowMetrics, 0, a.cfg.BatchSize)
	lastSeq := startSeq

	err = source.ReadLogs(func(record model.LogRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++

		if record.Sequence <= startSeq || record.Timestamp < fromTs {
			stats.Skipped++
			return nil
		}
		if record.Sequence > lastSeq {
			lastSeq = record.Sequence
		}
		if !a.decoder.CanDecode(record.Topic0()) {
			stats.Skipped++
			return nil
		}

		event, err := a.decoder.Decode(record)
		if err != nil {
			stats.Failed++
			a.logger.Warn("decode journal record", zap.Error(err), zap.Uint64("sequence", record.Sequence))
			return nil
		}
		stats.Decoded++

		start := windowStart(event.Timestamp, a.cfg.WindowSeconds)
		key := poolKey(event.Address)
		acc := a.accumulators[key]
		if acc == nil {
			acc = NewAccumulator(event, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		} else if acc.WindowStart != start {
			batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
			acc = NewAccumulator(event, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(event); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", event.Address), zap.String("event", event.EventName))
			return nil
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flush(ctx, batch); err != nil {
				return err
			}
			stats.Windows += len(batch)
			batch = batch[:0]
			if err := a.saveState(ctx, lastSeq); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("read journal: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
	}
	if err := a.flush(ctx, batch); err != nil {
		return stats, err
	}
	stats.Windows += len(batch)

	// Open windows are re-read next run so their rows are rebuilt whole.
	if err := a.saveState(ctx, lastSeq); err != nil {
		return stats, err
	}
	a.accumulators = make(map[string]*Accumulator)

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("windows", stats.Windows),
	)

	return stats, nil
}

func (a *Aggregator) loadStartSequence(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 || a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context, lastSeq uint64) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	safe := lastSeq
	if open := minOpenSequence(a.accumulators); open > 0 {
		safe = open - 1
	}
	return a.cfg.StateStore.Save(ctx, safe)
}

func (a *Aggregator) flush(ctx context.Context, batch []model.EpochWindowMetrics) error {
	if len(batch) == 0 {
		return nil
	}
	if err := a.sink.UpsertEpochMetrics(ctx, batch); err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}
