package aggregate

import (
	"fmt"
	"math/big"

	"privacyPool/internal/events"
	"privacyPool/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress    string
	WindowStart    uint64
	WindowEnd      uint64
	SwapCount      uint64
	SettledCount   uint64
	RejectedCount  uint64
	MintCount      uint64
	BurnCount      uint64
	Volume0        *big.Int
	Fee0           *big.Int
	RewardsClaimed *big.Int
	FirstSequence  uint64
	LastSequence   uint64
}

func NewAccumulator(event *model.TypedEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress:    event.Address,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Volume0:        big.NewInt(0),
		Fee0:           big.NewInt(0),
		RewardsClaimed: big.NewInt(0),
		FirstSequence:  event.Sequence,
		LastSequence:   event.Sequence,
	}
}

// AddEvent folds one decoded pool event into the window.
func (a *Accumulator) AddEvent(event *model.TypedEvent) error {
	if event.Sequence > a.LastSequence {
		a.LastSequence = event.Sequence
	}
	if a.FirstSequence == 0 || event.Sequence < a.FirstSequence {
		a.FirstSequence = event.Sequence
	}

	switch event.EventName {
	case events.SwapConfidential:
		swap, ok := event.Decoded.(model.SwapEventData)
		if !ok {
			return fmt.Errorf("swap payload type %T", event.Decoded)
		}
		if !swap.ZeroForOne {
			return nil
		}
		if err := addDecimal(a.Volume0, swap.AmountIn); err != nil {
			return err
		}
		if err := addDecimal(a.Fee0, swap.Fee0); err != nil {
			return err
		}
		a.SwapCount++
	case events.SwapSettled:
		settled, ok := event.Decoded.(model.SwapSettledData)
		if !ok {
			return fmt.Errorf("settled payload type %T", event.Decoded)
		}
		if err := addDecimal(a.Volume0, settled.AmountOut); err != nil {
			return err
		}
		a.SwapCount++
		a.SettledCount++
	case events.SwapRejected:
		a.RejectedCount++
	case events.MintConfidential:
		a.MintCount++
	case events.BurnConfidential:
		a.BurnCount++
	case events.RewardsClaimed:
		claimed, ok := event.Decoded.(model.RewardsClaimedData)
		if !ok {
			return fmt.Errorf("claim payload type %T", event.Decoded)
		}
		return addDecimal(a.RewardsClaimed, claimed.Amount)
	}
	return nil
}

// Metrics renders the window as a persisted row.
func (a *Accumulator) Metrics(windowSeconds uint64) model.EpochWindowMetrics {
	var feeRate *string
	if rate := computeRateFromInt(a.Fee0, a.Volume0); rate != "" {
		feeRate = &rate
	}
	return model.EpochWindowMetrics{
		PoolAddress:    a.PoolAddress,
		WindowSizeSecs: int64(windowSeconds),
		WindowStart:    unixTime(a.WindowStart),
		WindowEnd:      unixTime(a.WindowEnd),
		SwapCount:      a.SwapCount,
		SettledCount:   a.SettledCount,
		RejectedCount:  a.RejectedCount,
		Volume0:        a.Volume0.String(),
		Fee0:           a.Fee0.String(),
		MintCount:      a.MintCount,
		BurnCount:      a.BurnCount,
		RewardsClaimed: a.RewardsClaimed.String(),
		FeeRate:        feeRate,
		LastSequence:   a.LastSequence,
	}
}

func addDecimal(target *big.Int, value string) error {
	parsed, err := parseBigInt(value)
	if err != nil {
		return err
	}
	if parsed.Sign() < 0 {
		return fmt.Errorf("negative amount: %s", value)
	}
	target.Add(target, parsed)
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
