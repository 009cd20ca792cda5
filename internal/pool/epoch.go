package pool

import "github.com/holiman/uint256"

// EpochData summarizes trading in the current epoch. Volume and Fees0 are in
// public-asset units.
type EpochData struct {
	Epoch     uint64
	Start     uint64
	End       uint64
	Volume    *uint256.Int
	Fees0     *uint256.Int
	SwapCount uint64
}

// epochStats keeps per-epoch counters. Crossing an epoch boundary resets
// them; within an epoch they only grow.
type epochStats struct {
	length    uint64
	epoch     uint64
	volume    *uint256.Int
	fees0     *uint256.Int
	swapCount uint64
}

func newEpochStats(length uint64) *epochStats {
	return &epochStats{length: length, volume: new(uint256.Int), fees0: new(uint256.Int)}
}

func (s *epochStats) roll(now uint64) {
	if epoch := now / s.length; epoch != s.epoch {
		s.epoch = epoch
		s.volume = new(uint256.Int)
		s.fees0 = new(uint256.Int)
		s.swapCount = 0
	}
}

func (s *epochStats) record(now uint64, volume, fee0 *uint256.Int) {
	s.roll(now)
	saturatingAdd(s.volume, volume)
	saturatingAdd(s.fees0, fee0)
	s.swapCount++
}

func (s *epochStats) data(now uint64) EpochData {
	epoch := now / s.length
	out := EpochData{
		Epoch:  epoch,
		Start:  epoch * s.length,
		End:    (epoch+1)*s.length - 1,
		Volume: new(uint256.Int),
		Fees0:  new(uint256.Int),
	}
	if epoch == s.epoch {
		out.Volume.Set(s.volume)
		out.Fees0.Set(s.fees0)
		out.SwapCount = s.swapCount
	}
	return out
}

func saturatingAdd(dst, v *uint256.Int) {
	if v == nil {
		return
	}
	if _, overflow := dst.AddOverflow(dst, v); overflow {
		dst.SetAllOne()
	}
}

// GetEpochData returns the statistics of the epoch containing now.
func (e *Engine) GetEpochData() EpochData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch.data(e.deps.Clock.Now())
}
