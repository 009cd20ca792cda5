package aggregate

import (
	"math/big"
	"strings"
	"time"
)

const ratioScale = 18

func computeRateFromInt(numer *big.Int, denom *big.Int) string {
	if numer == nil || numer.Sign() == 0 || denom == nil || denom.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(numer, denom)
	return rat.FloatString(ratioScale)
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func unixTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

func minOpenSequence(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.FirstSequence < min {
			min = entry.FirstSequence
		}
	}
	return min
}
