package model

import "time"

// EpochData is the read-only trading summary of the current epoch.
type EpochData struct {
	Epoch     uint64 `json:"epoch"`
	Start     uint64 `json:"start"`
	End       uint64 `json:"end"`
	Volume    string `json:"volume"`
	Fees0     string `json:"fees0"`
	SwapCount uint64 `json:"swap_count"`
}

// EpochWindowMetrics stores journal-derived metrics for one window.
type EpochWindowMetrics struct {
	PoolAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	SettledCount   uint64
	RejectedCount  uint64
	Volume0        string
	Fee0           string
	MintCount      uint64
	BurnCount      uint64
	RewardsClaimed string
	FeeRate        *string
	LastSequence   uint64
}
