package model

// PoolSnapshot is the persisted form of the whole pool aggregate. Integer
// amounts are decimal strings.
type PoolSnapshot struct {
	Address          string        `json:"address"`
	Token0           string        `json:"token0"`
	Token1           string        `json:"token1"`
	FeeBps           uint32        `json:"fee_bps"`
	TickSpacing      uint32        `json:"tick_spacing"`
	Seeded           bool          `json:"seeded"`
	Reserve0         string        `json:"reserve0"`
	Reserve1Virtual  string        `json:"reserve1_virtual"`
	Fees1Virtual     string        `json:"fees1_virtual"`
	Epoch            EpochData     `json:"epoch"`
	Rewards          RewardState   `json:"rewards"`
	Positions        []Position    `json:"positions"`
	PendingSwaps     []PendingSwap `json:"pending_swaps"`
	RejectedSwaps    []PendingSwap `json:"rejected_swaps"`
	ConsumedRequests []string      `json:"consumed_requests"`
	HeldDeposits     []HeldDeposit `json:"held_deposits,omitempty"`
	EventSequence    uint64        `json:"event_sequence"`
	TakenAt          uint64        `json:"taken_at"`
}

// RewardState captures the fee/emission accumulator.
type RewardState struct {
	AccPerLiquidity string            `json:"acc_per_liquidity"`
	TotalLiquidity  string            `json:"total_liquidity"`
	PendingFees     string            `json:"pending_fees"`
	Budget          string            `json:"budget"`
	RatePerSecond   string            `json:"rate_per_second"`
	LastAccrual     uint64            `json:"last_accrual"`
	TotalPaid       string            `json:"total_paid"`
	Owed            map[string]string `json:"owed,omitempty"`
}
