package model

// Position is the economic record of a liquidity position. Ownership lives in
// the position NFT ledger; Owner is filled in by read paths only.
type Position struct {
	TokenID        string `json:"token_id"`
	Owner          string `json:"owner,omitempty"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	Liquidity      string `json:"liquidity"`
	Token0Amount   string `json:"token0_amount"`
	Token1Amount   string `json:"token1_amount"`
	Amount1Handle  string `json:"amount1_handle,omitempty"`
	IsConfidential bool   `json:"is_confidential"`
	AccCheckpoint  string `json:"acc_checkpoint"`
	CreatedAt      uint64 `json:"created_at"`
	LastUpdated    uint64 `json:"last_updated"`
}

// HeldDeposit is a confidential deposit whose return failed at burn time.
// Its owner can reclaim it.
type HeldDeposit struct {
	TokenID string `json:"token_id"`
	Owner   string `json:"owner"`
	Handle  string `json:"handle"`
}
