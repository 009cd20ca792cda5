package model

// SwapEventData is a synchronous (public-in) or settled swap as seen in the
// journal. Only public amounts appear; encrypted amounts never do.
type SwapEventData struct {
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	ZeroForOne bool   `json:"zero_for_one"`
	AmountIn   string `json:"amount_in,omitempty"`
	Fee0       string `json:"fee0,omitempty"`
}

// DecryptionRequestedData records an asynchronous swap submission.
type DecryptionRequestedData struct {
	RequestID string `json:"request_id"`
	Sender    string `json:"sender"`
	Deadline  uint64 `json:"deadline"`
}

// SwapSettledData records a successful fulfillment.
type SwapSettledData struct {
	RequestID string `json:"request_id"`
	Recipient string `json:"recipient"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// SwapRejectedData records a fulfillment that failed validation.
type SwapRejectedData struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

// MintEventData records a new liquidity position.
type MintEventData struct {
	Owner          string `json:"owner"`
	TokenID        string `json:"token_id"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	IsConfidential bool   `json:"is_confidential"`
	Amount0        string `json:"amount0"`
}

// BurnEventData records a destroyed position.
type BurnEventData struct {
	Owner   string `json:"owner"`
	TokenID string `json:"token_id"`
}

// RewardsClaimedData records a reward payout.
type RewardsClaimedData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// TypedEvent is a decoded journal record.
type TypedEvent struct {
	Sequence  uint64      `json:"sequence"`
	Address   string      `json:"address"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
}
