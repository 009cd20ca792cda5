package model

// SwapStatus is the settlement state of an asynchronous swap request.
type SwapStatus string

const (
	SwapSubmitted SwapStatus = "submitted"
	SwapFulfilled SwapStatus = "fulfilled"
	SwapRejected  SwapStatus = "rejected"
)

// PendingSwap is an encrypted-input swap awaiting decryption of its amount.
// The reserve snapshot is informational; settlement prices against the
// reserves current at fulfillment.
type PendingSwap struct {
	RequestID        string     `json:"request_id"`
	Sender           string     `json:"sender"`
	Recipient        string     `json:"recipient"`
	MinOut           string     `json:"min_out"`
	Deadline         uint64     `json:"deadline"`
	EscrowHandle     string     `json:"escrow_handle"`
	Reserve0Snapshot string     `json:"reserve0_snapshot"`
	Reserve1Snapshot string     `json:"reserve1_snapshot"`
	SubmittedAt      uint64     `json:"submitted_at"`
	Status           SwapStatus `json:"status"`
	RejectReason     string     `json:"reject_reason,omitempty"`
	EscrowReleased   bool       `json:"escrow_released,omitempty"`
}
