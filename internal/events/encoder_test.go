package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"privacyPool/internal/model"
)

var (
	poolAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newCodec(t *testing.T) (*Encoder, *Decoder) {
	t.Helper()
	enc, err := NewEncoder(poolAddr)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return enc, dec
}

func TestSwapConfidentialRoundTrip(t *testing.T) {
	enc, dec := newCodec(t)

	rec, err := enc.SwapConfidential(1700000000, sender, recipient, true, uint256.NewInt(1000), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if rec.Sequence != 1 || rec.EventName != SwapConfidential {
		t.Fatalf("unexpected record header: %+v", rec)
	}
	if len(rec.Topics) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(rec.Topics))
	}
	if !dec.CanDecode(rec.Topic0()) {
		t.Fatalf("decoder should accept topic0 %s", rec.Topic0())
	}

	event, err := dec.Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if !swap.ZeroForOne || swap.AmountIn != "1000" || swap.Fee0 != "3" {
		t.Fatalf("payload mismatch: %+v", swap)
	}
	if event.Timestamp != 1700000000 || event.Sequence != 1 {
		t.Fatalf("header mismatch: %+v", event)
	}
}

func TestSettlementEventsRoundTrip(t *testing.T) {
	enc, dec := newCodec(t)
	reqID := uint256.NewInt(42)

	requested, err := enc.DecryptionRequested(10, reqID, sender, 99)
	if err != nil {
		t.Fatalf("encode requested: %v", err)
	}
	settled, err := enc.SwapSettled(11, reqID, recipient, uint256.NewInt(500), uint256.NewInt(77))
	if err != nil {
		t.Fatalf("encode settled: %v", err)
	}
	rejected, err := enc.SwapRejected(12, uint256.NewInt(43), "slippage")
	if err != nil {
		t.Fatalf("encode rejected: %v", err)
	}
	if enc.Sequence() != 3 {
		t.Fatalf("sequence mismatch: %d", enc.Sequence())
	}

	event, err := dec.Decode(requested)
	if err != nil {
		t.Fatalf("decode requested: %v", err)
	}
	req := event.Decoded.(model.DecryptionRequestedData)
	if req.RequestID != "42" || req.Sender != sender.Hex() || req.Deadline != 99 {
		t.Fatalf("requested mismatch: %+v", req)
	}

	event, err = dec.Decode(settled)
	if err != nil {
		t.Fatalf("decode settled: %v", err)
	}
	set := event.Decoded.(model.SwapSettledData)
	if set.RequestID != "42" || set.AmountIn != "500" || set.AmountOut != "77" {
		t.Fatalf("settled mismatch: %+v", set)
	}

	event, err = dec.Decode(rejected)
	if err != nil {
		t.Fatalf("decode rejected: %v", err)
	}
	rej := event.Decoded.(model.SwapRejectedData)
	if rej.RequestID != "43" || rej.Reason != "slippage" {
		t.Fatalf("rejected mismatch: %+v", rej)
	}
}

func TestPositionEventsRoundTrip(t *testing.T) {
	enc, dec := newCodec(t)

	mint, err := enc.MintConfidential(5, sender, uint256.NewInt(1), -90, 90, false, uint256.NewInt(1234))
	if err != nil {
		t.Fatalf("encode mint: %v", err)
	}
	burn, err := enc.BurnConfidential(6, sender, uint256.NewInt(1))
	if err != nil {
		t.Fatalf("encode burn: %v", err)
	}
	claim, err := enc.RewardsClaimed(7, sender, uint256.NewInt(9))
	if err != nil {
		t.Fatalf("encode claim: %v", err)
	}

	event, err := dec.Decode(mint)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	m := event.Decoded.(model.MintEventData)
	if m.TokenID != "1" || m.TickLower != -90 || m.TickUpper != 90 || m.IsConfidential || m.Amount0 != "1234" {
		t.Fatalf("mint mismatch: %+v", m)
	}

	event, err = dec.Decode(burn)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	if b := event.Decoded.(model.BurnEventData); b.Owner != sender.Hex() || b.TokenID != "1" {
		t.Fatalf("burn mismatch: %+v", b)
	}

	event, err = dec.Decode(claim)
	if err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if c := event.Decoded.(model.RewardsClaimedData); c.Amount != "9" {
		t.Fatalf("claim mismatch: %+v", c)
	}
}

func TestDecodeRejectsUnknownTopic(t *testing.T) {
	_, dec := newCodec(t)
	_, err := dec.Decode(model.LogRecord{Topics: []string{"0x" + "ab"}})
	if err == nil {
		t.Fatalf("expected error for unknown topic")
	}
	if dec.CanDecode("") {
		t.Fatalf("empty topic must not decode")
	}
}
