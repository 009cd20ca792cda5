package events

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"privacyPool/internal/model"
)

// Encoder turns pool events into ABI-encoded log records with a monotonic
// sequence number. It is not safe for concurrent use.
type Encoder struct {
	poolABI  abi.ABI
	address  common.Address
	sequence uint64
}

// NewEncoder builds an encoder for the pool at address.
func NewEncoder(address common.Address) (*Encoder, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{poolABI: poolABI, address: address}, nil
}

// Sequence returns the sequence number of the last encoded record.
func (e *Encoder) Sequence() uint64 { return e.sequence }

// SetSequence resumes numbering after a restore.
func (e *Encoder) SetSequence(seq uint64) { e.sequence = seq }

func (e *Encoder) SwapConfidential(ts uint64, sender, recipient common.Address, zeroForOne bool, amountIn, fee0 *uint256.Int) (model.LogRecord, error) {
	return e.encode(SwapConfidential, ts, []interface{}{sender, recipient}, zeroForOne, toBig(amountIn), toBig(fee0))
}

func (e *Encoder) DecryptionRequested(ts uint64, requestID *uint256.Int, sender common.Address, deadline uint64) (model.LogRecord, error) {
	return e.encode(DecryptionRequested, ts, []interface{}{toBig(requestID), sender}, new(big.Int).SetUint64(deadline))
}

func (e *Encoder) SwapSettled(ts uint64, requestID *uint256.Int, recipient common.Address, amountIn, amountOut *uint256.Int) (model.LogRecord, error) {
	return e.encode(SwapSettled, ts, []interface{}{toBig(requestID), recipient}, toBig(amountIn), toBig(amountOut))
}

func (e *Encoder) SwapRejected(ts uint64, requestID *uint256.Int, reason string) (model.LogRecord, error) {
	return e.encode(SwapRejected, ts, []interface{}{toBig(requestID)}, reason)
}

func (e *Encoder) MintConfidential(ts uint64, owner common.Address, tokenID *uint256.Int, tickLower, tickUpper int32, isConfidential bool, amount0 *uint256.Int) (model.LogRecord, error) {
	return e.encode(MintConfidential, ts, []interface{}{owner, toBig(tokenID)},
		big.NewInt(int64(tickLower)), big.NewInt(int64(tickUpper)), isConfidential, toBig(amount0))
}

func (e *Encoder) BurnConfidential(ts uint64, owner common.Address, tokenID *uint256.Int) (model.LogRecord, error) {
	return e.encode(BurnConfidential, ts, []interface{}{owner, toBig(tokenID)})
}

func (e *Encoder) RewardsClaimed(ts uint64, user common.Address, amount *uint256.Int) (model.LogRecord, error) {
	return e.encode(RewardsClaimed, ts, []interface{}{user}, toBig(amount))
}

func (e *Encoder) encode(name string, ts uint64, indexed []interface{}, values ...interface{}) (model.LogRecord, error) {
	event, ok := e.poolABI.Events[name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unknown event %s", name)
	}

	query := make([][]interface{}, 0, len(indexed))
	for _, v := range indexed {
		query = append(query, []interface{}{v})
	}
	topicSets, err := abi.MakeTopics(query...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("topics %s: %w", name, err)
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", name, err)
	}

	topics := make([]string, 0, len(topicSets)+1)
	topics = append(topics, strings.ToLower(event.ID.Hex()))
	for _, set := range topicSets {
		topics = append(topics, strings.ToLower(set[0].Hex()))
	}

	e.sequence++
	return model.LogRecord{
		Sequence:  e.sequence,
		Address:   e.address.Hex(),
		EventName: name,
		Topics:    topics,
		Data:      hexutil.Encode(data),
		Timestamp: ts,
		EmittedAt: time.Unix(int64(ts), 0).UTC().Format(time.RFC3339),
	}, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
