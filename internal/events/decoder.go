package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"privacyPool/internal/model"
)

// Decoder turns journal records back into typed payloads.
type Decoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a pool event decoder.
func NewDecoder() (*Decoder, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string, len(poolABI.Events))
	for name, event := range poolABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &Decoder{poolABI: poolABI, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 is a pool event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.poolABI.Events[name]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case SwapConfidential:
		var indexed struct {
			Sender    common.Address
			Recipient common.Address
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		if err := expectValues(name, values, 3); err != nil {
			return nil, err
		}
		zeroForOne, ok := values[0].(bool)
		if !ok {
			return nil, fmt.Errorf("unsupported bool type %T", values[0])
		}
		decoded = model.SwapEventData{
			Sender:     indexed.Sender.Hex(),
			Recipient:  indexed.Recipient.Hex(),
			ZeroForOne: zeroForOne,
			AmountIn:   bigString(values[1]),
			Fee0:       bigString(values[2]),
		}
	case DecryptionRequested:
		var indexed struct {
			RequestId *big.Int
			Sender    common.Address
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		if err := expectValues(name, values, 1); err != nil {
			return nil, err
		}
		deadline, ok := values[0].(*big.Int)
		if !ok || !deadline.IsUint64() {
			return nil, fmt.Errorf("invalid deadline %v", values[0])
		}
		decoded = model.DecryptionRequestedData{
			RequestID: indexed.RequestId.String(),
			Sender:    indexed.Sender.Hex(),
			Deadline:  deadline.Uint64(),
		}
	case SwapSettled:
		var indexed struct {
			RequestId *big.Int
			Recipient common.Address
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		if err := expectValues(name, values, 2); err != nil {
			return nil, err
		}
		decoded = model.SwapSettledData{
			RequestID: indexed.RequestId.String(),
			Recipient: indexed.Recipient.Hex(),
			AmountIn:  bigString(values[0]),
			AmountOut: bigString(values[1]),
		}
	case SwapRejected:
		var indexed struct {
			RequestId *big.Int
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		if err := expectValues(name, values, 1); err != nil {
			return nil, err
		}
		reason, _ := values[0].(string)
		decoded = model.SwapRejectedData{RequestID: indexed.RequestId.String(), Reason: reason}
	case MintConfidential:
		var indexed struct {
			Owner   common.Address
			TokenId *big.Int
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		if err := expectValues(name, values, 4); err != nil {
			return nil, err
		}
		tickLower, err := int24FromValue(values[0])
		if err != nil {
			return nil, err
		}
		tickUpper, err := int24FromValue(values[1])
		if err != nil {
			return nil, err
		}
		isConfidential, _ := values[2].(bool)
		decoded = model.MintEventData{
			Owner:          indexed.Owner.Hex(),
			TokenID:        indexed.TokenId.String(),
			TickLower:      tickLower,
			TickUpper:      tickUpper,
			IsConfidential: isConfidential,
			Amount0:        bigString(values[3]),
		}
	case BurnConfidential:
		var indexed struct {
			Owner   common.Address
			TokenId *big.Int
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		decoded = model.BurnEventData{Owner: indexed.Owner.Hex(), TokenID: indexed.TokenId.String()}
	case RewardsClaimed:
		var indexed struct {
			User common.Address
		}
		if err := parseTopics(&indexed, event, indexedTopics); err != nil {
			return nil, err
		}
		if err := expectValues(name, values, 1); err != nil {
			return nil, err
		}
		decoded = model.RewardsClaimedData{User: indexed.User.Hex(), Amount: bigString(values[0])}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}

	return &model.TypedEvent{
		Sequence:  log.Sequence,
		Address:   log.Address,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
	}, nil
}

func parseTopics(out interface{}, event abi.Event, topics []common.Hash) error {
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), topics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func expectValues(name string, values []interface{}, n int) error {
	if len(values) != n {
		return fmt.Errorf("unexpected %s values: %d", name, len(values))
	}
	return nil
}

func bigString(value interface{}) string {
	if v, ok := value.(*big.Int); ok && v != nil {
		return v.String()
	}
	return "0"
}

func int24FromValue(value interface{}) (int32, error) {
	v, ok := value.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unsupported int type %T", value)
	}
	if v.Cmp(big.NewInt(-1<<23)) < 0 || v.Cmp(big.NewInt((1<<23)-1)) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", v.String())
	}
	return int32(v.Int64()), nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
