package oracle

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	uint64Type     abi.Type
	uint64TypeOnce sync.Once
	uint64TypeErr  error
)

func uint64ABIType() (abi.Type, error) {
	uint64TypeOnce.Do(func() {
		uint64Type, uint64TypeErr = abi.NewType("uint64", "", nil)
	})
	return uint64Type, uint64TypeErr
}

func uint64Arguments(n int) (abi.Arguments, error) {
	typ, err := uint64ABIType()
	if err != nil {
		return nil, err
	}
	args := make(abi.Arguments, n)
	for i := range args {
		args[i] = abi.Argument{Type: typ}
	}
	return args, nil
}

// EncodeCleartexts ABI-encodes decrypted values as consecutive uint64 words.
func EncodeCleartexts(values []uint64) ([]byte, error) {
	args, err := uint64Arguments(len(values))
	if err != nil {
		return nil, err
	}
	packed := make([]interface{}, len(values))
	for i, v := range values {
		packed[i] = v
	}
	out, err := args.Pack(packed...)
	if err != nil {
		return nil, fmt.Errorf("pack cleartexts: %w", err)
	}
	return out, nil
}

// DecodeUint64 decodes exactly n uint64 cleartexts.
func DecodeUint64(data []byte, n int) ([]uint64, error) {
	if len(data) != 32*n {
		return nil, fmt.Errorf("cleartexts: expected %d bytes, got %d", 32*n, len(data))
	}
	args, err := uint64Arguments(n)
	if err != nil {
		return nil, err
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cleartexts: %w", err)
	}
	out := make([]uint64, len(values))
	for i, v := range values {
		u, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("unsupported cleartext type %T", v)
		}
		out[i] = u
	}
	return out, nil
}

// Digest is the message the decryption signers sign:
// keccak256(requestID || keccak256(handles...) || cleartexts).
func Digest(requestID *uint256.Int, handles []common.Hash, cleartexts []byte) common.Hash {
	handleBytes := make([][]byte, len(handles))
	for i, h := range handles {
		handleBytes[i] = h.Bytes()
	}
	id := requestID.Bytes32()
	return crypto.Keccak256Hash(id[:], crypto.Keccak256(handleBytes...), cleartexts)
}
