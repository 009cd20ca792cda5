package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PublicToken is the fungible ledger of the public asset.
type PublicToken interface {
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
}

// ConfidentialToken is the ledger of the encrypted asset. The pool only moves
// handles; it never decrypts.
type ConfidentialToken interface {
	ConfidentialTransferFrom(ctx context.Context, spender, from, to common.Address, handle common.Hash, proof []byte) (common.Hash, error)
	ConfidentialTransfer(ctx context.Context, from, to common.Address, handle common.Hash) (common.Hash, error)
	TransferAmount(ctx context.Context, from, to common.Address, amount uint64) (common.Hash, error)
}

// PositionNFT is the position ownership ledger. Mint, Burn and UpdatePosition
// are restricted to the pool by the ledger itself.
type PositionNFT interface {
	NextTokenID(ctx context.Context) (*uint256.Int, error)
	Mint(ctx context.Context, caller, owner common.Address, tickLower, tickUpper int32, liquidity, amount0, amount1 common.Hash, isConfidential bool) (*uint256.Int, error)
	Burn(ctx context.Context, caller common.Address, tokenID *uint256.Int) error
	UpdatePosition(ctx context.Context, caller common.Address, tokenID *uint256.Int, liquidity, amount0, amount1 common.Hash) error
	OwnerOf(ctx context.Context, tokenID *uint256.Int) (common.Address, error)
	GetUserPositions(ctx context.Context, owner common.Address) ([]*uint256.Int, error)
}

// DecryptionOracle accepts asynchronous decryption requests. It must not
// call back into the engine synchronously.
type DecryptionOracle interface {
	PeekRequestID() *uint256.Int
	RequestDecryption(ctx context.Context, handles []common.Hash) (*uint256.Int, error)
}

// ProofVerifier checks a decryption result against the oracle signer set.
type ProofVerifier interface {
	Verify(requestID *uint256.Int, handles []common.Hash, cleartexts []byte, signatures [][]byte) error
}
