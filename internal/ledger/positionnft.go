package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrOnlyPoolManager  = errors.New("only pool manager")
	ErrNonexistentToken = errors.New("nonexistent token")
	ErrNotTokenOwner    = errors.New("caller is not token owner")
)

// NFTPosition is the metadata stored alongside a position token. For public
// positions the amount words hold big-endian cleartexts; for confidential
// ones Amount1 is a ciphertext handle.
type NFTPosition struct {
	Token0         common.Address
	Token1         common.Address
	TickLower      int32
	TickUpper      int32
	Liquidity      common.Hash
	Amount0        common.Hash
	Amount1        common.Hash
	IsConfidential bool
}

// PositionNFT is an in-memory position ownership ledger. Only the pool
// manager may mint, burn or update positions. Token ids start at 1.
type PositionNFT struct {
	mu        sync.Mutex
	manager   common.Address
	token0    common.Address
	token1    common.Address
	nextID    uint64
	owners    map[uint64]common.Address
	positions map[uint64]NFTPosition
}

// NewPositionNFT builds an empty ledger managed by manager.
func NewPositionNFT(manager, token0, token1 common.Address) *PositionNFT {
	return &PositionNFT{
		manager:   manager,
		token0:    token0,
		token1:    token1,
		nextID:    1,
		owners:    make(map[uint64]common.Address),
		positions: make(map[uint64]NFTPosition),
	}
}

// NextTokenID returns the id the next Mint will assign.
func (n *PositionNFT) NextTokenID(_ context.Context) (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint256.NewInt(n.nextID), nil
}

// Mint creates a position token owned by owner.
func (n *PositionNFT) Mint(ctx context.Context, caller, owner common.Address, tickLower, tickUpper int32, liquidity, amount0, amount1 common.Hash, isConfidential bool) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.manager {
		return nil, ErrOnlyPoolManager
	}
	id := n.nextID
	n.nextID++
	n.owners[id] = owner
	n.positions[id] = NFTPosition{
		Token0:         n.token0,
		Token1:         n.token1,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		Liquidity:      liquidity,
		Amount0:        amount0,
		Amount1:        amount1,
		IsConfidential: isConfidential,
	}
	return uint256.NewInt(id), nil
}

// Burn destroys a position token.
func (n *PositionNFT) Burn(ctx context.Context, caller common.Address, tokenID *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.manager {
		return ErrOnlyPoolManager
	}
	id, err := n.lookup(tokenID)
	if err != nil {
		return err
	}
	delete(n.owners, id)
	delete(n.positions, id)
	return nil
}

// UpdatePosition replaces the liquidity and amount words of a position.
func (n *PositionNFT) UpdatePosition(ctx context.Context, caller common.Address, tokenID *uint256.Int, liquidity, amount0, amount1 common.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller != n.manager {
		return ErrOnlyPoolManager
	}
	id, err := n.lookup(tokenID)
	if err != nil {
		return err
	}
	pos := n.positions[id]
	pos.Liquidity = liquidity
	pos.Amount0 = amount0
	pos.Amount1 = amount1
	n.positions[id] = pos
	return nil
}

// OwnerOf returns the holder of tokenID.
func (n *PositionNFT) OwnerOf(_ context.Context, tokenID *uint256.Int) (common.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id, err := n.lookup(tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return n.owners[id], nil
}

// GetPosition returns the metadata of tokenID.
func (n *PositionNFT) GetPosition(_ context.Context, tokenID *uint256.Int) (NFTPosition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id, err := n.lookup(tokenID)
	if err != nil {
		return NFTPosition{}, err
	}
	return n.positions[id], nil
}

// GetUserPositions returns the ids held by owner in ascending order.
func (n *PositionNFT) GetUserPositions(_ context.Context, owner common.Address) ([]*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]uint64, 0)
	for id, o := range n.owners {
		if o == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*uint256.Int, len(ids))
	for i, id := range ids {
		out[i] = uint256.NewInt(id)
	}
	return out, nil
}

// TransferFrom moves tokenID from from to to. caller must be the owner.
func (n *PositionNFT) TransferFrom(ctx context.Context, caller, from, to common.Address, tokenID *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	id, err := n.lookup(tokenID)
	if err != nil {
		return err
	}
	if n.owners[id] != from || caller != from {
		return fmt.Errorf("%w: token %d", ErrNotTokenOwner, id)
	}
	n.owners[id] = to
	return nil
}

func (n *PositionNFT) lookup(tokenID *uint256.Int) (uint64, error) {
	if tokenID == nil || !tokenID.IsUint64() {
		return 0, ErrNonexistentToken
	}
	id := tokenID.Uint64()
	if _, ok := n.owners[id]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	return id, nil
}
