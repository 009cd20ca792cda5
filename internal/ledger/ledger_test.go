package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	pool  = common.HexToAddress("0x9001000000000000000000000000000000000003")
)

func TestERC20TransferFrom(t *testing.T) {
	ctx := context.Background()
	tok := NewERC20(common.HexToAddress("0x01"), "USDC", 6)
	require.NoError(t, tok.Mint(alice, uint256.NewInt(100)))

	err := tok.TransferFrom(ctx, pool, alice, pool, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	tok.Approve(alice, pool, uint256.NewInt(30))
	require.NoError(t, tok.TransferFrom(ctx, pool, alice, pool, uint256.NewInt(25)))
	require.Equal(t, uint64(5), tok.Allowance(alice, pool).Uint64())

	bal, err := tok.BalanceOf(ctx, pool)
	require.NoError(t, err)
	require.Equal(t, uint64(25), bal.Uint64())

	err = tok.Transfer(ctx, pool, bob, uint256.NewInt(26))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, tok.Transfer(ctx, pool, bob, uint256.NewInt(25)))
	bal, _ = tok.BalanceOf(ctx, bob)
	require.Equal(t, uint64(25), bal.Uint64())
}

func TestConfidentialTransferFromOperatorAndProof(t *testing.T) {
	ctx := context.Background()
	now := uint64(1000)
	tok := NewConfidentialToken(common.HexToAddress("0x02"), func() uint64 { return now })
	tok.Mint(alice, 500)

	handle, proof := tok.Encrypt(pool, alice, 200)

	_, err := tok.ConfidentialTransferFrom(ctx, pool, alice, pool, handle, proof)
	require.ErrorIs(t, err, ErrUnauthorizedSpender)

	tok.SetOperator(alice, pool, now+10)
	ok, err := tok.IsOperator(ctx, alice, pool)
	require.NoError(t, err)
	require.True(t, ok)

	// proof bound to a different user
	otherHandle, otherProof := tok.Encrypt(pool, bob, 200)
	_, err = tok.ConfidentialTransferFrom(ctx, pool, alice, pool, otherHandle, otherProof)
	require.ErrorIs(t, err, ErrInvalidInputProof)

	moved, err := tok.ConfidentialTransferFrom(ctx, pool, alice, pool, handle, proof)
	require.NoError(t, err)
	v, err := tok.Decrypt(ctx, moved)
	require.NoError(t, err)
	require.Equal(t, uint64(200), v)
	require.Equal(t, uint64(300), tok.BalanceOf(alice))
	require.Equal(t, uint64(200), tok.BalanceOf(pool))

	now += 11
	ok, _ = tok.IsOperator(ctx, alice, pool)
	require.False(t, ok)
}

func TestConfidentialTransferInsufficientMovesZero(t *testing.T) {
	ctx := context.Background()
	tok := NewConfidentialToken(common.HexToAddress("0x02"), nil)
	tok.Mint(alice, 50)

	handle, proof := tok.Encrypt(alice, alice, 80)
	moved, err := tok.ConfidentialTransferFrom(ctx, alice, alice, pool, handle, proof)
	require.NoError(t, err)
	v, err := tok.Decrypt(ctx, moved)
	require.NoError(t, err)
	require.Zero(t, v)
	require.Equal(t, uint64(50), tok.BalanceOf(alice))

	moved, err = tok.TransferAmount(ctx, alice, bob, 20)
	require.NoError(t, err)
	v, _ = tok.Decrypt(ctx, moved)
	require.Equal(t, uint64(20), v)

	back, err := tok.ConfidentialTransfer(ctx, bob, alice, moved)
	require.NoError(t, err)
	v, _ = tok.Decrypt(ctx, back)
	require.Equal(t, uint64(20), v)
	require.Equal(t, uint64(50), tok.BalanceOf(alice))

	_, err = tok.ConfidentialTransfer(ctx, bob, alice, common.HexToHash("0xdead"))
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestPositionNFTOnlyManager(t *testing.T) {
	ctx := context.Background()
	nft := NewPositionNFT(pool, common.HexToAddress("0x01"), common.HexToAddress("0x02"))

	next, err := nft.NextTokenID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next.Uint64())

	_, err = nft.Mint(ctx, alice, alice, -90, 90, common.Hash{}, common.Hash{}, common.Hash{}, false)
	require.ErrorIs(t, err, ErrOnlyPoolManager)

	id, err := nft.Mint(ctx, pool, alice, -90, 90, common.Hash{}, common.Hash{}, common.Hash{}, false)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id.Uint64())
	id2, err := nft.Mint(ctx, pool, alice, -60, 60, common.Hash{}, common.Hash{}, common.Hash{}, true)
	require.NoError(t, err)

	ids, err := nft.GetUserPositions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Equal(t, uint64(1), ids[0].Uint64())

	require.NoError(t, nft.TransferFrom(ctx, alice, alice, bob, id2))
	owner, err := nft.OwnerOf(ctx, id2)
	require.NoError(t, err)
	require.Equal(t, bob, owner)

	pos, err := nft.GetPosition(ctx, id2)
	require.NoError(t, err)
	require.True(t, pos.IsConfidential)

	require.ErrorIs(t, nft.Burn(ctx, bob, id2), ErrOnlyPoolManager)
	require.NoError(t, nft.Burn(ctx, pool, id2))
	_, err = nft.OwnerOf(ctx, id2)
	require.ErrorIs(t, err, ErrNonexistentToken)

	require.NoError(t, nft.UpdatePosition(ctx, pool, id, common.HexToHash("0x05"), common.Hash{}, common.Hash{}))
	pos, _ = nft.GetPosition(ctx, id)
	require.Equal(t, common.HexToHash("0x05"), pos.Liquidity)
}
