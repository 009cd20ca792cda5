package pool

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"privacyPool/internal/ledger"
	"privacyPool/internal/oracle"
)

const start uint64 = 1_700_000_000

var (
	poolAddr   = common.HexToAddress("0x9001000000000000000000000000000000000001")
	ownerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	token0Addr = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	token1Addr = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	alice      = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob        = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	carol      = common.HexToAddress("0xca20100000000000000000000000000000000003")
	one18      = uint256.MustFromDecimal("1000000000000000000")
)

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), one18)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *ManualClock
	token0 *ledger.ERC20
	token1 *ledger.ConfidentialToken
	nft    *ledger.PositionNFT
	keys   []*ecdsa.PrivateKey
	gw     *oracle.Gateway
	engine *Engine
}

type harnessOption func(*Config, *Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		clock:  NewManualClock(start),
		token0: ledger.NewERC20(token0Addr, "PUB", 18),
		nft:    ledger.NewPositionNFT(poolAddr, token0Addr, token1Addr),
	}
	h.token1 = ledger.NewConfidentialToken(token1Addr, h.clock.Now)

	for i := 0; i < 3; i++ {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		h.keys = append(h.keys, k)
	}
	h.gw = oracle.NewGateway(h.token1, oracle.GatewayConfig{Signers: h.keys}, nil)
	verifier, err := oracle.NewVerifier(h.gw.SignerAddresses(), 2)
	require.NoError(t, err)

	cfg := Config{
		Address:     poolAddr,
		Owner:       ownerAddr,
		Token0:      token0Addr,
		Token1:      token1Addr,
		FeeBps:      3000,
		TickSpacing: 60,
	}
	deps := Deps{
		Token0:    h.token0,
		Token1:    h.token1,
		Positions: h.nft,
		Oracle:    h.gw,
		Verifier:  verifier,
		Clock:     h.clock,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	h.engine, err = New(cfg, deps)
	require.NoError(t, err)
	return h
}

// seed deposits r0 of the public asset, backs the virtual reserve with real
// confidential balance and seeds.
func (h *harness) seed(r0 *uint256.Int, r1 uint64) {
	h.t.Helper()
	require.NoError(h.t, h.token0.Mint(poolAddr, r0))
	h.token1.Mint(poolAddr, r1)
	require.NoError(h.t, h.engine.Seed(h.ctx, ownerAddr, uint256.NewInt(r1)))
}

func (h *harness) fund0(user common.Address, amount *uint256.Int) {
	h.t.Helper()
	require.NoError(h.t, h.token0.Mint(user, amount))
	h.token0.Approve(user, poolAddr, new(uint256.Int).Add(h.token0.Allowance(user, poolAddr), amount))
}

func (h *harness) fund1(user common.Address, amount uint64) {
	h.token1.Mint(user, amount)
	h.token1.SetOperator(user, poolAddr, start+365*86400)
}

func (h *harness) encrypt(user common.Address, value uint64) (common.Hash, []byte) {
	return h.token1.Encrypt(poolAddr, user, value)
}

func (h *harness) balance0(user common.Address) *uint256.Int {
	h.t.Helper()
	bal, err := h.token0.BalanceOf(h.ctx, user)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) reserves() (*uint256.Int, *uint256.Int) {
	return h.engine.GetReserves()
}

func (h *harness) submit(user common.Address, amount uint64, minOut *uint256.Int, deadline uint64) *uint256.Int {
	h.t.Helper()
	handle, proof := h.encrypt(user, amount)
	id, err := h.engine.SubmitSwapToken1ForToken0(h.ctx, user, handle, minOut, user, proof, deadline)
	require.NoError(h.t, err)
	return id
}

func (h *harness) process() int {
	h.t.Helper()
	n, err := h.gw.Process(h.ctx, h.engine)
	require.NoError(h.t, err)
	return n
}

// signed builds a decryption result for id signed by the given keys.
func (h *harness) signed(id *uint256.Int, value uint64, keys ...*ecdsa.PrivateKey) ([]byte, [][]byte) {
	h.t.Helper()
	p, err := h.engine.PendingSwap(id)
	require.NoError(h.t, err)
	cleartexts, err := oracle.EncodeCleartexts([]uint64{value})
	require.NoError(h.t, err)
	digest := oracle.Digest(id, []common.Hash{p.EscrowHandle}, cleartexts)
	var sigs [][]byte
	for _, k := range keys {
		sig, err := crypto.Sign(digest.Bytes(), k)
		require.NoError(h.t, err)
		sigs = append(sigs, sig)
	}
	return cleartexts, sigs
}
