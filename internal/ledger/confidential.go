package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"
)

var (
	ErrUnauthorizedSpender = errors.New("confidential: unauthorized spender")
	ErrInvalidInputProof   = errors.New("confidential: invalid input proof")
	ErrUnknownHandle       = errors.New("confidential: unknown handle")
)

// Clock returns the current unix time in seconds.
type Clock func() uint64

// ConfidentialToken is an in-memory confidential fungible token. Amounts are
// referenced by opaque 32-byte handles; only the key-management side
// (Decrypt) maps a handle back to its cleartext.
//
// Transfers follow the confidential token standard: when the sender cannot
// cover the amount, an encrypted zero is transferred instead of failing.
type ConfidentialToken struct {
	mu        sync.Mutex
	address   common.Address
	clock     Clock
	nonce     uint64
	values    map[common.Hash]uint64
	balances  map[common.Address]uint64
	operators map[common.Address]map[common.Address]uint64
}

// NewConfidentialToken builds an empty token. Operator expiry is checked
// against clock.
func NewConfidentialToken(address common.Address, clock Clock) *ConfidentialToken {
	return &ConfidentialToken{
		address:   address,
		clock:     clock,
		values:    make(map[common.Hash]uint64),
		balances:  make(map[common.Address]uint64),
		operators: make(map[common.Address]map[common.Address]uint64),
	}
}

// Address returns the token address.
func (c *ConfidentialToken) Address() common.Address { return c.address }

// Encrypt registers value as an external input for contract on behalf of
// user and returns its handle and input proof.
func (c *ConfidentialToken) Encrypt(contract, user common.Address, value uint64) (common.Hash, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle := c.newHandle(value)
	return handle, c.inputProof(contract, user, handle)
}

// Mint credits value to to.
func (c *ConfidentialToken) Mint(to common.Address, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[to] = saturatingAdd(c.balances[to], value)
}

// ConfidentialBalanceOf returns a fresh handle to the balance of account.
func (c *ConfidentialToken) ConfidentialBalanceOf(_ context.Context, account common.Address) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newHandle(c.balances[account]), nil
}

// SetOperator lets operator move holder's funds until the given unix time.
func (c *ConfidentialToken) SetOperator(holder, operator common.Address, until uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byHolder, ok := c.operators[holder]
	if !ok {
		byHolder = make(map[common.Address]uint64)
		c.operators[holder] = byHolder
	}
	byHolder[operator] = until
}

// IsOperator reports whether operator may currently move holder's funds.
func (c *ConfidentialToken) IsOperator(_ context.Context, holder, operator common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOperator(holder, operator), nil
}

// ConfidentialTransferFrom moves the amount behind an external input handle
// from from to to. spender must be from or a live operator of from, and the
// proof must bind handle to spender as contract and from as user. Returns the
// handle of the amount actually transferred.
func (c *ConfidentialToken) ConfidentialTransferFrom(ctx context.Context, spender, from, to common.Address, handle common.Hash, proof []byte) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if spender != from && !c.isOperator(from, spender) {
		return common.Hash{}, fmt.Errorf("%w: %s for %s", ErrUnauthorizedSpender, spender.Hex(), from.Hex())
	}
	if string(proof) != string(c.inputProof(spender, from, handle)) {
		return common.Hash{}, ErrInvalidInputProof
	}
	value, ok := c.values[handle]
	if !ok {
		return common.Hash{}, ErrUnknownHandle
	}
	return c.transfer(from, to, value), nil
}

// ConfidentialTransfer moves the amount behind an existing handle from from
// to to. Returns the handle of the amount actually transferred.
func (c *ConfidentialToken) ConfidentialTransfer(ctx context.Context, from, to common.Address, handle common.Hash) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.values[handle]
	if !ok {
		return common.Hash{}, ErrUnknownHandle
	}
	return c.transfer(from, to, value), nil
}

// TransferAmount moves a trivially encrypted cleartext amount.
func (c *ConfidentialToken) TransferAmount(ctx context.Context, from, to common.Address, amount uint64) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transfer(from, to, amount), nil
}

// Decrypt returns the cleartext behind handle.
func (c *ConfidentialToken) Decrypt(_ context.Context, handle common.Hash) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[handle]
	if !ok {
		return 0, ErrUnknownHandle
	}
	return value, nil
}

// BalanceOf is the cleartext balance, for tests and the simulator.
func (c *ConfidentialToken) BalanceOf(account common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[account]
}

func (c *ConfidentialToken) transfer(from, to common.Address, value uint64) common.Hash {
	if c.balances[from] < value {
		value = 0
	}
	if from != to {
		if _, carry := bits.Add64(c.balances[to], value, 0); carry != 0 {
			value = 0
		}
		c.balances[from] -= value
		c.balances[to] += value
	}
	return c.newHandle(value)
}

func (c *ConfidentialToken) isOperator(holder, operator common.Address) bool {
	until, ok := c.operators[holder][operator]
	return ok && until >= c.now()
}

func (c *ConfidentialToken) now() uint64 {
	if c.clock == nil {
		return 0
	}
	return c.clock()
}

func (c *ConfidentialToken) newHandle(value uint64) common.Hash {
	c.nonce++
	h := blake3.New()
	h.Write([]byte("handle"))
	h.Write(c.address.Bytes())
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], c.nonce)
	h.Write(nonce[:])
	var handle common.Hash
	h.Digest().Read(handle[:])
	c.values[handle] = value
	return handle
}

func (c *ConfidentialToken) inputProof(contract, user common.Address, handle common.Hash) []byte {
	h := blake3.New()
	h.Write([]byte("input-proof"))
	h.Write(c.address.Bytes())
	h.Write(contract.Bytes())
	h.Write(user.Bytes())
	h.Write(handle.Bytes())
	return h.Sum(nil)
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}
