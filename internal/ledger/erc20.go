package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"privacyPool/internal/model"
)

var (
	ErrInsufficientBalance   = errors.New("erc20: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("erc20: insufficient allowance")
	ErrBalanceOverflow       = errors.New("erc20: balance overflow")
)

// ERC20 is an in-memory fungible token with allowances.
type ERC20 struct {
	mu         sync.Mutex
	meta       model.TokenMeta
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// NewERC20 builds an empty token.
func NewERC20(address common.Address, symbol string, decimals uint8) *ERC20 {
	return &ERC20{
		meta:       model.TokenMeta{Address: address.Hex(), Symbol: symbol, Name: symbol, Decimals: decimals},
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Meta returns the token metadata.
func (t *ERC20) Meta() model.TokenMeta { return t.meta }

// Mint credits amount to to.
func (t *ERC20) Mint(to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.credit(to, amount)
}

// BalanceOf returns a copy of the balance of account.
func (t *ERC20) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(account).Clone(), nil
}

// Approve sets the allowance of spender over owner's balance.
func (t *ERC20) Approve(owner, spender common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = amount.Clone()
}

// Allowance returns the remaining allowance of spender over owner's balance.
func (t *ERC20) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Transfer moves amount from from to to.
func (t *ERC20) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// allowance unless spender is from.
func (t *ERC20) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if spender != from {
		allowed := t.allowances[from][spender]
		if allowed == nil || allowed.Lt(amount) {
			return fmt.Errorf("%w: spender %s", ErrInsufficientAllowance, spender.Hex())
		}
		if err := t.move(from, to, amount); err != nil {
			return err
		}
		allowed.Sub(allowed, amount)
		return nil
	}
	return t.move(from, to, amount)
}

func (t *ERC20) move(from, to common.Address, amount *uint256.Int) error {
	fromBal := t.balance(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	if _, overflow := new(uint256.Int).AddOverflow(t.balance(to), amount); overflow {
		return ErrBalanceOverflow
	}
	fromBal.Sub(fromBal, amount)
	return t.credit(to, amount)
}

func (t *ERC20) credit(to common.Address, amount *uint256.Int) error {
	bal := t.balance(to)
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	t.balances[to] = next
	return nil
}

func (t *ERC20) balance(account common.Address) *uint256.Int {
	bal, ok := t.balances[account]
	if !ok {
		bal = new(uint256.Int)
		t.balances[account] = bal
	}
	return bal
}
