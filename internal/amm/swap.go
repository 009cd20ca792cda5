package amm

import "github.com/holiman/uint256"

// Reserves is a point-in-time view of both pool reserves. Reserve1 is the
// virtual reserve of the encrypted asset.
type Reserves struct {
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

// Clone returns a deep copy.
func (r Reserves) Clone() Reserves {
	return Reserves{Reserve0: cloneOrZero(r.Reserve0), Reserve1: cloneOrZero(r.Reserve1)}
}

// Product returns reserve0 * reserve1 and whether it overflowed 256 bits.
func (r Reserves) Product() (*uint256.Int, bool) {
	return new(uint256.Int).MulOverflow(cloneOrZero(r.Reserve0), cloneOrZero(r.Reserve1))
}

func (r Reserves) empty() bool {
	return r.Reserve0 == nil || r.Reserve1 == nil || r.Reserve0.IsZero() || r.Reserve1.IsZero()
}

// Quote is the full result of a constant-product swap computation.
type Quote struct {
	AmountIn         *uint256.Int
	AmountInAfterFee *uint256.Int
	AmountOut        *uint256.Int
	Reserve0After    *uint256.Int
	Reserve1After    *uint256.Int
}

// FeeResidue is the portion of AmountIn retained as fee.
func (q Quote) FeeResidue() *uint256.Int {
	return FeeResidue(q.AmountIn, q.AmountInAfterFee)
}

// QuoteExactIn0 prices a public-asset-in swap:
//
//	reserve0After = reserve0 + amountAfterFee(amountIn)
//	reserve1After = floor(reserve0 * reserve1 / reserve0After)
//	amountOut     = reserve1 - reserve1After
//
// A swap that would drain reserve1 fails with ErrInsufficientLiquidity.
func QuoteExactIn0(reserves Reserves, feeBps uint32, amountIn *uint256.Int) (Quote, error) {
	if reserves.empty() {
		return Quote{}, ErrEmptyReserves
	}
	afterFee, err := AmountAfterFee(amountIn, feeBps)
	if err != nil {
		return Quote{}, err
	}
	if afterFee.IsZero() {
		return Quote{}, ErrAmountTooSmall
	}

	r0After, overflow := new(uint256.Int).AddOverflow(reserves.Reserve0, afterFee)
	if overflow {
		return Quote{}, ErrAmountOverflow
	}
	r1After, _ := new(uint256.Int).MulDivOverflow(reserves.Reserve0, reserves.Reserve1, r0After)
	if r1After.IsZero() {
		return Quote{}, ErrInsufficientLiquidity
	}

	return Quote{
		AmountIn:         amountIn.Clone(),
		AmountInAfterFee: afterFee,
		AmountOut:        new(uint256.Int).Sub(reserves.Reserve1, r1After),
		Reserve0After:    r0After,
		Reserve1After:    r1After,
	}, nil
}

// QuoteExactOut0 prices a virtual-asset-in swap paying out the public asset.
// It mirrors QuoteExactIn0 with the reserve roles swapped.
func QuoteExactOut0(reserves Reserves, feeBps uint32, amountIn1 *uint256.Int) (Quote, error) {
	if reserves.empty() {
		return Quote{}, ErrEmptyReserves
	}
	afterFee, err := AmountAfterFee(amountIn1, feeBps)
	if err != nil {
		return Quote{}, err
	}
	if afterFee.IsZero() {
		return Quote{}, ErrAmountTooSmall
	}

	r1After, overflow := new(uint256.Int).AddOverflow(reserves.Reserve1, afterFee)
	if overflow {
		return Quote{}, ErrAmountOverflow
	}
	r0After, _ := new(uint256.Int).MulDivOverflow(reserves.Reserve0, reserves.Reserve1, r1After)
	if r0After.IsZero() {
		return Quote{}, ErrInsufficientLiquidity
	}

	return Quote{
		AmountIn:         amountIn1.Clone(),
		AmountInAfterFee: afterFee,
		AmountOut:        new(uint256.Int).Sub(reserves.Reserve0, r0After),
		Reserve0After:    r0After,
		Reserve1After:    r1After,
	}, nil
}

// CheckMinOut fails with ErrSlippage when the quote pays less than minOut.
func CheckMinOut(q Quote, minOut *uint256.Int) error {
	if minOut != nil && q.AmountOut.Lt(minOut) {
		return ErrSlippage
	}
	return nil
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
