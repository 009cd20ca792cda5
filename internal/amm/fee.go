package amm

import "github.com/holiman/uint256"

// FeeDenominator is the fixed denominator fee rates are expressed against.
// A fee of 3000 is 0.3%.
const FeeDenominator uint32 = 1_000_000

var feeDenominator = uint256.NewInt(uint64(FeeDenominator))

// ValidateFee rejects fee rates above FeeDenominator. A fee equal to the
// denominator is allowed: every swap then fails with ErrAmountTooSmall.
func ValidateFee(feeBps uint32) error {
	if feeBps > FeeDenominator {
		return ErrInvalidFee
	}
	return nil
}

// AmountAfterFee returns floor(amountIn * (FeeDenominator - feeBps) / FeeDenominator).
func AmountAfterFee(amountIn *uint256.Int, feeBps uint32) (*uint256.Int, error) {
	if err := ValidateFee(feeBps); err != nil {
		return nil, err
	}
	if amountIn == nil {
		return new(uint256.Int), nil
	}
	keep := uint256.NewInt(uint64(FeeDenominator - feeBps))
	// keep <= denominator, so the quotient always fits.
	out, _ := new(uint256.Int).MulDivOverflow(amountIn, keep, feeDenominator)
	return out, nil
}

// FeeResidue is the part of amountIn withheld by the fee.
func FeeResidue(amountIn, amountInAfterFee *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(amountIn, amountInAfterFee)
}
