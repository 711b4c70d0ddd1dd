package amm

import "github.com/holiman/uint256"

// maxBalanceBits caps every reserve and inbound amount. Keeping both factors
// within 128 bits means their product fits the 256-bit domain exactly, so
// the quote below never wraps.
const maxBalanceBits = 128

// Quote prices amountIn against the current reserves without a fee:
//
//	floor(reserveOut * amountIn / (reserveIn + amountIn))
//
// The multiplication runs in the full 256-bit domain and the division narrows
// the result back down; the narrowing is safe because the quotient is bounded
// by reserveOut. Inputs must respect the 128-bit balance cap, which the pool
// enforces on every mutation. Output bound checks are the caller's job.
func Quote(reserveIn, reserveOut, amountIn *uint256.Int) *uint256.Int {
	denominator := new(uint256.Int).Add(reserveIn, amountIn)
	out := new(uint256.Int).Mul(reserveOut, amountIn)
	return out.Div(out, denominator)
}

// Ratio is the decimals-normalized constant-product health metric: each
// balance is integer-divided down to whole display units, then the two are
// multiplied. Not used to gate swaps.
func Ratio(balance0, balance1 *uint256.Int, decimals0, decimals1 uint8) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(
		normalize(balance0, decimals0),
		normalize(balance1, decimals1),
	)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return product, nil
}

func normalize(balance *uint256.Int, decimals uint8) *uint256.Int {
	// 10^39 already exceeds any 128-bit balance.
	if decimals >= 39 {
		return new(uint256.Int)
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return new(uint256.Int).Div(balance, scale)
}
