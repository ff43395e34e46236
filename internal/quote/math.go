package quote

import "math/big"

// Fee convention of the constant-product pool: 0.3% taken from the input
// side, expressed as 997/1000.
const (
	feeNumerator   = 997
	feeDenominator = 1000
	bpsDenominator = 10_000
)

// AmountOut computes the pool's exact output for an input amount:
//
//	out = in*997*reserveOut / (reserveIn*1000 + in*997)
//
// with floor division, matching on-chain execution bit for bit. Zero input
// or empty reserves yield zero.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return new(big.Int)
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	den.Add(den, inWithFee)
	return num.Div(num, den)
}

// MinOut applies a slippage tolerance in basis points:
// out*(10000-bps)/10000, floored. The result equals out only at zero
// tolerance.
func MinOut(amountOut *big.Int, slippageBps int) *big.Int {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int)
	}
	min := new(big.Int).Mul(amountOut, big.NewInt(int64(bpsDenominator-slippageBps)))
	return min.Div(min, big.NewInt(bpsDenominator))
}
