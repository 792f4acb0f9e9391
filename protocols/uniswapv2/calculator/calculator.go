package calculator

import (
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// The 0.3% swap fee is retained by the pool: 997 of every 1000 input
	// units count towards the price.
	feeNumerator   = uint256.NewInt(997)
	feeDenominator = uint256.NewInt(1000)

	one     = uint256.NewInt(1)
	ten     = uint256.NewInt(10)
	hundred = uint256.NewInt(100)
)

// ReserveSource resolves the reserves of the pool between two tokens, ordered
// as (tokenA, tokenB).
type ReserveSource interface {
	Reserves(tokenA, tokenB common.Address) (reserveA, reserveB *uint256.Int, err error)
}

// Quote returns the amount of tokenB worth amountA at the current reserve ratio.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, types.ErrInsufficientAmount.Wrap("quote amount is zero")
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, types.ErrInsufficientLiquidity.Wrap("quote against empty reserves")
	}
	return types.SafeMulDiv(amountA, reserveB, reserveA)
}

// GetAmountOut returns the maximum output for amountIn, net of the swap fee:
// amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, types.ErrInsufficientInputAmount.Wrap("amountIn is zero")
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, types.ErrInsufficientLiquidity.Wrap("empty reserves")
	}

	amountInWithFee, err := types.SafeMul(amountIn, feeNumerator)
	if err != nil {
		return nil, err
	}
	numerator, err := types.SafeMul(amountInWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := types.SafeMul(reserveIn, feeDenominator)
	if err != nil {
		return nil, err
	}
	if denominator, err = types.SafeAdd(denominator, amountInWithFee); err != nil {
		return nil, err
	}
	return types.SafeDiv(numerator, denominator)
}

// GetAmountIn returns the minimum input that yields amountOut, rounded up:
// reserveIn*amountOut*1000 / ((reserveOut-amountOut)*997) + 1.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, types.ErrInsufficientOutputAmount.Wrap("amountOut is zero")
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, types.ErrInsufficientLiquidity.Wrap("empty reserves")
	}
	if !amountOut.Lt(reserveOut) {
		return nil, types.ErrInsufficientLiquidity.Wrapf("requested amountOut (%s) is >= reserveOut (%s)", amountOut.Dec(), reserveOut.Dec())
	}

	numerator, err := types.SafeMul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = types.SafeMul(numerator, feeDenominator); err != nil {
		return nil, err
	}
	denominator, err := types.SafeMul(new(uint256.Int).Sub(reserveOut, amountOut), feeNumerator)
	if err != nil {
		return nil, err
	}
	amountIn, err := types.SafeDiv(numerator, denominator)
	if err != nil {
		return nil, err
	}
	return types.SafeAdd(amountIn, one)
}

// GetAmountsOut walks path forward from amountIn and returns the amount
// flowing into every hop; amounts[len(path)-1] is the final output.
func GetAmountsOut(src ReserveSource, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, types.ErrInvalidPath.Wrapf("path has %d tokens", len(path))
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = new(uint256.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := src.Reserves(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		if amounts[i+1], err = GetAmountOut(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// GetAmountsIn walks path backward from amountOut and returns the amount each
// hop requires; amounts[0] is the input the trader must supply.
func GetAmountsIn(src ReserveSource, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, types.ErrInvalidPath.Wrapf("path has %d tokens", len(path))
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[len(path)-1] = new(uint256.Int).Set(amountOut)
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := src.Reserves(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		if amounts[i-1], err = GetAmountIn(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// ExchangeRate returns how many base units of the output token one whole
// input token buys, sampled with a trade of 1% of the input reserve so the
// price impact stays small.
func ExchangeRate(reserveIn, reserveOut *uint256.Int, decimalsIn uint8) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, types.ErrInsufficientLiquidity.Wrap("empty reserves")
	}
	amountIn := new(uint256.Int).Div(reserveIn, hundred)
	if amountIn.IsZero() {
		return nil, types.ErrInsufficientLiquidity.Wrapf("reserve %s too small to sample", reserveIn.Dec())
	}
	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	scale := new(uint256.Int).Exp(ten, uint256.NewInt(uint64(decimalsIn)))
	return types.SafeMulDiv(scale, amountOut, amountIn)
}
