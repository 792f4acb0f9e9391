package calculator

import (
	"errors"
	"testing"

	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// poolSource serves reserves from a fixed set of pool views.
type poolSource []uniswapv2.Pool

func (s poolSource) Reserves(tokenA, tokenB common.Address) (*uint256.Int, *uint256.Int, error) {
	for _, p := range s {
		if rA, rB, err := p.ReservesFor(tokenA, tokenB); err == nil {
			return rA, rB, nil
		}
	}
	return nil, nil, types.ErrPairNotFound.Wrapf("%s/%s", tokenA.Hex(), tokenB.Hex())
}

func n(dec string) *uint256.Int { return uint256.MustFromDecimal(dec) }

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name        string
		amountIn    *uint256.Int
		reserveIn   *uint256.Int
		reserveOut  *uint256.Int
		expected    string
		expectedErr error
	}{
		{
			name:       "Standard Swap (6 decimals -> 18 decimals)",
			amountIn:   uint256.NewInt(1_000_000),
			reserveIn:  uint256.NewInt(100_000_000),
			reserveOut: n("50000000000000000000"),
			expected:   "493579017198530649",
		},
		{
			name:       "Standard Swap (18 decimals -> 6 decimals)",
			amountIn:   n("1000000000000000000"),
			reserveIn:  n("50000000000000000000"),
			reserveOut: uint256.NewInt(100_000_000),
			expected:   "1955016",
		},
		{
			name:       "Balanced Pool",
			amountIn:   types.Units(20, 18),
			reserveIn:  types.Units(25, 18),
			reserveOut: types.Units(25, 18),
			expected:   "11092567868268802848",
		},
		{
			name:        "Zero Input",
			amountIn:    new(uint256.Int),
			reserveIn:   uint256.NewInt(1),
			reserveOut:  uint256.NewInt(1),
			expectedErr: types.ErrInsufficientInputAmount,
		},
		{
			name:        "Empty Reserves",
			amountIn:    uint256.NewInt(1),
			reserveIn:   new(uint256.Int),
			reserveOut:  uint256.NewInt(1),
			expectedErr: types.ErrInsufficientLiquidity,
		},
		{
			name:        "Overflow",
			amountIn:    new(uint256.Int).SetAllOne(),
			reserveIn:   uint256.NewInt(1),
			reserveOut:  uint256.NewInt(1),
			expectedErr: types.ErrArithmeticOverflow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectedErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.Dec())
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name        string
		amountOut   *uint256.Int
		reserveIn   *uint256.Int
		reserveOut  *uint256.Int
		expected    string
		expectedErr error
	}{
		{
			name:       "Inverse Of GetAmountOut",
			amountOut:  n("493579017198530649"),
			reserveIn:  uint256.NewInt(100_000_000),
			reserveOut: n("50000000000000000000"),
			expected:   "1000000",
		},
		{
			name:       "Balanced Pool Rounds Up",
			amountOut:  types.Units(1, 18),
			reserveIn:  types.Units(25, 18),
			reserveOut: types.Units(25, 18),
			expected:   "1044801069876295554",
		},
		{
			name:        "Output Equals Reserve",
			amountOut:   uint256.NewInt(100),
			reserveIn:   uint256.NewInt(100),
			reserveOut:  uint256.NewInt(100),
			expectedErr: types.ErrInsufficientLiquidity,
		},
		{
			name:        "Zero Output",
			amountOut:   new(uint256.Int),
			reserveIn:   uint256.NewInt(100),
			reserveOut:  uint256.NewInt(100),
			expectedErr: types.ErrInsufficientOutputAmount,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountIn(tc.amountOut, tc.reserveIn, tc.reserveOut)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectedErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.Dec())
		})
	}
}

func TestQuote(t *testing.T) {
	got, err := Quote(uint256.NewInt(10), uint256.NewInt(100), uint256.NewInt(250))
	require.NoError(t, err)
	assert.Equal(t, uint64(25), got.Uint64())

	_, err = Quote(new(uint256.Int), uint256.NewInt(100), uint256.NewInt(250))
	assert.True(t, errors.Is(err, types.ErrInsufficientAmount))

	_, err = Quote(uint256.NewInt(10), new(uint256.Int), uint256.NewInt(250))
	assert.True(t, errors.Is(err, types.ErrInsufficientLiquidity))
}

func TestPathAmounts(t *testing.T) {
	tokenA := common.HexToAddress("0x1000000000000000000000000000000000000000")
	tokenB := common.HexToAddress("0x2000000000000000000000000000000000000000")
	tokenC := common.HexToAddress("0x3000000000000000000000000000000000000000")
	tokenD := common.HexToAddress("0x4000000000000000000000000000000000000000")

	src := poolSource{
		{Token0: tokenA, Token1: tokenB, Reserve0: types.Units(10, 18), Reserve1: types.Units(20, 18)},
		{Token0: tokenB, Token1: tokenC, Reserve0: types.Units(30, 18), Reserve1: types.Units(40, 18)},
	}
	path := []common.Address{tokenA, tokenB, tokenC}

	t.Run("GetAmountsOut", func(t *testing.T) {
		amounts, err := GetAmountsOut(src, types.Units(1, 18), path)
		require.NoError(t, err)
		require.Len(t, amounts, 3)
		assert.Equal(t, "1000000000000000000", amounts[0].Dec())
		assert.Equal(t, "1813221787760298263", amounts[1].Dec())
		assert.Equal(t, "2273383432319340697", amounts[2].Dec())
	})

	t.Run("GetAmountsIn", func(t *testing.T) {
		amounts, err := GetAmountsIn(src, types.Units(1, 18), path)
		require.NoError(t, err)
		require.Len(t, amounts, 3)
		assert.Equal(t, "402459283797947088", amounts[0].Dec())
		assert.Equal(t, "771545405447110563", amounts[1].Dec())
		assert.Equal(t, "1000000000000000000", amounts[2].Dec())
	})

	t.Run("Reverse Direction Uses Swapped Reserves", func(t *testing.T) {
		amounts, err := GetAmountsOut(src, types.Units(1, 18), []common.Address{tokenB, tokenA})
		require.NoError(t, err)
		expected, err := GetAmountOut(types.Units(1, 18), types.Units(20, 18), types.Units(10, 18))
		require.NoError(t, err)
		assert.Equal(t, expected.Dec(), amounts[1].Dec())
	})

	t.Run("Short Path", func(t *testing.T) {
		_, err := GetAmountsOut(src, types.Units(1, 18), []common.Address{tokenA})
		assert.True(t, errors.Is(err, types.ErrInvalidPath))
		_, err = GetAmountsIn(src, types.Units(1, 18), nil)
		assert.True(t, errors.Is(err, types.ErrInvalidPath))
	})

	t.Run("Missing Pool", func(t *testing.T) {
		_, err := GetAmountsOut(src, types.Units(1, 18), []common.Address{tokenA, tokenB, tokenD})
		assert.True(t, errors.Is(err, types.ErrPairNotFound))
	})
}

func TestExchangeRate(t *testing.T) {
	rate, err := ExchangeRate(types.Units(100, 18), types.Units(200, 18), 18)
	require.NoError(t, err)
	assert.Equal(t, "1974316068794122597", rate.Dec())

	_, err = ExchangeRate(uint256.NewInt(99), uint256.NewInt(200), 18)
	assert.True(t, errors.Is(err, types.ErrInsufficientLiquidity))
}
