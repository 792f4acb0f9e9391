package tokenpoolregistry

import (
	"testing"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	tokenA = common.HexToAddress("0x0a")
	tokenB = common.HexToAddress("0x0b")
	tokenC = common.HexToAddress("0x0c")
	tokenD = common.HexToAddress("0x0d")
	poolAB = common.HexToAddress("0xab")
	poolBC = common.HexToAddress("0xbc")
	poolAC = common.HexToAddress("0xac")
	poolCD = common.HexToAddress("0xcd")
)

func testRegistry() *TokenPoolRegistry {
	return FromPools([]uniswapv2.Pool{
		{Address: poolAB, Token0: tokenA, Token1: tokenB},
		{Address: poolBC, Token0: tokenB, Token1: tokenC},
		{Address: poolAC, Token0: tokenA, Token1: tokenC},
		{Address: poolCD, Token0: tokenC, Token1: tokenD},
	})
}

func TestPoolsForToken(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, []common.Address{poolAB, poolAC}, r.PoolsForToken(tokenA))
	assert.Equal(t, []common.Address{poolBC, poolAC, poolCD}, r.PoolsForToken(tokenC))
	assert.Nil(t, r.PoolsForToken(common.HexToAddress("0xff")))

	t.Run("Adding A Known Pool Is A No-op", func(t *testing.T) {
		r.AddPool(poolAB, tokenB, tokenA)
		assert.Equal(t, []common.Address{poolAB, poolAC}, r.PoolsForToken(tokenA))
	})
}

func TestPaths(t *testing.T) {
	r := testRegistry()

	testCases := []struct {
		name     string
		from, to common.Address
		maxHops  int
		expected [][]common.Address
	}{
		{
			name: "direct and two hop",
			from: tokenA, to: tokenC, maxHops: 2,
			expected: [][]common.Address{{tokenA, tokenC}, {tokenA, tokenB, tokenC}},
		},
		{
			name: "hop limit",
			from: tokenA, to: tokenC, maxHops: 1,
			expected: [][]common.Address{{tokenA, tokenC}},
		},
		{
			name: "three hops",
			from: tokenB, to: tokenD, maxHops: 3,
			expected: [][]common.Address{{tokenB, tokenC, tokenD}, {tokenB, tokenA, tokenC, tokenD}},
		},
		{name: "unknown token", from: tokenA, to: common.HexToAddress("0xff"), maxHops: 3},
		{name: "same token", from: tokenA, to: tokenA, maxHops: 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, r.Paths(tc.from, tc.to, tc.maxHops))
		})
	}
}

func TestRemovePool(t *testing.T) {
	r := testRegistry()
	r.RemovePool(poolAC)

	assert.Equal(t, []common.Address{poolAB}, r.PoolsForToken(tokenA))
	assert.Equal(t, [][]common.Address{{tokenA, tokenB, tokenC}}, r.Paths(tokenA, tokenC, 3))

	r.RemovePool(poolAC)
	r.AddPool(poolAC, tokenA, tokenC)
	assert.Equal(t, [][]common.Address{{tokenA, tokenC}, {tokenA, tokenB, tokenC}}, r.Paths(tokenA, tokenC, 2))
}
