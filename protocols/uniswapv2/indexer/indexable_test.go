package indexer

import (
	"testing"

	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexableUniswapV2System(t *testing.T) {
	tokenA := common.HexToAddress("0x1000000000000000000000000000000000000000")
	tokenB := common.HexToAddress("0x2000000000000000000000000000000000000000")
	tokenC := common.HexToAddress("0x3000000000000000000000000000000000000000")

	testPools := []uniswapv2.Pool{
		{Address: common.HexToAddress("0x0101"), Token0: tokenA, Token1: tokenB, Reserve0: uint256.NewInt(1000), Reserve1: uint256.NewInt(2000)},
		{Address: common.HexToAddress("0x0102"), Token0: tokenB, Token1: tokenC, Reserve0: uint256.NewInt(3000), Reserve1: uint256.NewInt(4000)},
	}

	indexer := New().Index(testPools)
	require.NotNil(t, indexer)

	t.Run("Successful Lookups", func(t *testing.T) {
		pool, found := indexer.GetByAddress(common.HexToAddress("0x0101"))
		assert.True(t, found)
		assert.Equal(t, tokenA, pool.Token0)
		assert.Equal(t, uint64(1000), pool.Reserve0.Uint64())

		pool, found = indexer.GetByTokens(tokenC, tokenB)
		assert.True(t, found, "token order must not matter")
		assert.Equal(t, common.HexToAddress("0x0102"), pool.Address)
	})

	t.Run("Not Found Lookups", func(t *testing.T) {
		_, found := indexer.GetByAddress(common.HexToAddress("0x0999"))
		assert.False(t, found)
		_, found = indexer.GetByTokens(tokenA, tokenC)
		assert.False(t, found)
		_, found = indexer.GetByTokens(tokenA, tokenA)
		assert.False(t, found)
	})

	t.Run("All Method", func(t *testing.T) {
		allPools := indexer.All()
		assert.Len(t, allPools, 2)

		allPools[0].Token0 = tokenC
		originalPool, _ := indexer.GetByAddress(common.HexToAddress("0x0101"))
		assert.Equal(t, tokenA, originalPool.Token0, "Modifying the returned slice should not affect the internal state")
	})

	t.Run("Edge Case - Nil Slice", func(t *testing.T) {
		nilIndexer := NewIndexableUniswapV2System(nil)
		require.NotNil(t, nilIndexer)

		_, found := nilIndexer.GetByAddress(common.HexToAddress("0x0101"))
		assert.False(t, found)

		allPools := nilIndexer.All()
		assert.Len(t, allPools, 0)
		assert.NotNil(t, allPools, "All() should return an empty slice, not nil")
	})
}
