package indexer

import (
	"testing"

	tokenregistry "github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexableTokenSystem(t *testing.T) {
	wethAddress := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokenAddress := common.HexToAddress("0x3c4E0FdeD74876295Ca36F62da289F69E3929cc4")
	nonExistentAddress := common.HexToAddress("0x1111111111111111111111111111111111111111")

	testTokens := []tokenregistry.Token{
		{ID: 1, Address: wethAddress, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
		{ID: 2, Address: tokenAddress, Name: "MyToken1", Symbol: "MYT1", Decimals: 18},
	}

	indexer := New().Index(testTokens)
	require.NotNil(t, indexer)

	t.Run("Successful Lookups", func(t *testing.T) {
		weth, found := indexer.GetByID(1)
		assert.True(t, found)
		assert.Equal(t, "WETH", weth.Symbol)

		token, found := indexer.GetByAddress(tokenAddress)
		assert.True(t, found)
		assert.Equal(t, "MYT1", token.Symbol)

		token, found = indexer.GetBySymbol("myt1")
		assert.True(t, found, "symbol lookups ignore case")
		assert.Equal(t, tokenAddress, token.Address)
	})

	t.Run("Not Found Lookups", func(t *testing.T) {
		_, found := indexer.GetByID(999)
		assert.False(t, found)

		_, found = indexer.GetByAddress(nonExistentAddress)
		assert.False(t, found)

		_, found = indexer.GetBySymbol("USDC")
		assert.False(t, found)
	})

	t.Run("All Method", func(t *testing.T) {
		allTokens := indexer.All()
		require.Len(t, allTokens, 2)

		allTokens[0].Symbol = "MODIFIED"
		originalToken, _ := indexer.GetByID(1)
		assert.Equal(t, "WETH", originalToken.Symbol, "modifying the returned slice should not affect the index")
	})

	t.Run("Input Slice Is Copied", func(t *testing.T) {
		input := []tokenregistry.Token{{ID: 7, Symbol: "AAA"}}
		idx := NewIndexableTokenSystem(input)
		input[0].Symbol = "BBB"
		assert.Equal(t, "AAA", idx.All()[0].Symbol)
	})

	t.Run("Edge Case - Nil Slice", func(t *testing.T) {
		nilIndexer := NewIndexableTokenSystem(nil)
		require.NotNil(t, nilIndexer)

		_, found := nilIndexer.GetByID(1)
		assert.False(t, found)

		allTokens := nilIndexer.All()
		assert.Len(t, allTokens, 0)
		assert.NotNil(t, allTokens, "All() should return an empty slice, not nil")
	})
}
