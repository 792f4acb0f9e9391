package uniswapv2

import (
	"bytes"

	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// PairInitCodeHash is the code hash used to derive pair addresses with CREATE2.
var PairInitCodeHash = crypto.Keccak256Hash([]byte("defistate-amm/UniswapV2Pair"))

// Pool is a point-in-time view of one pair ledger.
type Pool struct {
	Address     common.Address `json:"address"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Reserve0    *uint256.Int   `json:"reserve0"`
	Reserve1    *uint256.Int   `json:"reserve1"`
	TotalSupply *uint256.Int   `json:"totalSupply"`
	KLast       *uint256.Int   `json:"kLast"`
	Treasury    common.Address `json:"treasury"`
}

// ReservesFor returns the reserves ordered as (tokenIn, tokenOut).
func (p Pool) ReservesFor(tokenIn, tokenOut common.Address) (reserveIn, reserveOut *uint256.Int, err error) {
	switch {
	case tokenIn == p.Token0 && tokenOut == p.Token1:
		return p.Reserve0, p.Reserve1, nil
	case tokenIn == p.Token1 && tokenOut == p.Token0:
		return p.Reserve1, p.Reserve0, nil
	}
	return nil, nil, types.ErrInvalidPath.Wrapf("pool %s does not contain the pair %s -> %s", p.Address.Hex(), tokenIn.Hex(), tokenOut.Hex())
}

// SortTokens returns the two tokens in canonical (ascending byte) order.
func SortTokens(tokenA, tokenB common.Address) (token0, token1 common.Address, err error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, types.ErrIdenticalAddresses.Wrapf("%s", tokenA.Hex())
	}
	token0, token1 = tokenA, tokenB
	if bytes.Compare(tokenB.Bytes(), tokenA.Bytes()) < 0 {
		token0, token1 = tokenB, tokenA
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, types.ErrZeroAddress.Wrap("pair token")
	}
	return token0, token1, nil
}

// PairAddress derives the deterministic address of the tokenA/tokenB pair
// created by factory, independent of argument order.
func PairAddress(factory, tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, PairInitCodeHash.Bytes()), nil
}
