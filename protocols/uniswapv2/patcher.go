package uniswapv2

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func eq(a, b *uint256.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Eq(b)
}

func clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return nil
	}
	return new(uint256.Int).Set(x)
}

// deepCopyPool creates a new Pool that shares no memory with p.
func deepCopyPool(p Pool) Pool {
	newPool := p
	newPool.Reserve0 = clone(p.Reserve0)
	newPool.Reserve1 = clone(p.Reserve1)
	newPool.TotalSupply = clone(p.TotalSupply)
	newPool.KLast = clone(p.KLast)
	return newPool
}

// Patcher applies diff to prevState and returns the resulting pool set. The
// order of prevState is preserved, additions are appended in diff order.
func Patcher(prevState []Pool, diff UniswapV2SystemDiff) ([]Pool, error) {
	index := make(map[common.Address]int, len(prevState))
	next := make([]Pool, 0, len(prevState)+len(diff.Additions))
	for _, pool := range prevState {
		index[pool.Address] = len(next)
		next = append(next, deepCopyPool(pool))
	}

	for _, updated := range diff.Updates {
		i, ok := index[updated.Address]
		if !ok {
			return nil, fmt.Errorf("cannot update unknown pool %s", updated.Address.Hex())
		}
		next[i] = deepCopyPool(updated)
	}

	for _, added := range diff.Additions {
		if _, ok := index[added.Address]; ok {
			return nil, fmt.Errorf("pool %s already exists", added.Address.Hex())
		}
		index[added.Address] = len(next)
		next = append(next, deepCopyPool(added))
	}

	if len(diff.Deletions) == 0 {
		return next, nil
	}
	deleted := make(map[common.Address]struct{}, len(diff.Deletions))
	for _, address := range diff.Deletions {
		deleted[address] = struct{}{}
	}
	kept := next[:0]
	for _, pool := range next {
		if _, ok := deleted[pool.Address]; !ok {
			kept = append(kept, pool)
		}
	}
	return kept, nil
}
