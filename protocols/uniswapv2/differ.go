package uniswapv2

import "github.com/ethereum/go-ethereum/common"

type UniswapV2SystemDiff struct {
	Additions []Pool           `json:"additions,omitempty"`
	Updates   []Pool           `json:"updates,omitempty"`
	Deletions []common.Address `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d UniswapV2SystemDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ calculates the difference between two snapshots of the pool set,
// keyed by pair address. A pool counts as updated when its reserves, share
// supply or kLast changed.
func Differ(old, new []Pool) UniswapV2SystemDiff {
	oldPoolsMap := make(map[common.Address]Pool, len(old))
	for _, pool := range old {
		oldPoolsMap[pool.Address] = pool
	}

	newPoolsMap := make(map[common.Address]Pool, len(new))
	for _, pool := range new {
		newPoolsMap[pool.Address] = pool
	}

	var additions []Pool
	var updates []Pool
	var deletions []common.Address

	// Walk the new slice rather than the map so the output order is stable.
	for _, newPool := range new {
		oldPool, exists := oldPoolsMap[newPool.Address]
		if !exists {
			additions = append(additions, newPool)
			continue
		}
		if changed(oldPool, newPool) {
			updates = append(updates, newPool)
		}
	}

	for _, oldPool := range old {
		if _, exists := newPoolsMap[oldPool.Address]; !exists {
			deletions = append(deletions, oldPool.Address)
		}
	}

	return UniswapV2SystemDiff{
		Additions: additions,
		Updates:   updates,
		Deletions: deletions,
	}
}

func changed(a, b Pool) bool {
	return !eq(a.Reserve0, b.Reserve0) ||
		!eq(a.Reserve1, b.Reserve1) ||
		!eq(a.TotalSupply, b.TotalSupply) ||
		!eq(a.KLast, b.KLast)
}
