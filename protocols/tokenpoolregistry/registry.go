package tokenpoolregistry

import (
	"github.com/defistate/defistate-amm-go/bitset"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
)

// TokenPoolRegistry is a simple, non-thread-safe graph of tokens connected by
// the pools that trade them. It is used to discover swap paths.
type TokenPoolRegistry struct {
	// Lookups for fast index retrieval
	tokenToIndex map[common.Address]int
	poolToIndex  map[common.Address]int

	tokens      []common.Address
	pools       []common.Address
	adjacency   [][]int // token index -> outgoing edge indexes
	edgeTargets []int   // edge index -> target token index
	edgePools   [][]int // edge index -> pool indexes, empty once every pool is removed
}

// NewTokenPoolRegistry creates an empty registry.
func NewTokenPoolRegistry() *TokenPoolRegistry {
	return &TokenPoolRegistry{
		tokenToIndex: make(map[common.Address]int),
		poolToIndex:  make(map[common.Address]int),
	}
}

// FromPools builds a registry holding every pool of a pair snapshot.
func FromPools(pools []uniswapv2.Pool) *TokenPoolRegistry {
	r := NewTokenPoolRegistry()
	for _, p := range pools {
		r.AddPool(p.Address, p.Token0, p.Token1)
	}
	return r
}

func (r *TokenPoolRegistry) tokenIndex(token common.Address) int {
	index, exists := r.tokenToIndex[token]
	if !exists {
		index = len(r.tokens)
		r.tokens = append(r.tokens, token)
		r.tokenToIndex[token] = index
		r.adjacency = append(r.adjacency, nil)
	}
	return index
}

// addEdge creates or updates the directed edge from -> to and attaches poolIndex to it.
func (r *TokenPoolRegistry) addEdge(from, to, poolIndex int) {
	for _, edgeIndex := range r.adjacency[from] {
		if r.edgeTargets[edgeIndex] != to {
			continue
		}
		for _, p := range r.edgePools[edgeIndex] {
			if p == poolIndex {
				return
			}
		}
		r.edgePools[edgeIndex] = append(r.edgePools[edgeIndex], poolIndex)
		return
	}
	edgeIndex := len(r.edgeTargets)
	r.edgeTargets = append(r.edgeTargets, to)
	r.edgePools = append(r.edgePools, []int{poolIndex})
	r.adjacency[from] = append(r.adjacency[from], edgeIndex)
}

// AddPool connects tokenA and tokenB through pool. Adding a known pool again
// is a no-op.
func (r *TokenPoolRegistry) AddPool(pool, tokenA, tokenB common.Address) {
	poolIndex, exists := r.poolToIndex[pool]
	if !exists {
		poolIndex = len(r.pools)
		r.pools = append(r.pools, pool)
		r.poolToIndex[pool] = poolIndex
	}
	a, b := r.tokenIndex(tokenA), r.tokenIndex(tokenB)
	r.addEdge(a, b, poolIndex)
	r.addEdge(b, a, poolIndex)
}

// RemovePool detaches pool from every edge. Edges left without a pool stay
// in place but are no longer traversed.
func (r *TokenPoolRegistry) RemovePool(pool common.Address) {
	poolIndex, exists := r.poolToIndex[pool]
	if !exists {
		return
	}
	for edgeIndex, poolList := range r.edgePools {
		kept := poolList[:0]
		for _, p := range poolList {
			if p != poolIndex {
				kept = append(kept, p)
			}
		}
		r.edgePools[edgeIndex] = kept
	}
	delete(r.poolToIndex, pool)
}

// PoolsForToken returns the live pools trading token, in insertion order.
func (r *TokenPoolRegistry) PoolsForToken(token common.Address) []common.Address {
	index, exists := r.tokenToIndex[token]
	if !exists {
		return nil
	}
	seen := make(map[int]struct{})
	var pools []common.Address
	for _, edgeIndex := range r.adjacency[index] {
		for _, p := range r.edgePools[edgeIndex] {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			pools = append(pools, r.pools[p])
		}
	}
	return pools
}

// Paths returns every simple token path from -> to that uses at most maxHops
// pools, shortest first. Paths of equal length keep insertion order.
func (r *TokenPoolRegistry) Paths(from, to common.Address, maxHops int) [][]common.Address {
	start, ok := r.tokenToIndex[from]
	if !ok {
		return nil
	}
	target, ok := r.tokenToIndex[to]
	if !ok || start == target || maxHops < 1 {
		return nil
	}

	byLength := make([][][]common.Address, maxHops+1)
	visited := bitset.NewBitSet(uint64(len(r.tokens)))
	stack := []int{start}
	visited.Set(uint64(start))

	var walk func(current int)
	walk = func(current int) {
		if current == target {
			path := make([]common.Address, len(stack))
			for i, t := range stack {
				path[i] = r.tokens[t]
			}
			byLength[len(stack)-1] = append(byLength[len(stack)-1], path)
			return
		}
		if len(stack) > maxHops {
			return
		}
		for _, edgeIndex := range r.adjacency[current] {
			next := r.edgeTargets[edgeIndex]
			if visited.IsSet(uint64(next)) || len(r.edgePools[edgeIndex]) == 0 {
				continue
			}
			visited.Set(uint64(next))
			stack = append(stack, next)
			walk(next)
			stack = stack[:len(stack)-1]
			visited.Unset(uint64(next))
		}
	}
	walk(start)

	var paths [][]common.Address
	for _, group := range byLength {
		paths = append(paths, group...)
	}
	return paths
}
