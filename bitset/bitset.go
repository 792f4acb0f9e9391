// Package bitset is a fixed-size set of small non-negative integers, used to
// track visited vertices during graph walks.
package bitset

// BitSet stores one bit per index, 64 indices per word.
type BitSet []uint64

// NewBitSet returns a cleared set able to hold indices in [0, size).
func NewBitSet(size uint64) BitSet {
	return make(BitSet, (size+63)/64)
}

func (b BitSet) IsSet(index uint64) bool {
	return b[index/64]&(1<<(index%64)) != 0
}

func (b BitSet) Set(index uint64) {
	b[index/64] |= 1 << (index % 64)
}

func (b BitSet) Unset(index uint64) {
	b[index/64] &^= 1 << (index % 64)
}

// Len reports how many indices are currently set.
func (b BitSet) Len() int {
	n := 0
	for _, w := range b {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}
