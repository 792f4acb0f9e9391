package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Storage slots follow the Solidity layout rules: fixed fields occupy
// sequential slots, mapping values live at keccak(key ‖ slot) and dynamic
// array elements at keccak(slot) + index.

// Slot returns the n-th fixed storage slot.
func Slot(n uint64) common.Hash {
	var h common.Hash
	binary.BigEndian.PutUint64(h[common.HashLength-8:], n)
	return h
}

// MapSlot returns the slot of the mapping entry keyed by keys, nested left to
// right, under base.
func MapSlot(base common.Hash, keys ...[]byte) common.Hash {
	slot := base
	for _, key := range keys {
		slot = crypto.Keccak256Hash(common.LeftPadBytes(key, common.HashLength), slot[:])
	}
	return slot
}

// ArraySlot returns the slot of element index of the dynamic array at base.
func ArraySlot(base common.Hash, index uint64) common.Hash {
	start := new(uint256.Int).SetBytes32(crypto.Keccak256(base[:]))
	start.Add(start, uint256.NewInt(index))
	return common.Hash(start.Bytes32())
}

// GetState returns the value stored at key of address.
func (s *StateDB) GetState(address common.Address, key common.Hash) common.Hash {
	return s.storage[address][key]
}

// SetState stores value at key of address.
func (s *StateDB) SetState(address common.Address, key, value common.Hash) {
	slots, ok := s.storage[address]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s.storage[address] = slots
	}
	prev, existed := slots[key]
	s.journal.append(storageChange{address: address, key: key, prev: prev, existed: existed})
	slots[key] = value
}

// GetUint reads a uint256 word.
func (s *StateDB) GetUint(address common.Address, key common.Hash) *uint256.Int {
	value := s.GetState(address, key)
	return new(uint256.Int).SetBytes32(value[:])
}

// SetUint writes a uint256 word.
func (s *StateDB) SetUint(address common.Address, key common.Hash, value *uint256.Int) {
	s.SetState(address, key, common.Hash(value.Bytes32()))
}

// GetAddress reads an address word.
func (s *StateDB) GetAddress(address common.Address, key common.Hash) common.Address {
	return common.BytesToAddress(s.GetState(address, key).Bytes())
}

// SetAddress writes an address word.
func (s *StateDB) SetAddress(address common.Address, key common.Hash, value common.Address) {
	s.SetState(address, key, common.BytesToHash(value.Bytes()))
}

// GetUint64 reads a word as uint64.
func (s *StateDB) GetUint64(address common.Address, key common.Hash) uint64 {
	return s.GetUint(address, key).Uint64()
}

// SetUint64 writes a uint64 word.
func (s *StateDB) SetUint64(address common.Address, key common.Hash, value uint64) {
	s.SetUint(address, key, uint256.NewInt(value))
}
