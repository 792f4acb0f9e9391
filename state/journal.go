package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a modification of the state that can be reverted.
type journalEntry interface {
	revert(*StateDB)
}

// journal is the ordered list of modifications applied since the last commit.
// Snapshots are indexes into it.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes every entry at or after snapshot, newest first.
func (j *journal) revert(db *StateDB, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(db)
	}
	j.entries = j.entries[:snapshot]
}

// reset drops every entry. Snapshots taken before the reset become invalid.
func (j *journal) reset() {
	clear(j.entries)
	j.entries = j.entries[:0]
}

func (j *journal) length() int {
	return len(j.entries)
}

type (
	balanceChange struct {
		token   common.Address
		account common.Address
		prev    *uint256.Int // nil when the account had no entry
	}
	supplyChange struct {
		token common.Address
		prev  *uint256.Int
	}
	storageChange struct {
		address common.Address
		key     common.Hash
		prev    common.Hash
		existed bool
	}
	codeChange struct {
		address common.Address
	}
	nonceChange struct {
		address common.Address
		prev    uint64
	}
	addLogChange struct{}
)

func (ch balanceChange) revert(db *StateDB) {
	if ch.prev == nil {
		delete(db.balances[ch.token], ch.account)
		return
	}
	db.balances[ch.token][ch.account] = ch.prev
}

func (ch supplyChange) revert(db *StateDB) {
	if ch.prev == nil {
		delete(db.supplies, ch.token)
		return
	}
	db.supplies[ch.token] = ch.prev
}

func (ch storageChange) revert(db *StateDB) {
	if !ch.existed {
		delete(db.storage[ch.address], ch.key)
		return
	}
	db.storage[ch.address][ch.key] = ch.prev
}

func (ch codeChange) revert(db *StateDB) {
	delete(db.code, ch.address)
}

func (ch nonceChange) revert(db *StateDB) {
	db.nonces[ch.address] = ch.prev
}

func (ch addLogChange) revert(db *StateDB) {
	db.logs = db.logs[:len(db.logs)-1]
}
