package state

import (
	"fmt"

	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// NativeAsset is the pseudo token address under which native coin balances
// are tracked.
var NativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Event is a structured log record emitted by a contract.
type Event interface {
	EventName() string
}

// Log is an event together with the address that emitted it.
type Log struct {
	Address common.Address
	Event   Event
}

type revision struct {
	id           int
	journalIndex int
}

// StateDB holds every account-level fact the exchange core reads or writes:
// token and native balances, token supplies, deployed code, storage slots,
// deployer nonces and emitted logs. Every mutation is journaled so a snapshot
// can be reverted exactly.
//
// StateDB is NOT safe for concurrent use; callers serialize access (see the
// exchange package).
type StateDB struct {
	balances map[common.Address]map[common.Address]*uint256.Int // token -> account -> balance
	supplies map[common.Address]*uint256.Int
	storage  map[common.Address]map[common.Hash]common.Hash
	code     map[common.Address]struct{}
	nonces   map[common.Address]uint64
	logs     []Log

	journal        *journal
	validRevisions []revision
	nextRevisionID int
}

// New creates an empty state.
func New() *StateDB {
	return &StateDB{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		supplies: make(map[common.Address]*uint256.Int),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		code:     make(map[common.Address]struct{}),
		nonces:   make(map[common.Address]uint64),
		journal:  &journal{},
	}
}

// --- Balances ---

// BalanceOf returns a copy of account's balance of token.
func (s *StateDB) BalanceOf(token, account common.Address) *uint256.Int {
	if bal, ok := s.balances[token][account]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// TotalSupply returns a copy of the total minted amount of token.
func (s *StateDB) TotalSupply(token common.Address) *uint256.Int {
	if supply, ok := s.supplies[token]; ok {
		return new(uint256.Int).Set(supply)
	}
	return new(uint256.Int)
}

func (s *StateDB) setBalance(token, account common.Address, amount *uint256.Int) {
	accounts, ok := s.balances[token]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		s.balances[token] = accounts
	}
	s.journal.append(balanceChange{token: token, account: account, prev: accounts[account]})
	accounts[account] = amount
}

func (s *StateDB) setSupply(token common.Address, amount *uint256.Int) {
	s.journal.append(supplyChange{token: token, prev: s.supplies[token]})
	s.supplies[token] = amount
}

// Mint creates amount of token and credits it to to.
func (s *StateDB) Mint(token, to common.Address, amount *uint256.Int) error {
	supply, err := types.SafeAdd(s.TotalSupply(token), amount)
	if err != nil {
		return err
	}
	balance, err := types.SafeAdd(s.BalanceOf(token, to), amount)
	if err != nil {
		return err
	}
	s.setSupply(token, supply)
	s.setBalance(token, to, balance)
	return nil
}

// Burn destroys amount of token held by from.
func (s *StateDB) Burn(token, from common.Address, amount *uint256.Int) error {
	balance := s.BalanceOf(token, from)
	if balance.Lt(amount) {
		return types.ErrInsufficientBalance.Wrapf("burn %s of %s: %s has %s", amount.Dec(), token.Hex(), from.Hex(), balance.Dec())
	}
	supply, err := types.SafeSub(s.TotalSupply(token), amount)
	if err != nil {
		return err
	}
	s.setBalance(token, from, new(uint256.Int).Sub(balance, amount))
	s.setSupply(token, supply)
	return nil
}

// Transfer moves amount of token from one account to another. Transfers of
// zero and self transfers are no-ops.
func (s *StateDB) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	fromBalance := s.BalanceOf(token, from)
	if fromBalance.Lt(amount) {
		return types.ErrInsufficientBalance.Wrapf("transfer %s of %s: %s has %s", amount.Dec(), token.Hex(), from.Hex(), fromBalance.Dec())
	}
	if amount.IsZero() || from == to {
		return nil
	}
	toBalance, err := types.SafeAdd(s.BalanceOf(token, to), amount)
	if err != nil {
		return err
	}
	s.setBalance(token, from, new(uint256.Int).Sub(fromBalance, amount))
	s.setBalance(token, to, toBalance)
	return nil
}

// --- Accounts and code ---

// Nonce returns the number of contracts deployed by address.
func (s *StateDB) Nonce(address common.Address) uint64 {
	return s.nonces[address]
}

// Deploy derives the next contract address of deployer, bumps its nonce and
// marks the address as holding code.
func (s *StateDB) Deploy(deployer common.Address) (common.Address, error) {
	nonce := s.nonces[deployer]
	address := crypto.CreateAddress(deployer, nonce)
	if s.IsContract(address) {
		return common.Address{}, fmt.Errorf("state: contract already deployed at %s", address.Hex())
	}
	s.journal.append(nonceChange{address: deployer, prev: nonce})
	s.nonces[deployer] = nonce + 1
	s.SetCode(address)
	return address, nil
}

// SetCode marks address as a contract account.
func (s *StateDB) SetCode(address common.Address) {
	if s.IsContract(address) {
		return
	}
	s.journal.append(codeChange{address: address})
	s.code[address] = struct{}{}
}

// IsContract reports whether address holds code. Externally owned accounts do not.
func (s *StateDB) IsContract(address common.Address) bool {
	_, ok := s.code[address]
	return ok
}

// --- Logs ---

// AddLog records an event emitted by address.
func (s *StateDB) AddLog(address common.Address, event Event) {
	s.journal.append(addLogChange{})
	s.logs = append(s.logs, Log{Address: address, Event: event})
}

// Logs returns a copy of every log emitted so far.
func (s *StateDB) Logs() []Log {
	logs := make([]Log, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// --- Snapshots ---

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: s.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	idx := -1
	for i := len(s.validRevisions) - 1; i >= 0; i-- {
		if s.validRevisions[i].id == revid {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex
	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

// Atomic runs fn and reverts every change it made if it returns an error.
// Calls may nest; an inner failure only unwinds the inner call.
func (s *StateDB) Atomic(fn func() error) error {
	snapshot := s.Snapshot()
	if err := fn(); err != nil {
		s.RevertToSnapshot(snapshot)
		return err
	}
	s.discardSnapshot(snapshot)
	return nil
}

// discardSnapshot forgets revid and every revision taken after it. Once no
// revision is open the journal is dropped, committing all changes so far.
func (s *StateDB) discardSnapshot(revid int) {
	for i := len(s.validRevisions) - 1; i >= 0; i-- {
		if s.validRevisions[i].id == revid {
			s.validRevisions = s.validRevisions[:i]
			break
		}
	}
	if len(s.validRevisions) == 0 {
		s.journal.reset()
	}
}
