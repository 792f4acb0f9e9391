package dao

import (
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// RouterChangeRequest is one entry of the append-only router change log.
type RouterChangeRequest struct {
	Index    uint64         `json:"index"`
	Router   common.Address `json:"router"`
	Proposer common.Address `json:"proposer"`
}

// RouterChangeRequested is emitted for every enqueued request.
type RouterChangeRequested struct {
	Index    uint64
	Router   common.Address
	Proposer common.Address
}

// ProposerUpdated is emitted when the owner grants or revokes proposer rights.
type ProposerUpdated struct {
	Proposer   common.Address
	Authorized bool
}

func (RouterChangeRequested) EventName() string { return "RouterChangeRequested" }
func (ProposerUpdated) EventName() string       { return "ProposerUpdated" }

// Storage layout of the governance contract.
var (
	slotOwner     = state.Slot(0)
	slotFactory   = state.Slot(1)
	slotRequests  = state.Slot(2) // length; entries at ArraySlot, two words each
	slotProposers = state.Slot(3) // length; members at ArraySlot
	slotPosition  = state.Slot(4) // proposer -> position+1 in the proposer array
)

// DAO is the governance queue through which router upgrades are proposed.
// Requests are numbered from 1 and never removed; the factory confirms them
// by index.
//
// DAO is not safe for concurrent use.
type DAO struct {
	db      *state.StateDB
	address common.Address
}

// Deploy creates a governance contract for factory owned by deployer.
func Deploy(db *state.StateDB, deployer, factory common.Address) (*DAO, error) {
	if factory == (common.Address{}) {
		return nil, types.ErrZeroAddress.Wrap("factory")
	}
	var d *DAO
	err := db.Atomic(func() error {
		address, err := db.Deploy(deployer)
		if err != nil {
			return err
		}
		db.SetAddress(address, slotOwner, deployer)
		db.SetAddress(address, slotFactory, factory)
		d = At(db, address)
		return nil
	})
	return d, err
}

// At returns a handle on the governance contract deployed at address.
func At(db *state.StateDB, address common.Address) *DAO {
	return &DAO{db: db, address: address}
}

func (d *DAO) Address() common.Address { return d.address }
func (d *DAO) Owner() common.Address   { return d.db.GetAddress(d.address, slotOwner) }
func (d *DAO) Factory() common.Address { return d.db.GetAddress(d.address, slotFactory) }

// Len returns the number of requests ever enqueued, which is also the index
// of the newest one.
func (d *DAO) Len() uint64 {
	return d.db.GetUint64(d.address, slotRequests)
}

// Request returns the request at the 1-based index.
func (d *DAO) Request(index uint64) (RouterChangeRequest, bool) {
	if index == 0 || index > d.Len() {
		return RouterChangeRequest{}, false
	}
	base := (index - 1) * 2
	return RouterChangeRequest{
		Index:    index,
		Router:   d.db.GetAddress(d.address, state.ArraySlot(slotRequests, base)),
		Proposer: d.db.GetAddress(d.address, state.ArraySlot(slotRequests, base+1)),
	}, true
}

// IsProposer reports whether account may enqueue requests.
func (d *DAO) IsProposer(account common.Address) bool {
	return account == d.Owner() || d.position(account) != 0
}

// EnqueueRouterChange appends a request to switch the factory to router and
// returns its index. The same router may be proposed more than once.
func (d *DAO) EnqueueRouterChange(caller, router common.Address) (uint64, error) {
	if !d.IsProposer(caller) {
		return 0, types.ErrNotAuthorized.Wrapf("%s may not propose router changes", caller.Hex())
	}
	if router == (common.Address{}) {
		return 0, types.ErrZeroAddress.Wrap("router")
	}

	index := d.Len() + 1
	base := (index - 1) * 2
	d.db.SetAddress(d.address, state.ArraySlot(slotRequests, base), router)
	d.db.SetAddress(d.address, state.ArraySlot(slotRequests, base+1), caller)
	d.db.SetUint64(d.address, slotRequests, index)
	d.db.AddLog(d.address, RouterChangeRequested{Index: index, Router: router, Proposer: caller})
	return index, nil
}

func (d *DAO) position(account common.Address) uint64 {
	return d.db.GetUint64(d.address, state.MapSlot(slotPosition, account.Bytes()))
}

// AuthorizeProposer grants proposer rights to account. Owner only.
func (d *DAO) AuthorizeProposer(caller, account common.Address) error {
	if caller != d.Owner() {
		return types.ErrNotAuthorized.Wrapf("%s is not the owner", caller.Hex())
	}
	if account == (common.Address{}) {
		return types.ErrZeroAddress.Wrap("proposer")
	}
	if d.position(account) != 0 {
		return types.ErrAlreadySet.Wrapf("%s is already a proposer", account.Hex())
	}
	length := d.db.GetUint64(d.address, slotProposers)
	d.db.SetAddress(d.address, state.ArraySlot(slotProposers, length), account)
	d.db.SetUint64(d.address, slotProposers, length+1)
	d.db.SetUint64(d.address, state.MapSlot(slotPosition, account.Bytes()), length+1)
	d.db.AddLog(d.address, ProposerUpdated{Proposer: account, Authorized: true})
	return nil
}

// RevokeProposer removes the proposer rights of account. Owner only. The
// owner itself always remains a proposer.
func (d *DAO) RevokeProposer(caller, account common.Address) error {
	if caller != d.Owner() {
		return types.ErrNotAuthorized.Wrapf("%s is not the owner", caller.Hex())
	}
	position := d.position(account)
	if position == 0 {
		return types.ErrNotAuthorized.Wrapf("%s is not a proposer", account.Hex())
	}

	// swap with the last member and pop
	last := d.db.GetUint64(d.address, slotProposers) - 1
	if position-1 != last {
		moved := d.db.GetAddress(d.address, state.ArraySlot(slotProposers, last))
		d.db.SetAddress(d.address, state.ArraySlot(slotProposers, position-1), moved)
		d.db.SetUint64(d.address, state.MapSlot(slotPosition, moved.Bytes()), position)
	}
	d.db.SetAddress(d.address, state.ArraySlot(slotProposers, last), common.Address{})
	d.db.SetUint64(d.address, slotProposers, last)
	d.db.SetUint64(d.address, state.MapSlot(slotPosition, account.Bytes()), 0)
	d.db.AddLog(d.address, ProposerUpdated{Proposer: account, Authorized: false})
	return nil
}

// Proposers returns the accounts authorized to enqueue requests. The owner
// may always propose and is not listed.
func (d *DAO) Proposers() mapset.Set[common.Address] {
	proposers := mapset.NewThreadUnsafeSet[common.Address]()
	length := d.db.GetUint64(d.address, slotProposers)
	for i := uint64(0); i < length; i++ {
		proposers.Add(d.db.GetAddress(d.address, state.ArraySlot(slotProposers, i)))
	}
	return proposers
}
