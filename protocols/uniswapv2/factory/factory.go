package factory

import (
	"github.com/defistate/defistate-amm-go/protocols/dao"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/pair"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PairCreated is emitted for every new pair.
type PairCreated struct {
	Token0 common.Address
	Token1 common.Address
	Pair   common.Address
	Index  uint64
}

// GovernanceSet is emitted once, when the governance contract is bound.
type GovernanceSet struct {
	Governance common.Address
}

// RouterUpdated is emitted when a router change request is confirmed.
type RouterUpdated struct {
	Previous common.Address
	Router   common.Address
	Index    uint64
}

// TreasuryUpdated is emitted when the setter changes the treasury.
type TreasuryUpdated struct {
	Treasury common.Address
}

func (PairCreated) EventName() string     { return "PairCreated" }
func (GovernanceSet) EventName() string   { return "GovernanceSet" }
func (RouterUpdated) EventName() string   { return "RouterUpdated" }
func (TreasuryUpdated) EventName() string { return "TreasuryUpdated" }

// Storage layout of the factory contract.
var (
	slotSetter             = state.Slot(0)
	slotTreasury           = state.Slot(1)
	slotGovernance         = state.Slot(2)
	slotRouter             = state.Slot(3)
	slotLastConfirmedIndex = state.Slot(4)
	slotGetPair            = state.Slot(5) // token0 -> token1 -> pair
	slotAllPairs           = state.Slot(6) // length; pairs at ArraySlot
)

// Factory is the pair registry. It creates pairs at deterministic addresses,
// owns the one-time governance binding and decides which router the pairs
// trust.
//
// Factory is not safe for concurrent use.
type Factory struct {
	db      *state.StateDB
	address common.Address
}

// Deploy creates a factory whose governance and treasury are administered by
// setter. A zero treasury switches the protocol fee off.
func Deploy(db *state.StateDB, deployer, setter, treasury common.Address) (*Factory, error) {
	if setter == (common.Address{}) {
		return nil, types.ErrZeroAddress.Wrap("governance setter")
	}
	var f *Factory
	err := db.Atomic(func() error {
		address, err := db.Deploy(deployer)
		if err != nil {
			return err
		}
		db.SetAddress(address, slotSetter, setter)
		db.SetAddress(address, slotTreasury, treasury)
		f = At(db, address)
		return nil
	})
	return f, err
}

// At returns a handle on the factory deployed at address.
func At(db *state.StateDB, address common.Address) *Factory {
	return &Factory{db: db, address: address}
}

func (f *Factory) Address() common.Address       { return f.address }
func (f *Factory) Setter() common.Address        { return f.db.GetAddress(f.address, slotSetter) }
func (f *Factory) Treasury() common.Address      { return f.db.GetAddress(f.address, slotTreasury) }
func (f *Factory) Governance() common.Address    { return f.db.GetAddress(f.address, slotGovernance) }
func (f *Factory) RouterAddress() common.Address { return f.db.GetAddress(f.address, slotRouter) }
func (f *Factory) LastConfirmedIndex() uint64    { return f.db.GetUint64(f.address, slotLastConfirmedIndex) }

// --- Pairs ---

// CreatePair creates the pair of tokenA and tokenB. Anyone may call it.
func (f *Factory) CreatePair(tokenA, tokenB common.Address) (*pair.Pair, error) {
	token0, token1, err := uniswapv2.SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	if existing, ok := f.GetPair(token0, token1); ok {
		return nil, types.ErrPairExists.Wrapf("%s", existing.Hex())
	}
	address, err := uniswapv2.PairAddress(f.address, token0, token1)
	if err != nil {
		return nil, err
	}

	var p *pair.Pair
	err = f.db.Atomic(func() error {
		if f.db.IsContract(address) {
			return types.ErrPairExists.Wrapf("code already deployed at %s", address.Hex())
		}
		f.db.SetCode(address)
		p = pair.Initialize(f.db, address, f, token0, token1)

		f.db.SetAddress(f.address, state.MapSlot(slotGetPair, token0.Bytes(), token1.Bytes()), address)
		length := f.AllPairsLength()
		f.db.SetAddress(f.address, state.ArraySlot(slotAllPairs, length), address)
		f.db.SetUint64(f.address, slotAllPairs, length+1)
		f.db.AddLog(f.address, PairCreated{Token0: token0, Token1: token1, Pair: address, Index: length + 1})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPair returns the pair address of tokenA and tokenB in either order.
func (f *Factory) GetPair(tokenA, tokenB common.Address) (common.Address, bool) {
	token0, token1, err := uniswapv2.SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, false
	}
	address := f.db.GetAddress(f.address, state.MapSlot(slotGetPair, token0.Bytes(), token1.Bytes()))
	return address, address != (common.Address{})
}

// AllPairsLength returns the number of pairs created.
func (f *Factory) AllPairsLength() uint64 {
	return f.db.GetUint64(f.address, slotAllPairs)
}

// AllPairs returns every pair address in creation order.
func (f *Factory) AllPairs() []common.Address {
	length := f.AllPairsLength()
	pairs := make([]common.Address, length)
	for i := range pairs {
		pairs[i] = f.db.GetAddress(f.address, state.ArraySlot(slotAllPairs, uint64(i)))
	}
	return pairs
}

// Pair returns a handle on a pair created by this factory.
func (f *Factory) Pair(address common.Address) *pair.Pair {
	return pair.At(f.db, address, f)
}

// PairFor returns the pair of tokenA and tokenB.
func (f *Factory) PairFor(tokenA, tokenB common.Address) (*pair.Pair, error) {
	address, ok := f.GetPair(tokenA, tokenB)
	if !ok {
		return nil, types.ErrPairNotFound.Wrapf("%s/%s", tokenA.Hex(), tokenB.Hex())
	}
	return f.Pair(address), nil
}

// Reserves returns the reserves of the tokenA/tokenB pair ordered as
// (tokenA, tokenB).
func (f *Factory) Reserves(tokenA, tokenB common.Address) (reserveA, reserveB *uint256.Int, err error) {
	p, err := f.PairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	reserve0, reserve1 := p.Reserves()
	if tokenA == p.Token0() {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// Pools returns a snapshot of every pair in creation order.
func (f *Factory) Pools() []uniswapv2.Pool {
	addresses := f.AllPairs()
	pools := make([]uniswapv2.Pool, len(addresses))
	for i, address := range addresses {
		pools[i] = f.Pair(address).View()
	}
	return pools
}

// --- Administration ---

// SetTreasury changes the address collecting protocol fees. Setter only.
func (f *Factory) SetTreasury(caller, treasury common.Address) error {
	if caller != f.Setter() {
		return types.ErrNotAuthorized.Wrapf("%s is not the governance setter", caller.Hex())
	}
	f.db.SetAddress(f.address, slotTreasury, treasury)
	f.db.AddLog(f.address, TreasuryUpdated{Treasury: treasury})
	return nil
}

// SetGovernanceInitial binds the governance contract. It can succeed only once.
func (f *Factory) SetGovernanceInitial(caller, governance common.Address) error {
	if caller != f.Setter() {
		return types.ErrNotAuthorized.Wrapf("%s is not the governance setter", caller.Hex())
	}
	if governance == (common.Address{}) {
		return types.ErrZeroAddress.Wrap("governance")
	}
	if !f.db.IsContract(governance) {
		return types.ErrNotAContract.Wrapf("governance %s", governance.Hex())
	}
	if current := f.Governance(); current != (common.Address{}) {
		return types.ErrAlreadySet.Wrapf("governance is %s", current.Hex())
	}
	f.db.SetAddress(f.address, slotGovernance, governance)
	f.db.AddLog(f.address, GovernanceSet{Governance: governance})
	return nil
}

// SetRouterAddress confirms the router change request at index of the bound
// governance queue. The setter and the governance contract may confirm.
func (f *Factory) SetRouterAddress(caller common.Address, index uint64) error {
	governance := f.Governance()
	if caller != f.Setter() && (governance == (common.Address{}) || caller != governance) {
		return types.ErrNotAuthorized.Wrapf("%s may not confirm router changes", caller.Hex())
	}
	if governance == (common.Address{}) {
		return types.ErrRequestNotFound.Wrap("governance is not set")
	}
	request, ok := dao.At(f.db, governance).Request(index)
	if !ok {
		return types.ErrRequestNotFound.Wrapf("index %d", index)
	}
	current := f.RouterAddress()
	if request.Router == current {
		return types.ErrSameAddress.Wrapf("router %s is already active", current.Hex())
	}
	f.db.SetAddress(f.address, slotRouter, request.Router)
	f.db.SetUint64(f.address, slotLastConfirmedIndex, index)
	f.db.AddLog(f.address, RouterUpdated{Previous: current, Router: request.Router, Index: index})
	return nil
}
