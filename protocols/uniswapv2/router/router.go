package router

import (
	"errors"
	"time"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/factory"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/pair"
	"github.com/defistate/defistate-amm-go/protocols/weth"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// ProtocolFeeBps is the share of every swap input paid to the treasury.
	ProtocolFeeBps = 10
	// PairedFeeDivisor further reduces the treasury fee on token-to-token
	// swaps whose two ends both trade against the wrapped native asset.
	PairedFeeDivisor = 1000
)

var (
	bpsDenominator   = uint256.NewInt(10_000)
	protocolFeeBps   = uint256.NewInt(ProtocolFeeBps)
	pairedFeeDivisor = uint256.NewInt(PairedFeeDivisor)
)

// Config holds the collaborators of a router.
type Config struct {
	DB      *state.StateDB
	Factory *factory.Factory
	WETH    *weth.WETH
	// Clock supplies the time deadlines are checked against. Defaults to time.Now.
	Clock func() time.Time
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.DB == nil {
		return errors.New("config: DB cannot be nil")
	}
	if c.Factory == nil {
		return errors.New("config: Factory cannot be nil")
	}
	if c.WETH == nil {
		return errors.New("config: WETH cannot be nil")
	}
	return nil
}

// Router sequences liquidity and swap operations against the factory's pairs.
// Apart from its account, which briefly holds wrapped and native balances
// inside a call, it keeps no state. Every mutating call is all-or-nothing.
//
// Router is not safe for concurrent use.
type Router struct {
	db      *state.StateDB
	address common.Address
	factory *factory.Factory
	weth    *weth.WETH
	clock   func() time.Time
}

// Deploy creates a router contract. It only becomes effective once the
// factory confirms a governance request naming its address.
func Deploy(deployer common.Address, cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	address, err := cfg.DB.Deploy(deployer)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Router{
		db:      cfg.DB,
		address: address,
		factory: cfg.Factory,
		weth:    cfg.WETH,
		clock:   clock,
	}, nil
}

func (r *Router) Address() common.Address   { return r.address }
func (r *Router) Factory() *factory.Factory { return r.factory }
func (r *Router) WETH() common.Address      { return r.weth.Address() }

// ensure fails once the current time is past deadline (unix seconds).
func (r *Router) ensure(deadline uint64) error {
	now := r.clock().Unix()
	if now > 0 && uint64(now) > deadline {
		return types.ErrExpired.Wrapf("deadline %d, now %d", deadline, now)
	}
	return nil
}

// ProtocolFee returns the treasury fee charged on a swap of amountIn along
// path, in units of path[0]. No fee is charged while the factory has no
// treasury.
func (r *Router) ProtocolFee(path []common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if len(path) < 2 {
		return nil, types.ErrInvalidPath.Wrapf("path has %d tokens", len(path))
	}
	if r.factory.Treasury() == (common.Address{}) {
		return new(uint256.Int), nil
	}
	fee, err := types.SafeMulDiv(amountIn, protocolFeeBps, bpsDenominator)
	if err != nil {
		return nil, err
	}

	wrapped := r.weth.Address()
	first, last := path[0], path[len(path)-1]
	if first != wrapped && last != wrapped {
		_, firstPaired := r.factory.GetPair(first, wrapped)
		_, lastPaired := r.factory.GetPair(last, wrapped)
		if firstPaired && lastPaired {
			fee.Div(fee, pairedFeeDivisor)
		}
	}
	return fee, nil
}

// chargeFee pays fee of asset from payer to the treasury.
func (r *Router) chargeFee(asset, payer common.Address, fee *uint256.Int) error {
	if fee.IsZero() {
		return nil
	}
	return r.db.Transfer(asset, payer, r.factory.Treasury(), fee)
}

// receive takes value native coin from caller into the router's account, the
// equivalent of a payable call.
func (r *Router) receive(caller common.Address, value *uint256.Int) error {
	return r.db.Transfer(state.NativeAsset, caller, r.address, value)
}

// wrap converts native coin held by the router into wrapped tokens and sends
// them to to.
func (r *Router) wrap(amount *uint256.Int, to common.Address) error {
	if err := r.weth.Deposit(r.address, amount); err != nil {
		return err
	}
	return r.db.Transfer(r.weth.Address(), r.address, to, amount)
}

// unwrap redeems wrapped tokens held by the router and pays the native coin to to.
func (r *Router) unwrap(amount *uint256.Int, to common.Address) error {
	if err := r.weth.Withdraw(r.address, amount); err != nil {
		return err
	}
	return r.db.Transfer(state.NativeAsset, r.address, to, amount)
}

func (r *Router) pairFor(tokenA, tokenB common.Address) (*pair.Pair, error) {
	return r.factory.PairFor(tokenA, tokenB)
}

// --- Pure helpers ---

func (r *Router) Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	return calculator.Quote(amountA, reserveA, reserveB)
}

func (r *Router) GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return calculator.GetAmountOut(amountIn, reserveIn, reserveOut)
}

func (r *Router) GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return calculator.GetAmountIn(amountOut, reserveIn, reserveOut)
}

// GetAmountsOut prices amountIn along path against the current reserves.
func (r *Router) GetAmountsOut(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return calculator.GetAmountsOut(r.factory, amountIn, path)
}

// GetAmountsIn prices amountOut backward along path against the current reserves.
func (r *Router) GetAmountsIn(amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return calculator.GetAmountsIn(r.factory, amountOut, path)
}
