package pair

import (
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MinimumLiquidity is locked to the zero address by the first mint so the
// share price can never be pushed to a degenerate value.
var MinimumLiquidity = uint256.NewInt(1000)

var (
	// maxReserve is 2^112 - 1; reserves are packed into 112 bits.
	maxReserve = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))

	feeScale         = uint256.NewInt(1000)
	feeScaleSquared  = uint256.NewInt(1000 * 1000)
	swapFee          = uint256.NewInt(3)
	protocolFeeRatio = uint256.NewInt(5) // treasury earns 1/(5+1) of sqrt(k) growth
)

// Storage layout of a pair contract.
var (
	slotFactory  = state.Slot(0)
	slotToken0   = state.Slot(1)
	slotToken1   = state.Slot(2)
	slotReserve0 = state.Slot(3)
	slotReserve1 = state.Slot(4)
	slotKLast    = state.Slot(5)
)

// Authority is the registry that owns a pair. Only its current router may
// mint, burn or swap; its treasury collects the protocol fee and skimmed
// balances.
type Authority interface {
	Address() common.Address
	RouterAddress() common.Address
	Treasury() common.Address
}

// Pair is a handle on one constant-product pair ledger. The pair's own
// address doubles as the token address of its liquidity shares.
//
// Pair is not safe for concurrent use.
type Pair struct {
	db        *state.StateDB
	address   common.Address
	authority Authority
}

// Initialize writes the immutable fields of a freshly created pair. token0
// and token1 must already be sorted.
func Initialize(db *state.StateDB, address common.Address, authority Authority, token0, token1 common.Address) *Pair {
	db.SetAddress(address, slotFactory, authority.Address())
	db.SetAddress(address, slotToken0, token0)
	db.SetAddress(address, slotToken1, token1)
	return At(db, address, authority)
}

// At returns a handle on the pair deployed at address.
func At(db *state.StateDB, address common.Address, authority Authority) *Pair {
	return &Pair{db: db, address: address, authority: authority}
}

func (p *Pair) Address() common.Address { return p.address }
func (p *Pair) Token0() common.Address  { return p.db.GetAddress(p.address, slotToken0) }
func (p *Pair) Token1() common.Address  { return p.db.GetAddress(p.address, slotToken1) }
func (p *Pair) KLast() *uint256.Int     { return p.db.GetUint(p.address, slotKLast) }

// Reserves returns the tracked reserves.
func (p *Pair) Reserves() (reserve0, reserve1 *uint256.Int) {
	return p.db.GetUint(p.address, slotReserve0), p.db.GetUint(p.address, slotReserve1)
}

// TotalSupply returns the outstanding liquidity shares.
func (p *Pair) TotalSupply() *uint256.Int {
	return p.db.TotalSupply(p.address)
}

// BalanceOf returns the liquidity shares held by account.
func (p *Pair) BalanceOf(account common.Address) *uint256.Int {
	return p.db.BalanceOf(p.address, account)
}

// View returns a snapshot of the pair.
func (p *Pair) View() uniswapv2.Pool {
	reserve0, reserve1 := p.Reserves()
	return uniswapv2.Pool{
		Address:     p.address,
		Token0:      p.Token0(),
		Token1:      p.Token1(),
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		TotalSupply: p.TotalSupply(),
		KLast:       p.KLast(),
		Treasury:    p.authority.Treasury(),
	}
}

func (p *Pair) onlyRouter(caller common.Address) error {
	if router := p.authority.RouterAddress(); router == (common.Address{}) || caller != router {
		return types.ErrNotAuthorized.Wrapf("%s is not the router of pair %s", caller.Hex(), p.address.Hex())
	}
	return nil
}

// balances returns what the pair actually holds of each token.
func (p *Pair) balances() (balance0, balance1 *uint256.Int) {
	return p.db.BalanceOf(p.Token0(), p.address), p.db.BalanceOf(p.Token1(), p.address)
}

// update sets the reserves to the given balances.
func (p *Pair) update(balance0, balance1 *uint256.Int) error {
	if balance0.Gt(maxReserve) || balance1.Gt(maxReserve) {
		return types.ErrArithmeticOverflow.Wrapf("reserves %s/%s exceed 112 bits", balance0.Dec(), balance1.Dec())
	}
	p.db.SetUint(p.address, slotReserve0, balance0)
	p.db.SetUint(p.address, slotReserve1, balance1)
	p.db.AddLog(p.address, Sync{Reserve0: new(uint256.Int).Set(balance0), Reserve1: new(uint256.Int).Set(balance1)})
	return nil
}

// mintFee mints the protocol's share of the sqrt(k) growth since the last
// liquidity event to the treasury and reports whether the fee is on.
func (p *Pair) mintFee(reserve0, reserve1 *uint256.Int) (bool, error) {
	treasury := p.authority.Treasury()
	feeOn := treasury != (common.Address{})
	kLast := p.KLast()
	if !feeOn {
		if !kLast.IsZero() {
			p.db.SetUint(p.address, slotKLast, new(uint256.Int))
		}
		return false, nil
	}
	if kLast.IsZero() {
		return true, nil
	}

	k, err := types.SafeMul(reserve0, reserve1)
	if err != nil {
		return false, err
	}
	rootK, rootKLast := types.Sqrt(k), types.Sqrt(kLast)
	if !rootK.Gt(rootKLast) {
		return true, nil
	}

	numerator, err := types.SafeMul(p.TotalSupply(), new(uint256.Int).Sub(rootK, rootKLast))
	if err != nil {
		return false, err
	}
	denominator, err := types.SafeMul(rootK, protocolFeeRatio)
	if err != nil {
		return false, err
	}
	if denominator, err = types.SafeAdd(denominator, rootKLast); err != nil {
		return false, err
	}
	liquidity, err := types.SafeDiv(numerator, denominator)
	if err != nil {
		return false, err
	}
	if !liquidity.IsZero() {
		if err := p.db.Mint(p.address, treasury, liquidity); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (p *Pair) recordK(feeOn bool) error {
	if !feeOn {
		return nil
	}
	reserve0, reserve1 := p.Reserves()
	k, err := types.SafeMul(reserve0, reserve1)
	if err != nil {
		return err
	}
	p.db.SetUint(p.address, slotKLast, k)
	return nil
}

// Mint issues liquidity shares to to for the tokens transferred into the pair
// since the last reserve update.
func (p *Pair) Mint(caller, to common.Address) (*uint256.Int, error) {
	if err := p.onlyRouter(caller); err != nil {
		return nil, err
	}

	var liquidity *uint256.Int
	err := p.db.Atomic(func() error {
		reserve0, reserve1 := p.Reserves()
		balance0, balance1 := p.balances()
		amount0, err := types.SafeSub(balance0, reserve0)
		if err != nil {
			return err
		}
		amount1, err := types.SafeSub(balance1, reserve1)
		if err != nil {
			return err
		}

		feeOn, err := p.mintFee(reserve0, reserve1)
		if err != nil {
			return err
		}

		supply := p.TotalSupply()
		if supply.IsZero() {
			product, err := types.SafeMul(amount0, amount1)
			if err != nil {
				return err
			}
			root := types.Sqrt(product)
			if !root.Gt(MinimumLiquidity) {
				return types.ErrInsufficientLiquidity.Wrapf("initial liquidity %s does not exceed the minimum %s", root.Dec(), MinimumLiquidity.Dec())
			}
			liquidity = new(uint256.Int).Sub(root, MinimumLiquidity)
			if err := p.db.Mint(p.address, common.Address{}, MinimumLiquidity); err != nil {
				return err
			}
		} else {
			liquidity0, err := types.SafeMulDiv(amount0, supply, reserve0)
			if err != nil {
				return err
			}
			liquidity1, err := types.SafeMulDiv(amount1, supply, reserve1)
			if err != nil {
				return err
			}
			liquidity = types.Min(liquidity0, liquidity1)
		}
		if liquidity.IsZero() {
			return types.ErrInsufficientLiquidity.Wrap("liquidity minted is zero")
		}

		if err := p.db.Mint(p.address, to, liquidity); err != nil {
			return err
		}
		if err := p.update(balance0, balance1); err != nil {
			return err
		}
		if err := p.recordK(feeOn); err != nil {
			return err
		}
		p.db.AddLog(p.address, Mint{Sender: caller, Amount0: amount0, Amount1: amount1})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return liquidity, nil
}

// Burn redeems the liquidity shares held by the pair itself and pays the
// proportional reserves to to.
func (p *Pair) Burn(caller, to common.Address) (amount0, amount1 *uint256.Int, err error) {
	if err := p.onlyRouter(caller); err != nil {
		return nil, nil, err
	}

	err = p.db.Atomic(func() error {
		token0, token1 := p.Token0(), p.Token1()
		reserve0, reserve1 := p.Reserves()
		balance0, balance1 := p.balances()
		liquidity := p.BalanceOf(p.address)

		feeOn, err := p.mintFee(reserve0, reserve1)
		if err != nil {
			return err
		}

		supply := p.TotalSupply()
		if liquidity.IsZero() || supply.IsZero() {
			return types.ErrInsufficientLiquidity.Wrap("no liquidity to burn")
		}
		if amount0, err = types.SafeMulDiv(liquidity, balance0, supply); err != nil {
			return err
		}
		if amount1, err = types.SafeMulDiv(liquidity, balance1, supply); err != nil {
			return err
		}
		if amount0.IsZero() || amount1.IsZero() {
			return types.ErrInsufficientLiquidity.Wrap("liquidity burned is worth zero")
		}

		if err := p.db.Burn(p.address, p.address, liquidity); err != nil {
			return err
		}
		if err := p.db.Transfer(token0, p.address, to, amount0); err != nil {
			return err
		}
		if err := p.db.Transfer(token1, p.address, to, amount1); err != nil {
			return err
		}

		balance0, balance1 = p.balances()
		if err := p.update(balance0, balance1); err != nil {
			return err
		}
		if err := p.recordK(feeOn); err != nil {
			return err
		}
		p.db.AddLog(p.address, Burn{Sender: caller, Amount0: amount0, Amount1: amount1, To: to})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Swap pays the requested outputs to to and verifies that the tokens
// transferred in beforehand keep the fee-adjusted product of reserves from
// decreasing.
func (p *Pair) Swap(caller common.Address, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	if err := p.onlyRouter(caller); err != nil {
		return err
	}
	if amount0Out.IsZero() && amount1Out.IsZero() {
		return types.ErrInsufficientOutputAmount.Wrap("both outputs are zero")
	}

	return p.db.Atomic(func() error {
		token0, token1 := p.Token0(), p.Token1()
		reserve0, reserve1 := p.Reserves()
		if !amount0Out.Lt(reserve0) || !amount1Out.Lt(reserve1) {
			return types.ErrInsufficientLiquidity.Wrapf("outputs %s/%s against reserves %s/%s", amount0Out.Dec(), amount1Out.Dec(), reserve0.Dec(), reserve1.Dec())
		}
		if to == token0 || to == token1 {
			return types.ErrInvalidTo.Wrapf("%s", to.Hex())
		}

		if err := p.db.Transfer(token0, p.address, to, amount0Out); err != nil {
			return err
		}
		if err := p.db.Transfer(token1, p.address, to, amount1Out); err != nil {
			return err
		}

		balance0, balance1 := p.balances()
		amount0In := inflow(balance0, reserve0, amount0Out)
		amount1In := inflow(balance1, reserve1, amount1Out)
		if amount0In.IsZero() && amount1In.IsZero() {
			return types.ErrInsufficientInputAmount.Wrap("no tokens were transferred in")
		}

		adjusted0, err := feeAdjusted(balance0, amount0In)
		if err != nil {
			return err
		}
		adjusted1, err := feeAdjusted(balance1, amount1In)
		if err != nil {
			return err
		}
		after, err := types.SafeMul(adjusted0, adjusted1)
		if err != nil {
			return err
		}
		before, err := types.SafeMul(reserve0, reserve1)
		if err != nil {
			return err
		}
		if before, err = types.SafeMul(before, feeScaleSquared); err != nil {
			return err
		}
		if after.Lt(before) {
			return types.ErrInvariantViolation.Wrapf("k after %s < k before %s", after.Dec(), before.Dec())
		}

		if err := p.update(balance0, balance1); err != nil {
			return err
		}
		p.db.AddLog(p.address, Swap{
			Sender:     caller,
			Amount0In:  amount0In,
			Amount1In:  amount1In,
			Amount0Out: new(uint256.Int).Set(amount0Out),
			Amount1Out: new(uint256.Int).Set(amount1Out),
			To:         to,
		})
		return nil
	})
}

// inflow is the part of balance that exceeds what should remain after paying out.
func inflow(balance, reserve, out *uint256.Int) *uint256.Int {
	remaining := new(uint256.Int).Sub(reserve, out)
	if balance.Gt(remaining) {
		return new(uint256.Int).Sub(balance, remaining)
	}
	return new(uint256.Int)
}

// feeAdjusted returns balance*1000 - amountIn*3.
func feeAdjusted(balance, amountIn *uint256.Int) (*uint256.Int, error) {
	scaled, err := types.SafeMul(balance, feeScale)
	if err != nil {
		return nil, err
	}
	fee, err := types.SafeMul(amountIn, swapFee)
	if err != nil {
		return nil, err
	}
	return types.SafeSub(scaled, fee)
}

// Skim sends any balance in excess of the reserves to the treasury.
func (p *Pair) Skim() error {
	treasury := p.authority.Treasury()
	if treasury == (common.Address{}) {
		return types.ErrZeroAddress.Wrap("no treasury to skim to")
	}
	return p.db.Atomic(func() error {
		reserve0, reserve1 := p.Reserves()
		balance0, balance1 := p.balances()
		if err := p.skimExcess(p.Token0(), balance0, reserve0, treasury); err != nil {
			return err
		}
		return p.skimExcess(p.Token1(), balance1, reserve1, treasury)
	})
}

func (p *Pair) skimExcess(token common.Address, balance, reserve *uint256.Int, to common.Address) error {
	if !balance.Gt(reserve) {
		return nil
	}
	return p.db.Transfer(token, p.address, to, new(uint256.Int).Sub(balance, reserve))
}

// Sync sets the reserves to the actual balances.
func (p *Pair) Sync() error {
	return p.db.Atomic(func() error {
		balance0, balance1 := p.balances()
		return p.update(balance0, balance1)
	})
}
