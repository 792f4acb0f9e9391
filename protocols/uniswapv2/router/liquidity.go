package router

import (
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type AddLiquidityParams struct {
	TokenA         common.Address
	TokenB         common.Address
	AmountADesired *uint256.Int
	AmountBDesired *uint256.Int
	AmountAMin     *uint256.Int
	AmountBMin     *uint256.Int
	To             common.Address
	Deadline       uint64
}

// AddLiquidityETHParams pairs Token with the wrapped native asset. Value is
// the native coin sent with the call; whatever is not deposited is refunded.
type AddLiquidityETHParams struct {
	Token              common.Address
	AmountTokenDesired *uint256.Int
	AmountTokenMin     *uint256.Int
	AmountETHMin       *uint256.Int
	Value              *uint256.Int
	To                 common.Address
	Deadline           uint64
}

type RemoveLiquidityParams struct {
	TokenA     common.Address
	TokenB     common.Address
	Liquidity  *uint256.Int
	AmountAMin *uint256.Int
	AmountBMin *uint256.Int
	To         common.Address
	Deadline   uint64
}

type RemoveLiquidityETHParams struct {
	Token          common.Address
	Liquidity      *uint256.Int
	AmountTokenMin *uint256.Int
	AmountETHMin   *uint256.Int
	To             common.Address
	Deadline       uint64
}

// LiquidityResult reports the amounts deposited and the shares minted. For
// the ETH variants AmountA is the token and AmountB the native coin.
type LiquidityResult struct {
	AmountA   *uint256.Int
	AmountB   *uint256.Int
	Liquidity *uint256.Int
}

// depositAmounts creates the pair if needed and returns the largest deposit
// within the desired amounts that matches the current reserve ratio. Both
// amounts must meet their minimums.
func (r *Router) depositAmounts(tokenA, tokenB common.Address, desiredA, desiredB, minA, minB *uint256.Int) (amountA, amountB *uint256.Int, err error) {
	if _, ok := r.factory.GetPair(tokenA, tokenB); !ok {
		if _, err := r.factory.CreatePair(tokenA, tokenB); err != nil {
			return nil, nil, err
		}
	}
	reserveA, reserveB, err := r.factory.Reserves(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case reserveA.IsZero() && reserveB.IsZero():
		amountA, amountB = new(uint256.Int).Set(desiredA), new(uint256.Int).Set(desiredB)
	default:
		optimalB, err := calculator.Quote(desiredA, reserveA, reserveB)
		if err != nil {
			return nil, nil, err
		}
		if !optimalB.Gt(desiredB) {
			amountA, amountB = new(uint256.Int).Set(desiredA), optimalB
			break
		}
		optimalA, err := calculator.Quote(desiredB, reserveB, reserveA)
		if err != nil {
			return nil, nil, err
		}
		if optimalA.Gt(desiredA) {
			return nil, nil, types.ErrInsufficientAmount.Wrapf("A amount %s above desired %s", optimalA.Dec(), desiredA.Dec())
		}
		amountA, amountB = optimalA, new(uint256.Int).Set(desiredB)
	}

	if amountA.Lt(minA) {
		return nil, nil, types.ErrInsufficientAmount.Wrapf("A amount %s below minimum %s", amountA.Dec(), minA.Dec())
	}
	if amountB.Lt(minB) {
		return nil, nil, types.ErrInsufficientAmount.Wrapf("B amount %s below minimum %s", amountB.Dec(), minB.Dec())
	}
	return amountA, amountB, nil
}

// AddLiquidity deposits tokenA and tokenB from caller and mints shares to p.To.
func (r *Router) AddLiquidity(caller common.Address, p AddLiquidityParams) (LiquidityResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return LiquidityResult{}, err
	}

	var result LiquidityResult
	err := r.db.Atomic(func() error {
		amountA, amountB, err := r.depositAmounts(p.TokenA, p.TokenB, p.AmountADesired, p.AmountBDesired, p.AmountAMin, p.AmountBMin)
		if err != nil {
			return err
		}
		pair, err := r.pairFor(p.TokenA, p.TokenB)
		if err != nil {
			return err
		}
		if err := r.db.Transfer(p.TokenA, caller, pair.Address(), amountA); err != nil {
			return err
		}
		if err := r.db.Transfer(p.TokenB, caller, pair.Address(), amountB); err != nil {
			return err
		}
		liquidity, err := pair.Mint(r.address, p.To)
		if err != nil {
			return err
		}
		result = LiquidityResult{AmountA: amountA, AmountB: amountB, Liquidity: liquidity}
		return nil
	})
	return result, err
}

// AddLiquidityETH deposits p.Token from caller together with native coin,
// wrapped on the way in.
func (r *Router) AddLiquidityETH(caller common.Address, p AddLiquidityETHParams) (LiquidityResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return LiquidityResult{}, err
	}

	wrapped := r.weth.Address()
	var result LiquidityResult
	err := r.db.Atomic(func() error {
		if err := r.receive(caller, p.Value); err != nil {
			return err
		}
		amountToken, amountETH, err := r.depositAmounts(p.Token, wrapped, p.AmountTokenDesired, p.Value, p.AmountTokenMin, p.AmountETHMin)
		if err != nil {
			return err
		}
		pair, err := r.pairFor(p.Token, wrapped)
		if err != nil {
			return err
		}
		if err := r.db.Transfer(p.Token, caller, pair.Address(), amountToken); err != nil {
			return err
		}
		if err := r.wrap(amountETH, pair.Address()); err != nil {
			return err
		}
		liquidity, err := pair.Mint(r.address, p.To)
		if err != nil {
			return err
		}
		if refund := new(uint256.Int).Sub(p.Value, amountETH); !refund.IsZero() {
			if err := r.db.Transfer(state.NativeAsset, r.address, caller, refund); err != nil {
				return err
			}
		}
		result = LiquidityResult{AmountA: amountToken, AmountB: amountETH, Liquidity: liquidity}
		return nil
	})
	return result, err
}

// burn returns caller's shares to the pair and redeems them, paying to. The
// amounts are ordered as (tokenA, tokenB).
func (r *Router) burn(caller, tokenA, tokenB common.Address, liquidity, minA, minB *uint256.Int, to common.Address) (amountA, amountB *uint256.Int, err error) {
	pair, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	if liquidity.IsZero() || liquidity.Gt(pair.TotalSupply()) {
		return nil, nil, types.ErrInsufficientLiquidity.Wrapf("cannot burn %s of %s shares", liquidity.Dec(), pair.TotalSupply().Dec())
	}
	if held := pair.BalanceOf(caller); liquidity.Gt(held) {
		return nil, nil, types.ErrInsufficientLiquidity.Wrapf("%s holds %s shares, %s requested", caller.Hex(), held.Dec(), liquidity.Dec())
	}
	if err := r.db.Transfer(pair.Address(), caller, pair.Address(), liquidity); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := pair.Burn(r.address, to)
	if err != nil {
		return nil, nil, err
	}
	amountA, amountB = amount0, amount1
	if tokenA != pair.Token0() {
		amountA, amountB = amount1, amount0
	}
	if amountA.Lt(minA) {
		return nil, nil, types.ErrInsufficientAmount.Wrapf("A amount %s below minimum %s", amountA.Dec(), minA.Dec())
	}
	if amountB.Lt(minB) {
		return nil, nil, types.ErrInsufficientAmount.Wrapf("B amount %s below minimum %s", amountB.Dec(), minB.Dec())
	}
	return amountA, amountB, nil
}

// RemoveLiquidity redeems p.Liquidity shares of caller for both tokens.
func (r *Router) RemoveLiquidity(caller common.Address, p RemoveLiquidityParams) (amountA, amountB *uint256.Int, err error) {
	if err := r.ensure(p.Deadline); err != nil {
		return nil, nil, err
	}
	err = r.db.Atomic(func() error {
		amountA, amountB, err = r.burn(caller, p.TokenA, p.TokenB, p.Liquidity, p.AmountAMin, p.AmountBMin, p.To)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// RemoveLiquidityETH redeems shares of the p.Token/wrapped pair, paying the
// wrapped leg out as native coin.
func (r *Router) RemoveLiquidityETH(caller common.Address, p RemoveLiquidityETHParams) (amountToken, amountETH *uint256.Int, err error) {
	if err := r.ensure(p.Deadline); err != nil {
		return nil, nil, err
	}
	err = r.db.Atomic(func() error {
		amountToken, amountETH, err = r.burn(caller, p.Token, r.weth.Address(), p.Liquidity, p.AmountTokenMin, p.AmountETHMin, r.address)
		if err != nil {
			return err
		}
		if err := r.db.Transfer(p.Token, r.address, p.To, amountToken); err != nil {
			return err
		}
		return r.unwrap(amountETH, p.To)
	})
	if err != nil {
		return nil, nil, err
	}
	return amountToken, amountETH, nil
}
