package router

import (
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ExactInput describes a swap of a fixed input. For the ETH-in variants
// AmountIn is the native coin sent with the call.
type ExactInput struct {
	AmountIn     *uint256.Int
	AmountOutMin *uint256.Int
	Path         []common.Address
	To           common.Address
	Deadline     uint64
}

// ExactOutput describes a swap for a fixed output. For the ETH-in variant
// AmountInMax is the native coin sent with the call; the unspent part is
// refunded.
type ExactOutput struct {
	AmountOut   *uint256.Int
	AmountInMax *uint256.Int
	Path        []common.Address
	To          common.Address
	Deadline    uint64
}

// SwapResult holds the amount entering every hop (the last entry is the
// output) and the treasury fee charged on top of amounts[0].
type SwapResult struct {
	Amounts []*uint256.Int
	Fee     *uint256.Int
}

// Output returns the amount delivered to the recipient.
func (s SwapResult) Output() *uint256.Int {
	return s.Amounts[len(s.Amounts)-1]
}

// Input returns the total amount paid by the trader, fee included.
func (s SwapResult) Input() *uint256.Int {
	return new(uint256.Int).Add(s.Amounts[0], s.Fee)
}

// swap executes the planned hops. amounts[0] must already sit in the first pair.
func (r *Router) swap(amounts []*uint256.Int, path []common.Address, to common.Address) error {
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		pair, err := r.pairFor(input, output)
		if err != nil {
			return err
		}
		amount0Out, amount1Out := new(uint256.Int), amounts[i+1]
		if input != pair.Token0() {
			amount0Out, amount1Out = amounts[i+1], new(uint256.Int)
		}
		recipient := to
		if i < len(path)-2 {
			next, err := r.pairFor(output, path[i+2])
			if err != nil {
				return err
			}
			recipient = next.Address()
		}
		if err := pair.Swap(r.address, amount0Out, amount1Out, recipient); err != nil {
			return err
		}
	}
	return nil
}

// planExactInput deducts the treasury fee from amountIn and prices the rest.
func (r *Router) planExactInput(p ExactInput) (SwapResult, error) {
	fee, err := r.ProtocolFee(p.Path, p.AmountIn)
	if err != nil {
		return SwapResult{}, err
	}
	net, err := types.SafeSub(p.AmountIn, fee)
	if err != nil {
		return SwapResult{}, err
	}
	amounts, err := r.GetAmountsOut(net, p.Path)
	if err != nil {
		return SwapResult{}, err
	}
	if out := amounts[len(amounts)-1]; out.Lt(p.AmountOutMin) {
		return SwapResult{}, types.ErrInsufficientOutputAmount.Wrapf("output %s below minimum %s", out.Dec(), p.AmountOutMin.Dec())
	}
	return SwapResult{Amounts: amounts, Fee: fee}, nil
}

// planExactOutput prices p.AmountOut backward and adds the treasury fee on top.
func (r *Router) planExactOutput(p ExactOutput) (SwapResult, error) {
	amounts, err := r.GetAmountsIn(p.AmountOut, p.Path)
	if err != nil {
		return SwapResult{}, err
	}
	fee, err := r.ProtocolFee(p.Path, amounts[0])
	if err != nil {
		return SwapResult{}, err
	}
	total, err := types.SafeAdd(amounts[0], fee)
	if err != nil {
		return SwapResult{}, err
	}
	if total.Gt(p.AmountInMax) {
		return SwapResult{}, types.ErrExcessiveInputAmount.Wrapf("input %s above maximum %s", total.Dec(), p.AmountInMax.Dec())
	}
	return SwapResult{Amounts: amounts, Fee: fee}, nil
}

// payIn moves the planned input of a token-in swap from caller to the
// treasury and the first pair.
func (r *Router) payIn(caller common.Address, path []common.Address, plan SwapResult) error {
	if err := r.chargeFee(path[0], caller, plan.Fee); err != nil {
		return err
	}
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	return r.db.Transfer(path[0], caller, first.Address(), plan.Amounts[0])
}

// payInETH does the same for a native-in swap: value was already received by
// the router.
func (r *Router) payInETH(path []common.Address, plan SwapResult) error {
	if err := r.chargeFee(state.NativeAsset, r.address, plan.Fee); err != nil {
		return err
	}
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	return r.wrap(plan.Amounts[0], first.Address())
}

func (r *Router) requireFirst(path []common.Address) error {
	if len(path) < 2 || path[0] != r.weth.Address() {
		return types.ErrInvalidPath.Wrap("path must start with the wrapped native asset")
	}
	return nil
}

func (r *Router) requireLast(path []common.Address) error {
	if len(path) < 2 || path[len(path)-1] != r.weth.Address() {
		return types.ErrInvalidPath.Wrap("path must end with the wrapped native asset")
	}
	return nil
}

// SwapExactTokensForTokens swaps exactly p.AmountIn of path[0], fee included,
// for as much of the last token as possible.
func (r *Router) SwapExactTokensForTokens(caller common.Address, p ExactInput) (SwapResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	plan, err := r.planExactInput(p)
	if err != nil {
		return SwapResult{}, err
	}
	err = r.db.Atomic(func() error {
		if err := r.payIn(caller, p.Path, plan); err != nil {
			return err
		}
		return r.swap(plan.Amounts, p.Path, p.To)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return plan, nil
}

// SwapTokensForExactTokens buys exactly p.AmountOut of the last token.
func (r *Router) SwapTokensForExactTokens(caller common.Address, p ExactOutput) (SwapResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	plan, err := r.planExactOutput(p)
	if err != nil {
		return SwapResult{}, err
	}
	err = r.db.Atomic(func() error {
		if err := r.payIn(caller, p.Path, plan); err != nil {
			return err
		}
		return r.swap(plan.Amounts, p.Path, p.To)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return plan, nil
}

// SwapExactETHForTokens swaps the native coin sent (p.AmountIn) along a path
// starting at the wrapped native asset.
func (r *Router) SwapExactETHForTokens(caller common.Address, p ExactInput) (SwapResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if err := r.requireFirst(p.Path); err != nil {
		return SwapResult{}, err
	}
	plan, err := r.planExactInput(p)
	if err != nil {
		return SwapResult{}, err
	}
	err = r.db.Atomic(func() error {
		if err := r.receive(caller, p.AmountIn); err != nil {
			return err
		}
		if err := r.payInETH(p.Path, plan); err != nil {
			return err
		}
		return r.swap(plan.Amounts, p.Path, p.To)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return plan, nil
}

// SwapETHForExactTokens buys exactly p.AmountOut with at most p.AmountInMax
// native coin and refunds the rest.
func (r *Router) SwapETHForExactTokens(caller common.Address, p ExactOutput) (SwapResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if err := r.requireFirst(p.Path); err != nil {
		return SwapResult{}, err
	}
	plan, err := r.planExactOutput(p)
	if err != nil {
		return SwapResult{}, err
	}
	err = r.db.Atomic(func() error {
		if err := r.receive(caller, p.AmountInMax); err != nil {
			return err
		}
		if err := r.payInETH(p.Path, plan); err != nil {
			return err
		}
		if err := r.swap(plan.Amounts, p.Path, p.To); err != nil {
			return err
		}
		refund := new(uint256.Int).Sub(p.AmountInMax, plan.Input())
		return r.db.Transfer(state.NativeAsset, r.address, caller, refund)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return plan, nil
}

// SwapExactTokensForETH swaps exactly p.AmountIn of path[0] and pays the
// wrapped output out as native coin.
func (r *Router) SwapExactTokensForETH(caller common.Address, p ExactInput) (SwapResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if err := r.requireLast(p.Path); err != nil {
		return SwapResult{}, err
	}
	plan, err := r.planExactInput(p)
	if err != nil {
		return SwapResult{}, err
	}
	err = r.db.Atomic(func() error {
		if err := r.payIn(caller, p.Path, plan); err != nil {
			return err
		}
		if err := r.swap(plan.Amounts, p.Path, r.address); err != nil {
			return err
		}
		return r.unwrap(plan.Output(), p.To)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return plan, nil
}

// SwapTokensForExactETH buys exactly p.AmountOut native coin.
func (r *Router) SwapTokensForExactETH(caller common.Address, p ExactOutput) (SwapResult, error) {
	if err := r.ensure(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if err := r.requireLast(p.Path); err != nil {
		return SwapResult{}, err
	}
	plan, err := r.planExactOutput(p)
	if err != nil {
		return SwapResult{}, err
	}
	err = r.db.Atomic(func() error {
		if err := r.payIn(caller, p.Path, plan); err != nil {
			return err
		}
		if err := r.swap(plan.Amounts, p.Path, r.address); err != nil {
			return err
		}
		return r.unwrap(plan.Output(), p.To)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return plan, nil
}
