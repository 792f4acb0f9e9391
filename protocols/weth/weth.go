package weth

import (
	"github.com/defistate/defistate-amm-go/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Deposit is emitted when native coin is wrapped.
type Deposit struct {
	Owner  common.Address
	Amount *uint256.Int
}

// Withdrawal is emitted when wrapped tokens are redeemed for native coin.
type Withdrawal struct {
	Owner  common.Address
	Amount *uint256.Int
}

func (Deposit) EventName() string    { return "Deposit" }
func (Withdrawal) EventName() string { return "Withdrawal" }

// WETH is the wrapped native asset. Its contract address doubles as the token
// address of the wrapped balance, and it custodies the native coin backing it.
type WETH struct {
	db      *state.StateDB
	address common.Address
}

// Deploy creates a new wrapped native asset contract.
func Deploy(db *state.StateDB, deployer common.Address) (*WETH, error) {
	address, err := db.Deploy(deployer)
	if err != nil {
		return nil, err
	}
	return &WETH{db: db, address: address}, nil
}

// At returns a handle to a WETH contract that already exists at address.
func At(db *state.StateDB, address common.Address) *WETH {
	return &WETH{db: db, address: address}
}

// Address returns the contract (and token) address.
func (w *WETH) Address() common.Address {
	return w.address
}

// Deposit wraps amount of caller's native coin.
func (w *WETH) Deposit(caller common.Address, amount *uint256.Int) error {
	return w.db.Atomic(func() error {
		if err := w.db.Transfer(state.NativeAsset, caller, w.address, amount); err != nil {
			return err
		}
		if err := w.db.Mint(w.address, caller, amount); err != nil {
			return err
		}
		w.db.AddLog(w.address, Deposit{Owner: caller, Amount: new(uint256.Int).Set(amount)})
		return nil
	})
}

// Withdraw unwraps amount of caller's wrapped tokens back into native coin.
func (w *WETH) Withdraw(caller common.Address, amount *uint256.Int) error {
	return w.db.Atomic(func() error {
		if err := w.db.Burn(w.address, caller, amount); err != nil {
			return err
		}
		if err := w.db.Transfer(state.NativeAsset, w.address, caller, amount); err != nil {
			return err
		}
		w.db.AddLog(w.address, Withdrawal{Owner: caller, Amount: new(uint256.Int).Set(amount)})
		return nil
	})
}
