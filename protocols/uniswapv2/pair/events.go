package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Mint struct {
	Sender  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

type Burn struct {
	Sender  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	To      common.Address
}

type Swap struct {
	Sender     common.Address
	Amount0In  *uint256.Int
	Amount1In  *uint256.Int
	Amount0Out *uint256.Int
	Amount1Out *uint256.Int
	To         common.Address
}

type Sync struct {
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

func (Mint) EventName() string { return "Mint" }
func (Burn) EventName() string { return "Burn" }
func (Swap) EventName() string { return "Swap" }
func (Sync) EventName() string { return "Sync" }
