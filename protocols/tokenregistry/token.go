package tokenregistry

import (
	"fmt"

	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token is a safe, structured representation of a deployed token's metadata.
type Token struct {
	ID       uint64         `json:"id" yaml:"id"`
	Address  common.Address `json:"address" yaml:"address"`
	Name     string         `json:"name" yaml:"name"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

// Deploy creates a fungible token contract owned by deployer and mints the
// whole supply to holder. The token ID is the deployer nonce used for the
// deployment.
func Deploy(
	db *state.StateDB,
	deployer common.Address,
	name, symbol string,
	decimals uint8,
	supply *uint256.Int,
	holder common.Address,
) (Token, error) {
	if holder == (common.Address{}) {
		return Token{}, types.ErrZeroAddress.Wrap("token holder")
	}

	var token Token
	err := db.Atomic(func() error {
		id := db.Nonce(deployer)
		address, err := db.Deploy(deployer)
		if err != nil {
			return err
		}
		if err := db.Mint(address, holder, supply); err != nil {
			return fmt.Errorf("mint initial supply of %s: %w", symbol, err)
		}
		token = Token{
			ID:       id,
			Address:  address,
			Name:     name,
			Symbol:   symbol,
			Decimals: decimals,
		}
		return nil
	})
	return token, err
}
