package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every error raised by the exchange core. Together with the
// numeric code it forms the stable revert reason reported to callers.
const Codespace = "amm"

var (
	ErrIdenticalAddresses       = errorsmod.Register(Codespace, 2, "identical addresses")
	ErrPairExists               = errorsmod.Register(Codespace, 3, "pair exists")
	ErrPairNotFound             = errorsmod.Register(Codespace, 4, "pair not found")
	ErrZeroAddress              = errorsmod.Register(Codespace, 5, "zero address")
	ErrNotAContract             = errorsmod.Register(Codespace, 6, "address has no code")
	ErrNotAuthorized            = errorsmod.Register(Codespace, 7, "not authorized")
	ErrAlreadySet               = errorsmod.Register(Codespace, 8, "already set")
	ErrSameAddress              = errorsmod.Register(Codespace, 9, "same address")
	ErrRequestNotFound          = errorsmod.Register(Codespace, 10, "request not found")
	ErrInsufficientLiquidity    = errorsmod.Register(Codespace, 11, "insufficient liquidity")
	ErrInsufficientOutputAmount = errorsmod.Register(Codespace, 12, "insufficient output amount")
	ErrExcessiveInputAmount     = errorsmod.Register(Codespace, 13, "excessive input amount")
	ErrInvariantViolation       = errorsmod.Register(Codespace, 14, "constant product invariant violated")
	ErrArithmeticOverflow       = errorsmod.Register(Codespace, 15, "arithmetic overflow")
	ErrExpired                  = errorsmod.Register(Codespace, 16, "expired")
	ErrInvalidPath              = errorsmod.Register(Codespace, 17, "invalid path")

	ErrInsufficientAmount      = errorsmod.Register(Codespace, 18, "insufficient amount")
	ErrInsufficientInputAmount = errorsmod.Register(Codespace, 19, "insufficient input amount")
	ErrInsufficientBalance     = errorsmod.Register(Codespace, 20, "insufficient balance")
	ErrInvalidTo               = errorsmod.Register(Codespace, 21, "invalid to")
	ErrDivisionByZero          = errorsmod.Register(Codespace, 22, "division by zero")
)

// Code returns the registered code of err, 0 for nil and 1 for errors raised
// outside the amm codespace.
func Code(err error) uint32 {
	if err == nil {
		return 0
	}
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	if codespace != Codespace {
		return 1
	}
	return code
}
