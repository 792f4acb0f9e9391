package types

import (
	"github.com/holiman/uint256"
)

// Checked uint256 arithmetic. Every helper allocates its result and never
// mutates its operands; wrap-around is reported as ErrArithmeticOverflow.

// SafeAdd returns a + b.
func SafeAdd(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow.Wrapf("%s + %s", a.Dec(), b.Dec())
	}
	return z, nil
}

// SafeSub returns a - b. Underflow is treated as overflow.
func SafeSub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrArithmeticOverflow.Wrapf("%s - %s", a.Dec(), b.Dec())
	}
	return z, nil
}

// SafeMul returns a * b.
func SafeMul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow.Wrapf("%s * %s", a.Dec(), b.Dec())
	}
	return z, nil
}

// SafeDiv returns floor(a / b).
func SafeDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero.Wrapf("%s / 0", a.Dec())
	}
	return new(uint256.Int).Div(a, b), nil
}

// SafeMulDiv returns floor(a * b / c). The product must fit in 256 bits.
func SafeMulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	product, err := SafeMul(a, b)
	if err != nil {
		return nil, err
	}
	return SafeDiv(product, c)
}

// Sqrt returns the integer (floor) square root of x.
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Amount parses a base-10 amount, panicking on malformed input. Intended for
// constants and tests.
func Amount(dec string) *uint256.Int {
	return uint256.MustFromDecimal(dec)
}

// Units returns value * 10^decimals, the base-unit amount of a whole-token
// quantity (the equivalent of parseUnits).
func Units(value uint64, decimals uint8) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return new(uint256.Int).Mul(uint256.NewInt(value), scale)
}
