package sale

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// All money-relevant quantities live in a 128-bit unsigned domain. The
// helpers below widen through uint256 so intermediate products never lose
// precision, and surface ErrAmountOverflow whenever a result leaves the
// domain instead of clamping.

const amountBits = 128

var errDivideByZero = errors.New("sale: divide by zero")

func pow10(exp uint32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

func toWide(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 || v.BitLen() > amountBits {
		return nil, ErrAmountOverflow
	}
	wide, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return wide, nil
}

func fromWide(v *uint256.Int) (*big.Int, error) {
	out := v.ToBig()
	if out.BitLen() > amountBits {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

// mulDiv computes floor(a*b/den) with a 256-bit intermediate product. The
// multiplication happens before the division so no precision is rounded away
// early.
func mulDiv(a, b, den *big.Int) (*big.Int, error) {
	if den == nil || den.Sign() == 0 {
		return nil, errDivideByZero
	}
	wideA, err := toWide(a)
	if err != nil {
		return nil, err
	}
	wideB, err := toWide(b)
	if err != nil {
		return nil, err
	}
	wideDen, err := toWide(den)
	if err != nil {
		return nil, err
	}
	product := new(uint256.Int)
	if _, overflow := product.MulOverflow(wideA, wideB); overflow {
		return nil, ErrAmountOverflow
	}
	return fromWide(product.Div(product, wideDen))
}

// checkedAdd returns a+b, failing when the sum leaves the 128-bit domain.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	wideA, err := toWide(a)
	if err != nil {
		return nil, err
	}
	wideB, err := toWide(b)
	if err != nil {
		return nil, err
	}
	sum := new(uint256.Int)
	if _, overflow := sum.AddOverflow(wideA, wideB); overflow {
		return nil, ErrAmountOverflow
	}
	return fromWide(sum)
}
