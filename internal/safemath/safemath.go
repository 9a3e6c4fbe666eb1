package safemath

import (
	"errors"
	"math/bits"
)

// PctBase is the denominator of every percentage in the court: 10_000 = 100%.
const PctBase uint64 = 10_000

var (
	ErrOverflow       = errors.New("number overflow")
	ErrUnderflow      = errors.New("number underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

func Add64(a, b uint64) (uint64, bool) {
	v, carry := bits.Add64(a, b, 0)
	return v, carry == 0
}

func Sub64(a, b uint64) (uint64, bool) {
	v, borrow := bits.Sub64(a, b, 0)
	return v, borrow == 0
}

func Mul64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// MulDiv computes a*b/c with a 128-bit intermediate product, rounding down.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// Pct returns pct/PctBase of amount. pct may exceed PctBase (e.g. collateral factors).
func Pct(amount, pct uint64) (uint64, error) {
	return MulDiv(amount, pct, PctBase)
}

// AddE is Add64 reporting overflow as an error.
func AddE(a, b uint64) (uint64, error) {
	v, ok := Add64(a, b)
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}

// SubE is Sub64 reporting underflow as an error.
func SubE(a, b uint64) (uint64, error) {
	v, ok := Sub64(a, b)
	if !ok {
		return 0, ErrUnderflow
	}
	return v, nil
}

// MulE is Mul64 reporting overflow as an error.
func MulE(a, b uint64) (uint64, error) {
	v, ok := Mul64(a, b)
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}
