// Package fixedpoint implements deterministic 9-decimal fixed-point
// arithmetic on unsigned 64-bit values, including the transcendental
// functions needed by the market maker (exp, ln, log1p).
//
// All public inputs and outputs are uint64 scaled by Precision (10^9).
// Intermediate series are evaluated at 10^18 scale inside 256-bit
// integers, so no intermediate product can overflow and results are
// bit-exact across platforms.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// Precision is the fixed-point scale factor: 9 decimal places.
	Precision uint64 = 1_000_000_000

	// LN2 is ln(2) at 9-decimal precision.
	LN2 uint64 = 693_147_180

	// MaxExpInput is the largest argument accepted by Exp.
	// e^23 ≈ 9.7e9 units, near the top of the uint64 fixed-point range.
	MaxExpInput uint64 = 23 * Precision

	// expNegFlush: e^-x underflows 9-decimal precision beyond this
	// point, so ExpNeg returns exactly 0 instead of failing.
	expNegFlush uint64 = 30 * Precision

	// Internal series scale: 10^18.
	innerScale uint64 = 1_000_000_000_000_000_000

	// ln(2) at the internal 10^18 scale.
	ln2Inner uint64 = 693_147_180_559_945_309
)

var (
	ErrOverflow         = errors.New("fixedpoint: overflow")
	ErrUnderflow        = errors.New("fixedpoint: underflow")
	ErrDivisionByZero   = errors.New("fixedpoint: division by zero")
	ErrExponentTooLarge = errors.New("fixedpoint: exponent outside certified range")
)

var (
	u256One   = uint256.NewInt(1)
	u256Inner = uint256.NewInt(innerScale)
)

// MulDiv returns floor(a*b/div) computed without intermediate overflow.
func MulDiv(a, b, div uint64) (uint64, error) {
	if div == 0 {
		return 0, ErrDivisionByZero
	}
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	p.Div(p, uint256.NewInt(div))
	if !p.IsUint64() {
		return 0, ErrOverflow
	}
	return p.Uint64(), nil
}

// mulDivRound returns round(a*b/div) at 256-bit width.
func mulDivRound(a, b *uint256.Int, div uint64) *uint256.Int {
	p := new(uint256.Int).Mul(a, b)
	d := uint256.NewInt(div)
	half := new(uint256.Int).Rsh(d, 1)
	p.Add(p, half)
	return p.Div(p, d)
}

// downScale converts a 10^18-scale value to 10^9 scale with rounding.
func downScale(v *uint256.Int) (uint64, error) {
	r := mulDivRound(v, u256One, Precision)
	if !r.IsUint64() {
		return 0, ErrOverflow
	}
	return r.Uint64(), nil
}

// expSeriesInner evaluates e^r at the internal 10^18 scale for
// r in [0, ln 2). The Taylor series has all-positive terms; it stops
// once a term rounds to zero at 10^-18.
func expSeriesInner(r *uint256.Int) *uint256.Int {
	sum := new(uint256.Int).Set(u256Inner)
	term := new(uint256.Int).Set(u256Inner)
	for n := uint64(1); n <= 40; n++ {
		term = mulDivRound(term, r, innerScale)
		term.Div(term, uint256.NewInt(n))
		if term.IsZero() {
			break
		}
		sum.Add(sum, term)
	}
	return sum
}

// ExpNeg returns e^-x in fixed point for x >= 0.
//
// The argument is range-reduced as x = k*ln2 + r with r in [0, ln 2),
// so e^-x = 2^-k * e^-r. Arguments beyond the flush threshold return
// exactly 0; there is no failure mode because the result is certified
// over the whole uint64 range.
func ExpNeg(x uint64) uint64 {
	if x == 0 {
		return Precision
	}
	if x >= expNegFlush {
		return 0
	}

	// Lift to 10^18 scale and split on ln 2.
	inner := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(Precision))
	k := new(uint256.Int).Div(inner, uint256.NewInt(ln2Inner)).Uint64()
	r := new(uint256.Int).Mod(inner, uint256.NewInt(ln2Inner))

	// e^-r = 10^36 / e^r, evaluated at 10^18 scale.
	er := expSeriesInner(r)
	num := new(uint256.Int).Mul(u256Inner, u256Inner)
	half := new(uint256.Int).Rsh(er, 1)
	num.Add(num, half)
	enr := num.Div(num, er)

	// Apply 2^-k and drop to 10^9 scale.
	enr.Rsh(enr, uint(k))
	out, err := downScale(enr)
	if err != nil {
		// Cannot happen: enr <= 10^18.
		return 0
	}
	return out
}

// Exp returns e^x in fixed point for x >= 0.
// Arguments above MaxExpInput are rejected with ErrExponentTooLarge.
func Exp(x uint64) (uint64, error) {
	if x > MaxExpInput {
		return 0, ErrExponentTooLarge
	}
	if x == 0 {
		return Precision, nil
	}

	inner := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(Precision))
	k := new(uint256.Int).Div(inner, uint256.NewInt(ln2Inner)).Uint64()
	r := new(uint256.Int).Mod(inner, uint256.NewInt(ln2Inner))

	er := expSeriesInner(r)
	er.Lsh(er, uint(k))
	return downScale(er)
}

// ln1pInner computes ln(1+s) at 10^18 scale for s in [0, 10^18] using
// the atanh identity ln(1+s) = 2*atanh(s/(2+s)). The reduced argument
// z is at most 1/3, so the odd series converges in under twenty terms.
func ln1pInner(s *uint256.Int) *uint256.Int {
	if s.IsZero() {
		return new(uint256.Int)
	}
	den := new(uint256.Int).Add(new(uint256.Int).Lsh(u256Inner, 1), s) // 2 + s
	z := new(uint256.Int).Mul(s, u256Inner)
	z.Div(z, den)

	z2 := mulDivRound(z, z, innerScale)
	sum := new(uint256.Int).Set(z)
	pow := new(uint256.Int).Set(z)
	for n := uint64(3); n <= 41; n += 2 {
		pow = mulDivRound(pow, z2, innerScale)
		if pow.IsZero() {
			break
		}
		term := new(uint256.Int).Div(pow, uint256.NewInt(n))
		sum.Add(sum, term)
	}
	return sum.Lsh(sum, 1)
}

// Ln1p returns ln(1+x) in fixed point for x in [0, Precision].
// This is the exact range produced by the log-sum-exp reduction, where
// x = e^-|d| is always at most 1.
func Ln1p(x uint64) (uint64, error) {
	if x > Precision {
		return 0, ErrExponentTooLarge
	}
	s := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(Precision))
	return downScale(ln1pInner(s))
}

// Ln returns ln(x) in fixed point for x >= Precision (i.e. x >= 1.0).
// Arguments below 1.0 would produce a negative result, which the
// unsigned representation cannot carry; they fail with ErrUnderflow.
func Ln(x uint64) (uint64, error) {
	if x < Precision {
		return 0, ErrUnderflow
	}
	if x == Precision {
		return 0, nil
	}

	// Normalize to m in [1, 2) at 10^18 scale: x = m * 2^k.
	m := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(Precision))
	k := uint64(0)
	two := new(uint256.Int).Lsh(u256Inner, 1)
	for m.Cmp(two) >= 0 {
		m.Rsh(m, 1)
		k++
	}

	frac := new(uint256.Int).Sub(m, u256Inner)
	res := ln1pInner(frac)
	res.Add(res, new(uint256.Int).Mul(uint256.NewInt(k), uint256.NewInt(ln2Inner)))
	return downScale(res)
}
