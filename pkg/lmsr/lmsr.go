// Package lmsr implements the Logarithmic Market Scoring Rule for a
// binary-outcome market in 9-decimal fixed point.
//
// The cost function is C(qy, qn) = b * ln(e^(qy/b) + e^(qn/b)),
// evaluated through the log-sum-exp identity
//
//	ln(e^x + e^y) = max(x, y) + ln(1 + e^-|x-y|)
//
// so the exponential argument is always in [-d, 0] and never overflows.
// Share quantities and the depth parameter b are both uint64 values at
// fixedpoint.Precision scale; costs come back in base units.
package lmsr

import (
	"errors"
	"fmt"

	"github.com/predictr-labs/predictr/pkg/fixedpoint"
)

const (
	// MaxShares bounds a single market side: 10^6 whole shares.
	MaxShares uint64 = 1_000_000 * fixedpoint.Precision

	// MinB is the smallest accepted depth parameter: 100 units.
	MinB uint64 = 100 * fixedpoint.Precision

	// MaxB is the largest certified depth parameter: 10^6 units.
	MaxB uint64 = 1_000_000 * fixedpoint.Precision

	// maxSearchShares caps the shares-for-cost inverse: 10^4 shares.
	maxSearchShares uint64 = 10_000 * fixedpoint.Precision

	// searchTolerance is the share-interval tolerance of the binary
	// search, about 0.001 shares.
	searchTolerance uint64 = fixedpoint.Precision / 1000

	// searchIterations bounds the binary search. 40 halvings of the
	// full interval land well under the tolerance.
	searchIterations = 40
)

var (
	ErrInvalidB           = errors.New("lmsr: b parameter outside certified range")
	ErrSharesOutOfRange   = errors.New("lmsr: share quantity outside certified range")
	ErrInsufficientShares = errors.New("lmsr: selling more shares than outstanding")
	ErrBoundedLoss        = errors.New("lmsr: maker loss exceeds b*ln2 bound")
)

func checkDomain(qYes, qNo, b uint64) error {
	if b < MinB || b > MaxB {
		return ErrInvalidB
	}
	if qYes > MaxShares || qNo > MaxShares {
		return ErrSharesOutOfRange
	}
	return nil
}

// Cost returns C(qYes, qNo) in base units.
func Cost(qYes, qNo, b uint64) (uint64, error) {
	if err := checkDomain(qYes, qNo, b); err != nil {
		return 0, err
	}
	hi, lo := qYes, qNo
	if qNo > qYes {
		hi, lo = qNo, qYes
	}

	// d = (hi - lo) / b, a dimensionless fixed-point ratio.
	d, err := fixedpoint.MulDiv(hi-lo, fixedpoint.Precision, b)
	if err != nil {
		return 0, fmt.Errorf("lmsr cost: %w", err)
	}
	tail, err := fixedpoint.Ln1p(fixedpoint.ExpNeg(d))
	if err != nil {
		return 0, fmt.Errorf("lmsr cost: %w", err)
	}
	scaled, err := fixedpoint.MulDiv(b, tail, fixedpoint.Precision)
	if err != nil {
		return 0, fmt.Errorf("lmsr cost: %w", err)
	}
	return hi + scaled, nil
}

// PriceYes returns P(YES) = e^(qy/b) / (e^(qy/b) + e^(qn/b)) at
// fixed-point scale, so a fair coin prices at Precision/2.
func PriceYes(qYes, qNo, b uint64) (uint64, error) {
	if err := checkDomain(qYes, qNo, b); err != nil {
		return 0, err
	}
	hi, lo := qYes, qNo
	if qNo > qYes {
		hi, lo = qNo, qYes
	}
	d, err := fixedpoint.MulDiv(hi-lo, fixedpoint.Precision, b)
	if err != nil {
		return 0, err
	}
	s := fixedpoint.ExpNeg(d)

	if qYes >= qNo {
		// P(YES) = 1 / (1 + e^-d)
		return fixedpoint.MulDiv(fixedpoint.Precision, fixedpoint.Precision, fixedpoint.Precision+s)
	}
	// P(YES) = e^-d / (1 + e^-d)
	return fixedpoint.MulDiv(s, fixedpoint.Precision, fixedpoint.Precision+s)
}

// PriceNo returns P(NO). By symmetry it is PriceYes with sides swapped.
func PriceNo(qYes, qNo, b uint64) (uint64, error) {
	return PriceYes(qNo, qYes, b)
}

// BuyCost returns C(q + dq*e_o) - C(q): the base units a buyer pays
// before fees for dq new shares of the chosen outcome.
func BuyCost(qYes, qNo, b uint64, yes bool, dq uint64) (uint64, error) {
	before, err := Cost(qYes, qNo, b)
	if err != nil {
		return 0, err
	}
	nyes, nno := qYes, qNo
	if yes {
		nyes += dq
	} else {
		nno += dq
	}
	after, err := Cost(nyes, nno, b)
	if err != nil {
		return 0, err
	}
	if after < before {
		// Cost is monotone in each argument; a decrease is a bug.
		return 0, fixedpoint.ErrUnderflow
	}
	return after - before, nil
}

// SellProceeds returns C(q) - C(q - dq*e_o): the base units paid out
// before fees for selling dq shares back to the maker.
func SellProceeds(qYes, qNo, b uint64, yes bool, dq uint64) (uint64, error) {
	held := qNo
	if yes {
		held = qYes
	}
	if dq > held {
		return 0, ErrInsufficientShares
	}
	before, err := Cost(qYes, qNo, b)
	if err != nil {
		return 0, err
	}
	nyes, nno := qYes, qNo
	if yes {
		nyes -= dq
	} else {
		nno -= dq
	}
	after, err := Cost(nyes, nno, b)
	if err != nil {
		return 0, err
	}
	if before < after {
		return 0, fixedpoint.ErrUnderflow
	}
	return before - after, nil
}

// SharesForCost inverts BuyCost: it returns the largest dq whose buy
// cost does not exceed targetCost, found by binary search over
// [0, 10^4 shares] to within about 0.001 shares.
func SharesForCost(qYes, qNo, b uint64, yes bool, targetCost uint64) (uint64, error) {
	if err := checkDomain(qYes, qNo, b); err != nil {
		return 0, err
	}
	lo, hi := uint64(0), maxSearchShares
	for i := 0; i < searchIterations && hi-lo > searchTolerance; i++ {
		mid := lo + (hi-lo)/2
		cost, err := BuyCost(qYes, qNo, b, yes, mid)
		if err != nil {
			return 0, err
		}
		if cost > targetCost {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo, nil
}

// MaxLoss returns the worst-case maker loss b*ln2 in base units.
func MaxLoss(b uint64) (uint64, error) {
	return fixedpoint.MulDiv(b, fixedpoint.LN2, fixedpoint.Precision)
}

// VerifyBoundedLoss checks max(0, C(0,0) - C(qYes,qNo)) <= b*ln2.
// C is monotone so the subsidy can never exceed its seed, but the
// check is kept as the final gate before a market pays out.
func VerifyBoundedLoss(qYes, qNo, b uint64) error {
	seed, err := Cost(0, 0, b)
	if err != nil {
		return err
	}
	current, err := Cost(qYes, qNo, b)
	if err != nil {
		return err
	}
	var loss uint64
	if seed > current {
		loss = seed - current
	}
	bound, err := MaxLoss(b)
	if err != nil {
		return err
	}
	if loss > bound {
		return ErrBoundedLoss
	}
	return nil
}
