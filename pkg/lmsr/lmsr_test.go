package lmsr

import (
	"testing"

	"github.com/predictr-labs/predictr/pkg/fixedpoint"
)

const (
	b1000 = 1000 * fixedpoint.Precision // b = 1000 units
	share = fixedpoint.Precision        // one whole share
)

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// TestPriceSumIsOne: P(YES) + P(NO) = 1 within one fixed-point ulp for
// a sweep of share imbalances.
func TestPriceSumIsOne(t *testing.T) {
	cases := []struct{ qy, qn uint64 }{
		{0, 0},
		{share, 0},
		{0, share},
		{100 * share, 1},
		{500 * share, 499 * share},
		{1_000_000 * share, 0},
		{123_456 * share, 654_321 * share},
	}
	for _, c := range cases {
		py, err := PriceYes(c.qy, c.qn, b1000)
		if err != nil {
			t.Fatalf("PriceYes(%d,%d): %v", c.qy, c.qn, err)
		}
		pn, err := PriceNo(c.qy, c.qn, b1000)
		if err != nil {
			t.Fatalf("PriceNo(%d,%d): %v", c.qy, c.qn, err)
		}
		if absDiff(py+pn, fixedpoint.Precision) > 1 {
			t.Errorf("P(YES)+P(NO) = %d at (%d,%d), want %d ±1", py+pn, c.qy, c.qn, fixedpoint.Precision)
		}
	}
}

// TestBalancedPriceIsHalf: a fresh market prices both sides at 0.5.
func TestBalancedPriceIsHalf(t *testing.T) {
	py, err := PriceYes(0, 0, b1000)
	if err != nil {
		t.Fatal(err)
	}
	if absDiff(py, fixedpoint.Precision/2) > 1 {
		t.Errorf("balanced P(YES) = %d, want %d", py, fixedpoint.Precision/2)
	}
}

// TestSeedCost: C(0,0) = b*ln2, the maker's maximum subsidy.
func TestSeedCost(t *testing.T) {
	c, err := Cost(0, 0, b1000)
	if err != nil {
		t.Fatal(err)
	}
	bound, err := MaxLoss(b1000)
	if err != nil {
		t.Fatal(err)
	}
	// The two are computed through different paths (series vs the
	// LN2 constant); they agree to within one ulp of the ratio scale.
	tol := b1000 / fixedpoint.Precision
	if absDiff(c, bound) > tol {
		t.Errorf("C(0,0) = %d, b*ln2 = %d, drift %d > %d", c, bound, absDiff(c, bound), tol)
	}
}

// TestCostMonotone: C is strictly increasing in bought shares.
func TestCostMonotone(t *testing.T) {
	prev, err := Cost(0, 0, b1000)
	if err != nil {
		t.Fatal(err)
	}
	for q := uint64(share); q <= 100*share; q += 10 * share {
		c, err := Cost(q, 0, b1000)
		if err != nil {
			t.Fatalf("Cost(%d,0): %v", q, err)
		}
		if c <= prev {
			t.Fatalf("cost not increasing at q=%d: %d <= %d", q, c, prev)
		}
		prev = c
	}
}

// TestBuyCostNearPrice: buying one share of a balanced market costs
// about half a unit, and pushing one side up makes it dearer.
func TestBuyCostNearPrice(t *testing.T) {
	cost, err := BuyCost(0, 0, b1000, true, share)
	if err != nil {
		t.Fatal(err)
	}
	// Price starts at 0.5 and rises over the interval; cost must sit
	// between 0.5 and 0.501 units for b=1000.
	if cost < fixedpoint.Precision/2 || cost > fixedpoint.Precision/2+fixedpoint.Precision/1000 {
		t.Errorf("one-share cost %d outside [5e8, 5.01e8]", cost)
	}

	costSkewed, err := BuyCost(500*share, 0, b1000, true, share)
	if err != nil {
		t.Fatal(err)
	}
	if costSkewed <= cost {
		t.Errorf("skewed cost %d not above balanced cost %d", costSkewed, cost)
	}
}

// TestBuySellRoundTrip: buying and selling the same quantity restores
// the share state, and proceeds equal cost exactly (both are the same
// cost-function difference; fees live a layer up).
func TestBuySellRoundTrip(t *testing.T) {
	qy, qn := uint64(10*share), uint64(4*share)
	dq := uint64(3 * share)

	cost, err := BuyCost(qy, qn, b1000, true, dq)
	if err != nil {
		t.Fatal(err)
	}
	proceeds, err := SellProceeds(qy+dq, qn, b1000, true, dq)
	if err != nil {
		t.Fatal(err)
	}
	if cost != proceeds {
		t.Errorf("round trip: cost %d != proceeds %d", cost, proceeds)
	}
}

// TestSellMoreThanHeld is rejected.
func TestSellMoreThanHeld(t *testing.T) {
	if _, err := SellProceeds(share, 0, b1000, true, 2*share); err != ErrInsufficientShares {
		t.Errorf("got %v, want ErrInsufficientShares", err)
	}
}

// TestSharesForCost: the inverse finds a quantity whose cost is within
// tolerance of (and never above) the budget.
func TestSharesForCost(t *testing.T) {
	budgets := []uint64{
		fixedpoint.Precision / 2,       // ~1 share
		10 * fixedpoint.Precision,      // ~20 shares
		1000 * fixedpoint.Precision,    // deep into the curve
	}
	for _, budget := range budgets {
		dq, err := SharesForCost(0, 0, b1000, true, budget)
		if err != nil {
			t.Fatalf("SharesForCost(%d): %v", budget, err)
		}
		cost, err := BuyCost(0, 0, b1000, true, dq)
		if err != nil {
			t.Fatal(err)
		}
		if cost > budget {
			t.Errorf("inverse overshoots: cost %d > budget %d", cost, budget)
		}
		// Two tolerance steps more must overshoot (or the search hit
		// its cap), i.e. the answer is tight.
		costUp, err := BuyCost(0, 0, b1000, true, dq+2*searchTolerance)
		if err != nil {
			t.Fatal(err)
		}
		if costUp <= budget && dq+2*searchTolerance < maxSearchShares {
			t.Errorf("inverse too loose at budget %d: dq=%d", budget, dq)
		}
	}
}

// TestDomainRejection: out-of-range b and share counts fail closed.
func TestDomainRejection(t *testing.T) {
	if _, err := Cost(0, 0, MinB-1); err != ErrInvalidB {
		t.Errorf("small b: got %v", err)
	}
	if _, err := Cost(0, 0, MaxB+1); err != ErrInvalidB {
		t.Errorf("big b: got %v", err)
	}
	if _, err := Cost(MaxShares+1, 0, b1000); err != ErrSharesOutOfRange {
		t.Errorf("shares: got %v", err)
	}
}

// TestVerifyBoundedLoss holds across extreme one-sided positions.
func TestVerifyBoundedLoss(t *testing.T) {
	cases := []struct{ qy, qn uint64 }{
		{0, 0},
		{share, share},
		{1_000_000 * share, 0},
		{0, 1_000_000 * share},
		{999_999 * share, 1},
	}
	for _, c := range cases {
		if err := VerifyBoundedLoss(c.qy, c.qn, b1000); err != nil {
			t.Errorf("bounded loss violated at (%d,%d): %v", c.qy, c.qn, err)
		}
	}
}

// TestMaxLoss: b*ln2 at the documented constant.
func TestMaxLoss(t *testing.T) {
	got, err := MaxLoss(b1000)
	if err != nil {
		t.Fatal(err)
	}
	want := uint64(693_147_180_000) // 1000e9 * 0.693147180
	if got != want {
		t.Errorf("MaxLoss = %d, want %d", got, want)
	}
}
