package fixedpoint

import (
	"testing"
)

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// TestExpNegKnownValues checks e^-x against reference values computed
// at higher precision.
func TestExpNegKnownValues(t *testing.T) {
	tests := []struct {
		x    uint64
		want uint64 // e^-x at 9 decimals
	}{
		{0, 1_000_000_000},
		{Precision, 367_879_441},           // e^-1
		{2 * Precision, 135_335_283},       // e^-2
		{LN2, 500_000_000},                 // e^-ln2 = 1/2
		{Precision / 2, 606_530_660},       // e^-0.5
		{Precision / 1000, 999_000_500},    // e^-0.001
		{10 * Precision, 45_400},           // e^-10
		{20 * Precision, 2},                // e^-20
		{30 * Precision, 0},                // flushed
		{100 * Precision, 0},               // flushed
	}
	for _, tt := range tests {
		got := ExpNeg(tt.x)
		if absDiff(got, tt.want) > 2 {
			t.Errorf("ExpNeg(%d) = %d, want %d (±2)", tt.x, got, tt.want)
		}
	}
}

// TestExpKnownValues checks e^x and the domain rejection.
func TestExpKnownValues(t *testing.T) {
	tests := []struct {
		x    uint64
		want uint64
	}{
		{0, 1_000_000_000},
		{Precision, 2_718_281_828},
		{2 * Precision, 7_389_056_099},
		{LN2, 2_000_000_000},
		{10 * Precision, 22_026_465_794_807},
	}
	for _, tt := range tests {
		got, err := Exp(tt.x)
		if err != nil {
			t.Fatalf("Exp(%d): %v", tt.x, err)
		}
		// Allow 1 part in 10^8 of the value plus 2 ulp for rounding.
		tol := tt.want/100_000_000 + 2
		if absDiff(got, tt.want) > tol {
			t.Errorf("Exp(%d) = %d, want %d (±%d)", tt.x, got, tt.want, tol)
		}
	}

	if _, err := Exp(MaxExpInput + 1); err != ErrExponentTooLarge {
		t.Errorf("Exp above domain: got %v, want ErrExponentTooLarge", err)
	}
}

// TestLnKnownValues checks ln on [1, inf) and the underflow rejection.
func TestLnKnownValues(t *testing.T) {
	tests := []struct {
		x    uint64
		want uint64
	}{
		{Precision, 0},
		{2 * Precision, 693_147_181},               // ln 2 (rounded)
		{2_718_281_828, 999_999_999},               // ln e with e truncated
		{10 * Precision, 2_302_585_093},            // ln 10
		{1_000_000 * Precision, 13_815_510_558},    // ln 1e6
	}
	for _, tt := range tests {
		got, err := Ln(tt.x)
		if err != nil {
			t.Fatalf("Ln(%d): %v", tt.x, err)
		}
		if absDiff(got, tt.want) > 2 {
			t.Errorf("Ln(%d) = %d, want %d (±2)", tt.x, got, tt.want)
		}
	}

	if _, err := Ln(Precision - 1); err != ErrUnderflow {
		t.Errorf("Ln below 1.0: got %v, want ErrUnderflow", err)
	}
	if _, err := Ln(0); err != ErrUnderflow {
		t.Errorf("Ln(0): got %v, want ErrUnderflow", err)
	}
}

// TestLn1pKnownValues checks the log-sum-exp tail over its full range.
func TestLn1pKnownValues(t *testing.T) {
	tests := []struct {
		x    uint64
		want uint64
	}{
		{0, 0},
		{Precision, 693_147_181},      // ln 2
		{Precision / 2, 405_465_108},  // ln 1.5
		{Precision / 1000, 999_500},   // ln 1.001
		{1, 1},                        // ln(1 + 1e-9)
	}
	for _, tt := range tests {
		got, err := Ln1p(tt.x)
		if err != nil {
			t.Fatalf("Ln1p(%d): %v", tt.x, err)
		}
		if absDiff(got, tt.want) > 1 {
			t.Errorf("Ln1p(%d) = %d, want %d (±1)", tt.x, got, tt.want)
		}
	}

	if _, err := Ln1p(Precision + 1); err != ErrExponentTooLarge {
		t.Errorf("Ln1p above domain: got %v, want ErrExponentTooLarge", err)
	}
}

// TestExpNegMonotone verifies e^-x is non-increasing across a sweep.
func TestExpNegMonotone(t *testing.T) {
	prev := ExpNeg(0)
	for x := uint64(0); x <= 25*Precision; x += Precision / 7 {
		got := ExpNeg(x)
		if got > prev {
			t.Fatalf("ExpNeg not monotone at x=%d: %d > %d", x, got, prev)
		}
		prev = got
	}
}

// TestExpLnRoundTrip: Ln(Exp(x)) stays within a few ulp of x.
func TestExpLnRoundTrip(t *testing.T) {
	for _, x := range []uint64{Precision / 3, Precision, 3 * Precision, 10 * Precision, 20 * Precision} {
		ex, err := Exp(x)
		if err != nil {
			t.Fatalf("Exp(%d): %v", x, err)
		}
		back, err := Ln(ex)
		if err != nil {
			t.Fatalf("Ln(Exp(%d)): %v", x, err)
		}
		if absDiff(back, x) > 3 {
			t.Errorf("Ln(Exp(%d)) = %d, drift %d", x, back, absDiff(back, x))
		}
	}
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(1_000_000_000_000, 693_147_180, 1_000_000_000)
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	if got != 693_147_180_000 {
		t.Errorf("MulDiv = %d, want 693147180000", got)
	}

	if _, err := MulDiv(1, 1, 0); err != ErrDivisionByZero {
		t.Errorf("divide by zero: got %v", err)
	}
	// 2^63 * 2^63 / 1 does not fit in uint64.
	if _, err := MulDiv(1<<63, 1<<63, 1); err != ErrOverflow {
		t.Errorf("overflow: got %v", err)
	}
}
