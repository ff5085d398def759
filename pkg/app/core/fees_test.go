package core

import (
	"errors"
	"testing"
)

// TestSplitFeesExact: the three shares always reassemble the total, at
// awkward remainders included.
func TestSplitFeesExact(t *testing.T) {
	costs := []uint64{
		MinTradeNotional,
		10_001,
		999_999_937, // prime-ish, forces remainders
		1_000_000_000,
		123_456_789_123,
	}
	rates := []struct{ p, r, lp uint16 }{
		{300, 200, 500},
		{1, 1, 1},
		{9999, 0, 1},
		{0, 0, 0},
		{3333, 3333, 3334},
	}
	for _, cost := range costs {
		for _, rt := range rates {
			fees, err := SplitFees(cost, rt.p, rt.r, rt.lp)
			if err != nil {
				t.Fatalf("SplitFees(%d, %d/%d/%d): %v", cost, rt.p, rt.r, rt.lp, err)
			}
			if fees.Protocol+fees.Resolver+fees.LP != fees.Total {
				t.Errorf("split not exact: %d+%d+%d != %d",
					fees.Protocol, fees.Resolver, fees.LP, fees.Total)
			}
			sum := uint64(rt.p) + uint64(rt.r) + uint64(rt.lp)
			if want := cost * sum / MaxBps; fees.Total != want {
				t.Errorf("total = %d, want %d", fees.Total, want)
			}
		}
	}
}

// TestSplitFeesMinTrade: at the minimum notional the default-rate split
// produces a positive fee.
func TestSplitFeesMinTrade(t *testing.T) {
	fees, err := SplitFees(MinTradeNotional, DefaultProtocolFeeBps, DefaultResolverRewardBps, DefaultLiquidityProviderFeeBps)
	if err != nil {
		t.Fatal(err)
	}
	if fees.Total == 0 {
		t.Error("total fee is zero at minimum trade size")
	}
}

func TestSplitFeesRejectsBadRates(t *testing.T) {
	_, err := SplitFees(1_000_000, 5000, 4000, 2000)
	if !errors.Is(err, CodedError(ErrInvalidFeeConfiguration)) {
		t.Errorf("got %v, want InvalidFeeConfiguration", err)
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := NewGlobalConfig(creator, someone, someone, 5000, 4000, 2000); !errors.Is(err, CodedError(ErrInvalidFeeConfiguration)) {
		t.Errorf("fee sum: got %v, want InvalidFeeConfiguration", err)
	}

	cfg, err := NewGlobalConfig(creator, someone, someone, DefaultProtocolFeeBps, DefaultResolverRewardBps, DefaultLiquidityProviderFeeBps)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.ProposalApprovalThresholdBps != DefaultProposalApprovalThresholdBps {
		t.Errorf("approval threshold default = %d", cfg.ProposalApprovalThresholdBps)
	}
	if cfg.DisputePeriodS != DefaultDisputePeriodS {
		t.Errorf("dispute period default = %d", cfg.DisputePeriodS)
	}

	cfg.DisputeSuccessThresholdBps = 10_001
	if err := cfg.Validate(); !errors.Is(err, CodedError(ErrInvalidThreshold)) {
		t.Errorf("threshold: got %v, want InvalidThreshold", err)
	}
}

// TestErrorCodesStable pins a sample of the numeric codes clients
// match on.
func TestErrorCodesStable(t *testing.T) {
	pins := map[Code]uint32{
		ErrInvalidFeeConfiguration:   6000,
		ErrInvalidStateTransition:    6004,
		ErrInsufficientApprovalVotes: 6010,
		ErrSlippageExceeded:          6014,
		ErrResolutionTooEarly:        6020,
		ErrOverflow:                  6026,
		ErrUnauthorized:              6031,
		ErrWouldBreakRentExemption:   6035,
		ErrInsufficientFunds:         6036,
	}
	for code, want := range pins {
		if uint32(code) != want {
			t.Errorf("%s = %d, want %d", code.Name(), uint32(code), want)
		}
	}
}
