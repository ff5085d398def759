package core

import (
	"github.com/predictr-labs/predictr/pkg/fixedpoint"
)

// MinTradeNotional is the smallest pre-fee cost accepted for a trade,
// in base units. It guarantees total_fee > 0 whenever fees are
// configured non-zero.
const MinTradeNotional uint64 = 10_000

// FeeBreakdown is the exact three-way split of a gross trading fee.
type FeeBreakdown struct {
	Total    uint64
	Protocol uint64
	Resolver uint64
	LP       uint64
}

// SplitFees splits the fee on a pre-fee cost into protocol, resolver
// and liquidity-provider shares.
//
// The split is total-first, remainder-last: the total is computed once
// from the summed rate, the protocol and resolver shares are carved
// out proportionally, and the LP share takes the remainder. That makes
// protocol + resolver + lp == total an exact equality, which is
// asserted before returning; a violation is a fatal arithmetic bug.
func SplitFees(cost uint64, pBps, rBps, lpBps uint16) (FeeBreakdown, error) {
	sum := uint64(pBps) + uint64(rBps) + uint64(lpBps)
	if sum > MaxBps {
		return FeeBreakdown{}, NewError(ErrInvalidFeeConfiguration, "fee bps sum %d", sum)
	}
	if sum == 0 {
		return FeeBreakdown{}, nil
	}

	total, err := fixedpoint.MulDiv(cost, sum, MaxBps)
	if err != nil {
		return FeeBreakdown{}, NewError(ErrOverflow, "fee total: %v", err)
	}
	protocol, err := fixedpoint.MulDiv(total, uint64(pBps), sum)
	if err != nil {
		return FeeBreakdown{}, NewError(ErrOverflow, "protocol fee: %v", err)
	}
	resolver, err := fixedpoint.MulDiv(total, uint64(rBps), sum)
	if err != nil {
		return FeeBreakdown{}, NewError(ErrOverflow, "resolver fee: %v", err)
	}
	if protocol+resolver > total {
		return FeeBreakdown{}, CodedError(ErrFeeSplitInvariantViolated)
	}
	fees := FeeBreakdown{
		Total:    total,
		Protocol: protocol,
		Resolver: resolver,
		LP:       total - protocol - resolver,
	}
	if fees.Protocol+fees.Resolver+fees.LP != fees.Total {
		return FeeBreakdown{}, CodedError(ErrFeeSplitInvariantViolated)
	}
	return fees, nil
}
