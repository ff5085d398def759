package core

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/fixedpoint"
	"github.com/predictr-labs/predictr/pkg/lmsr"
)

// MarketState is the lifecycle state of a market.
type MarketState uint8

const (
	Proposed MarketState = iota
	Approved
	Active
	Resolving
	Disputed
	Finalized
	Cancelled
)

func (s MarketState) String() string {
	switch s {
	case Proposed:
		return "Proposed"
	case Approved:
		return "Approved"
	case Active:
		return "Active"
	case Resolving:
		return "Resolving"
	case Disputed:
		return "Disputed"
	case Finalized:
		return "Finalized"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// allowedTransitions is the full transition relation of the market FSM.
//
//	Proposed  -> Approved  | Cancelled
//	Approved  -> Active    | Cancelled
//	Active    -> Resolving
//	Resolving -> Finalized | Disputed
//	Disputed  -> Finalized
var allowedTransitions = map[MarketState][]MarketState{
	Proposed:  {Approved, Cancelled},
	Approved:  {Active, Cancelled},
	Active:    {Resolving},
	Resolving: {Finalized, Disputed},
	Disputed:  {Finalized},
}

// Market creation floors.
const (
	// MinInitialLiquidity is one whole unit in base units.
	MinInitialLiquidity uint64 = fixedpoint.Precision

	// MinBParameter mirrors the certified LMSR range.
	MinBParameter uint64 = lmsr.MinB
)

// IPFSHashLen is the byte length of a CIDv0 evidence reference.
const IPFSHashLen = 46

// Market is the per-market state account. One exists per 32-byte
// market id at the derived address seeded by "market".
type Market struct {
	MarketID [32]byte
	Creator  common.Address
	State    MarketState

	// LMSR parameters. BParameter and InitialLiquidity are immutable
	// after creation; CurrentLiquidity is the running pool balance.
	BParameter       uint64
	InitialLiquidity uint64
	CurrentLiquidity uint64

	// Cumulative outstanding shares at fixed-point scale, and the
	// running sum of trade notional in base units.
	SharesYes   uint64
	SharesNo    uint64
	TotalVolume uint64

	// Vote tallies, frozen by approve_market / finalize_market.
	ProposalLikes      uint32
	ProposalDislikes   uint32
	ProposalTotalVotes uint32
	DisputeAgree       uint32
	DisputeDisagree    uint32
	DisputeTotalVotes  uint32

	// nil means INVALID.
	ProposedOutcome *bool
	FinalOutcome    *bool

	IPFSEvidenceHash [IPFSHashLen]byte
	Resolver         common.Address

	AccumulatedProtocolFees uint64
	AccumulatedResolverFees uint64
	AccumulatedLPFees       uint64

	CreatedAt            int64
	ApprovedAt           int64
	ActivatedAt          int64
	ResolutionProposedAt int64
	DisputeInitiatedAt   int64
	FinalizedAt          int64

	IsLocked         bool
	ResolverFeesPaid bool
}

// NewMarket creates a market in Proposed state after validating the
// maker parameters.
func NewMarket(id [32]byte, creator common.Address, bParameter, initialLiquidity uint64, now int64) (*Market, error) {
	if id == ([32]byte{}) {
		return nil, NewError(ErrInvalidMarketID, "zero market id")
	}
	if bParameter < MinBParameter || bParameter > lmsr.MaxB {
		return nil, NewError(ErrInvalidBParameter, "b=%d outside [%d, %d]", bParameter, MinBParameter, lmsr.MaxB)
	}
	if initialLiquidity < MinInitialLiquidity {
		return nil, NewError(ErrInsufficientLiquidity, "initial liquidity %d below %d", initialLiquidity, MinInitialLiquidity)
	}
	return &Market{
		MarketID:         id,
		Creator:          creator,
		State:            Proposed,
		BParameter:       bParameter,
		InitialLiquidity: initialLiquidity,
		CreatedAt:        now,
	}, nil
}

// Transition moves the market to next. Every state change in the
// engine goes through here; assigning State directly is a review
// violation.
func (m *Market) Transition(next MarketState) error {
	for _, ok := range allowedTransitions[m.State] {
		if next == ok {
			m.State = next
			return nil
		}
	}
	return NewError(ErrInvalidStateTransition, "%s -> %s", m.State, next)
}

// CanTransition reports whether Transition(next) would succeed.
func (m *Market) CanTransition(next MarketState) bool {
	for _, ok := range allowedTransitions[m.State] {
		if next == ok {
			return true
		}
	}
	return false
}

// PriceYes returns the current YES price at fixed-point scale.
func (m *Market) PriceYes() (uint64, error) {
	return lmsr.PriceYes(m.SharesYes, m.SharesNo, m.BParameter)
}

// PriceNo returns the current NO price at fixed-point scale.
func (m *Market) PriceNo() (uint64, error) {
	return lmsr.PriceNo(m.SharesYes, m.SharesNo, m.BParameter)
}

// Clone returns a deep copy for staged mutation.
func (m *Market) Clone() *Market {
	cp := *m
	if m.ProposedOutcome != nil {
		v := *m.ProposedOutcome
		cp.ProposedOutcome = &v
	}
	if m.FinalOutcome != nil {
		v := *m.FinalOutcome
		cp.FinalOutcome = &v
	}
	return &cp
}
