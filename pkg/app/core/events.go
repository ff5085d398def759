package core

import (
	"github.com/google/uuid"
)

// EventType names one of the structured records emitted on every
// successful instruction. The set is closed; indexers switch on it.
type EventType string

const (
	EventConfigInitialized     EventType = "ConfigInitialized"
	EventConfigUpdated         EventType = "ConfigUpdated"
	EventEmergencyPauseToggled EventType = "EmergencyPauseToggled"
	EventMarketCancelled       EventType = "MarketCancelled"
	EventMarketProposed        EventType = "MarketProposed"
	EventProposalVoteSubmitted EventType = "ProposalVoteSubmitted"
	EventMarketApproved        EventType = "MarketApproved"
	EventMarketActivated       EventType = "MarketActivated"
	EventSharesBought          EventType = "SharesBought"
	EventSharesSold            EventType = "SharesSold"
	EventMarketResolved        EventType = "MarketResolved"
	EventDisputeInitiated      EventType = "DisputeInitiated"
	EventDisputeVoteSubmitted  EventType = "DisputeVoteSubmitted"
	EventMarketFinalized       EventType = "MarketFinalized"
	EventWinningsClaimed       EventType = "WinningsClaimed"
	EventLiquidityWithdrawn    EventType = "LiquidityWithdrawn"
	EventDeposited             EventType = "Deposited"
	EventVoteRecordClosed      EventType = "VoteRecordClosed"
)

// Event is the envelope pushed to the event log and the stream hub.
// MarketID is the hex market id, or empty for global-config events.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	MarketID  string    `json:"market_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent wraps a payload into an envelope with a fresh identifier.
func NewEvent(t EventType, marketID string, ts int64, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		MarketID:  marketID,
		Timestamp: ts,
		Data:      data,
	}
}

// Typed payloads, one per event. Fields carry the post-instruction
// values of everything the instruction mutated.

type ConfigInitializedData struct {
	Admin             string `json:"admin"`
	BackendAuthority  string `json:"backend_authority"`
	ProtocolFeeWallet string `json:"protocol_fee_wallet"`
	ProtocolFeeBps    uint16 `json:"protocol_fee_bps"`
	ResolverRewardBps uint16 `json:"resolver_reward_bps"`
	LPFeeBps          uint16 `json:"liquidity_provider_fee_bps"`
}

type ConfigUpdatedData struct {
	ProtocolFeeBps       uint16 `json:"protocol_fee_bps"`
	ResolverRewardBps    uint16 `json:"resolver_reward_bps"`
	LPFeeBps             uint16 `json:"liquidity_provider_fee_bps"`
	ApprovalThresholdBps uint16 `json:"proposal_approval_threshold_bps"`
	DisputeThresholdBps  uint16 `json:"dispute_success_threshold_bps"`
	MinResolutionDelayS  int64  `json:"min_resolution_delay_s"`
	DisputePeriodS       int64  `json:"dispute_period_s"`
}

type EmergencyPauseToggledData struct {
	Paused bool `json:"paused"`
}

type MarketCancelledData struct {
	PriorState string `json:"prior_state"`
}

type MarketProposedData struct {
	Creator          string `json:"creator"`
	BParameter       uint64 `json:"b_parameter"`
	InitialLiquidity uint64 `json:"initial_liquidity"`
}

type ProposalVoteSubmittedData struct {
	Voter string `json:"voter"`
	Vote  bool   `json:"vote"`
}

type MarketApprovedData struct {
	Likes           uint32 `json:"likes"`
	Dislikes        uint32 `json:"dislikes"`
	ApprovalRateBps uint32 `json:"approval_rate_bps"`
}

type MarketActivatedData struct {
	InitialLiquidity uint64 `json:"initial_liquidity"`
}

type SharesBoughtData struct {
	Buyer       string `json:"buyer"`
	OutcomeYes  bool   `json:"outcome_yes"`
	Shares      uint64 `json:"shares"`
	Cost        uint64 `json:"cost"`
	TotalFee    uint64 `json:"total_fee"`
	TotalCost   uint64 `json:"total_cost"`
	PriceYes    uint64 `json:"price_yes"`
	TotalVolume uint64 `json:"total_volume"`
}

type SharesSoldData struct {
	Seller      string `json:"seller"`
	OutcomeYes  bool   `json:"outcome_yes"`
	Shares      uint64 `json:"shares"`
	Proceeds    uint64 `json:"proceeds"`
	TotalFee    uint64 `json:"total_fee"`
	NetProceeds uint64 `json:"net_proceeds"`
	PriceYes    uint64 `json:"price_yes"`
}

type MarketResolvedData struct {
	Resolver     string `json:"resolver"`
	Outcome      *bool  `json:"outcome"`
	EvidenceHash string `json:"evidence_hash"`
}

type DisputeInitiatedData struct {
	Initiator string `json:"initiator"`
}

type DisputeVoteSubmittedData struct {
	Voter string `json:"voter"`
	Vote  bool   `json:"vote"`
}

type MarketFinalizedData struct {
	FinalOutcome *bool `json:"final_outcome"`
	WasDisputed  bool  `json:"was_disputed"`
	Agree        uint32 `json:"agree"`
	Disagree     uint32 `json:"disagree"`
}

type WinningsClaimedData struct {
	User          string `json:"user"`
	Amount        uint64 `json:"amount"`
	ResolverPaid  uint64 `json:"resolver_paid"`
}

type LiquidityWithdrawnData struct {
	Creator string `json:"creator"`
	Amount  uint64 `json:"amount"`
}

type DepositedData struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type VoteRecordClosedData struct {
	Voter string `json:"voter"`
	Kind  string `json:"kind"`
}
