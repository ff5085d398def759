package api

import (
	"encoding/hex"

	"github.com/predictr-labs/predictr/pkg/app/core"
)

// marketView is the JSON shape of a market for API consumers.
type marketView struct {
	MarketID         string `json:"market_id"`
	Creator          string `json:"creator"`
	State            string `json:"state"`
	BParameter       uint64 `json:"b_parameter"`
	InitialLiquidity uint64 `json:"initial_liquidity"`
	CurrentLiquidity uint64 `json:"current_liquidity"`
	SharesYes        uint64 `json:"shares_yes"`
	SharesNo         uint64 `json:"shares_no"`
	TotalVolume      uint64 `json:"total_volume"`
	PriceYes         uint64 `json:"price_yes"`
	PriceNo          uint64 `json:"price_no"`

	ProposalLikes      uint32 `json:"proposal_likes"`
	ProposalDislikes   uint32 `json:"proposal_dislikes"`
	ProposalTotalVotes uint32 `json:"proposal_total_votes"`
	DisputeAgree       uint32 `json:"dispute_agree"`
	DisputeDisagree    uint32 `json:"dispute_disagree"`
	DisputeTotalVotes  uint32 `json:"dispute_total_votes"`

	ProposedOutcome *bool  `json:"proposed_outcome"`
	FinalOutcome    *bool  `json:"final_outcome"`
	Resolver        string `json:"resolver,omitempty"`
	EvidenceHash    string `json:"evidence_hash,omitempty"`

	AccumulatedProtocolFees uint64 `json:"accumulated_protocol_fees"`
	AccumulatedResolverFees uint64 `json:"accumulated_resolver_fees"`
	AccumulatedLPFees       uint64 `json:"accumulated_lp_fees"`

	CreatedAt            int64 `json:"created_at"`
	ApprovedAt           int64 `json:"approved_at,omitempty"`
	ActivatedAt          int64 `json:"activated_at,omitempty"`
	ResolutionProposedAt int64 `json:"resolution_proposed_at,omitempty"`
	DisputeInitiatedAt   int64 `json:"dispute_initiated_at,omitempty"`
	FinalizedAt          int64 `json:"finalized_at,omitempty"`
}

func newMarketView(m *core.Market) marketView {
	v := marketView{
		MarketID:         hex.EncodeToString(m.MarketID[:]),
		Creator:          m.Creator.Hex(),
		State:            m.State.String(),
		BParameter:       m.BParameter,
		InitialLiquidity: m.InitialLiquidity,
		CurrentLiquidity: m.CurrentLiquidity,
		SharesYes:        m.SharesYes,
		SharesNo:         m.SharesNo,
		TotalVolume:      m.TotalVolume,

		ProposalLikes:      m.ProposalLikes,
		ProposalDislikes:   m.ProposalDislikes,
		ProposalTotalVotes: m.ProposalTotalVotes,
		DisputeAgree:       m.DisputeAgree,
		DisputeDisagree:    m.DisputeDisagree,
		DisputeTotalVotes:  m.DisputeTotalVotes,

		ProposedOutcome: m.ProposedOutcome,
		FinalOutcome:    m.FinalOutcome,

		AccumulatedProtocolFees: m.AccumulatedProtocolFees,
		AccumulatedResolverFees: m.AccumulatedResolverFees,
		AccumulatedLPFees:       m.AccumulatedLPFees,

		CreatedAt:            m.CreatedAt,
		ApprovedAt:           m.ApprovedAt,
		ActivatedAt:          m.ActivatedAt,
		ResolutionProposedAt: m.ResolutionProposedAt,
		DisputeInitiatedAt:   m.DisputeInitiatedAt,
		FinalizedAt:          m.FinalizedAt,
	}
	if m.State == core.Active {
		if py, err := m.PriceYes(); err == nil {
			v.PriceYes = py
		}
		if pn, err := m.PriceNo(); err == nil {
			v.PriceNo = pn
		}
	}
	if m.Resolver != ([20]byte{}) {
		v.Resolver = m.Resolver.Hex()
	}
	if m.IPFSEvidenceHash != ([core.IPFSHashLen]byte{}) {
		v.EvidenceHash = string(m.IPFSEvidenceHash[:])
	}
	return v
}

// positionView is the JSON shape of a user position.
type positionView struct {
	Market        string `json:"market"`
	User          string `json:"user"`
	SharesYes     uint64 `json:"shares_yes"`
	SharesNo      uint64 `json:"shares_no"`
	TotalInvested uint64 `json:"total_invested"`
	ClaimedAmount uint64 `json:"claimed_amount"`
	TradesCount   uint32 `json:"trades_count"`
	Claimed       bool   `json:"claimed"`
}

func newPositionView(p *core.Position) positionView {
	return positionView{
		Market:        p.Market.Hex(),
		User:          p.User.Hex(),
		SharesYes:     p.SharesYes,
		SharesNo:      p.SharesNo,
		TotalInvested: p.TotalInvested,
		ClaimedAmount: p.ClaimedAmount,
		TradesCount:   p.TradesCount,
		Claimed:       p.Claimed,
	}
}

// configView is the JSON shape of the global config.
type configView struct {
	Admin                        string `json:"admin"`
	BackendAuthority             string `json:"backend_authority"`
	ProtocolFeeWallet            string `json:"protocol_fee_wallet"`
	ProtocolFeeBps               uint16 `json:"protocol_fee_bps"`
	ResolverRewardBps            uint16 `json:"resolver_reward_bps"`
	LiquidityProviderFeeBps      uint16 `json:"liquidity_provider_fee_bps"`
	ProposalApprovalThresholdBps uint16 `json:"proposal_approval_threshold_bps"`
	DisputeSuccessThresholdBps   uint16 `json:"dispute_success_threshold_bps"`
	MinResolutionDelayS          int64  `json:"min_resolution_delay_s"`
	DisputePeriodS               int64  `json:"dispute_period_s"`
	IsPaused                     bool   `json:"is_paused"`
}

func newConfigView(cfg *core.GlobalConfig) configView {
	return configView{
		Admin:                        cfg.Admin.Hex(),
		BackendAuthority:             cfg.BackendAuthority.Hex(),
		ProtocolFeeWallet:            cfg.ProtocolFeeWallet.Hex(),
		ProtocolFeeBps:               cfg.ProtocolFeeBps,
		ResolverRewardBps:            cfg.ResolverRewardBps,
		LiquidityProviderFeeBps:      cfg.LiquidityProviderFeeBps,
		ProposalApprovalThresholdBps: cfg.ProposalApprovalThresholdBps,
		DisputeSuccessThresholdBps:   cfg.DisputeSuccessThresholdBps,
		MinResolutionDelayS:          cfg.MinResolutionDelayS,
		DisputePeriodS:               cfg.DisputePeriodS,
		IsPaused:                     cfg.IsPaused,
	}
}
