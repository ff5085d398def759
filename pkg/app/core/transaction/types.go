// Package transaction defines the signed instruction envelope clients
// submit to the engine and its signature verification.
package transaction

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/crypto"
)

// Discriminator selects one of the engine's instruction handlers.
// Values are stable wire identifiers and never renumbered.
type Discriminator uint8

const (
	InitializeGlobalConfig Discriminator = iota
	UpdateGlobalConfig
	EmergencyPause
	CancelMarket
	ProposeMarket
	SubmitProposalVote
	ApproveMarket
	ActivateMarket
	BuyShares
	SellShares
	ResolveMarket
	InitiateDispute
	SubmitDisputeVote
	FinalizeMarket
	ClaimWinnings
	WithdrawLiquidity
	Deposit
	CloseVoteRecord

	discriminatorCount
)

func (d Discriminator) String() string {
	names := [...]string{
		"initialize_global_config", "update_global_config", "emergency_pause",
		"cancel_market", "propose_market", "submit_proposal_vote",
		"approve_market", "activate_market", "buy_shares", "sell_shares",
		"resolve_market", "initiate_dispute", "submit_dispute_vote",
		"finalize_market", "claim_winnings", "withdraw_liquidity",
		"deposit", "close_vote_record",
	}
	if int(d) < len(names) {
		return names[d]
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// SignedInstruction is the envelope clients assemble and sign. The
// signature covers the discriminator, the exact payload bytes, the
// declared signer, and the replay nonce.
type SignedInstruction struct {
	Discriminator Discriminator   `json:"discriminator"`
	Payload       json.RawMessage `json:"payload"`
	Signer        string          `json:"signer"`
	Nonce         uint64          `json:"nonce"`
	Signature     string          `json:"signature"`
}

// Digest returns the 32-byte keccak digest the signature covers.
func (si *SignedInstruction) Digest() []byte {
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], si.Nonce)
	signer := common.HexToAddress(si.Signer)
	return crypto.Keccak256(
		[]byte{byte(si.Discriminator)},
		si.Payload,
		signer[:],
		nonce[:],
	)
}

// Serialize renders the envelope as JSON.
func (si *SignedInstruction) Serialize() ([]byte, error) {
	return json.Marshal(si)
}

// Parse decodes and structurally validates an envelope.
func Parse(data []byte) (*SignedInstruction, error) {
	var si SignedInstruction
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instruction: %w", err)
	}
	if err := si.Validate(); err != nil {
		return nil, err
	}
	return &si, nil
}

// Validate performs structural checks before signature verification.
func (si *SignedInstruction) Validate() error {
	if si.Discriminator >= discriminatorCount {
		return fmt.Errorf("unknown discriminator %d", si.Discriminator)
	}
	if len(si.Payload) == 0 {
		return fmt.Errorf("missing payload")
	}
	if !common.IsHexAddress(si.Signer) {
		return fmt.Errorf("invalid signer address %q", si.Signer)
	}
	if si.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	return nil
}

// DecodeSignature parses a 0x-prefixed 65-byte hex signature.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	return sig, nil
}

// Instruction payloads. Addresses travel as 0x hex strings; market ids
// as 64 hex chars; optional fields as pointers.

type InitializeGlobalConfigPayload struct {
	BackendAuthority  string `json:"backend_authority"`
	ProtocolFeeWallet string `json:"protocol_fee_wallet"`
	ProtocolFeeBps    uint16 `json:"protocol_fee_bps"`
	ResolverRewardBps uint16 `json:"resolver_reward_bps"`
	LPFeeBps          uint16 `json:"liquidity_provider_fee_bps"`
}

type UpdateGlobalConfigPayload struct {
	ProtocolFeeBps       *uint16 `json:"protocol_fee_bps,omitempty"`
	ResolverRewardBps    *uint16 `json:"resolver_reward_bps,omitempty"`
	LPFeeBps             *uint16 `json:"liquidity_provider_fee_bps,omitempty"`
	ApprovalThresholdBps *uint16 `json:"proposal_approval_threshold_bps,omitempty"`
	DisputeThresholdBps  *uint16 `json:"dispute_success_threshold_bps,omitempty"`
	MinResolutionDelayS  *int64  `json:"min_resolution_delay_s,omitempty"`
	DisputePeriodS       *int64  `json:"dispute_period_s,omitempty"`
	ProtocolFeeWallet    *string `json:"protocol_fee_wallet,omitempty"`
	BackendAuthority     *string `json:"backend_authority,omitempty"`
}

type EmergencyPausePayload struct {
	Paused bool `json:"paused"`
}

type CancelMarketPayload struct {
	MarketID string `json:"market_id"`
}

type ProposeMarketPayload struct {
	MarketID         string `json:"market_id"`
	BParameter       uint64 `json:"b_parameter"`
	InitialLiquidity uint64 `json:"initial_liquidity"`
}

type SubmitProposalVotePayload struct {
	MarketID string `json:"market_id"`
	Vote     bool   `json:"vote"`
}

type ApproveMarketPayload struct {
	MarketID      string `json:"market_id"`
	GlobalConfig  string `json:"global_config"`
	FinalLikes    uint32 `json:"final_likes"`
	FinalDislikes uint32 `json:"final_dislikes"`
}

type ActivateMarketPayload struct {
	MarketID string `json:"market_id"`
}

type BuySharesPayload struct {
	MarketID   string `json:"market_id"`
	OutcomeYes bool   `json:"outcome_yes"`
	Shares     uint64 `json:"shares"`
	MaxCost    uint64 `json:"max_cost"`
}

type SellSharesPayload struct {
	MarketID    string `json:"market_id"`
	OutcomeYes  bool   `json:"outcome_yes"`
	Shares      uint64 `json:"shares"`
	MinProceeds uint64 `json:"min_proceeds"`
}

type ResolveMarketPayload struct {
	MarketID string `json:"market_id"`
	Outcome  *bool  `json:"outcome"` // nil = INVALID
	IPFSHash string `json:"ipfs_hash"`
}

type InitiateDisputePayload struct {
	MarketID string `json:"market_id"`
}

type SubmitDisputeVotePayload struct {
	MarketID string `json:"market_id"`
	Vote     bool   `json:"vote"`
}

type FinalizeMarketPayload struct {
	MarketID        string  `json:"market_id"`
	GlobalConfig    string  `json:"global_config"`
	DisputeAgree    *uint32 `json:"dispute_agree,omitempty"`
	DisputeDisagree *uint32 `json:"dispute_disagree,omitempty"`
}

type ClaimWinningsPayload struct {
	MarketID string `json:"market_id"`
}

type WithdrawLiquidityPayload struct {
	MarketID string `json:"market_id"`
}

type DepositPayload struct {
	Amount uint64 `json:"amount"`
}

type CloseVoteRecordPayload struct {
	MarketID string `json:"market_id"`
	Kind     uint8  `json:"kind"`
}

// ParseMarketID decodes a 64-hex-char market id.
func ParseMarketID(s string) ([32]byte, error) {
	var id [32]byte
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid market id hex: %w", err)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("market id must be 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
