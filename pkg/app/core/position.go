package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// Position tracks one user's share balances in one market. It is
// created lazily on the first buy and bound to its (market, user) pair
// for life; the binding is re-checked on every later instruction.
type Position struct {
	Market common.Address
	User   common.Address

	SharesYes uint64
	SharesNo  uint64

	// TotalInvested is the cumulative gross cost of buys, kept for
	// P&L reporting only.
	TotalInvested uint64

	// ClaimedAmount records the payout of the first successful claim.
	ClaimedAmount uint64

	TradesCount uint32
	Claimed     bool
}

// NewPosition binds a fresh position to its market and user.
func NewPosition(market, user common.Address) *Position {
	return &Position{Market: market, User: user}
}

// VerifyOwner checks the immutable (market, user) binding.
func (p *Position) VerifyOwner(market, user common.Address) error {
	if p.User != user {
		return NewError(ErrUnauthorized, "position owned by %s, signer %s", p.User.Hex(), user.Hex())
	}
	if p.Market != market {
		return NewError(ErrUnauthorized, "position bound to market %s", p.Market.Hex())
	}
	return nil
}

// Shares returns the balance for one outcome side.
func (p *Position) Shares(yes bool) uint64 {
	if yes {
		return p.SharesYes
	}
	return p.SharesNo
}

// Clone returns a copy for staged mutation.
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}

// VoteKind distinguishes the two voting rounds of a market.
type VoteKind uint8

const (
	ProposalVote VoteKind = 0
	DisputeVote  VoteKind = 1
)

func (k VoteKind) String() string {
	if k == ProposalVote {
		return "Proposal"
	}
	return "Dispute"
}

// VoteRecord is the on-chain proof-of-vote. Its existence at the
// derived ("vote", market, user, kind) address is what enforces
// one-vote-per-user-per-market-per-kind; it stores the ballot for
// off-chain audit.
type VoteRecord struct {
	Market common.Address
	User   common.Address
	Kind   VoteKind
	Vote   bool
	VotedAt int64
}

// Clone returns a copy for staged mutation.
func (v *VoteRecord) Clone() *VoteRecord {
	cp := *v
	return &cp
}
