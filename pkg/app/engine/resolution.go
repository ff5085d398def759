package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
	"github.com/predictr-labs/predictr/pkg/lmsr"
)

// resolveMarket proposes an outcome for an active market. The signer
// becomes the market's resolver; eligibility is gated off-chain by the
// reputation system, not re-checked here.
func (e *Engine) resolveMarket(signer common.Address, p transaction.ResolveMarketPayload, now int64) (core.Event, error) {
	if _, err := e.requireConfig(false); err != nil {
		return core.Event{}, err
	}
	cfg := e.config
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}
	if m.State != core.Active {
		return core.Event{}, core.NewError(core.ErrMarketNotActive, "market is %s", m.State)
	}
	if len(p.IPFSHash) != core.IPFSHashLen {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID,
			"evidence hash must be %d bytes, got %d", core.IPFSHashLen, len(p.IPFSHash))
	}
	if now <= m.ActivatedAt {
		return core.Event{}, core.NewError(core.ErrInvalidTimestamp,
			"clock %d not after activation %d", now, m.ActivatedAt)
	}
	if now < m.ActivatedAt+cfg.MinResolutionDelayS {
		return core.Event{}, core.NewError(core.ErrResolutionTooEarly,
			"resolution opens at %d", m.ActivatedAt+cfg.MinResolutionDelayS)
	}

	next := m.Clone()
	next.Resolver = signer
	if p.Outcome != nil {
		v := *p.Outcome
		next.ProposedOutcome = &v
	} else {
		next.ProposedOutcome = nil
	}
	copy(next.IPFSEvidenceHash[:], p.IPFSHash)
	next.ResolutionProposedAt = now
	if err := next.Transition(core.Resolving); err != nil {
		return core.Event{}, err
	}

	e.markets[addr] = next
	e.persistMarket(addr)

	return core.NewEvent(core.EventMarketResolved, marketIDHex(id), now, core.MarketResolvedData{
		Resolver:     signer.Hex(),
		Outcome:      next.ProposedOutcome,
		EvidenceHash: p.IPFSHash,
	}), nil
}

// initiateDispute contests a proposed resolution inside the dispute
// window. Any signer may open the dispute; the vote decides it.
func (e *Engine) initiateDispute(signer common.Address, p transaction.InitiateDisputePayload, now int64) (core.Event, error) {
	cfg, err := e.requireConfig(false)
	if err != nil {
		return core.Event{}, err
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}
	if !m.CanTransition(core.Disputed) {
		return core.Event{}, core.NewError(core.ErrInvalidStateTransition, "%s -> Disputed", m.State)
	}
	if now <= m.ResolutionProposedAt {
		return core.Event{}, core.NewError(core.ErrInvalidTimestamp,
			"clock %d not after resolution %d", now, m.ResolutionProposedAt)
	}
	if now > m.ResolutionProposedAt+cfg.DisputePeriodS {
		return core.Event{}, core.NewError(core.ErrDisputePeriodExpired,
			"window closed at %d", m.ResolutionProposedAt+cfg.DisputePeriodS)
	}

	next := m.Clone()
	next.DisputeInitiatedAt = now
	if err := next.Transition(core.Disputed); err != nil {
		return core.Event{}, err
	}

	e.markets[addr] = next
	e.persistMarket(addr)

	return core.NewEvent(core.EventDisputeInitiated, marketIDHex(id), now, core.DisputeInitiatedData{
		Initiator: signer.Hex(),
	}), nil
}

// finalizeMarket settles the outcome. Undisputed markets finalize to
// the proposed outcome once the dispute window has lapsed; disputed
// markets finalize from the off-chain-aggregated dispute tally, with a
// successful dispute flipping YES<->NO (INVALID stays INVALID). The
// bounded-loss verifier runs in both branches as the final gate.
func (e *Engine) finalizeMarket(signer common.Address, p transaction.FinalizeMarketPayload, now int64) (core.Event, error) {
	cfg, err := e.requireConfig(false)
	if err != nil {
		return core.Event{}, err
	}
	if !common.IsHexAddress(p.GlobalConfig) || common.HexToAddress(p.GlobalConfig) != ledger.GlobalConfigAddress() {
		return core.Event{}, core.CodedError(core.ErrInvalidGlobalConfig)
	}
	if signer != cfg.BackendAuthority {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "finalization requires backend authority")
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}

	next := m.Clone()
	wasDisputed := false
	switch m.State {
	case core.Resolving:
		if now < m.ResolutionProposedAt+cfg.DisputePeriodS {
			return core.Event{}, core.NewError(core.ErrDisputePeriodNotExpired,
				"window open until %d", m.ResolutionProposedAt+cfg.DisputePeriodS)
		}
		next.FinalOutcome = cloneOutcome(m.ProposedOutcome)

	case core.Disputed:
		wasDisputed = true
		if p.DisputeAgree == nil || p.DisputeDisagree == nil {
			return core.Event{}, core.CodedError(core.ErrMissingDisputeVotes)
		}
		total := uint64(*p.DisputeAgree) + uint64(*p.DisputeDisagree)
		if total == 0 {
			return core.Event{}, core.CodedError(core.ErrMissingDisputeVotes)
		}
		next.DisputeAgree = *p.DisputeAgree
		next.DisputeDisagree = *p.DisputeDisagree
		next.DisputeTotalVotes = *p.DisputeAgree + *p.DisputeDisagree

		rate := uint64(*p.DisputeAgree) * core.MaxBps / total
		if rate >= uint64(cfg.DisputeSuccessThresholdBps) {
			next.FinalOutcome = flipOutcome(m.ProposedOutcome)
		} else {
			next.FinalOutcome = cloneOutcome(m.ProposedOutcome)
		}

	default:
		return core.Event{}, core.NewError(core.ErrInvalidStateTransition, "%s -> Finalized", m.State)
	}

	if err := lmsr.VerifyBoundedLoss(m.SharesYes, m.SharesNo, m.BParameter); err != nil {
		return core.Event{}, mapMathErr(err)
	}

	next.FinalizedAt = now
	if err := next.Transition(core.Finalized); err != nil {
		return core.Event{}, err
	}

	e.markets[addr] = next
	e.persistMarket(addr)

	return core.NewEvent(core.EventMarketFinalized, marketIDHex(id), now, core.MarketFinalizedData{
		FinalOutcome: cloneOutcome(next.FinalOutcome),
		WasDisputed:  wasDisputed,
		Agree:        next.DisputeAgree,
		Disagree:     next.DisputeDisagree,
	}), nil
}

// claimWinnings pays a position's share of the deposit pool. Winning
// shares redeem one base unit per fixed-point share; an INVALID
// outcome refunds the nominal count of both sides. The first claim on
// a decided market also settles the resolver's escrowed reward.
func (e *Engine) claimWinnings(signer common.Address, p transaction.ClaimWinningsPayload, now int64) (core.Event, error) {
	if _, err := e.requireConfig(false); err != nil {
		return core.Event{}, err
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}
	if m.State != core.Finalized {
		return core.Event{}, core.NewError(core.ErrMarketNotFinalized, "market is %s", m.State)
	}
	if m.IsLocked {
		return core.Event{}, core.CodedError(core.ErrReentrant)
	}

	posAddr := ledger.PositionAddress(addr, signer)
	pos, ok := e.positions[posAddr]
	if !ok {
		return core.Event{}, core.NewError(core.ErrNoWinnings, "no position for %s", signer.Hex())
	}
	if err := pos.VerifyOwner(addr, signer); err != nil {
		return core.Event{}, err
	}
	if pos.Claimed {
		return core.Event{}, core.CodedError(core.ErrAlreadyClaimed)
	}

	var winnings uint64
	switch {
	case m.FinalOutcome == nil:
		// INVALID: nominal refund of both sides.
		winnings = pos.SharesYes + pos.SharesNo
	case *m.FinalOutcome:
		winnings = pos.SharesYes
	default:
		winnings = pos.SharesNo
	}
	if winnings == 0 {
		return core.Event{}, core.CodedError(core.ErrNoWinnings)
	}

	// The first successful claim also pays out the resolver reward.
	resolverPay := uint64(0)
	if !m.ResolverFeesPaid && m.AccumulatedResolverFees > 0 && m.FinalOutcome != nil {
		if m.Resolver == (common.Address{}) {
			return core.Event{}, core.CodedError(core.ErrInvalidResolver)
		}
		resolverPay = m.AccumulatedResolverFees
	}

	if err := e.ledger.VerifyDebit(addr, winnings+resolverPay); err != nil {
		return core.Event{}, err
	}

	// Effects. Guard engaged across the outbound transfers.
	locked := m.Clone()
	locked.IsLocked = true
	e.markets[addr] = locked

	if err := e.ledger.Move(addr, signer, winnings); err != nil {
		return core.Event{}, err
	}
	if resolverPay > 0 {
		if err := e.ledger.Move(addr, m.Resolver, resolverPay); err != nil {
			return core.Event{}, err
		}
	}

	nextM := locked.Clone()
	nextM.IsLocked = false
	if nextM.CurrentLiquidity > winnings {
		nextM.CurrentLiquidity -= winnings
	} else {
		nextM.CurrentLiquidity = 0
	}
	if resolverPay > 0 {
		nextM.AccumulatedResolverFees = 0
		nextM.ResolverFeesPaid = true
	}

	nextP := pos.Clone()
	nextP.Claimed = true
	nextP.ClaimedAmount = winnings

	e.markets[addr] = nextM
	e.positions[posAddr] = nextP
	e.persistMarket(addr)
	e.persistPosition(posAddr)
	e.persistWallet(signer)
	if resolverPay > 0 {
		e.persistWallet(m.Resolver)
	}

	return core.NewEvent(core.EventWinningsClaimed, marketIDHex(id), now, core.WinningsClaimedData{
		User:         signer.Hex(),
		Amount:       winnings,
		ResolverPaid: resolverPay,
	}), nil
}

// withdrawLiquidity returns everything above the market account's rent
// floor to the creator after finalization, sweeping the remaining pool
// and the escrowed LP fees in one transfer.
func (e *Engine) withdrawLiquidity(signer common.Address, p transaction.WithdrawLiquidityPayload, now int64) (core.Event, error) {
	if _, err := e.requireConfig(false); err != nil {
		return core.Event{}, err
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}
	if signer != m.Creator {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "withdrawal requires market creator")
	}
	if m.State != core.Finalized {
		return core.Event{}, core.NewError(core.ErrMarketNotFinalized, "market is %s", m.State)
	}
	if m.IsLocked {
		return core.Event{}, core.CodedError(core.ErrReentrant)
	}

	amount := e.ledger.WithdrawableFromData(addr)
	if amount == 0 {
		return core.Event{}, core.CodedError(core.ErrNoLiquidityToWithdraw)
	}
	if err := e.ledger.VerifyDebit(addr, amount); err != nil {
		return core.Event{}, err
	}

	locked := m.Clone()
	locked.IsLocked = true
	e.markets[addr] = locked

	if err := e.ledger.Move(addr, signer, amount); err != nil {
		return core.Event{}, err
	}

	nextM := locked.Clone()
	nextM.IsLocked = false
	nextM.CurrentLiquidity = 0
	nextM.AccumulatedLPFees = 0

	e.markets[addr] = nextM
	e.persistMarket(addr)
	e.persistWallet(signer)

	return core.NewEvent(core.EventLiquidityWithdrawn, marketIDHex(id), now, core.LiquidityWithdrawnData{
		Creator: signer.Hex(),
		Amount:  amount,
	}), nil
}

func cloneOutcome(o *bool) *bool {
	if o == nil {
		return nil
	}
	v := *o
	return &v
}

func flipOutcome(o *bool) *bool {
	if o == nil {
		return nil
	}
	v := !*o
	return &v
}
