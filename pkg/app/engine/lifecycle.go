package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
)

// proposeMarket creates a market in Proposed state. The proposer is
// the creator and funds the market account's rent buffer; the initial
// liquidity itself is only taken at activation.
func (e *Engine) proposeMarket(signer common.Address, p transaction.ProposeMarketPayload, now int64) (core.Event, error) {
	if _, err := e.requireConfig(false); err != nil {
		return core.Event{}, err
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr := ledger.MarketAddress(id)
	if _, exists := e.markets[addr]; exists {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "market %x already exists", id)
	}

	m, err := core.NewMarket(id, signer, p.BParameter, p.InitialLiquidity, now)
	if err != nil {
		return core.Event{}, err
	}

	rent := ledger.RentFloor(core.MarketSize)
	if err := e.ledger.VerifyDebit(signer, rent); err != nil {
		return core.Event{}, err
	}

	e.ledger.CreateDataAccount(addr, core.MarketSize)
	if err := e.ledger.Move(signer, addr, rent); err != nil {
		return core.Event{}, err
	}
	e.markets[addr] = m
	e.persistMarket(addr)
	e.persistWallet(signer)

	return core.NewEvent(core.EventMarketProposed, marketIDHex(id), now, core.MarketProposedData{
		Creator:          signer.Hex(),
		BParameter:       m.BParameter,
		InitialLiquidity: m.InitialLiquidity,
	}), nil
}

// submitProposalVote records one community ballot on a proposed
// market. The vote record's existence at its derived address is the
// dedup: a second vote of the same kind fails on creation.
func (e *Engine) submitProposalVote(signer common.Address, p transaction.SubmitProposalVotePayload, now int64) (core.Event, error) {
	return e.submitVote(signer, p.MarketID, core.ProposalVote, p.Vote, now)
}

// submitDisputeVote records one ballot on a disputed resolution.
func (e *Engine) submitDisputeVote(signer common.Address, p transaction.SubmitDisputeVotePayload, now int64) (core.Event, error) {
	return e.submitVote(signer, p.MarketID, core.DisputeVote, p.Vote, now)
}

func (e *Engine) submitVote(signer common.Address, marketID string, kind core.VoteKind, vote bool, now int64) (core.Event, error) {
	if _, err := e.requireConfig(false); err != nil {
		return core.Event{}, err
	}
	id, err := transaction.ParseMarketID(marketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}

	wantState := core.Proposed
	if kind == core.DisputeVote {
		wantState = core.Disputed
	}
	if m.State != wantState {
		return core.Event{}, core.NewError(core.ErrInvalidStateForVoting,
			"%s votes need %s market, got %s", kind, wantState, m.State)
	}

	voteAddr := ledger.VoteAddress(addr, signer, byte(kind))
	if _, exists := e.votes[voteAddr]; exists {
		return core.Event{}, core.CodedError(core.ErrAlreadyVoted)
	}

	rent := ledger.RentFloor(core.VoteRecordSize)
	if err := e.ledger.VerifyDebit(signer, rent); err != nil {
		return core.Event{}, err
	}

	e.ledger.CreateDataAccount(voteAddr, core.VoteRecordSize)
	if err := e.ledger.Move(signer, voteAddr, rent); err != nil {
		return core.Event{}, err
	}

	record := &core.VoteRecord{
		Market:  addr,
		User:    signer,
		Kind:    kind,
		Vote:    vote,
		VotedAt: now,
	}
	next := m.Clone()
	if kind == core.ProposalVote {
		next.ProposalTotalVotes++
		if vote {
			next.ProposalLikes++
		} else {
			next.ProposalDislikes++
		}
	} else {
		next.DisputeTotalVotes++
		if vote {
			next.DisputeAgree++
		} else {
			next.DisputeDisagree++
		}
	}

	e.votes[voteAddr] = record
	e.markets[addr] = next
	e.persistVote(voteAddr)
	e.persistMarket(addr)
	e.persistWallet(signer)

	if kind == core.ProposalVote {
		return core.NewEvent(core.EventProposalVoteSubmitted, marketIDHex(id), now, core.ProposalVoteSubmittedData{
			Voter: signer.Hex(),
			Vote:  vote,
		}), nil
	}
	return core.NewEvent(core.EventDisputeVoteSubmitted, marketIDHex(id), now, core.DisputeVoteSubmittedData{
		Voter: signer.Hex(),
		Vote:  vote,
	}), nil
}

// approveMarket freezes the off-chain-aggregated proposal tally and
// moves the market to Approved. Backend-only, and the caller must name
// the canonical config account: a look-alike at another derivation is
// rejected before anything else is read from it.
func (e *Engine) approveMarket(signer common.Address, p transaction.ApproveMarketPayload, now int64) (core.Event, error) {
	cfg, err := e.requireConfig(false)
	if err != nil {
		return core.Event{}, err
	}
	if !common.IsHexAddress(p.GlobalConfig) || common.HexToAddress(p.GlobalConfig) != ledger.GlobalConfigAddress() {
		return core.Event{}, core.CodedError(core.ErrInvalidGlobalConfig)
	}
	if signer != cfg.BackendAuthority {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "approval requires backend authority")
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}
	if !m.CanTransition(core.Approved) {
		return core.Event{}, core.NewError(core.ErrInvalidStateTransition, "%s -> Approved", m.State)
	}

	total := uint64(p.FinalLikes) + uint64(p.FinalDislikes)
	if total == 0 {
		return core.Event{}, core.NewError(core.ErrInsufficientApprovalVotes, "no votes")
	}
	rate := uint64(p.FinalLikes) * core.MaxBps / total
	if rate < uint64(cfg.ProposalApprovalThresholdBps) {
		return core.Event{}, core.NewError(core.ErrInsufficientApprovalVotes,
			"approval rate %d bps below threshold %d", rate, cfg.ProposalApprovalThresholdBps)
	}

	next := m.Clone()
	next.ProposalLikes = p.FinalLikes
	next.ProposalDislikes = p.FinalDislikes
	next.ProposalTotalVotes = p.FinalLikes + p.FinalDislikes
	next.ApprovedAt = now
	if err := next.Transition(core.Approved); err != nil {
		return core.Event{}, err
	}

	e.markets[addr] = next
	e.persistMarket(addr)

	return core.NewEvent(core.EventMarketApproved, marketIDHex(id), now, core.MarketApprovedData{
		Likes:           p.FinalLikes,
		Dislikes:        p.FinalDislikes,
		ApprovalRateBps: uint32(rate),
	}), nil
}

// activateMarket seeds the maker pool. The creator's wallet is debited
// the initial liquidity and trading opens.
func (e *Engine) activateMarket(signer common.Address, p transaction.ActivateMarketPayload, now int64) (core.Event, error) {
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
		return core.Event{}, core.NewError(core.ErrUnauthorized, "activation requires market creator")
	}
	if !m.CanTransition(core.Active) {
		return core.Event{}, core.NewError(core.ErrInvalidStateTransition, "%s -> Active", m.State)
	}
	if err := e.ledger.VerifyDebit(signer, m.InitialLiquidity); err != nil {
		return core.Event{}, err
	}

	if err := e.ledger.Move(signer, addr, m.InitialLiquidity); err != nil {
		return core.Event{}, err
	}
	next := m.Clone()
	next.CurrentLiquidity = m.InitialLiquidity
	next.SharesYes = 0
	next.SharesNo = 0
	next.ActivatedAt = now
	if err := next.Transition(core.Active); err != nil {
		return core.Event{}, err
	}

	e.markets[addr] = next
	e.persistMarket(addr)
	e.persistWallet(signer)

	return core.NewEvent(core.EventMarketActivated, marketIDHex(id), now, core.MarketActivatedData{
		InitialLiquidity: m.InitialLiquidity,
	}), nil
}

// deposit credits a wallet from the external bridge. Devnet stub: the
// bridge attestation check lives outside the engine. Deposits work
// before config initialization so the initializer can fund itself,
// but respect the pause switch once a config exists.
func (e *Engine) deposit(signer common.Address, p transaction.DepositPayload, now int64) (core.Event, error) {
	if e.config != nil && e.config.IsPaused {
		return core.Event{}, core.CodedError(core.ErrProtocolPaused)
	}
	if p.Amount == 0 {
		return core.Event{}, core.NewError(core.ErrInsufficientFunds, "zero deposit")
	}
	if err := e.ledger.Credit(signer, p.Amount); err != nil {
		return core.Event{}, err
	}
	e.persistWallet(signer)

	return core.NewEvent(core.EventDeposited, "", now, core.DepositedData{
		Account: signer.Hex(),
		Amount:  p.Amount,
	}), nil
}

// closeVoteRecord reclaims a vote record's rent once the market it
// voted on has run its course. The record is deleted; the escrowed
// lamports return to the voter.
func (e *Engine) closeVoteRecord(signer common.Address, p transaction.CloseVoteRecordPayload, now int64) (core.Event, error) {
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
	if m.State != core.Finalized && m.State != core.Cancelled {
		return core.Event{}, core.NewError(core.ErrInvalidStateForVoting,
			"vote records close after Finalized or Cancelled, market is %s", m.State)
	}
	if p.Kind > uint8(core.DisputeVote) {
		return core.Event{}, core.NewError(core.ErrInvalidStateForVoting, "unknown vote kind %d", p.Kind)
	}

	voteAddr := ledger.VoteAddress(addr, signer, p.Kind)
	record, ok := e.votes[voteAddr]
	if !ok {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "no vote record for %s", signer.Hex())
	}
	if record.User != signer {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "vote record owned by %s", record.User.Hex())
	}

	refund := e.ledger.Balance(voteAddr)
	// Closing empties the account entirely, so the move bypasses the
	// data-account floor by clearing the size first.
	if acc := e.ledger.Get(voteAddr); acc != nil {
		acc.DataSize = 0
	}
	if err := e.ledger.Move(voteAddr, signer, refund); err != nil {
		return core.Event{}, err
	}

	delete(e.votes, voteAddr)
	if e.store != nil {
		if err := e.store.DeleteVote(voteAddr); err != nil {
			e.log.Warnw("vote_delete_failed", "addr", voteAddr.Hex(), "err", err)
		}
	}
	e.persistWallet(signer)
	e.persistWallet(voteAddr)

	return core.NewEvent(core.EventVoteRecordClosed, marketIDHex(id), now, core.VoteRecordClosedData{
		Voter: signer.Hex(),
		Kind:  record.Kind.String(),
	}), nil
}
