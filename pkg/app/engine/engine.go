// Package engine implements the prediction-market instruction
// handlers. An Engine owns the ledger and the market/position/vote
// account maps, verifies signed instruction envelopes, dispatches on
// the numeric discriminator, and emits one structured event per
// successful mutation.
//
// Handlers follow checks-effects-interactions: every fallible check,
// including ledger debit verification, runs before the first mutation,
// and mutations are staged on cloned accounts that are written back
// only on success. A failed instruction therefore leaves no trace.
package engine

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
	"github.com/predictr-labs/predictr/pkg/fixedpoint"
	"github.com/predictr-labs/predictr/pkg/lmsr"
	"github.com/predictr-labs/predictr/pkg/util"
)

// Store is the persistence surface the engine writes through. A nil
// store runs the engine purely in memory (tests, simulations).
type Store interface {
	SaveConfig(cfg *core.GlobalConfig) error
	SaveMarket(addr common.Address, m *core.Market) error
	SavePosition(addr common.Address, p *core.Position) error
	SaveVote(addr common.Address, v *core.VoteRecord) error
	DeleteVote(addr common.Address) error
	SaveLedgerAccount(acc ledger.Account) error
	AppendEvent(ev core.Event) error
}

// EventSink receives every emitted event (the WebSocket hub hooks in
// here, like the teacher's trade broadcaster).
type EventSink func(core.Event)

type Engine struct {
	mu sync.Mutex

	ledger   *ledger.Ledger
	clock    util.Clock
	log      *zap.SugaredLogger
	verifier *transaction.Verifier
	store    Store

	config    *core.GlobalConfig
	markets   map[common.Address]*core.Market
	positions map[common.Address]*core.Position
	votes     map[common.Address]*core.VoteRecord

	// OnEvent, when set, is called synchronously after each commit.
	OnEvent EventSink
}

// Options configures a new Engine. Zero values fall back to an
// in-memory ledger, the real clock, and a no-op logger.
type Options struct {
	Store  Store
	Clock  util.Clock
	Logger *zap.SugaredLogger
}

func New(opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = util.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		ledger:    ledger.New(),
		clock:     clk,
		log:       logger,
		verifier:  transaction.NewVerifier(),
		store:     opts.Store,
		markets:   make(map[common.Address]*core.Market),
		positions: make(map[common.Address]*core.Position),
		votes:     make(map[common.Address]*core.VoteRecord),
	}
}

// Ledger exposes the account table (read paths and node wiring).
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Apply verifies and executes one signed instruction envelope.
// On success the emitted event is returned; on failure the engine
// state is untouched and the error carries the stable code.
func (e *Engine) Apply(raw []byte) (core.Event, error) {
	si, err := transaction.Parse(raw)
	if err != nil {
		return core.Event{}, err
	}
	return e.ApplyInstruction(si)
}

// ApplyInstruction executes an already-parsed envelope.
func (e *Engine) ApplyInstruction(si *transaction.SignedInstruction) (core.Event, error) {
	signer, err := e.verifier.Verify(si)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "%v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Replay protection: the nonce must exceed the signer's last
	// accepted nonce. It is consumed only on success, so a failed
	// instruction can be corrected and resubmitted as-is.
	if si.Nonce <= e.ledger.Nonce(signer) {
		return core.Event{}, core.NewError(core.ErrUnauthorized,
			"nonce %d already used by %s", si.Nonce, signer.Hex())
	}

	now := e.clock.Now().Unix()
	ev, err := e.dispatch(si, signer, now)
	if err != nil {
		e.log.Infow("instruction_rejected",
			"instruction", si.Discriminator.String(),
			"signer", signer.Hex(),
			"err", err)
		return core.Event{}, err
	}

	if err := e.ledger.NextNonce(signer, si.Nonce); err != nil {
		// Unreachable: checked above under the same lock.
		return core.Event{}, err
	}
	e.persistWallet(signer)
	e.emit(ev)
	e.log.Infow("instruction_applied",
		"instruction", si.Discriminator.String(),
		"signer", signer.Hex(),
		"event", string(ev.Type))
	return ev, nil
}

func (e *Engine) dispatch(si *transaction.SignedInstruction, signer common.Address, now int64) (core.Event, error) {
	switch si.Discriminator {
	case transaction.InitializeGlobalConfig:
		var p transaction.InitializeGlobalConfigPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.initializeGlobalConfig(signer, p, now)
	case transaction.UpdateGlobalConfig:
		var p transaction.UpdateGlobalConfigPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.updateGlobalConfig(signer, p, now)
	case transaction.EmergencyPause:
		var p transaction.EmergencyPausePayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.emergencyPause(signer, p, now)
	case transaction.CancelMarket:
		var p transaction.CancelMarketPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.cancelMarket(signer, p, now)
	case transaction.ProposeMarket:
		var p transaction.ProposeMarketPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.proposeMarket(signer, p, now)
	case transaction.SubmitProposalVote:
		var p transaction.SubmitProposalVotePayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.submitProposalVote(signer, p, now)
	case transaction.ApproveMarket:
		var p transaction.ApproveMarketPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.approveMarket(signer, p, now)
	case transaction.ActivateMarket:
		var p transaction.ActivateMarketPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.activateMarket(signer, p, now)
	case transaction.BuyShares:
		var p transaction.BuySharesPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.buyShares(signer, p, now)
	case transaction.SellShares:
		var p transaction.SellSharesPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.sellShares(signer, p, now)
	case transaction.ResolveMarket:
		var p transaction.ResolveMarketPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.resolveMarket(signer, p, now)
	case transaction.InitiateDispute:
		var p transaction.InitiateDisputePayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.initiateDispute(signer, p, now)
	case transaction.SubmitDisputeVote:
		var p transaction.SubmitDisputeVotePayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.submitDisputeVote(signer, p, now)
	case transaction.FinalizeMarket:
		var p transaction.FinalizeMarketPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.finalizeMarket(signer, p, now)
	case transaction.ClaimWinnings:
		var p transaction.ClaimWinningsPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.claimWinnings(signer, p, now)
	case transaction.WithdrawLiquidity:
		var p transaction.WithdrawLiquidityPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.withdrawLiquidity(signer, p, now)
	case transaction.Deposit:
		var p transaction.DepositPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.deposit(signer, p, now)
	case transaction.CloseVoteRecord:
		var p transaction.CloseVoteRecordPayload
		if err := json.Unmarshal(si.Payload, &p); err != nil {
			return core.Event{}, fmt.Errorf("bad payload: %w", err)
		}
		return e.closeVoteRecord(signer, p, now)
	default:
		return core.Event{}, fmt.Errorf("unknown discriminator %d", si.Discriminator)
	}
}

// requireConfig returns the config or fails; when adminOp is false the
// pause switch is also enforced.
func (e *Engine) requireConfig(adminOp bool) (*core.GlobalConfig, error) {
	if e.config == nil {
		return nil, core.NewError(core.ErrInvalidGlobalConfig, "config not initialized")
	}
	if !adminOp && e.config.IsPaused {
		return nil, core.CodedError(core.ErrProtocolPaused)
	}
	return e.config, nil
}

func (e *Engine) marketByID(id [32]byte) (common.Address, *core.Market, error) {
	addr := ledger.MarketAddress(id)
	m, ok := e.markets[addr]
	if !ok {
		return addr, nil, core.NewError(core.ErrInvalidMarketID, "no market %x", id)
	}
	return addr, m, nil
}

// mapMathErr folds fixedpoint/lmsr sentinel errors into the coded set.
func mapMathErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fixedpoint.ErrOverflow):
		return core.NewError(core.ErrOverflow, "%v", err)
	case errors.Is(err, fixedpoint.ErrUnderflow):
		return core.NewError(core.ErrUnderflow, "%v", err)
	case errors.Is(err, fixedpoint.ErrDivisionByZero):
		return core.NewError(core.ErrDivisionByZero, "%v", err)
	case errors.Is(err, fixedpoint.ErrExponentTooLarge):
		return core.NewError(core.ErrExponentTooLarge, "%v", err)
	case errors.Is(err, lmsr.ErrInvalidB):
		return core.NewError(core.ErrInvalidBParameter, "%v", err)
	case errors.Is(err, lmsr.ErrInsufficientShares):
		return core.NewError(core.ErrInsufficientShares, "%v", err)
	case errors.Is(err, lmsr.ErrSharesOutOfRange):
		return core.NewError(core.ErrOverflow, "%v", err)
	case errors.Is(err, lmsr.ErrBoundedLoss):
		return core.CodedError(core.ErrBoundedLossExceeded)
	default:
		return err
	}
}

func marketIDHex(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

// emit appends the event to the log and fans it out.
func (e *Engine) emit(ev core.Event) {
	if e.store != nil {
		if err := e.store.AppendEvent(ev); err != nil {
			e.log.Warnw("event_persist_failed", "type", string(ev.Type), "err", err)
		}
	}
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// Persistence helpers. Storage failures are logged, not propagated:
// the in-memory state is authoritative within a process lifetime, the
// way the teacher treats its account store.

func (e *Engine) persistConfig() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveConfig(e.config); err != nil {
		e.log.Warnw("config_persist_failed", "err", err)
	}
}

func (e *Engine) persistMarket(addr common.Address) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveMarket(addr, e.markets[addr]); err != nil {
		e.log.Warnw("market_persist_failed", "addr", addr.Hex(), "err", err)
	}
	e.persistWallet(addr)
}

func (e *Engine) persistPosition(addr common.Address) {
	if e.store == nil {
		return
	}
	if err := e.store.SavePosition(addr, e.positions[addr]); err != nil {
		e.log.Warnw("position_persist_failed", "addr", addr.Hex(), "err", err)
	}
	e.persistWallet(addr)
}

func (e *Engine) persistVote(addr common.Address) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveVote(addr, e.votes[addr]); err != nil {
		e.log.Warnw("vote_persist_failed", "addr", addr.Hex(), "err", err)
	}
	e.persistWallet(addr)
}

// persistWallet saves the ledger account at addr, whatever its kind.
func (e *Engine) persistWallet(addr common.Address) {
	if e.store == nil {
		return
	}
	if acc := e.ledger.Get(addr); acc != nil {
		if err := e.store.SaveLedgerAccount(*acc); err != nil {
			e.log.Warnw("ledger_persist_failed", "addr", addr.Hex(), "err", err)
		}
	}
}

// Read accessors for the API layer. All return copies.

// Config returns the global config, or nil before initialization.
func (e *Engine) Config() *core.GlobalConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return nil
	}
	return e.config.Clone()
}

// GetMarket looks a market up by id.
func (e *Engine) GetMarket(id [32]byte) (*core.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, m, err := e.marketByID(id)
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// ListMarkets returns a copy of every market.
func (e *Engine) ListMarkets() []*core.Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*core.Market, 0, len(e.markets))
	for _, m := range e.markets {
		out = append(out, m.Clone())
	}
	return out
}

// GetPosition looks up the (market, user) position.
func (e *Engine) GetPosition(marketID [32]byte, user common.Address) (*core.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mAddr := ledger.MarketAddress(marketID)
	pos, ok := e.positions[ledger.PositionAddress(mAddr, user)]
	if !ok {
		return nil, core.NewError(core.ErrInvalidMarketID, "no position for %s", user.Hex())
	}
	return pos.Clone(), nil
}

// Quote prices a prospective buy: the shares the budget purchases via
// the LMSR inverse and the exact cost of that quantity.
type Quote struct {
	Shares    uint64 `json:"shares"`
	Cost      uint64 `json:"cost"`
	TotalFee  uint64 `json:"total_fee"`
	TotalCost uint64 `json:"total_cost"`
	PriceYes  uint64 `json:"price_yes"`
}

// QuoteBuy computes a quote against current market state without
// mutating anything.
func (e *Engine) QuoteBuy(marketID [32]byte, outcomeYes bool, budget uint64) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.requireConfig(false)
	if err != nil {
		return Quote{}, err
	}
	_, m, err := e.marketByID(marketID)
	if err != nil {
		return Quote{}, err
	}

	// Search on the pre-fee budget so the all-in cost fits.
	preFee, err := fixedpoint.MulDiv(budget, core.MaxBps, core.MaxBps+uint64(cfg.TotalFeeBps()))
	if err != nil {
		return Quote{}, mapMathErr(err)
	}
	shares, err := lmsr.SharesForCost(m.SharesYes, m.SharesNo, m.BParameter, outcomeYes, preFee)
	if err != nil {
		return Quote{}, mapMathErr(err)
	}
	cost, err := lmsr.BuyCost(m.SharesYes, m.SharesNo, m.BParameter, outcomeYes, shares)
	if err != nil {
		return Quote{}, mapMathErr(err)
	}
	fees, err := core.SplitFees(cost, cfg.ProtocolFeeBps, cfg.ResolverRewardBps, cfg.LiquidityProviderFeeBps)
	if err != nil {
		return Quote{}, err
	}
	price, err := m.PriceYes()
	if err != nil {
		return Quote{}, mapMathErr(err)
	}
	return Quote{
		Shares:    shares,
		Cost:      cost,
		TotalFee:  fees.Total,
		TotalCost: cost + fees.Total,
		PriceYes:  price,
	}, nil
}

// Restore* install persisted state at startup (no events emitted).

func (e *Engine) RestoreConfig(cfg *core.GlobalConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = cfg
}

func (e *Engine) RestoreMarket(addr common.Address, m *core.Market) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markets[addr] = m
}

func (e *Engine) RestorePosition(addr common.Address, p *core.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[addr] = p
}

func (e *Engine) RestoreVote(addr common.Address, v *core.VoteRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.votes[addr] = v
}

func (e *Engine) RestoreLedgerAccount(acc ledger.Account) {
	e.ledger.Restore(acc)
}
