package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
)

// initializeGlobalConfig creates the singleton config. The signer
// becomes admin. The derived config address can only be created once.
func (e *Engine) initializeGlobalConfig(signer common.Address, p transaction.InitializeGlobalConfigPayload, now int64) (core.Event, error) {
	if e.config != nil {
		return core.Event{}, core.NewError(core.ErrInvalidGlobalConfig, "config already initialized")
	}
	if !common.IsHexAddress(p.BackendAuthority) || !common.IsHexAddress(p.ProtocolFeeWallet) {
		return core.Event{}, core.NewError(core.ErrInvalidGlobalConfig, "malformed authority address")
	}
	feeWallet := common.HexToAddress(p.ProtocolFeeWallet)
	if feeWallet == (common.Address{}) {
		return core.Event{}, core.CodedError(core.ErrInvalidFeeWallet)
	}

	cfg, err := core.NewGlobalConfig(
		signer,
		common.HexToAddress(p.BackendAuthority),
		feeWallet,
		p.ProtocolFeeBps, p.ResolverRewardBps, p.LPFeeBps,
	)
	if err != nil {
		return core.Event{}, err
	}

	// The initializer funds the config account's rent buffer.
	cfgAddr := ledger.GlobalConfigAddress()
	rent := ledger.RentFloor(core.GlobalConfigSize)
	if err := e.ledger.VerifyDebit(signer, rent); err != nil {
		return core.Event{}, err
	}

	e.ledger.CreateDataAccount(cfgAddr, core.GlobalConfigSize)
	if err := e.ledger.Move(signer, cfgAddr, rent); err != nil {
		return core.Event{}, err
	}
	e.config = cfg
	e.persistConfig()
	e.persistWallet(cfgAddr)

	return core.NewEvent(core.EventConfigInitialized, "", now, core.ConfigInitializedData{
		Admin:             cfg.Admin.Hex(),
		BackendAuthority:  cfg.BackendAuthority.Hex(),
		ProtocolFeeWallet: cfg.ProtocolFeeWallet.Hex(),
		ProtocolFeeBps:    cfg.ProtocolFeeBps,
		ResolverRewardBps: cfg.ResolverRewardBps,
		LPFeeBps:          cfg.LiquidityProviderFeeBps,
	}), nil
}

// updateGlobalConfig applies the optional fields of the payload.
func (e *Engine) updateGlobalConfig(signer common.Address, p transaction.UpdateGlobalConfigPayload, now int64) (core.Event, error) {
	cfg, err := e.requireConfig(true)
	if err != nil {
		return core.Event{}, err
	}
	if signer != cfg.Admin {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "config update requires admin")
	}

	next := cfg.Clone()
	if p.ProtocolFeeBps != nil {
		next.ProtocolFeeBps = *p.ProtocolFeeBps
	}
	if p.ResolverRewardBps != nil {
		next.ResolverRewardBps = *p.ResolverRewardBps
	}
	if p.LPFeeBps != nil {
		next.LiquidityProviderFeeBps = *p.LPFeeBps
	}
	if p.ApprovalThresholdBps != nil {
		next.ProposalApprovalThresholdBps = *p.ApprovalThresholdBps
	}
	if p.DisputeThresholdBps != nil {
		next.DisputeSuccessThresholdBps = *p.DisputeThresholdBps
	}
	if p.MinResolutionDelayS != nil {
		next.MinResolutionDelayS = *p.MinResolutionDelayS
	}
	if p.DisputePeriodS != nil {
		next.DisputePeriodS = *p.DisputePeriodS
	}
	if p.ProtocolFeeWallet != nil {
		if !common.IsHexAddress(*p.ProtocolFeeWallet) || common.HexToAddress(*p.ProtocolFeeWallet) == (common.Address{}) {
			return core.Event{}, core.CodedError(core.ErrInvalidFeeWallet)
		}
		next.ProtocolFeeWallet = common.HexToAddress(*p.ProtocolFeeWallet)
	}
	if p.BackendAuthority != nil {
		if !common.IsHexAddress(*p.BackendAuthority) {
			return core.Event{}, core.NewError(core.ErrInvalidGlobalConfig, "malformed backend authority")
		}
		next.BackendAuthority = common.HexToAddress(*p.BackendAuthority)
	}
	if err := next.Validate(); err != nil {
		return core.Event{}, err
	}

	e.config = next
	e.persistConfig()

	return core.NewEvent(core.EventConfigUpdated, "", now, core.ConfigUpdatedData{
		ProtocolFeeBps:       next.ProtocolFeeBps,
		ResolverRewardBps:    next.ResolverRewardBps,
		LPFeeBps:             next.LiquidityProviderFeeBps,
		ApprovalThresholdBps: next.ProposalApprovalThresholdBps,
		DisputeThresholdBps:  next.DisputeSuccessThresholdBps,
		MinResolutionDelayS:  next.MinResolutionDelayS,
		DisputePeriodS:       next.DisputePeriodS,
	}), nil
}

// emergencyPause flips the global pause switch. Admin-only; every
// non-admin handler checks the switch first.
func (e *Engine) emergencyPause(signer common.Address, p transaction.EmergencyPausePayload, now int64) (core.Event, error) {
	cfg, err := e.requireConfig(true)
	if err != nil {
		return core.Event{}, err
	}
	if signer != cfg.Admin {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "pause requires admin")
	}

	next := cfg.Clone()
	next.IsPaused = p.Paused
	e.config = next
	e.persistConfig()

	return core.NewEvent(core.EventEmergencyPauseToggled, "", now, core.EmergencyPauseToggledData{
		Paused: p.Paused,
	}), nil
}

// cancelMarket retires a market that has not yet traded. Only markets
// still in Proposed or Approved can be cancelled.
func (e *Engine) cancelMarket(signer common.Address, p transaction.CancelMarketPayload, now int64) (core.Event, error) {
	cfg, err := e.requireConfig(true)
	if err != nil {
		return core.Event{}, err
	}
	if signer != cfg.Admin {
		return core.Event{}, core.NewError(core.ErrUnauthorized, "cancel requires admin")
	}
	id, err := transaction.ParseMarketID(p.MarketID)
	if err != nil {
		return core.Event{}, core.NewError(core.ErrInvalidMarketID, "%v", err)
	}
	addr, m, err := e.marketByID(id)
	if err != nil {
		return core.Event{}, err
	}
	if m.State != core.Proposed && m.State != core.Approved {
		return core.Event{}, core.NewError(core.ErrCannotCancelActiveMarket, "market is %s", m.State)
	}

	next := m.Clone()
	prior := next.State
	if err := next.Transition(core.Cancelled); err != nil {
		return core.Event{}, err
	}

	e.markets[addr] = next
	e.persistMarket(addr)

	return core.NewEvent(core.EventMarketCancelled, marketIDHex(id), now, core.MarketCancelledData{
		PriorState: prior.String(),
	}), nil
}
