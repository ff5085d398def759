package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
	"github.com/predictr-labs/predictr/pkg/lmsr"
)

// buyShares purchases dq shares of one outcome against the maker.
//
// Money flow: the buyer pays cost + total_fee; the protocol share
// goes straight to the protocol fee wallet and everything else lands
// on the market account (pool plus escrowed resolver/LP fees).
func (e *Engine) buyShares(signer common.Address, p transaction.BuySharesPayload, now int64) (core.Event, error) {
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
	if m.State != core.Active {
		return core.Event{}, core.NewError(core.ErrMarketNotActive, "market is %s", m.State)
	}
	if p.Shares == 0 {
		return core.Event{}, core.NewError(core.ErrTradeTooSmall, "zero shares")
	}

	// Position: created on first buy, ownership re-checked after.
	posAddr := ledger.PositionAddress(addr, signer)
	existing, hasPosition := e.positions[posAddr]
	if hasPosition {
		if err := existing.VerifyOwner(addr, signer); err != nil {
			return core.Event{}, err
		}
	}

	cost, err := lmsr.BuyCost(m.SharesYes, m.SharesNo, m.BParameter, p.OutcomeYes, p.Shares)
	if err != nil {
		return core.Event{}, mapMathErr(err)
	}
	if cost < core.MinTradeNotional {
		return core.Event{}, core.NewError(core.ErrTradeTooSmall,
			"notional %d below minimum %d", cost, core.MinTradeNotional)
	}
	fees, err := core.SplitFees(cost, cfg.ProtocolFeeBps, cfg.ResolverRewardBps, cfg.LiquidityProviderFeeBps)
	if err != nil {
		return core.Event{}, err
	}
	totalCost := cost + fees.Total
	if totalCost < cost {
		return core.Event{}, core.NewError(core.ErrOverflow, "total cost overflows")
	}
	if totalCost > p.MaxCost {
		return core.Event{}, core.NewError(core.ErrSlippageExceeded,
			"total cost %d exceeds max %d", totalCost, p.MaxCost)
	}

	// First-buy position creation also escrows the account's rent.
	positionRent := uint64(0)
	if !hasPosition {
		positionRent = ledger.RentFloor(core.PositionSize)
	}
	if err := e.ledger.VerifyDebit(signer, totalCost+positionRent); err != nil {
		return core.Event{}, err
	}

	// Effects. All checks passed; nothing below returns.
	if !hasPosition {
		e.ledger.CreateDataAccount(posAddr, core.PositionSize)
		if err := e.ledger.Move(signer, posAddr, positionRent); err != nil {
			return core.Event{}, err
		}
		existing = core.NewPosition(addr, signer)
	}
	if err := e.ledger.Move(signer, cfg.ProtocolFeeWallet, fees.Protocol); err != nil {
		return core.Event{}, err
	}
	if err := e.ledger.Move(signer, addr, totalCost-fees.Protocol); err != nil {
		return core.Event{}, err
	}

	nextM := m.Clone()
	if p.OutcomeYes {
		nextM.SharesYes += p.Shares
	} else {
		nextM.SharesNo += p.Shares
	}
	nextM.CurrentLiquidity += cost
	nextM.TotalVolume += totalCost
	nextM.AccumulatedProtocolFees += fees.Protocol
	nextM.AccumulatedResolverFees += fees.Resolver
	nextM.AccumulatedLPFees += fees.LP

	nextP := existing.Clone()
	if p.OutcomeYes {
		nextP.SharesYes += p.Shares
	} else {
		nextP.SharesNo += p.Shares
	}
	nextP.TotalInvested += totalCost
	nextP.TradesCount++

	priceYes, err := nextM.PriceYes()
	if err != nil {
		priceYes = 0
	}

	e.markets[addr] = nextM
	e.positions[posAddr] = nextP
	e.persistMarket(addr)
	e.persistPosition(posAddr)
	e.persistWallet(signer)
	e.persistWallet(cfg.ProtocolFeeWallet)

	return core.NewEvent(core.EventSharesBought, marketIDHex(id), now, core.SharesBoughtData{
		Buyer:       signer.Hex(),
		OutcomeYes:  p.OutcomeYes,
		Shares:      p.Shares,
		Cost:        cost,
		TotalFee:    fees.Total,
		TotalCost:   totalCost,
		PriceYes:    priceYes,
		TotalVolume: nextM.TotalVolume,
	}), nil
}

// sellShares sells dq shares back to the maker. The payout leaves the
// market through the rent-safe primitive, under the reentrancy guard.
func (e *Engine) sellShares(signer common.Address, p transaction.SellSharesPayload, now int64) (core.Event, error) {
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
	if m.State != core.Active {
		return core.Event{}, core.NewError(core.ErrMarketNotActive, "market is %s", m.State)
	}
	if m.IsLocked {
		return core.Event{}, core.CodedError(core.ErrReentrant)
	}
	if p.Shares == 0 {
		return core.Event{}, core.NewError(core.ErrTradeTooSmall, "zero shares")
	}

	posAddr := ledger.PositionAddress(addr, signer)
	pos, ok := e.positions[posAddr]
	if !ok {
		return core.Event{}, core.NewError(core.ErrInsufficientShares, "no position for %s", signer.Hex())
	}
	if err := pos.VerifyOwner(addr, signer); err != nil {
		return core.Event{}, err
	}
	if pos.Shares(p.OutcomeYes) < p.Shares {
		return core.Event{}, core.NewError(core.ErrInsufficientShares,
			"holding %d, selling %d", pos.Shares(p.OutcomeYes), p.Shares)
	}

	proceeds, err := lmsr.SellProceeds(m.SharesYes, m.SharesNo, m.BParameter, p.OutcomeYes, p.Shares)
	if err != nil {
		return core.Event{}, mapMathErr(err)
	}
	if proceeds < core.MinTradeNotional {
		return core.Event{}, core.NewError(core.ErrTradeTooSmall,
			"notional %d below minimum %d", proceeds, core.MinTradeNotional)
	}
	fees, err := core.SplitFees(proceeds, cfg.ProtocolFeeBps, cfg.ResolverRewardBps, cfg.LiquidityProviderFeeBps)
	if err != nil {
		return core.Event{}, err
	}
	netProceeds := proceeds - fees.Total
	if netProceeds < p.MinProceeds {
		return core.Event{}, core.NewError(core.ErrSlippageExceeded,
			"net proceeds %d below min %d", netProceeds, p.MinProceeds)
	}
	if m.CurrentLiquidity < proceeds {
		return core.Event{}, core.NewError(core.ErrInsufficientLiquidity,
			"pool %d cannot cover %d", m.CurrentLiquidity, proceeds)
	}
	// Rent-safe check for both outbound transfers from the market.
	if err := e.ledger.VerifyDebit(addr, netProceeds+fees.Protocol); err != nil {
		return core.Event{}, err
	}

	// Effects. Guard engaged across the outbound transfers.
	locked := m.Clone()
	locked.IsLocked = true
	e.markets[addr] = locked

	if err := e.ledger.Move(addr, signer, netProceeds); err != nil {
		return core.Event{}, err
	}
	if err := e.ledger.Move(addr, cfg.ProtocolFeeWallet, fees.Protocol); err != nil {
		return core.Event{}, err
	}

	nextM := locked.Clone()
	nextM.IsLocked = false
	if p.OutcomeYes {
		nextM.SharesYes -= p.Shares
	} else {
		nextM.SharesNo -= p.Shares
	}
	nextM.CurrentLiquidity -= proceeds
	nextM.TotalVolume += proceeds
	nextM.AccumulatedProtocolFees += fees.Protocol
	nextM.AccumulatedResolverFees += fees.Resolver
	nextM.AccumulatedLPFees += fees.LP

	nextP := pos.Clone()
	if p.OutcomeYes {
		nextP.SharesYes -= p.Shares
	} else {
		nextP.SharesNo -= p.Shares
	}
	nextP.TradesCount++

	priceYes, err := nextM.PriceYes()
	if err != nil {
		priceYes = 0
	}

	e.markets[addr] = nextM
	e.positions[posAddr] = nextP
	e.persistMarket(addr)
	e.persistPosition(posAddr)
	e.persistWallet(signer)
	e.persistWallet(cfg.ProtocolFeeWallet)

	return core.NewEvent(core.EventSharesSold, marketIDHex(id), now, core.SharesSoldData{
		Seller:      signer.Hex(),
		OutcomeYes:  p.OutcomeYes,
		Shares:      p.Shares,
		Proceeds:    proceeds,
		TotalFee:    fees.Total,
		NetProceeds: netProceeds,
		PriceYes:    priceYes,
	}), nil
}
