package models

import (
	"fmt"
	"math"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type ActiveTrade struct {
	Trade
	EntryTs       time.Time         `json:"entry_ts"`
	EntryPrice    eventmodels.Price `json:"entry_price"`
	CurrentTs     time.Time         `json:"current_ts"`
	CurrentPrice  eventmodels.Price `json:"current_price"`
	UnrealizedPnl float64           `json:"unrealized_pnl"`
}

// CloseOutcome is the result of closing some or all of a position. Remaining
// is nil when the position was fully closed.
type CloseOutcome struct {
	Closed    ClosedTrade
	Remaining *ActiveTrade
}

func (o CloseOutcome) IsPartial() bool {
	return o.Remaining != nil
}

func NewActiveTrade(cmd OpenCmd, entryPrice eventmodels.Price, ts time.Time, inst eventmodels.Instrument) (ActiveTrade, error) {
	entry := snapValue("entry_price", entryPrice, inst)
	sl := snapPrice("stop_loss", cmd.StopLoss, inst)
	tp := snapPrice("take_profit", cmd.TakeProfit, inst)

	if err := cmd.TradeType.ValidatePriceOrdering(sl, &entry, tp); err != nil {
		return ActiveTrade{}, fmt.Errorf("NewActiveTrade: trade %d: %w", cmd.TradeID, err)
	}

	return ActiveTrade{
		Trade: Trade{
			UID:        cmd.TradeID,
			AgentID:    cmd.AgentID,
			TradeType:  cmd.TradeType,
			Quantity:   cmd.Quantity,
			StopLoss:   sl,
			TakeProfit: tp,
		},
		EntryTs:       ts,
		EntryPrice:    entry,
		CurrentTs:     ts,
		CurrentPrice:  entry,
		UnrealizedPnl: 0,
	}, nil
}

func (a *ActiveTrade) Modify(cmd ModifyCmd, inst eventmodels.Instrument) error {
	if err := a.checkOwner(cmd.AgentID); err != nil {
		return fmt.Errorf("ActiveTrade.Modify: %w", err)
	}

	if cmd.NewEntryPrice != nil {
		return fmt.Errorf("ActiveTrade.Modify: trade %d: Cannot modify Entry Price of an ACTIVE trade: %w", a.UID, ErrInvalidInput)
	}

	sl := clonePrice(a.StopLoss)
	if cmd.NewStopLoss != nil {
		sl = snapPrice("stop_loss", cmd.NewStopLoss, inst)
	}

	tp := clonePrice(a.TakeProfit)
	if cmd.NewTakeProfit != nil {
		tp = snapPrice("take_profit", cmd.NewTakeProfit, inst)
	}

	entry := a.EntryPrice
	if err := a.TradeType.ValidatePriceOrdering(sl, &entry, tp); err != nil {
		return fmt.Errorf("ActiveTrade.Modify: trade %d: %w", a.UID, err)
	}

	a.StopLoss = sl
	a.TakeProfit = tp
	return nil
}

// MarketClose closes cmd.Quantity (default: everything) at exitPrice. The
// reward is the realized P&L of the closed part.
func (a ActiveTrade) MarketClose(cmd MarketCloseCmd, exitPrice eventmodels.Price, ts time.Time, inst eventmodels.Instrument) (CloseOutcome, float64, error) {
	if err := a.checkOwner(cmd.AgentID); err != nil {
		return CloseOutcome{}, 0, fmt.Errorf("ActiveTrade.MarketClose: %w", err)
	}

	qty := a.Quantity
	if cmd.Quantity != nil {
		qty = *cmd.Quantity
	}

	if float64(qty-a.Quantity) > QuantityEpsilon {
		return CloseOutcome{}, 0, fmt.Errorf("ActiveTrade.MarketClose: trade %d: Close qty > Open qty (%v > %v): %w", a.UID, qty, a.Quantity, ErrInvalidInput)
	}

	outcome := a.executeClose(qty, snapValue("exit_price", exitPrice, inst), ts, TerminationReasonMarketClose, inst)
	return outcome, outcome.Closed.RealizedPnl, nil
}

// Update marks the position to market and closes it if its stop loss or take
// profit traded this step.
func (a ActiveTrade) Update(market MarketViewer, inst eventmodels.Instrument, bias ExecutionBias) (TradeState, float64, error) {
	return a.update(market, inst, bias, false)
}

func (a ActiveTrade) update(market MarketViewer, inst eventmodels.Instrument, bias ExecutionBias, fillBar bool) (TradeState, float64, error) {
	prevUnrealized := a.UnrealizedPnl

	closePrice, err := market.TryResolvedClosePrice(inst.Symbol)
	if err != nil {
		return nil, 0, fmt.Errorf("ActiveTrade.Update: trade %d: %w", a.UID, err)
	}

	a.Trade = a.Trade.clone()
	a.CurrentTs = market.CurrentTimestamp()
	a.CurrentPrice = snapValue("current_price", closePrice, inst)
	a.UnrealizedPnl = a.TradeType.CalculatePnl(a.EntryPrice, a.CurrentPrice, a.Quantity, inst)

	slHit := a.StopLoss != nil && market.ReachedPrice(*a.StopLoss, inst.Symbol)
	tpHit := a.TakeProfit != nil && market.ReachedPrice(*a.TakeProfit, inst.Symbol)

	var exitPrice eventmodels.Price
	var reason TerminationReason

	switch ResolveExit(bias, slHit, tpHit, fillBar) {
	case ExitStopLoss:
		exitPrice, reason = *a.StopLoss, TerminationReasonStopLoss
	case ExitTakeProfit:
		exitPrice, reason = *a.TakeProfit, TerminationReasonTakeProfit
	default:
		return a, a.UnrealizedPnl - prevUnrealized, nil
	}

	outcome := a.executeClose(a.Quantity, snapValue("exit_price", exitPrice, inst), a.CurrentTs, reason, inst)
	if outcome.IsPartial() {
		return nil, 0, fmt.Errorf("ActiveTrade.Update: trade %d: closing the full quantity returned a partial outcome: %w", a.UID, ErrInvariantViolation)
	}

	return outcome.Closed, outcome.Closed.RealizedPnl - prevUnrealized, nil
}

func (a ActiveTrade) executeClose(qty eventmodels.Quantity, exitPrice eventmodels.Price, ts time.Time, reason TerminationReason, inst eventmodels.Instrument) CloseOutcome {
	if math.Abs(float64(a.Quantity-qty)) < QuantityEpsilon {
		qty = a.Quantity
	}

	// x - y is exact for y in [x/2, 2x], so the larger part is subtracted
	// from the total and closed + remaining equals the original quantity.
	remainingQty := a.Quantity - qty
	if qty != a.Quantity && remainingQty >= a.Quantity/2 {
		qty = a.Quantity - remainingQty
	}

	closed := ClosedTrade{
		Trade:             a.Trade.clone(),
		EntryTs:           a.EntryTs,
		EntryPrice:        a.EntryPrice,
		ExitTs:            ts,
		ExitPrice:         exitPrice,
		TerminationReason: reason,
		RealizedPnl:       a.TradeType.CalculatePnl(a.EntryPrice, exitPrice, qty, inst),
	}
	closed.Quantity = qty

	if qty == a.Quantity {
		return CloseOutcome{Closed: closed}
	}

	remaining := a
	remaining.Trade = a.Trade.clone()
	remaining.Quantity = remainingQty
	remaining.UnrealizedPnl = a.TradeType.CalculatePnl(a.EntryPrice, a.CurrentPrice, remaining.Quantity, inst)

	return CloseOutcome{Closed: closed, Remaining: &remaining}
}
