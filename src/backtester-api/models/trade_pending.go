package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// PendingTrade is a limit order waiting for the market to reach LimitPrice.
type PendingTrade struct {
	Trade
	CreatedAt  time.Time         `json:"created_at"`
	LimitPrice eventmodels.Price `json:"limit_price"`
}

func NewPendingTrade(cmd OpenCmd, limitPrice eventmodels.Price, ts time.Time, inst eventmodels.Instrument) (PendingTrade, error) {
	limit := snapValue("limit_price", limitPrice, inst)
	sl := snapPrice("stop_loss", cmd.StopLoss, inst)
	tp := snapPrice("take_profit", cmd.TakeProfit, inst)

	if err := cmd.TradeType.ValidatePriceOrdering(sl, &limit, tp); err != nil {
		return PendingTrade{}, fmt.Errorf("NewPendingTrade: trade %d: %w", cmd.TradeID, err)
	}

	return PendingTrade{
		Trade: Trade{
			UID:        cmd.TradeID,
			AgentID:    cmd.AgentID,
			TradeType:  cmd.TradeType,
			Quantity:   cmd.Quantity,
			StopLoss:   sl,
			TakeProfit: tp,
		},
		CreatedAt:  ts,
		LimitPrice: limit,
	}, nil
}

// Modify replaces any of limit, stop loss and take profit. The candidate
// triple is validated as a whole and nothing changes on failure.
func (p *PendingTrade) Modify(cmd ModifyCmd, inst eventmodels.Instrument) error {
	if err := p.checkOwner(cmd.AgentID); err != nil {
		return fmt.Errorf("PendingTrade.Modify: %w", err)
	}

	limit := p.LimitPrice
	if cmd.NewEntryPrice != nil {
		limit = snapValue("limit_price", *cmd.NewEntryPrice, inst)
	}

	sl := clonePrice(p.StopLoss)
	if cmd.NewStopLoss != nil {
		sl = snapPrice("stop_loss", cmd.NewStopLoss, inst)
	}

	tp := clonePrice(p.TakeProfit)
	if cmd.NewTakeProfit != nil {
		tp = snapPrice("take_profit", cmd.NewTakeProfit, inst)
	}

	if err := p.TradeType.ValidatePriceOrdering(sl, &limit, tp); err != nil {
		return fmt.Errorf("PendingTrade.Modify: trade %d: %w", p.UID, err)
	}

	p.LimitPrice = limit
	p.StopLoss = sl
	p.TakeProfit = tp
	return nil
}

func (p PendingTrade) Cancel(cmd CancelCmd, ts time.Time) (CanceledTrade, error) {
	if err := p.checkOwner(cmd.AgentID); err != nil {
		return CanceledTrade{}, fmt.Errorf("PendingTrade.Cancel: %w", err)
	}

	return CanceledTrade{
		Trade:      p.Trade.clone(),
		CreatedAt:  p.CreatedAt,
		CanceledAt: ts,
		LimitPrice: p.LimitPrice,
	}, nil
}

// Update fills the order once its limit price trades. A fill is entered at
// the limit price and the same bar is then checked for exits, with the
// favourable side masked.
func (p PendingTrade) Update(market MarketViewer, inst eventmodels.Instrument, bias ExecutionBias) (TradeState, float64, error) {
	if !market.ReachedPrice(p.LimitPrice, inst.Symbol) {
		return p, 0, nil
	}

	now := market.CurrentTimestamp()
	active := ActiveTrade{
		Trade:         p.Trade.clone(),
		EntryTs:       now,
		EntryPrice:    p.LimitPrice,
		CurrentTs:     now,
		CurrentPrice:  p.LimitPrice,
		UnrealizedPnl: 0,
	}

	next, reward, err := active.update(market, inst, bias, true)
	if err != nil {
		return nil, 0, fmt.Errorf("PendingTrade.Update: trade %d: %w", p.UID, err)
	}

	return next, reward, nil
}
