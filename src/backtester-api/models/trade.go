package models

import (
	"fmt"
	"math"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

const QuantityEpsilon = 1e-9

// Trade is the envelope shared by every lifecycle phase.
type Trade struct {
	UID        TradeID              `json:"uid"`
	AgentID    AgentID              `json:"agent_id"`
	TradeType  TradeType            `json:"trade_type"`
	Quantity   eventmodels.Quantity `json:"quantity"`
	StopLoss   *eventmodels.Price   `json:"stop_loss,omitempty"`
	TakeProfit *eventmodels.Price   `json:"take_profit,omitempty"`
}

func (t Trade) clone() Trade {
	t.StopLoss = clonePrice(t.StopLoss)
	t.TakeProfit = clonePrice(t.TakeProfit)
	return t
}

func (t Trade) checkOwner(agent AgentID) error {
	if t.AgentID != agent {
		return fmt.Errorf("trade %d: Agent mismatch: owned by %q, requested by %q: %w", t.UID, t.AgentID, agent, ErrAccessDenied)
	}

	return nil
}

type StateKind int

const (
	StateKindPending StateKind = iota
	StateKindActive
	StateKindClosed
	StateKindCanceled
)

func (k StateKind) String() string {
	switch k {
	case StateKindPending:
		return "pending"
	case StateKindActive:
		return "active"
	case StateKindClosed:
		return "closed"
	case StateKindCanceled:
		return "canceled"
	}

	return fmt.Sprintf("StateKind(%d)", int(k))
}

func (k StateKind) IsLive() bool {
	return k == StateKindPending || k == StateKindActive
}

type TerminationReason string

const (
	TerminationReasonStopLoss    TerminationReason = "stop_loss"
	TerminationReasonTakeProfit  TerminationReason = "take_profit"
	TerminationReasonMarketClose TerminationReason = "market_close"
)

// TradeState is one of PendingTrade, ActiveTrade, ClosedTrade or
// CanceledTrade. The set is closed.
type TradeState interface {
	Kind() StateKind
	Envelope() Trade
	AnticipatedEntryPrice() eventmodels.Price
	isTradeState()
}

func (p PendingTrade) Kind() StateKind { return StateKindPending }
func (p PendingTrade) Envelope() Trade { return p.Trade }
func (p PendingTrade) AnticipatedEntryPrice() eventmodels.Price { return p.LimitPrice }
func (p PendingTrade) isTradeState() {}

func (a ActiveTrade) Kind() StateKind { return StateKindActive }
func (a ActiveTrade) Envelope() Trade { return a.Trade }
func (a ActiveTrade) AnticipatedEntryPrice() eventmodels.Price { return a.EntryPrice }
func (a ActiveTrade) isTradeState() {}

func (c ClosedTrade) Kind() StateKind { return StateKindClosed }
func (c ClosedTrade) Envelope() Trade { return c.Trade }
func (c ClosedTrade) AnticipatedEntryPrice() eventmodels.Price { return c.EntryPrice }
func (c ClosedTrade) isTradeState() {}

func (c CanceledTrade) Kind() StateKind { return StateKindCanceled }
func (c CanceledTrade) Envelope() Trade { return c.Trade }
func (c CanceledTrade) AnticipatedEntryPrice() eventmodels.Price { return c.LimitPrice }
func (c CanceledTrade) isTradeState() {}

func ExpectedLossTicks(s TradeState, inst eventmodels.Instrument) (eventmodels.Tick, bool) {
	t := s.Envelope()
	if t.StopLoss == nil {
		return 0, false
	}

	diff := t.TradeType.PriceDiff(s.AnticipatedEntryPrice(), *t.StopLoss)
	return absTick(inst.PriceToTicks(diff)), true
}

func ExpectedProfitTicks(s TradeState, inst eventmodels.Instrument) (eventmodels.Tick, bool) {
	t := s.Envelope()
	if t.TakeProfit == nil {
		return 0, false
	}

	diff := t.TradeType.PriceDiff(s.AnticipatedEntryPrice(), *t.TakeProfit)
	return absTick(inst.PriceToTicks(diff)), true
}

func ExpectedLossUSD(s TradeState, inst eventmodels.Instrument) (float64, bool) {
	t := s.Envelope()
	if t.StopLoss == nil {
		return 0, false
	}

	return math.Abs(t.TradeType.CalculatePnl(s.AnticipatedEntryPrice(), *t.StopLoss, t.Quantity, inst)), true
}

func ExpectedProfitUSD(s TradeState, inst eventmodels.Instrument) (float64, bool) {
	t := s.Envelope()
	if t.TakeProfit == nil {
		return 0, false
	}

	return math.Abs(t.TradeType.CalculatePnl(s.AnticipatedEntryPrice(), *t.TakeProfit, t.Quantity, inst)), true
}

// RiskRewardRatio is expected profit over expected loss, both in USD.
func RiskRewardRatio(s TradeState, inst eventmodels.Instrument) (float64, bool) {
	risk, ok := ExpectedLossUSD(s, inst)
	if !ok || risk == 0 {
		return 0, false
	}

	reward, ok := ExpectedProfitUSD(s, inst)
	if !ok {
		return 0, false
	}

	return reward / risk, true
}

func PnlUSD(s TradeState) (float64, bool) {
	switch v := s.(type) {
	case ActiveTrade:
		return v.UnrealizedPnl, true
	case ClosedTrade:
		return v.RealizedPnl, true
	}

	return 0, false
}

func PnlTicks(s TradeState, inst eventmodels.Instrument) (eventmodels.Tick, bool) {
	switch v := s.(type) {
	case ActiveTrade:
		return inst.PriceToTicks(v.TradeType.PriceDiff(v.EntryPrice, v.CurrentPrice)), true
	case ClosedTrade:
		return inst.PriceToTicks(v.TradeType.PriceDiff(v.EntryPrice, v.ExitPrice)), true
	}

	return 0, false
}

func EntryTs(s TradeState) (time.Time, bool) {
	switch v := s.(type) {
	case ActiveTrade:
		return v.EntryTs, true
	case ClosedTrade:
		return v.EntryTs, true
	}

	return time.Time{}, false
}

func ExitTs(s TradeState) (time.Time, bool) {
	if v, ok := s.(ClosedTrade); ok {
		return v.ExitTs, true
	}

	return time.Time{}, false
}

func ExitPrice(s TradeState) (eventmodels.Price, bool) {
	if v, ok := s.(ClosedTrade); ok {
		return v.ExitPrice, true
	}

	return 0, false
}

func ExitReason(s TradeState) (TerminationReason, bool) {
	if v, ok := s.(ClosedTrade); ok {
		return v.TerminationReason, true
	}

	return "", false
}

func absTick(t eventmodels.Tick) eventmodels.Tick {
	if t < 0 {
		return -t
	}

	return t
}
