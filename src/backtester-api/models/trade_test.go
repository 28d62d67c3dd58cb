package models

import (
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

func TestValidatePriceOrdering(t *testing.T) {
	t.Run("long", func(t *testing.T) {
		require.NoError(t, TradeTypeLong.ValidatePriceOrdering(price(1.09), price(1.1), price(1.11)))
		require.NoError(t, TradeTypeLong.ValidatePriceOrdering(nil, price(1.1), nil))
		require.NoError(t, TradeTypeLong.ValidatePriceOrdering(nil, nil, nil))

		err := TradeTypeLong.ValidatePriceOrdering(price(1.1), price(1.1), price(1.11))
		require.True(t, errors.Is(err, ErrInvalidPriceOrdering))
		require.True(t, errors.Is(err, ErrInvalidInput))
		require.Contains(t, err.Error(), "stop_loss < entry < take_profit")

		err = TradeTypeLong.ValidatePriceOrdering(nil, price(1.1), price(1.09))
		require.Contains(t, err.Error(), "entry < take_profit")

		err = TradeTypeLong.ValidatePriceOrdering(price(1.12), nil, price(1.11))
		require.Contains(t, err.Error(), "stop_loss < take_profit")

		err = TradeTypeLong.ValidatePriceOrdering(price(1.12), price(1.1), nil)
		require.Contains(t, err.Error(), "stop_loss < entry")
	})

	t.Run("short is the mirror", func(t *testing.T) {
		require.NoError(t, TradeTypeShort.ValidatePriceOrdering(price(1.11), price(1.1), price(1.09)))

		err := TradeTypeShort.ValidatePriceOrdering(price(1.09), price(1.1), price(1.11))
		require.Contains(t, err.Error(), "take_profit < entry < stop_loss")

		err = TradeTypeShort.ValidatePriceOrdering(nil, price(1.1), price(1.11))
		require.Contains(t, err.Error(), "take_profit < entry")

		err = TradeTypeShort.ValidatePriceOrdering(price(1.09), nil, price(1.1))
		require.Contains(t, err.Error(), "take_profit < stop_loss")

		err = TradeTypeShort.ValidatePriceOrdering(price(1.09), price(1.1), nil)
		require.Contains(t, err.Error(), "entry < stop_loss")
	})
}

func TestCalculatePnl(t *testing.T) {
	require.Equal(t, 625.0, TradeTypeLong.CalculatePnl(1.1, 1.105, 1, eur6e))
	require.Equal(t, -625.0, TradeTypeShort.CalculatePnl(1.1, 1.105, 1, eur6e))
	require.Equal(t, 312.5, TradeTypeLong.CalculatePnl(1.1, 1.105, 0.5, eur6e))
}

func TestResolveExit(t *testing.T) {
	require.Equal(t, ExitStopLoss, ResolveExit(ExecutionBiasPessimistic, true, true, false))
	require.Equal(t, ExitTakeProfit, ResolveExit(ExecutionBiasOptimistic, true, true, false))
	require.Equal(t, ExitTakeProfit, ResolveExit(ExecutionBiasPessimistic, false, true, false))
	require.Equal(t, ExitStopLoss, ResolveExit(ExecutionBiasOptimistic, true, false, false))
	require.Equal(t, ExitNone, ResolveExit(ExecutionBiasPessimistic, false, false, false))

	// fill bar: the favourable side is ignored
	require.Equal(t, ExitNone, ResolveExit(ExecutionBiasPessimistic, false, true, true))
	require.Equal(t, ExitStopLoss, ResolveExit(ExecutionBiasPessimistic, true, true, true))
	require.Equal(t, ExitNone, ResolveExit(ExecutionBiasOptimistic, true, false, true))
	require.Equal(t, ExitTakeProfit, ResolveExit(ExecutionBiasOptimistic, true, true, true))
}

func TestActiveTradeUpdate(t *testing.T) {
	open := func(t *testing.T) ActiveTrade {
		a, err := NewActiveTrade(longOpen(1, price(1.095), price(1.105)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)
		return a
	}

	godCandle := fakeMarket{ts: at(9, 1, 0), low: 1.094, high: 1.106, close: 1.1}

	t.Run("pessimistic bias exits at the stop loss", func(t *testing.T) {
		next, reward, err := open(t).Update(godCandle, eur6e, ExecutionBiasPessimistic)
		require.NoError(t, err)

		closed, ok := next.(ClosedTrade)
		require.True(t, ok)
		require.Equal(t, TerminationReasonStopLoss, closed.TerminationReason)
		require.Equal(t, eventmodels.Price(1.095), closed.ExitPrice)
		require.Equal(t, -625.0, closed.RealizedPnl)
		require.Equal(t, -625.0, reward)
	})

	t.Run("optimistic bias exits at the take profit", func(t *testing.T) {
		next, reward, err := open(t).Update(godCandle, eur6e, ExecutionBiasOptimistic)
		require.NoError(t, err)

		closed, ok := next.(ClosedTrade)
		require.True(t, ok)
		require.Equal(t, TerminationReasonTakeProfit, closed.TerminationReason)
		require.Equal(t, eventmodels.Price(1.105), closed.ExitPrice)
		require.Equal(t, 625.0, reward)
	})

	t.Run("bias is deterministic", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			a, ra, err := open(t).Update(godCandle, eur6e, ExecutionBiasPessimistic)
			require.NoError(t, err)
			b, rb, err := open(t).Update(godCandle, eur6e, ExecutionBiasPessimistic)
			require.NoError(t, err)

			require.Equal(t, a, b)
			require.Equal(t, ra, rb)
		}
	})

	t.Run("rewards sum to realized pnl", func(t *testing.T) {
		steps := []fakeMarket{
			{ts: at(9, 1, 0), low: 1.0995, high: 1.103, close: 1.102},
			{ts: at(9, 2, 0), low: 1.101, high: 1.1045, close: 1.104},
			{ts: at(9, 3, 0), low: 1.1035, high: 1.106, close: 1.1055},
		}

		var state TradeState = open(t)
		var total float64
		for _, m := range steps {
			active, ok := state.(ActiveTrade)
			require.True(t, ok)

			next, reward, err := active.Update(m, eur6e, ExecutionBiasPessimistic)
			require.NoError(t, err)

			total += reward
			state = next
		}

		closed, ok := state.(ClosedTrade)
		require.True(t, ok)
		require.Equal(t, 625.0, closed.RealizedPnl)
		require.InDelta(t, closed.RealizedPnl, total, 1e-9)
	})

	t.Run("missing price is an error", func(t *testing.T) {
		_, _, err := open(t).Update(fakeMarket{ts: at(9, 1, 0)}, eur6e, ExecutionBiasPessimistic)
		require.True(t, errors.Is(err, ErrKeyNotFound))
	})
}

func TestActiveTradeMarketClose(t *testing.T) {
	open := func(t *testing.T) ActiveTrade {
		a, err := NewActiveTrade(longOpen(1, nil, nil), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)
		return a
	}

	t.Run("partial close conserves quantity", func(t *testing.T) {
		outcome, reward, err := open(t).MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1, Quantity: qty(0.5)}, 1.105, at(9, 5, 0), eur6e)
		require.NoError(t, err)

		require.Equal(t, 312.5, reward)
		require.True(t, outcome.IsPartial())
		require.Equal(t, eventmodels.Quantity(0.5), outcome.Closed.Quantity)
		require.Equal(t, eventmodels.Quantity(0.5), outcome.Remaining.Quantity)
		require.Equal(t, eventmodels.Price(1.1), outcome.Remaining.EntryPrice)
		require.Equal(t, at(9, 0, 0), outcome.Remaining.EntryTs)
		require.Equal(t, eventmodels.Quantity(1), outcome.Closed.Quantity+outcome.Remaining.Quantity)
	})

	t.Run("uneven partial close conserves quantity", func(t *testing.T) {
		outcome, _, err := open(t).MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1, Quantity: qty(0.25)}, 1.105, at(9, 5, 0), eur6e)
		require.NoError(t, err)
		require.Equal(t, eventmodels.Quantity(0.75), outcome.Remaining.Quantity)
		require.Equal(t, eventmodels.Quantity(1), outcome.Closed.Quantity+outcome.Remaining.Quantity)
	})

	t.Run("non-binary fractions conserve quantity exactly", func(t *testing.T) {
		splits := []struct{ total, close float64 }{
			{0.3, 0.1},
			{1, 0.3},
			{0.7, 0.1},
			{1.1, 0.2},
			{3, 0.1},
			{0.3, 0.2},
			{1, 0.7},
			{1.1, 0.9},
		}

		for _, s := range splits {
			cmd := longOpen(1, nil, nil)
			cmd.Quantity = eventmodels.Quantity(s.total)
			a, err := NewActiveTrade(cmd, 1.1, at(9, 0, 0), eur6e)
			require.NoError(t, err)

			outcome, _, err := a.MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1, Quantity: qty(s.close)}, 1.105, at(9, 5, 0), eur6e)
			require.NoError(t, err)
			require.True(t, outcome.IsPartial())
			require.Equal(t, eventmodels.Quantity(s.total), outcome.Closed.Quantity+outcome.Remaining.Quantity, "%v - %v", s.total, s.close)
			require.InDelta(t, s.close, float64(outcome.Closed.Quantity), 1e-12)
			require.InDelta(t, s.total-s.close, float64(outcome.Remaining.Quantity), 1e-12)
		}
	})

	t.Run("default closes everything", func(t *testing.T) {
		outcome, reward, err := open(t).MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1}, 1.09501, at(9, 5, 0), eur6e)
		require.NoError(t, err)
		require.False(t, outcome.IsPartial())
		require.Equal(t, eventmodels.Price(1.095), outcome.Closed.ExitPrice)
		require.Equal(t, TerminationReasonMarketClose, outcome.Closed.TerminationReason)
		require.Equal(t, -625.0, reward)
	})

	t.Run("cannot close more than the position", func(t *testing.T) {
		_, _, err := open(t).MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1, Quantity: qty(1.5)}, 1.105, at(9, 5, 0), eur6e)
		require.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("wrong agent", func(t *testing.T) {
		_, _, err := open(t).MarketClose(MarketCloseCmd{AgentID: "agent-2", TradeID: 1}, 1.105, at(9, 5, 0), eur6e)
		require.True(t, errors.Is(err, ErrAccessDenied))
	})
}

func TestActiveTradeModify(t *testing.T) {
	t.Run("moves the stop loss", func(t *testing.T) {
		a, err := NewActiveTrade(longOpen(1, price(1.095), price(1.105)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		err = a.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewStopLoss: price(1.09801)}, eur6e)
		require.NoError(t, err)
		require.Equal(t, eventmodels.Price(1.098), *a.StopLoss)
		require.Equal(t, eventmodels.Price(1.105), *a.TakeProfit)
	})

	t.Run("entry price is fixed", func(t *testing.T) {
		a, err := NewActiveTrade(longOpen(1, nil, nil), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		err = a.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewEntryPrice: price(1.09)}, eur6e)
		require.True(t, errors.Is(err, ErrInvalidInput))
		require.Equal(t, eventmodels.Price(1.1), a.EntryPrice)
	})

	t.Run("invalid ordering leaves the trade unchanged", func(t *testing.T) {
		a, err := NewActiveTrade(longOpen(1, price(1.095), price(1.105)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		err = a.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewStopLoss: price(1.101), NewTakeProfit: price(1.11)}, eur6e)
		require.True(t, errors.Is(err, ErrInvalidPriceOrdering))
		require.Equal(t, eventmodels.Price(1.095), *a.StopLoss)
		require.Equal(t, eventmodels.Price(1.105), *a.TakeProfit)
	})

	t.Run("wrong agent", func(t *testing.T) {
		a, err := NewActiveTrade(longOpen(1, nil, nil), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		err = a.Modify(ModifyCmd{AgentID: "intruder", TradeID: 1, NewStopLoss: price(1.09)}, eur6e)
		require.True(t, errors.Is(err, ErrAccessDenied))
		require.Nil(t, a.StopLoss)
	})
}

func TestPendingTrade(t *testing.T) {
	t.Run("limit is snapped to the grid", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, price(1.09001), nil), 1.09501, at(9, 0, 0), eur6e)
		require.NoError(t, err)
		require.Equal(t, eventmodels.Price(1.095), p.LimitPrice)
		require.Equal(t, eventmodels.Price(1.09), *p.StopLoss)
	})

	t.Run("invalid ordering is rejected", func(t *testing.T) {
		_, err := NewPendingTrade(longOpen(1, price(1.1), nil), 1.095, at(9, 0, 0), eur6e)
		require.True(t, errors.Is(err, ErrInvalidPriceOrdering))
	})

	t.Run("not reached stays pending", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, nil, nil), 1.095, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		next, reward, err := p.Update(fakeMarket{ts: at(9, 1, 0), low: 1.096, high: 1.1, close: 1.098}, eur6e, ExecutionBiasPessimistic)
		require.NoError(t, err)
		require.Equal(t, StateKindPending, next.Kind())
		require.Equal(t, 0.0, reward)
	})

	t.Run("fill marks to market on the same bar", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, nil, nil), 1.095, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		next, reward, err := p.Update(fakeMarket{ts: at(9, 1, 0), low: 1.095, high: 1.1, close: 1.098}, eur6e, ExecutionBiasPessimistic)
		require.NoError(t, err)

		active, ok := next.(ActiveTrade)
		require.True(t, ok)
		require.Equal(t, eventmodels.Price(1.095), active.EntryPrice)
		require.Equal(t, at(9, 1, 0), active.EntryTs)
		require.Equal(t, eventmodels.Price(1.098), active.CurrentPrice)
		require.Equal(t, 375.0, reward)
		require.Equal(t, 375.0, active.UnrealizedPnl)
	})

	t.Run("fill bar ignores the take profit when pessimistic", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, price(1.095), price(1.105)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		next, _, err := p.Update(fakeMarket{ts: at(9, 1, 0), low: 1.1, high: 1.106, close: 1.104}, eur6e, ExecutionBiasPessimistic)
		require.NoError(t, err)
		require.Equal(t, StateKindActive, next.Kind())
	})

	t.Run("fill bar still takes the stop loss when pessimistic", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, price(1.095), price(1.105)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		next, reward, err := p.Update(fakeMarket{ts: at(9, 1, 0), low: 1.094, high: 1.106, close: 1.1}, eur6e, ExecutionBiasPessimistic)
		require.NoError(t, err)

		closed, ok := next.(ClosedTrade)
		require.True(t, ok)
		require.Equal(t, TerminationReasonStopLoss, closed.TerminationReason)
		require.Equal(t, -625.0, reward)
	})

	t.Run("fill bar ignores the stop loss when optimistic", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, price(1.095), price(1.105)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		next, reward, err := p.Update(fakeMarket{ts: at(9, 1, 0), low: 1.094, high: 1.106, close: 1.1}, eur6e, ExecutionBiasOptimistic)
		require.NoError(t, err)

		closed, ok := next.(ClosedTrade)
		require.True(t, ok)
		require.Equal(t, TerminationReasonTakeProfit, closed.TerminationReason)
		require.Equal(t, 625.0, reward)
	})

	t.Run("modify validates the whole triple", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, price(1.09), price(1.11)), 1.1, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		err = p.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewEntryPrice: price(1.115)}, eur6e)
		require.True(t, errors.Is(err, ErrInvalidPriceOrdering))
		require.Equal(t, eventmodels.Price(1.1), p.LimitPrice)

		err = p.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewEntryPrice: price(1.105), NewTakeProfit: price(1.12)}, eur6e)
		require.NoError(t, err)
		require.Equal(t, eventmodels.Price(1.105), p.LimitPrice)
		require.Equal(t, eventmodels.Price(1.12), *p.TakeProfit)
	})

	t.Run("cancel", func(t *testing.T) {
		p, err := NewPendingTrade(longOpen(1, nil, nil), 1.095, at(9, 0, 0), eur6e)
		require.NoError(t, err)

		_, err = p.Cancel(CancelCmd{AgentID: "agent-2", TradeID: 1}, at(9, 10, 0))
		require.True(t, errors.Is(err, ErrAccessDenied))

		canceled, err := p.Cancel(CancelCmd{AgentID: "agent-1", TradeID: 1}, at(9, 10, 0))
		require.NoError(t, err)
		require.Equal(t, "10m0s", canceled.TimeInForce().String())
	})
}

func TestTradeStateAccessors(t *testing.T) {
	p, err := NewPendingTrade(longOpen(1, price(1.095), price(1.11)), 1.1, at(9, 0, 0), eur6e)
	require.NoError(t, err)

	loss, ok := ExpectedLossTicks(p, eur6e)
	require.True(t, ok)
	require.Equal(t, eventmodels.Tick(100), loss)

	profit, ok := ExpectedProfitTicks(p, eur6e)
	require.True(t, ok)
	require.Equal(t, eventmodels.Tick(200), profit)

	rr, ok := RiskRewardRatio(p, eur6e)
	require.True(t, ok)
	require.InDelta(t, 2.0, rr, 1e-9)

	_, ok = PnlUSD(p)
	require.False(t, ok)

	a, err := NewActiveTrade(longOpen(2, nil, nil), 1.1, at(9, 0, 0), eur6e)
	require.NoError(t, err)

	outcome, _, err := a.MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 2}, 1.105, at(10, 0, 0), eur6e)
	require.NoError(t, err)

	closed := outcome.Closed
	require.Equal(t, "1h0m0s", closed.Duration().String())
	require.InDelta(t, 625.0/1.1, closed.ROI(), 1e-9)

	ticks, ok := PnlTicks(closed, eur6e)
	require.True(t, ok)
	require.Equal(t, eventmodels.Tick(100), ticks)

	reason, ok := ExitReason(closed)
	require.True(t, ok)
	require.Equal(t, TerminationReasonMarketClose, reason)
}

func TestSnapLogsOffGridPrices(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	_, err := NewActiveTrade(longOpen(1, price(1.095), nil), 1.1, at(9, 0, 0), eur6e)
	require.NoError(t, err)
	require.Empty(t, hook.AllEntries())

	a, err := NewActiveTrade(longOpen(1, price(1.09501), nil), 1.1, at(9, 0, 0), eur6e)
	require.NoError(t, err)
	require.Equal(t, eventmodels.Price(1.095), *a.StopLoss)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, log.DebugLevel, entry.Level)
	require.Contains(t, entry.Message, "stop_loss")
	require.Contains(t, entry.Message, "1.09501")
}
