package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

func TestTradeStateRepositoryOpen(t *testing.T) {
	market := fakeMarket{ts: at(9, 0, 0), low: 1.0995, high: 1.1005, close: 1.1}

	t.Run("market order becomes active at the close", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		state, err := repo.Open(eurMarket, longOpen(1, nil, nil), market)
		require.NoError(t, err)

		active, ok := state.(ActiveTrade)
		require.True(t, ok)
		require.Equal(t, eventmodels.Price(1.1), active.EntryPrice)
		require.False(t, repo.AllClosed())
	})

	t.Run("limit order becomes pending", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		cmd := longOpen(1, nil, nil)
		cmd.EntryPrice = price(1.09)

		state, err := repo.Open(eurMarket, cmd, market)
		require.NoError(t, err)
		require.Equal(t, StateKindPending, state.Kind())
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, nil, nil), market)
		require.NoError(t, err)

		_, err = repo.Open(eurMarket, longOpen(1, nil, nil), market)
		require.True(t, errors.Is(err, ErrInvalidInput))
		require.Len(t, repo.IterLive(), 1)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), nil)
		unknown := eventmodels.MarketID{Broker: "binance", Exchange: "binance", Symbol: "dogeusdt"}

		_, err := repo.Open(unknown, longOpen(1, nil, nil), market)
		require.True(t, errors.Is(err, eventmodels.ErrUnknownSymbol))
	})
}

func TestTradeStateRepositoryCommands(t *testing.T) {
	market := fakeMarket{ts: at(9, 0, 0), low: 1.0995, high: 1.1005, close: 1.1}

	t.Run("unknown trade", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		err := repo.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 42, NewStopLoss: price(1.09)})
		require.True(t, errors.Is(err, ErrKeyNotFound))

		_, err = repo.MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 42}, market)
		require.True(t, errors.Is(err, ErrKeyNotFound))
	})

	t.Run("cancel only applies to pending trades", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, nil, nil), market)
		require.NoError(t, err)

		_, err = repo.Cancel(CancelCmd{AgentID: "agent-1", TradeID: 1}, market)
		require.True(t, errors.Is(err, ErrInvalidInput))

		state, ok := repo.GetByID(1)
		require.True(t, ok)
		require.Equal(t, StateKindActive, state.Kind())
	})

	t.Run("cancel archives a pending trade", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		cmd := longOpen(1, nil, nil)
		cmd.EntryPrice = price(1.09)
		_, err := repo.Open(eurMarket, cmd, market)
		require.NoError(t, err)

		canceled, err := repo.Cancel(CancelCmd{AgentID: "agent-1", TradeID: 1}, market)
		require.NoError(t, err)
		require.Equal(t, TradeID(1), canceled.UID)

		_, ok := repo.GetByID(1)
		require.False(t, ok)
		require.True(t, repo.AllClosed())
		require.Len(t, repo.IterArchive(), 1)
	})

	t.Run("failed modify leaves the trade unchanged", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, price(1.095), nil), market)
		require.NoError(t, err)

		err = repo.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewStopLoss: price(1.2)})
		require.True(t, errors.Is(err, ErrInvalidPriceOrdering))

		state, _ := repo.GetByID(1)
		require.Equal(t, eventmodels.Price(1.095), *state.Envelope().StopLoss)

		err = repo.Modify(ModifyCmd{AgentID: "agent-1", TradeID: 1, NewStopLoss: price(1.097)})
		require.NoError(t, err)

		state, _ = repo.GetByID(1)
		require.Equal(t, eventmodels.Price(1.097), *state.Envelope().StopLoss)
	})

	t.Run("partial market close archives the closed part", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, nil, nil), market)
		require.NoError(t, err)

		later := fakeMarket{ts: at(9, 5, 0), low: 1.1, high: 1.106, close: 1.105}
		outcome, err := repo.MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1, Quantity: qty(0.5)}, later)
		require.NoError(t, err)
		require.True(t, outcome.IsPartial())

		require.Equal(t, 312.5, repo.PopReward())
		require.Equal(t, 0.0, repo.PopReward())
		require.Equal(t, 312.5, repo.Pnl())

		archived := repo.IterArchive()
		require.Len(t, archived, 1)
		require.Equal(t, eventmodels.Quantity(0.5), archived[0].State.Envelope().Quantity)

		state, ok := repo.GetByID(1)
		require.True(t, ok)
		require.Equal(t, eventmodels.Quantity(0.5), state.Envelope().Quantity)
	})

	t.Run("rewards sum to realized pnl across mark, partial close and take profit", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, nil, price(1.105)), market)
		require.NoError(t, err)

		var rewards float64
		rewards += repo.PopReward()

		marked := fakeMarket{ts: at(9, 1, 0), low: 1.1, high: 1.1025, close: 1.102}
		_, err = repo.UpdateAllLiveTrades(marked, ExecutionBiasPessimistic)
		require.NoError(t, err)
		r := repo.PopReward()
		require.InDelta(t, 250.0, r, 1e-9)
		rewards += r

		outcome, err := repo.MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 1, Quantity: qty(0.3)}, marked)
		require.NoError(t, err)
		require.True(t, outcome.IsPartial())
		rewards += repo.PopReward()

		hit := fakeMarket{ts: at(9, 2, 0), low: 1.102, high: 1.106, close: 1.104}
		transitions, err := repo.UpdateAllLiveTrades(hit, ExecutionBiasPessimistic)
		require.NoError(t, err)
		require.Len(t, transitions, 1)
		require.Equal(t, StateKindClosed, transitions[0].State.Kind())
		rewards += repo.PopReward()
		require.True(t, repo.AllClosed())

		var realized float64
		archived := repo.IterArchive()
		require.Len(t, archived, 2)
		for _, mt := range archived {
			closed, ok := mt.State.(ClosedTrade)
			require.True(t, ok)
			realized += closed.RealizedPnl
		}

		require.InDelta(t, realized, rewards, 1e-9)
		require.InDelta(t, repo.Pnl(), rewards, 1e-9)
	})
}

func TestTradeStateRepositoryUpdate(t *testing.T) {
	market := fakeMarket{ts: at(9, 0, 0), low: 1.0995, high: 1.1005, close: 1.1}

	t.Run("swap remove keeps the index consistent", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, price(1.099), nil), market)
		require.NoError(t, err)
		_, err = repo.Open(eurMarket, longOpen(2, nil, nil), market)
		require.NoError(t, err)
		_, err = repo.Open(eurMarket, longOpen(3, price(1.099), nil), market)
		require.NoError(t, err)

		drop := fakeMarket{ts: at(9, 1, 0), low: 1.098, high: 1.1, close: 1.099}
		transitions, err := repo.UpdateAllLiveTrades(drop, ExecutionBiasPessimistic)
		require.NoError(t, err)
		require.Len(t, transitions, 2)

		for _, tr := range transitions {
			require.Equal(t, StateKindActive, tr.From)
			require.Equal(t, StateKindClosed, tr.State.Kind())
		}

		state, ok := repo.GetByID(2)
		require.True(t, ok)
		require.Equal(t, TradeID(2), state.Envelope().UID)

		_, ok = repo.GetByID(1)
		require.False(t, ok)
		_, ok = repo.GetByID(3)
		require.False(t, ok)

		require.Equal(t, -375.0, repo.PopReward())

		_, err = repo.MarketClose(MarketCloseCmd{AgentID: "agent-1", TradeID: 2}, drop)
		require.NoError(t, err)
		require.True(t, repo.AllClosed())
		require.Equal(t, 0.0, repo.PopReward())
		require.Equal(t, -375.0, repo.Pnl())
	})

	t.Run("pending fill is reported", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		cmd := longOpen(1, nil, nil)
		cmd.EntryPrice = price(1.095)
		_, err := repo.Open(eurMarket, cmd, market)
		require.NoError(t, err)

		transitions, err := repo.UpdateAllLiveTrades(fakeMarket{ts: at(9, 1, 0), low: 1.095, high: 1.1, close: 1.098}, ExecutionBiasPessimistic)
		require.NoError(t, err)
		require.Len(t, transitions, 1)
		require.Equal(t, StateKindPending, transitions[0].From)
		require.Equal(t, StateKindActive, transitions[0].State.Kind())
		require.Equal(t, 375.0, repo.PopReward())
	})

	t.Run("clear", func(t *testing.T) {
		repo := NewTradeStateRepository(newCatalog(), []eventmodels.MarketID{eurMarket})

		_, err := repo.Open(eurMarket, longOpen(1, nil, nil), market)
		require.NoError(t, err)

		repo.Clear()
		require.True(t, repo.AllClosed())
		require.Empty(t, repo.IterLive())
		require.Equal(t, 0.0, repo.Pnl())
	})
}

func TestLedger(t *testing.T) {
	market := fakeMarket{ts: at(9, 0, 0), low: 1.0995, high: 1.1005, close: 1.1}
	ep := DefaultEpisode()

	t.Run("applies actions in priority order and counts rejections", func(t *testing.T) {
		ledger := NewLedger(newCatalog(), []eventmodels.MarketID{eurMarket})

		limit := longOpen(2, nil, nil)
		limit.EntryPrice = price(1.09)

		empty := longOpen(3, nil, nil)
		empty.Quantity = 0

		actions := NewActions()
		actions.Add(eurMarket, NewOpenAction(longOpen(1, nil, nil)))
		actions.Add(eurMarket, NewOpenAction(limit))
		actions.Add(eurMarket, NewCancelAction(CancelCmd{AgentID: "agent-1", TradeID: 2}))
		actions.Add(eurMarket, NewOpenAction(empty))

		summary := ledger.ApplyActions(ep, actions, market)
		require.Equal(t, 2, summary.Executed)
		require.Equal(t, 2, summary.Rejected)
		require.Equal(t, ActionCancel, summary.Results[0].Action.Kind)
		require.True(t, errors.Is(summary.Results[0].Err, ErrKeyNotFound))

		journal, err := ledger.Journal()
		require.NoError(t, err)
		require.Len(t, journal, 2)
		require.False(t, ledger.IsTerminal(ep))
	})

	t.Run("episodes are independent", func(t *testing.T) {
		ledger := NewLedger(newCatalog(), []eventmodels.MarketID{eurMarket})

		actions := NewActions()
		actions.Add(eurMarket, NewOpenAction(longOpen(1, price(1.099), nil)))
		ledger.ApplyActions(ep, actions, market)

		next := ep.Next(at(10, 0, 0))
		require.True(t, ledger.IsTerminal(next))
		require.Equal(t, 0.0, ledger.PopStepReward(next))

		_, err := ledger.ApplyUpdates(ep, fakeMarket{ts: at(9, 1, 0), low: 1.098, high: 1.1, close: 1.099}, ExecutionBiasPessimistic)
		require.NoError(t, err)
		require.Equal(t, -125.0, ledger.PopStepReward(ep))
		require.Equal(t, -125.0, ledger.EpisodePnl(ep))
		require.True(t, ledger.IsTerminal(ep))

		journal, err := ledger.Journal()
		require.NoError(t, err)
		require.Len(t, journal, 1)
		require.Equal(t, "closed", journal[0].TradeState)
		require.Equal(t, "stop_loss", journal[0].ExitReason)
		require.Equal(t, int64(-20), journal[0].RealizedReturnInTicks)
	})

	t.Run("commands validate before they apply", func(t *testing.T) {
		require.Error(t, ModifyCmd{NewStopLoss: price(1.1), NewTakeProfit: price(1.1)}.Validate())
		require.Error(t, MarketCloseCmd{Quantity: qty(0)}.Validate())
		require.True(t, errors.Is(MarketCloseCmd{Quantity: qty(math.NaN())}.Validate(), ErrInvalidInput))
		require.True(t, errors.Is(ModifyCmd{NewStopLoss: price(math.Inf(-1))}.Validate(), ErrInvalidInput))

		nan := longOpen(1, nil, price(math.NaN()))
		require.True(t, errors.Is(nan.Validate(), ErrInvalidInput))
		nan = longOpen(1, nil, nil)
		nan.Quantity = eventmodels.Quantity(math.Inf(1))
		require.True(t, errors.Is(nan.Validate(), ErrInvalidInput))
		require.NoError(t, MarketCloseCmd{}.Validate())
		require.Error(t, Action{Kind: ActionOpen}.Validate())
	})

	t.Run("ordered actions are sorted by market then priority", func(t *testing.T) {
		other := eventmodels.MarketID{Broker: "binance", Exchange: "binance", Symbol: "btcusdt"}

		actions := NewActions()
		actions.Add(eurMarket, NewOpenAction(longOpen(1, nil, nil)))
		actions.Add(eurMarket, NewModifyAction(ModifyCmd{TradeID: 1}))
		actions.Add(other, NewMarketCloseAction(MarketCloseCmd{TradeID: 5}))
		actions.Add(eurMarket, NewCancelAction(CancelCmd{TradeID: 2}))

		ordered := actions.Ordered()
		require.Len(t, ordered, 2)
		require.Equal(t, other, ordered[0].Market)

		var kinds []ActionKind
		for _, a := range ordered[1].Actions {
			kinds = append(kinds, a.Kind)
		}
		require.Equal(t, []ActionKind{ActionCancel, ActionModify, ActionOpen}, kinds)
		require.Equal(t, 4, actions.Len())
	})
}
