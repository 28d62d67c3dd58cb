package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
	"github.com/jiaming2012/trading-gym/src/eventpubsub"
)

var (
	eurOhlcvID = eventmodels.OhlcvID{
		Broker:   eventmodels.DataBrokerNinjaTrader,
		Exchange: eventmodels.ExchangeCme,
		Symbol:   "6ez5",
		Period:   "1m",
	}

	eurMarket = eurOhlcvID.MarketID()
)

func at(hour, min int) time.Time {
	return time.Date(2024, time.March, 15, hour, min, 0, 0, time.UTC)
}

func bar(open time.Time, o, h, l, c float64) eventmodels.Ohlcv {
	return eventmodels.Ohlcv{
		OpenTimestamp:  open,
		CloseTimestamp: open.Add(time.Minute),
		Open:           eventmodels.Price(o),
		High:           eventmodels.Price(h),
		Low:            eventmodels.Price(l),
		Close:          eventmodels.Price(c),
		Volume:         100,
	}
}

func price(p float64) *eventmodels.Price {
	v := eventmodels.Price(p)
	return &v
}

func newDataset(t *testing.T, candles []eventmodels.Ohlcv) *Dataset {
	data, err := models.NewSimulationDataBuilder().WithOhlcv(eurOhlcvID, candles).Build()
	require.NoError(t, err)

	return &Dataset{
		Name:        "test",
		Data:        data,
		Instruments: eventmodels.NewInstrumentCatalog(),
	}
}

func newEnvironment(t *testing.T, dataset *Dataset, publisher Publisher) *Environment {
	env, err := NewEnvironment(dataset, EnvironmentConfig{
		SessionID:            "session-1",
		EpisodeLength:        models.EpisodeLengthDay,
		Bias:                 models.ExecutionBiasPessimistic,
		InvalidActionPenalty: -10,
		Publisher:            publisher,
	})
	require.NoError(t, err)

	return env
}

func longMarketOpen(id models.TradeID, sl, tp *eventmodels.Price) models.Actions {
	actions := models.NewActions()
	actions.Add(eurMarket, models.NewOpenAction(models.OpenCmd{
		TradeID:    id,
		AgentID:    "agent-1",
		TradeType:  models.TradeTypeLong,
		Quantity:   1,
		StopLoss:   sl,
		TakeProfit: tp,
	}))

	return actions
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []eventpubsub.EventName
	events []interface{}
}

func (p *recordingPublisher) Publish(topic eventpubsub.EventName, event interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
}

// scriptedAgent opens a market long whenever it is flat and closes it on the
// following step.
type scriptedAgent struct {
	id     models.AgentID
	resets int
}

func (a *scriptedAgent) ID() models.AgentID {
	return a.id
}

func (a *scriptedAgent) Reset() {
	a.resets++
}

func (a *scriptedAgent) Act(obs Observation) (models.Actions, error) {
	actions := models.NewActions()
	for _, trade := range obs.LiveTrades {
		if trade.AgentID == string(a.id) {
			actions.Add(eurMarket, models.NewMarketCloseAction(models.MarketCloseCmd{
				AgentID: a.id,
				TradeID: models.TradeID(trade.TradeID),
			}))
			return actions, nil
		}
	}

	actions.Add(eurMarket, models.NewOpenAction(models.OpenCmd{
		TradeID:   models.TradeID(obs.EpisodeID*10 + 1),
		AgentID:   a.id,
		TradeType: models.TradeTypeLong,
		Quantity:  1,
	}))

	return actions, nil
}
