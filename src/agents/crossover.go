package agents

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/backtester-api/services"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type CrossoverConfig struct {
	ID              models.AgentID
	Candles         eventmodels.OhlcvID
	SmaLength       int
	Quantity        eventmodels.Quantity
	StopLossTicks   eventmodels.Tick
	TakeProfitTicks eventmodels.Tick
	Instrument      eventmodels.Instrument
}

func (c CrossoverConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("CrossoverConfig: missing agent id")
	}

	if c.SmaLength <= 0 {
		return fmt.Errorf("CrossoverConfig: sma length must be positive, got %d", c.SmaLength)
	}

	if c.Quantity <= 0 {
		return fmt.Errorf("CrossoverConfig: quantity must be positive, got %v", c.Quantity)
	}

	if c.StopLossTicks < 0 || c.TakeProfitTicks < 0 {
		return fmt.Errorf("CrossoverConfig: stop loss and take profit ticks must not be negative")
	}

	return c.Instrument.Validate()
}

// CrossoverAgent goes long when the close crosses above its simple moving
// average and flattens when it crosses back below.
type CrossoverAgent struct {
	cfg         CrossoverConfig
	smaID       eventmodels.SmaID
	prevAbove   *bool
	nextTradeID models.TradeID
}

func NewCrossoverAgent(cfg CrossoverConfig) (*CrossoverAgent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &CrossoverAgent{
		cfg:         cfg,
		smaID:       eventmodels.SmaID{Parent: cfg.Candles, Length: cfg.SmaLength},
		nextTradeID: 1,
	}, nil
}

func (a *CrossoverAgent) ID() models.AgentID {
	return a.cfg.ID
}

func (a *CrossoverAgent) Reset() {
	a.prevAbove = nil
}

func (a *CrossoverAgent) position(obs services.Observation) (models.JournalEntry, bool) {
	for _, t := range obs.LiveTrades {
		if t.AgentID == string(a.cfg.ID) && t.Symbol == a.cfg.Candles.Symbol.String() {
			return t, true
		}
	}

	return models.JournalEntry{}, false
}

func (a *CrossoverAgent) bracket(close eventmodels.Price) (sl, tp *eventmodels.Price) {
	inst := a.cfg.Instrument

	if a.cfg.StopLossTicks > 0 {
		p := inst.NormalizePrice(close - inst.TicksToPrice(a.cfg.StopLossTicks))
		sl = &p
	}

	if a.cfg.TakeProfitTicks > 0 {
		p := inst.NormalizePrice(close + inst.TicksToPrice(a.cfg.TakeProfitTicks))
		tp = &p
	}

	return sl, tp
}

func (a *CrossoverAgent) Act(obs services.Observation) (models.Actions, error) {
	actions := models.NewActions()
	if obs.View == nil {
		return actions, nil
	}

	candle, ok := obs.View.LatestCandle(a.cfg.Candles)
	if !ok {
		return actions, nil
	}

	sma, ok := obs.View.LatestSma(a.smaID)
	if !ok || !sma.Timestamp.Equal(candle.CloseTimestamp) {
		return actions, nil
	}

	above := candle.Close > sma.Price
	prev := a.prevAbove
	a.prevAbove = &above

	if prev == nil || *prev == above {
		return actions, nil
	}

	market := a.cfg.Candles.MarketID()
	pos, hasPosition := a.position(obs)

	switch {
	case above && !hasPosition:
		sl, tp := a.bracket(candle.Close)
		id := a.nextTradeID
		a.nextTradeID++

		log.WithFields(log.Fields{
			"agent": a.cfg.ID,
			"trade": id,
			"close": candle.Close,
			"sma":   sma.Price,
		}).Debug("crossed above sma")

		actions.Add(market, models.NewOpenAction(models.OpenCmd{
			TradeID:    id,
			AgentID:    a.cfg.ID,
			TradeType:  models.TradeTypeLong,
			Quantity:   a.cfg.Quantity,
			StopLoss:   sl,
			TakeProfit: tp,
		}))
	case !above && hasPosition && pos.TradeState == models.StateKindPending.String():
		actions.Add(market, models.NewCancelAction(models.CancelCmd{
			AgentID: a.cfg.ID,
			TradeID: models.TradeID(pos.TradeID),
		}))
	case !above && hasPosition:
		actions.Add(market, models.NewMarketCloseAction(models.MarketCloseCmd{
			AgentID: a.cfg.ID,
			TradeID: models.TradeID(pos.TradeID),
		}))
	}

	return actions, nil
}
