package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

var (
	eur6e = eventmodels.Instrument{Symbol: "6ez5", TickSize: 0.00005, TickValueUSD: 6.25}

	eurOhlcvID = eventmodels.OhlcvID{
		Broker:   eventmodels.DataBrokerNinjaTrader,
		Exchange: eventmodels.ExchangeCme,
		Symbol:   "6ez5",
		Period:   "1m",
	}

	eurTradesID = eventmodels.TradesID{
		Broker:   eventmodels.DataBrokerNinjaTrader,
		Exchange: eventmodels.ExchangeCme,
		Symbol:   "6ez5",
	}

	eurMarket = eurOhlcvID.MarketID()

	usCalendarID = eventmodels.EconomicCalendarID{
		Broker:      eventmodels.DataBrokerInvestingCom,
		DataSource:  "investingcom",
		CountryCode: "us",
		Category:    "employment",
		Importance:  3,
	}
)

func at(hour, min, sec int) time.Time {
	return time.Date(2024, time.March, 15, hour, min, sec, 0, time.UTC)
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

func qty(q float64) *eventmodels.Quantity {
	v := eventmodels.Quantity(q)
	return &v
}

// fakeMarket is a single bar seen through the MarketViewer interface.
type fakeMarket struct {
	ts    time.Time
	low   eventmodels.Price
	high  eventmodels.Price
	close eventmodels.Price
}

func (m fakeMarket) TryResolvedClosePrice(symbol eventmodels.Symbol) (eventmodels.Price, error) {
	if m.close == 0 {
		return 0, fmt.Errorf("fakeMarket: no price for %s: %w", symbol, ErrKeyNotFound)
	}

	return m.close, nil
}

func (m fakeMarket) ReachedPrice(p eventmodels.Price, symbol eventmodels.Symbol) bool {
	return m.low <= p && p <= m.high
}

func (m fakeMarket) CurrentTimestamp() time.Time {
	return m.ts
}

func newCatalog() *eventmodels.InstrumentCatalog {
	catalog := eventmodels.NewInstrumentCatalog()
	if err := catalog.Add(eur6e); err != nil {
		panic(err)
	}

	return catalog
}

func longOpen(id TradeID, sl, tp *eventmodels.Price) OpenCmd {
	return OpenCmd{
		TradeID:    id,
		AgentID:    "agent-1",
		TradeType:  TradeTypeLong,
		Quantity:   1,
		StopLoss:   sl,
		TakeProfit: tp,
	}
}
