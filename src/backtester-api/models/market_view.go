package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// MarketViewer is everything a trade needs to know about the market at the
// current step.
type MarketViewer interface {
	TryResolvedClosePrice(symbol eventmodels.Symbol) (eventmodels.Price, error)
	ReachedPrice(price eventmodels.Price, symbol eventmodels.Symbol) bool
	CurrentTimestamp() time.Time
}

// MarketView is a read-only, point-in-time slice of the simulation data: for
// every stream only the events that became available at or before the
// current timestamp are visible.
type MarketView struct {
	currentTs  time.Time
	previousTs *time.Time

	Ohlcv         []Stream[eventmodels.OhlcvID, eventmodels.Ohlcv]
	Trade         []Stream[eventmodels.TradesID, eventmodels.TradePrint]
	EconomicCal   []Stream[eventmodels.EconomicCalendarID, eventmodels.EconomicEvent]
	VolumeProfile []Stream[eventmodels.VolumeProfileID, eventmodels.VolumeProfile]
	Tpo           []Stream[eventmodels.TpoID, eventmodels.Tpo]
	Ema           []Stream[eventmodels.EmaID, eventmodels.Ema]
	Sma           []Stream[eventmodels.SmaID, eventmodels.Sma]
	Rsi           []Stream[eventmodels.RsiID, eventmodels.Rsi]
}

func (v *MarketView) CurrentTimestamp() time.Time {
	return v.currentTs
}

func (v *MarketView) PreviousTimestamp() (time.Time, bool) {
	if v.previousTs == nil {
		return time.Time{}, false
	}

	return *v.previousTs, true
}

// ReachedPrice reports whether price traded in any OHLCV bar or trade print
// of the symbol that became available since the previous step.
func (v *MarketView) ReachedPrice(price eventmodels.Price, symbol eventmodels.Symbol) bool {
	prev := MinTime
	if v.previousTs != nil {
		prev = *v.previousTs
	}

	return reachedSince(v.Ohlcv, symbol, price, prev) || reachedSince(v.Trade, symbol, price, prev)
}

func reachedSince[K eventmodels.SymbolStreamID, E eventmodels.PriceReachable](streams []Stream[K, E], symbol eventmodels.Symbol, price eventmodels.Price, prev time.Time) bool {
	for _, s := range streams {
		if s.ID.GetSymbol() != symbol {
			continue
		}

		for i := len(s.Events) - 1; i >= 0; i-- {
			e := s.Events[i]
			if !e.PointInTime().After(prev) {
				break
			}

			if e.PriceReached(price) {
				return true
			}
		}
	}

	return false
}

// TryResolvedClosePrice returns the close of the most recently closed OHLCV
// bar or trade print for the symbol. On equal timestamps the trade print wins.
func (v *MarketView) TryResolvedClosePrice(symbol eventmodels.Symbol) (eventmodels.Price, error) {
	var best latestPrice

	best = best.merge(latestPriceForSymbol(v.Ohlcv, symbol))
	best = best.merge(latestPriceForSymbol(v.Trade, symbol))

	if !best.ok {
		return 0, fmt.Errorf("TryResolvedClosePrice: no price events for symbol %s: %w", symbol, ErrKeyNotFound)
	}

	return best.price, nil
}

type latestPrice struct {
	ts    time.Time
	price eventmodels.Price
	ok    bool
}

func (l latestPrice) merge(other latestPrice) latestPrice {
	if !other.ok {
		return l
	}

	if !l.ok || !other.ts.Before(l.ts) {
		return other
	}

	return l
}

func latestPriceForSymbol[K eventmodels.SymbolStreamID, E eventmodels.ClosePriceProvider](streams []Stream[K, E], symbol eventmodels.Symbol) latestPrice {
	var best latestPrice
	for _, s := range streams {
		if s.ID.GetSymbol() != symbol || len(s.Events) == 0 {
			continue
		}

		last := s.Events[len(s.Events)-1]
		best = best.merge(latestPrice{ts: last.ClosedAt(), price: last.ClosePrice(), ok: true})
	}

	return best
}

// FindCandle returns the visible bar whose interval [open, close) contains ts.
func (v *MarketView) FindCandle(id eventmodels.OhlcvID, ts time.Time) (eventmodels.Ohlcv, bool) {
	events := visibleEvents(v.Ohlcv, id)
	for i := len(events) - 1; i >= 0; i-- {
		c := events[i]
		if !c.OpenTimestamp.After(ts) && ts.Before(c.CloseTimestamp) {
			return c, true
		}
	}

	return eventmodels.Ohlcv{}, false
}

func (v *MarketView) LatestCandle(id eventmodels.OhlcvID) (eventmodels.Ohlcv, bool) {
	return lastVisible(v.Ohlcv, id)
}

func (v *MarketView) LatestSma(id eventmodels.SmaID) (eventmodels.Sma, bool) {
	return lastVisible(v.Sma, id)
}

func (v *MarketView) LatestEma(id eventmodels.EmaID) (eventmodels.Ema, bool) {
	return lastVisible(v.Ema, id)
}

func (v *MarketView) LatestRsi(id eventmodels.RsiID) (eventmodels.Rsi, bool) {
	return lastVisible(v.Rsi, id)
}

// Candles returns every visible bar of the stream, oldest first.
func (v *MarketView) Candles(id eventmodels.OhlcvID) []eventmodels.Ohlcv {
	return visibleEvents(v.Ohlcv, id)
}

// EconomicEventsSince lists the calendar releases that became known after the
// previous step.
func (v *MarketView) EconomicEventsSince() []eventmodels.EconomicEvent {
	prev := MinTime
	if v.previousTs != nil {
		prev = *v.previousTs
	}

	var out []eventmodels.EconomicEvent
	for _, s := range v.EconomicCal {
		for i := len(s.Events) - 1; i >= 0; i-- {
			if !s.Events[i].PointInTime().After(prev) {
				break
			}
			out = append(out, s.Events[i])
		}
	}

	return out
}

func visibleEvents[K eventmodels.StreamID, E eventmodels.MarketEvent](streams []Stream[K, E], id K) []E {
	for _, s := range streams {
		if s.ID == id {
			return s.Events
		}
	}

	return nil
}

func lastVisible[K eventmodels.StreamID, E eventmodels.MarketEvent](streams []Stream[K, E], id K) (E, bool) {
	events := visibleEvents(streams, id)
	if len(events) == 0 {
		var zero E
		return zero, false
	}

	return events[len(events)-1], true
}
