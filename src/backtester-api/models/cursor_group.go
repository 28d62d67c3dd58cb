package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// CursorGroup moves one simulation clock over all eight event categories.
// Every cursor is advanced to the same instant, so the union of consumed
// events is always exactly "everything knowable at CurrentTs".
type CursorGroup struct {
	data *SimulationData

	ohlcv         *StreamCursor[eventmodels.OhlcvID, eventmodels.Ohlcv]
	trade         *StreamCursor[eventmodels.TradesID, eventmodels.TradePrint]
	economicCal   *StreamCursor[eventmodels.EconomicCalendarID, eventmodels.EconomicEvent]
	volumeProfile *StreamCursor[eventmodels.VolumeProfileID, eventmodels.VolumeProfile]
	tpo           *StreamCursor[eventmodels.TpoID, eventmodels.Tpo]
	ema           *StreamCursor[eventmodels.EmaID, eventmodels.Ema]
	sma           *StreamCursor[eventmodels.SmaID, eventmodels.Sma]
	rsi           *StreamCursor[eventmodels.RsiID, eventmodels.Rsi]

	currentTs  time.Time
	previousTs *time.Time
}

func NewCursorGroup(data *SimulationData) *CursorGroup {
	g := &CursorGroup{
		data:          data,
		ohlcv:         NewStreamCursor(data.ohlcv),
		trade:         NewStreamCursor(data.trade),
		economicCal:   NewStreamCursor(data.economicCal),
		volumeProfile: NewStreamCursor(data.volumeProfile),
		tpo:           NewStreamCursor(data.tpo),
		ema:           NewStreamCursor(data.ema),
		sma:           NewStreamCursor(data.sma),
		rsi:           NewStreamCursor(data.rsi),
	}

	g.currentTs = data.GlobalAvailabilityStart()
	g.advanceAll(g.currentTs)

	return g
}

func (g *CursorGroup) CurrentTs() time.Time {
	return g.currentTs
}

func (g *CursorGroup) PreviousTs() (time.Time, bool) {
	if g.previousTs == nil {
		return time.Time{}, false
	}

	return *g.previousTs, true
}

func (g *CursorGroup) advanceAll(ts time.Time) {
	g.ohlcv.Advance(ts)
	g.trade.Advance(ts)
	g.economicCal.Advance(ts)
	g.volumeProfile.Advance(ts)
	g.tpo.Advance(ts)
	g.ema.Advance(ts)
	g.sma.Advance(ts)
	g.rsi.Advance(ts)
}

func (g *CursorGroup) toEndAll() {
	g.ohlcv.ToEnd()
	g.trade.ToEnd()
	g.economicCal.ToEnd()
	g.volumeProfile.ToEnd()
	g.tpo.ToEnd()
	g.ema.ToEnd()
	g.sma.ToEnd()
	g.rsi.ToEnd()
}

func (g *CursorGroup) rewindAll() {
	g.ohlcv.Rewind()
	g.trade.Rewind()
	g.economicCal.Rewind()
	g.volumeProfile.Rewind()
	g.tpo.Rewind()
	g.ema.Rewind()
	g.sma.Rewind()
	g.rsi.Rewind()
}

type timeLookup func() (time.Time, bool)

func earliestOf(lookups ...timeLookup) (time.Time, bool) {
	var best time.Time
	found := false
	for _, lookup := range lookups {
		ts, ok := lookup()
		if ok && (!found || ts.Before(best)) {
			best = ts
			found = true
		}
	}

	return best, found
}

func (g *CursorGroup) nextAvailability() (time.Time, bool) {
	return earliestOf(
		g.ohlcv.NextAvailability,
		g.trade.NextAvailability,
		g.economicCal.NextAvailability,
		g.volumeProfile.NextAvailability,
		g.tpo.NextAvailability,
		g.ema.NextAvailability,
		g.sma.NextAvailability,
		g.rsi.NextAvailability,
	)
}

func (g *CursorGroup) firstOpenAtOrAfter(ts time.Time) (time.Time, bool) {
	return earliestOf(
		func() (time.Time, bool) { return g.ohlcv.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.trade.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.economicCal.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.volumeProfile.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.tpo.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.ema.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.sma.FindFirstOpenAtOrAfter(ts) },
		func() (time.Time, bool) { return g.rsi.FindFirstOpenAtOrAfter(ts) },
	)
}

func (g *CursorGroup) firstAvailabilityAtOrAfter(ts time.Time) (time.Time, bool) {
	return earliestOf(
		func() (time.Time, bool) { return g.ohlcv.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.trade.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.economicCal.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.volumeProfile.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.tpo.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.ema.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.sma.FindFirstAvailabilityAtOrAfter(ts) },
		func() (time.Time, bool) { return g.rsi.FindFirstAvailabilityAtOrAfter(ts) },
	)
}

// Step moves the clock to the next instant at which any event becomes
// available, never past the episode end. It is a no-op once the data is
// exhausted or the clock already sits on the episode boundary.
func (g *CursorGroup) Step(episode Episode) {
	candidate, ok := g.nextAvailability()
	if !ok {
		return
	}

	if candidate.After(episode.End) {
		candidate = episode.End
	}

	if !candidate.After(g.currentTs) {
		return
	}

	prev := g.currentTs
	g.previousTs = &prev
	g.currentTs = candidate
	g.advanceAll(candidate)
}

// AdvanceToNextEpisode skips any gap in the data and starts the episode that
// follows the given one where data next begins. It returns false once no
// event opens at or after the episode end.
func (g *CursorGroup) AdvanceToNextEpisode(episode Episode) (Episode, bool, error) {
	openStart, ok := g.firstOpenAtOrAfter(episode.End)
	if !ok {
		g.toEndAll()
		return Episode{}, false, nil
	}

	availability, ok := g.firstAvailabilityAtOrAfter(openStart)
	if !ok {
		return Episode{}, false, fmt.Errorf("AdvanceToNextEpisode: an event opens at %s but none becomes available after it: %w", openStart, ErrCausalityViolation)
	}

	g.previousTs = nil
	g.currentTs = availability
	g.advanceAll(availability)

	return episode.Next(openStart), true, nil
}

func (g *CursorGroup) Reset() {
	g.rewindAll()
	g.previousTs = nil
	g.currentTs = g.data.GlobalAvailabilityStart()
	g.advanceAll(g.currentTs)
}

func (g *CursorGroup) IsEndOfData() bool {
	return g.ohlcv.IsDone() &&
		g.trade.IsDone() &&
		g.economicCal.IsDone() &&
		g.volumeProfile.IsDone() &&
		g.tpo.IsDone() &&
		g.ema.IsDone() &&
		g.sma.IsDone() &&
		g.rsi.IsDone()
}

// View builds the point-in-time market view for the current clock.
func (g *CursorGroup) View() *MarketView {
	return &MarketView{
		currentTs:     g.currentTs,
		previousTs:    g.previousTs,
		Ohlcv:         g.ohlcv.Visible(),
		Trade:         g.trade.Visible(),
		EconomicCal:   g.economicCal.Visible(),
		VolumeProfile: g.volumeProfile.Visible(),
		Tpo:           g.tpo.Visible(),
		Ema:           g.ema.Visible(),
		Sma:           g.sma.Visible(),
		Rsi:           g.rsi.Visible(),
	}
}

type cursorSnapshot struct {
	currentTs  time.Time
	previousTs *time.Time
	ranges     [][]int
}

func (g *CursorGroup) snapshot() cursorSnapshot {
	return cursorSnapshot{
		currentTs:  g.currentTs,
		previousTs: g.previousTs,
		ranges: [][]int{
			g.ohlcv.snapshot(), g.trade.snapshot(), g.economicCal.snapshot(), g.volumeProfile.snapshot(),
			g.tpo.snapshot(), g.ema.snapshot(), g.sma.snapshot(), g.rsi.snapshot(),
		},
	}
}
