package models

import (
	"fmt"
	"sort"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type liveSlot struct {
	market eventmodels.MarketID
	idx    int
}

type marketBook struct {
	live    []TradeState
	archive []TradeState
}

// Transition records a trade changing phase during UpdateAllLiveTrades.
type Transition struct {
	Market eventmodels.MarketID
	From   StateKind
	State  TradeState
	Reward float64
}

// TradeStateRepository owns every trade of one episode. Live trades (pending
// and active) are kept apart from archived ones (closed and canceled) so the
// per-step update only walks what can still change.
type TradeStateRepository struct {
	instruments *eventmodels.InstrumentCatalog

	markets   []eventmodels.MarketID
	books     map[eventmodels.MarketID]*marketBook
	liveIndex map[TradeID]liveSlot

	stepReward    float64
	cumulativePnl float64
}

func NewTradeStateRepository(instruments *eventmodels.InstrumentCatalog, markets []eventmodels.MarketID) *TradeStateRepository {
	r := &TradeStateRepository{
		instruments: instruments,
		books:       map[eventmodels.MarketID]*marketBook{},
		liveIndex:   map[TradeID]liveSlot{},
	}

	for _, m := range markets {
		r.book(m)
	}

	return r
}

func (r *TradeStateRepository) book(market eventmodels.MarketID) *marketBook {
	b, ok := r.books[market]
	if ok {
		return b
	}

	b = &marketBook{}
	r.books[market] = b

	r.markets = append(r.markets, market)
	sort.Slice(r.markets, func(i, j int) bool {
		return r.markets[i].Key() < r.markets[j].Key()
	})

	return b
}

func (r *TradeStateRepository) instrument(market eventmodels.MarketID) (eventmodels.Instrument, error) {
	return r.instruments.Lookup(market.Symbol)
}

func (r *TradeStateRepository) recordPnlChange(delta float64) {
	r.stepReward += delta
	r.cumulativePnl += delta
}

func (r *TradeStateRepository) Open(market eventmodels.MarketID, cmd OpenCmd, view MarketViewer) (TradeState, error) {
	if _, found := r.liveIndex[cmd.TradeID]; found {
		return nil, fmt.Errorf("Open: trade %d already exists: %w", cmd.TradeID, ErrInvalidInput)
	}

	inst, err := r.instrument(market)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	ts := view.CurrentTimestamp()

	var state TradeState
	if cmd.EntryPrice != nil {
		pending, err := NewPendingTrade(cmd, *cmd.EntryPrice, ts, inst)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		state = pending
	} else {
		price, err := view.TryResolvedClosePrice(inst.Symbol)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}

		active, err := NewActiveTrade(cmd, price, ts, inst)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		state = active
	}

	b := r.book(market)
	b.live = append(b.live, state)
	r.liveIndex[cmd.TradeID] = liveSlot{market: market, idx: len(b.live) - 1}

	return state, nil
}

func (r *TradeStateRepository) Modify(cmd ModifyCmd) error {
	slot, err := r.slot(cmd.TradeID)
	if err != nil {
		return fmt.Errorf("Modify: %w", err)
	}

	inst, err := r.instrument(slot.market)
	if err != nil {
		return fmt.Errorf("Modify: %w", err)
	}

	return r.transact(slot, func(state TradeState) (TradeState, error) {
		switch t := state.(type) {
		case PendingTrade:
			if err := t.Modify(cmd, inst); err != nil {
				return nil, fmt.Errorf("Modify: %w", err)
			}
			return t, nil
		case ActiveTrade:
			if err := t.Modify(cmd, inst); err != nil {
				return nil, fmt.Errorf("Modify: %w", err)
			}
			return t, nil
		}

		return nil, fmt.Errorf("Modify: cannot modify a %s trade: %w", state.Kind(), ErrInvalidInput)
	})
}

// MarketClose closes some or all of an active trade at the resolved close
// price. A partial close archives the closed part and keeps the rest live.
func (r *TradeStateRepository) MarketClose(cmd MarketCloseCmd, view MarketViewer) (CloseOutcome, error) {
	slot, err := r.slot(cmd.TradeID)
	if err != nil {
		return CloseOutcome{}, fmt.Errorf("MarketClose: %w", err)
	}

	inst, err := r.instrument(slot.market)
	if err != nil {
		return CloseOutcome{}, fmt.Errorf("MarketClose: %w", err)
	}

	exitPrice, err := view.TryResolvedClosePrice(inst.Symbol)
	if err != nil {
		return CloseOutcome{}, fmt.Errorf("MarketClose: %w", err)
	}

	var outcome CloseOutcome
	var delta float64

	err = r.transact(slot, func(state TradeState) (TradeState, error) {
		active, ok := state.(ActiveTrade)
		if !ok {
			return nil, fmt.Errorf("MarketClose: cannot market close a %s trade: %w", state.Kind(), ErrInvalidInput)
		}

		o, realized, err := active.MarketClose(cmd, exitPrice, view.CurrentTimestamp(), inst)
		if err != nil {
			return nil, fmt.Errorf("MarketClose: %w", err)
		}

		outcome = o
		delta = realized - active.UnrealizedPnl
		if o.Remaining != nil {
			delta += o.Remaining.UnrealizedPnl
			return *o.Remaining, nil
		}

		return o.Closed, nil
	})
	if err != nil {
		return CloseOutcome{}, err
	}

	if outcome.IsPartial() {
		b := r.book(slot.market)
		b.archive = append(b.archive, outcome.Closed)
	}

	r.recordPnlChange(delta)
	return outcome, nil
}

func (r *TradeStateRepository) Cancel(cmd CancelCmd, view MarketViewer) (CanceledTrade, error) {
	slot, err := r.slot(cmd.TradeID)
	if err != nil {
		return CanceledTrade{}, fmt.Errorf("Cancel: %w", err)
	}

	var canceled CanceledTrade
	err = r.transact(slot, func(state TradeState) (TradeState, error) {
		pending, ok := state.(PendingTrade)
		if !ok {
			return nil, fmt.Errorf("Cancel: cannot cancel a %s trade: %w", state.Kind(), ErrInvalidInput)
		}

		c, err := pending.Cancel(cmd, view.CurrentTimestamp())
		if err != nil {
			return nil, fmt.Errorf("Cancel: %w", err)
		}

		canceled = c
		return c, nil
	})

	return canceled, err
}

// UpdateAllLiveTrades runs the market-driven update for every live trade and
// returns the phase changes it caused.
func (r *TradeStateRepository) UpdateAllLiveTrades(view MarketViewer, bias ExecutionBias) ([]Transition, error) {
	var transitions []Transition

	for _, market := range r.markets {
		inst, err := r.instrument(market)
		if err != nil {
			return transitions, fmt.Errorf("UpdateAllLiveTrades: %w", err)
		}

		b := r.books[market]
		idx := 0
		for idx < len(b.live) {
			state := b.live[idx]

			var next TradeState
			var reward float64
			switch t := state.(type) {
			case PendingTrade:
				next, reward, err = t.Update(view, inst, bias)
			case ActiveTrade:
				next, reward, err = t.Update(view, inst, bias)
			default:
				err = fmt.Errorf("UpdateAllLiveTrades: %s trade %d found in live storage: %w", state.Kind(), state.Envelope().UID, ErrInvariantViolation)
			}
			if err != nil {
				return transitions, err
			}

			r.recordPnlChange(reward)

			if next.Kind() != state.Kind() {
				transitions = append(transitions, Transition{Market: market, From: state.Kind(), State: next, Reward: reward})
			}

			// an archived trade is replaced by the last live one, so the
			// same slot is visited again
			if r.commit(liveSlot{market: market, idx: idx}, next) {
				idx++
			}
		}
	}

	return transitions, nil
}

func (r *TradeStateRepository) slot(id TradeID) (liveSlot, error) {
	slot, ok := r.liveIndex[id]
	if !ok {
		return liveSlot{}, fmt.Errorf("trade %d is not live: %w", id, ErrKeyNotFound)
	}

	return slot, nil
}

// transact hands fn a copy of the live trade at slot. The result is committed
// only when fn succeeds.
func (r *TradeStateRepository) transact(slot liveSlot, fn func(TradeState) (TradeState, error)) error {
	b := r.books[slot.market]
	state := b.live[slot.idx]

	next, err := fn(cloneState(state))
	if err != nil {
		return err
	}

	r.commit(slot, next)
	return nil
}

// commit stores next at slot. A live state is written in place; anything
// else is swap-removed into the archive. It reports whether the slot still
// holds the same trade.
func (r *TradeStateRepository) commit(slot liveSlot, next TradeState) bool {
	b := r.books[slot.market]

	if next.Kind().IsLive() {
		b.live[slot.idx] = next
		return true
	}

	uid := b.live[slot.idx].Envelope().UID
	last := len(b.live) - 1
	b.live[slot.idx] = b.live[last]
	b.live[last] = nil
	b.live = b.live[:last]

	if slot.idx < len(b.live) {
		r.liveIndex[b.live[slot.idx].Envelope().UID] = liveSlot{market: slot.market, idx: slot.idx}
	}

	delete(r.liveIndex, uid)
	b.archive = append(b.archive, next)

	if debugAssertions {
		r.assertIndex()
	}

	return false
}

func (r *TradeStateRepository) assertIndex() {
	for id, slot := range r.liveIndex {
		live := r.books[slot.market].live
		if slot.idx >= len(live) || live[slot.idx].Envelope().UID != id {
			panic(fmt.Sprintf("TradeStateRepository: index for trade %d points at %s[%d]", id, slot.market, slot.idx))
		}
	}
}

func cloneState(s TradeState) TradeState {
	switch t := s.(type) {
	case PendingTrade:
		t.Trade = t.Trade.clone()
		return t
	case ActiveTrade:
		t.Trade = t.Trade.clone()
		return t
	case ClosedTrade:
		t.Trade = t.Trade.clone()
		return t
	case CanceledTrade:
		t.Trade = t.Trade.clone()
		return t
	}

	return s
}

// PopReward returns the reward accumulated since the last call and resets it.
func (r *TradeStateRepository) PopReward() float64 {
	reward := r.stepReward
	r.stepReward = 0
	return reward
}

// Pnl is realized plus unrealized P&L since the repository was created.
func (r *TradeStateRepository) Pnl() float64 {
	return r.cumulativePnl
}

func (r *TradeStateRepository) AllClosed() bool {
	return len(r.liveIndex) == 0
}

// GetByID returns the live trade with the given id.
func (r *TradeStateRepository) GetByID(id TradeID) (TradeState, bool) {
	slot, ok := r.liveIndex[id]
	if !ok {
		return nil, false
	}

	return r.books[slot.market].live[slot.idx], true
}

type MarketTrade struct {
	Market eventmodels.MarketID
	State  TradeState
}

func (r *TradeStateRepository) IterLive() []MarketTrade {
	var out []MarketTrade
	for _, m := range r.markets {
		for _, s := range r.books[m].live {
			out = append(out, MarketTrade{Market: m, State: s})
		}
	}

	return out
}

func (r *TradeStateRepository) IterArchive() []MarketTrade {
	var out []MarketTrade
	for _, m := range r.markets {
		for _, s := range r.books[m].archive {
			out = append(out, MarketTrade{Market: m, State: s})
		}
	}

	return out
}

// LiveTrades lists the live trades of one market.
func (r *TradeStateRepository) LiveTrades(market eventmodels.MarketID) []TradeState {
	b, ok := r.books[market]
	if !ok {
		return nil
	}

	out := make([]TradeState, len(b.live))
	copy(out, b.live)
	return out
}

func (r *TradeStateRepository) Clear() {
	for _, b := range r.books {
		b.live = b.live[:0]
		b.archive = b.archive[:0]
	}

	r.liveIndex = map[TradeID]liveSlot{}
	r.stepReward = 0
	r.cumulativePnl = 0
}
