package models

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type ActionResult struct {
	Market eventmodels.MarketID
	Action Action
	State  TradeState
	Err    error
}

type ActionSummary struct {
	Executed int
	Rejected int
	Results  []ActionResult
}

// Ledger keeps one TradeStateRepository per episode. Past episodes stay
// readable for the journal.
type Ledger struct {
	instruments *eventmodels.InstrumentCatalog
	markets     []eventmodels.MarketID
	episodes    map[int]*TradeStateRepository
}

func NewLedger(instruments *eventmodels.InstrumentCatalog, markets []eventmodels.MarketID) *Ledger {
	return &Ledger{
		instruments: instruments,
		markets:     markets,
		episodes:    map[int]*TradeStateRepository{},
	}
}

func (l *Ledger) Repository(ep Episode) *TradeStateRepository {
	repo, ok := l.episodes[ep.ID]
	if !ok {
		repo = NewTradeStateRepository(l.instruments, l.markets)
		l.episodes[ep.ID] = repo
	}

	return repo
}

// ApplyActions validates and applies every action in execution order. A
// rejected action is logged and counted but never aborts the batch.
func (l *Ledger) ApplyActions(ep Episode, actions Actions, view MarketViewer) ActionSummary {
	repo := l.Repository(ep)
	summary := ActionSummary{}

	for _, batch := range actions.Ordered() {
		for _, action := range batch.Actions {
			result := ActionResult{Market: batch.Market, Action: action}

			if err := action.Validate(); err != nil {
				result.Err = err
			} else {
				result.State, result.Err = l.apply(repo, batch.Market, action, view)
			}

			fields := log.Fields{
				"episode": ep.ID,
				"market":  batch.Market.Key(),
				"agent":   action.AgentID(),
				"trade":   action.TradeID(),
				"action":  action.Kind,
			}

			if result.Err != nil {
				log.WithFields(fields).Warnf("command rejected: %v", result.Err)
				summary.Rejected++
			} else {
				log.WithFields(fields).Debug("command applied")
				summary.Executed++
			}

			summary.Results = append(summary.Results, result)
		}
	}

	return summary
}

func (l *Ledger) apply(repo *TradeStateRepository, market eventmodels.MarketID, action Action, view MarketViewer) (TradeState, error) {
	switch action.Kind {
	case ActionOpen:
		return repo.Open(market, *action.Open, view)
	case ActionModify:
		if err := repo.Modify(*action.Modify); err != nil {
			return nil, err
		}
		state, _ := repo.GetByID(action.Modify.TradeID)
		return state, nil
	case ActionMarketClose:
		outcome, err := repo.MarketClose(*action.MarketClose, view)
		if err != nil {
			return nil, err
		}
		return outcome.Closed, nil
	case ActionCancel:
		return repo.Cancel(*action.Cancel, view)
	}

	return nil, fmt.Errorf("apply: unknown action %q: %w", action.Kind, ErrInvalidInput)
}

// ApplyUpdates marks every live trade of the episode to market.
func (l *Ledger) ApplyUpdates(ep Episode, view MarketViewer, bias ExecutionBias) ([]Transition, error) {
	transitions, err := l.Repository(ep).UpdateAllLiveTrades(view, bias)
	if err != nil {
		log.WithField("episode", ep.ID).Errorf("mark to market failed: %v", err)
		return transitions, fmt.Errorf("ApplyUpdates: %w", err)
	}

	for _, t := range transitions {
		if reason, ok := ExitReason(t.State); ok {
			log.WithFields(log.Fields{
				"episode": ep.ID,
				"market":  t.Market.Key(),
				"trade":   t.State.Envelope().UID,
				"reason":  reason,
			}).Info("trade finalized")
		}
	}

	return transitions, nil
}

func (l *Ledger) PopStepReward(ep Episode) float64 {
	return l.Repository(ep).PopReward()
}

func (l *Ledger) EpisodePnl(ep Episode) float64 {
	return l.Repository(ep).Pnl()
}

func (l *Ledger) IsTerminal(ep Episode) bool {
	return l.Repository(ep).AllClosed()
}

func (l *Ledger) Clear() {
	l.episodes = map[int]*TradeStateRepository{}
}

func (l *Ledger) EpisodeIDs() []int {
	ids := make([]int, 0, len(l.episodes))
	for id := range l.episodes {
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids
}

// Journal flattens every trade of every episode, live trades first within
// an episode.
func (l *Ledger) Journal() ([]JournalEntry, error) {
	var out []JournalEntry
	for _, id := range l.EpisodeIDs() {
		repo := l.episodes[id]
		rows := append(repo.IterLive(), repo.IterArchive()...)
		for _, row := range rows {
			inst, err := l.instruments.Lookup(row.Market.Symbol)
			if err != nil {
				return nil, fmt.Errorf("Journal: %w", err)
			}

			out = append(out, NewJournalEntry(id, row.Market, row.State, inst))
		}
	}

	return out, nil
}
