package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
	"github.com/jiaming2012/trading-gym/src/eventpubsub"
)

type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusEpisodeDone
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusEpisodeDone:
		return "episode_done"
	case StatusDone:
		return "done"
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

type Outcome int

const (
	OutcomeInProgress Outcome = iota
	// OutcomeTerminated: the episode ended with every trade closed or canceled.
	OutcomeTerminated
	// OutcomeTruncated: the episode boundary cut off live trades.
	OutcomeTruncated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTerminated:
		return "terminated"
	case OutcomeTruncated:
		return "truncated"
	}

	return "in_progress"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in_progress":
		*o = OutcomeInProgress
	case "terminated":
		*o = OutcomeTerminated
	case "truncated":
		*o = OutcomeTruncated
	default:
		return fmt.Errorf("Outcome: unknown outcome %q: %w", text, models.ErrInvalidInput)
	}

	return nil
}

type Publisher interface {
	Publish(topic eventpubsub.EventName, event interface{})
}

type EnvironmentConfig struct {
	SessionID            string
	EpisodeLength        models.EpisodeLength
	Bias                 models.ExecutionBias
	InvalidActionPenalty float64
	Publisher            Publisher
}

type Observation struct {
	EpisodeID  int                   `json:"episode_id"`
	Timestamp  time.Time             `json:"timestamp"`
	EpisodePnl float64               `json:"episode_pnl"`
	LiveTrades []models.JournalEntry `json:"live_trades"`
	View       *models.MarketView    `json:"-"`
}

type StepResult struct {
	Observation Observation          `json:"observation"`
	Reward      float64              `json:"reward"`
	Outcome     Outcome              `json:"outcome"`
	Summary     models.ActionSummary `json:"-"`
	Transitions []models.Transition  `json:"-"`
}

// Environment runs the reset/step loop of one gym session over a shared,
// read-only dataset. It is not safe for concurrent use.
type Environment struct {
	cfg         EnvironmentConfig
	data        *models.SimulationData
	instruments *eventmodels.InstrumentCatalog
	cursors     *models.CursorGroup
	ledger      *models.Ledger
	episode     models.Episode
	status      Status

	tracer        trace.Tracer
	stepCounter   metric.Int64Counter
	closedCounter metric.Int64Counter
	episodeSpan   trace.Span
}

func NewEnvironment(dataset *Dataset, cfg EnvironmentConfig) (*Environment, error) {
	if dataset == nil || dataset.Data == nil {
		return nil, fmt.Errorf("NewEnvironment: missing dataset: %w", models.ErrInvalidInput)
	}

	if cfg.InvalidActionPenalty > 0 {
		return nil, fmt.Errorf("NewEnvironment: invalid action penalty must not be positive, got %v: %w", cfg.InvalidActionPenalty, models.ErrInvalidInput)
	}

	meter := otel.Meter("backtester:environment")

	stepCounter, err := meter.Int64Counter("gym.steps", metric.WithDescription("Number of environment steps"))
	if err != nil {
		return nil, fmt.Errorf("NewEnvironment: failed to create step counter: %w", err)
	}

	closedCounter, err := meter.Int64Counter("gym.trades.closed", metric.WithDescription("Number of trades closed"))
	if err != nil {
		return nil, fmt.Errorf("NewEnvironment: failed to create closed trade counter: %w", err)
	}

	return &Environment{
		cfg:           cfg,
		data:          dataset.Data,
		instruments:   dataset.Instruments,
		cursors:       models.NewCursorGroup(dataset.Data),
		ledger:        models.NewLedger(dataset.Instruments, dataset.Data.MarketIDs()),
		status:        StatusReady,
		tracer:        otel.Tracer("backtester:environment"),
		stepCounter:   stepCounter,
		closedCounter: closedCounter,
	}, nil
}

func (e *Environment) Status() Status {
	return e.status
}

func (e *Environment) Episode() models.Episode {
	return e.episode
}

func (e *Environment) publish(topic eventpubsub.EventName, event interface{}) {
	if e.cfg.Publisher != nil {
		e.cfg.Publisher.Publish(topic, event)
	}
}

func (e *Environment) startEpisode(ctx context.Context) {
	_, e.episodeSpan = e.tracer.Start(ctx, fmt.Sprintf("episode %d", e.episode.ID), trace.WithAttributes(
		attribute.String("session.id", e.cfg.SessionID),
		attribute.Int("episode.id", e.episode.ID),
		attribute.String("episode.length", e.episode.Length.String()),
	))

	e.status = StatusRunning

	log.WithFields(log.Fields{
		"session": e.cfg.SessionID,
		"episode": e.episode.ID,
		"start":   e.episode.Start,
		"end":     e.episode.End,
	}).Info("episode started")

	e.publish(eventpubsub.EpisodeStartedEvent, eventpubsub.EpisodeEvent{
		SessionID: e.cfg.SessionID,
		EpisodeID: e.episode.ID,
		Start:     e.episode.Start,
		End:       e.episode.End,
	})
}

func (e *Environment) endEpisodeSpan(err error) {
	if e.episodeSpan == nil {
		return
	}

	if err != nil {
		e.episodeSpan.RecordError(err)
		e.episodeSpan.SetStatus(codes.Error, err.Error())
	}

	e.episodeSpan.End()
	e.episodeSpan = nil
}

func (e *Environment) finishEpisode(outcome Outcome) {
	pnl := e.ledger.EpisodePnl(e.episode)

	if e.episodeSpan != nil {
		e.episodeSpan.SetAttributes(
			attribute.String("episode.outcome", outcome.String()),
			attribute.Float64("episode.pnl", pnl),
		)
	}
	e.endEpisodeSpan(nil)

	if e.cursors.IsEndOfData() {
		e.status = StatusDone
	} else {
		e.status = StatusEpisodeDone
	}

	log.WithFields(log.Fields{
		"session": e.cfg.SessionID,
		"episode": e.episode.ID,
		"outcome": outcome,
		"pnl":     pnl,
	}).Info("episode finished")

	e.publish(eventpubsub.EpisodeFinishedEvent, eventpubsub.EpisodeEvent{
		SessionID: e.cfg.SessionID,
		EpisodeID: e.episode.ID,
		Start:     e.episode.Start,
		End:       e.episode.End,
		Pnl:       pnl,
	})
}

func (e *Environment) restart(ctx context.Context) {
	e.endEpisodeSpan(nil)
	e.cursors.Reset()
	e.ledger.Clear()
	e.episode = models.NewEpisode(0, e.cfg.EpisodeLength, e.data.GlobalOpenStart())
	e.startEpisode(ctx)
}

// advance moves to the episode that follows the finished one. It returns
// false when the data holds no further episode.
func (e *Environment) advance(ctx context.Context) (bool, error) {
	next, ok, err := e.cursors.AdvanceToNextEpisode(e.episode)
	if err != nil {
		e.status = StatusDone
		return false, fmt.Errorf("advance: %w", err)
	}

	if !ok {
		e.status = StatusDone
		return false, nil
	}

	e.episode = next
	e.startEpisode(ctx)
	return true, nil
}

// Reset starts the next episode after one has finished, or replays the
// dataset from the start in every other case.
func (e *Environment) Reset(ctx context.Context) (StepResult, error) {
	if e.status == StatusEpisodeDone {
		ok, err := e.advance(ctx)
		if err != nil {
			return StepResult{}, fmt.Errorf("Reset: %w", err)
		}

		if ok {
			return e.result(0, OutcomeInProgress, models.ActionSummary{}, nil)
		}
	}

	e.restart(ctx)
	return e.result(0, OutcomeInProgress, models.ActionSummary{}, nil)
}

func (e *Environment) observe() (Observation, error) {
	view := e.cursors.View()
	repo := e.ledger.Repository(e.episode)

	var live []models.JournalEntry
	for _, row := range repo.IterLive() {
		inst, err := e.instruments.Lookup(row.Market.Symbol)
		if err != nil {
			return Observation{}, fmt.Errorf("observe: %w", err)
		}

		entry := models.NewJournalEntry(e.episode.ID, row.Market, row.State, inst)
		entry.RunID = e.cfg.SessionID
		live = append(live, entry)
	}

	return Observation{
		EpisodeID:  e.episode.ID,
		Timestamp:  view.CurrentTimestamp(),
		EpisodePnl: repo.Pnl(),
		LiveTrades: live,
		View:       view,
	}, nil
}

func (e *Environment) result(reward float64, outcome Outcome, summary models.ActionSummary, transitions []models.Transition) (StepResult, error) {
	obs, err := e.observe()
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{
		Observation: obs,
		Reward:      reward,
		Outcome:     outcome,
		Summary:     summary,
		Transitions: transitions,
	}, nil
}

func (e *Environment) publishActionResults(summary models.ActionSummary) {
	for _, r := range summary.Results {
		if r.Err == nil {
			if r.Action.Kind == models.ActionCancel && r.State != nil {
				e.publishTrade(eventpubsub.TradeCanceledEvent, r.Market, r.State, 0)
			}
			if r.Action.Kind == models.ActionMarketClose && r.State != nil {
				e.publishTrade(eventpubsub.TradeClosedEvent, r.Market, r.State, 0)
			}
			continue
		}

		e.publish(eventpubsub.ActionRejectedEvent, eventpubsub.RejectionEvent{
			SessionID: e.cfg.SessionID,
			EpisodeID: e.episode.ID,
			Market:    r.Market,
			TradeID:   int64(r.Action.TradeID()),
			AgentID:   string(r.Action.AgentID()),
			Action:    string(r.Action.Kind),
			Reason:    r.Err.Error(),
		})
	}
}

func (e *Environment) publishTrade(topic eventpubsub.EventName, market eventmodels.MarketID, state models.TradeState, reward float64) {
	t := state.Envelope()
	e.publish(topic, eventpubsub.TradeEvent{
		SessionID: e.cfg.SessionID,
		EpisodeID: e.episode.ID,
		Market:    market,
		TradeID:   int64(t.UID),
		AgentID:   string(t.AgentID),
		State:     state.Kind().String(),
		Reward:    reward,
		Timestamp: e.cursors.CurrentTs(),
	})
}

func (e *Environment) countClosed(ctx context.Context, n int) {
	if n > 0 {
		e.closedCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("session.id", e.cfg.SessionID)))
	}
}

// Step applies the actions at the current instant, moves the clock to the
// next one and marks every live trade to market on the new view.
func (e *Environment) Step(ctx context.Context, actions models.Actions) (StepResult, error) {
	if e.status != StatusRunning {
		return StepResult{}, fmt.Errorf("Step: environment is %s: %w", e.status, models.ErrEnvNotRunning)
	}

	summary := e.ledger.ApplyActions(e.episode, actions, e.cursors.View())
	e.publishActionResults(summary)

	closed := 0
	for _, r := range summary.Results {
		if r.Err == nil && r.Action.Kind == models.ActionMarketClose {
			closed++
		}
	}

	e.cursors.Step(e.episode)

	transitions, err := e.ledger.ApplyUpdates(e.episode, e.cursors.View(), e.cfg.Bias)
	if err != nil {
		e.endEpisodeSpan(err)
		e.status = StatusDone
		return StepResult{}, fmt.Errorf("Step: %w", err)
	}

	for _, t := range transitions {
		switch t.State.Kind() {
		case models.StateKindActive:
			e.publishTrade(eventpubsub.TradeFilledEvent, t.Market, t.State, t.Reward)
		case models.StateKindClosed:
			closed++
			e.publishTrade(eventpubsub.TradeClosedEvent, t.Market, t.State, t.Reward)
		}
	}

	e.stepCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("session.id", e.cfg.SessionID)))
	e.countClosed(ctx, closed)

	reward := e.ledger.PopStepReward(e.episode) + float64(summary.Rejected)*e.cfg.InvalidActionPenalty

	outcome := OutcomeInProgress
	if e.episode.IsEpisodeEnd(e.cursors.CurrentTs()) || e.cursors.IsEndOfData() {
		outcome = OutcomeTruncated
		if e.ledger.IsTerminal(e.episode) {
			outcome = OutcomeTerminated
		}

		e.finishEpisode(outcome)
	}

	return e.result(reward, outcome, summary, transitions)
}

// Journal flattens every trade the session has seen, stamped with the
// session id.
func (e *Environment) Journal() ([]models.JournalEntry, error) {
	entries, err := e.ledger.Journal()
	if err != nil {
		return nil, fmt.Errorf("Journal: %w", err)
	}

	for i := range entries {
		entries[i].RunID = e.cfg.SessionID
	}

	return entries, nil
}

// Evaluate replays the whole dataset with one agent, episode after episode,
// and returns the resulting journal.
func (e *Environment) Evaluate(ctx context.Context, agent Agent) ([]models.JournalEntry, error) {
	e.status = StatusReady
	res, err := e.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("Evaluate: %w", err)
	}

	for {
		agent.Reset()

		for res.Outcome == OutcomeInProgress {
			if err := ctx.Err(); err != nil {
				e.endEpisodeSpan(err)
				return nil, fmt.Errorf("Evaluate: %w", err)
			}

			actions, err := agent.Act(res.Observation)
			if err != nil {
				e.endEpisodeSpan(err)
				return nil, fmt.Errorf("Evaluate: agent %s: %w", agent.ID(), err)
			}

			if res, err = e.Step(ctx, actions); err != nil {
				return nil, fmt.Errorf("Evaluate: %w", err)
			}
		}

		if e.status == StatusDone {
			break
		}

		ok, err := e.advance(ctx)
		if err != nil {
			return nil, fmt.Errorf("Evaluate: %w", err)
		}

		if !ok {
			break
		}

		if res, err = e.result(0, OutcomeInProgress, models.ActionSummary{}, nil); err != nil {
			return nil, fmt.Errorf("Evaluate: %w", err)
		}
	}

	return e.Journal()
}
