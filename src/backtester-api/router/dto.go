package router

import (
	"time"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/backtester-api/services"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type CreateSessionRequest struct {
	Dataset              string  `json:"dataset"`
	EpisodeLength        string  `json:"episode_length"`
	ExecutionBias        string  `json:"execution_bias"`
	InvalidActionPenalty float64 `json:"invalid_action_penalty"`
}

type CreateSessionResponse struct {
	SessionID   string `json:"session_id"`
	Dataset     string `json:"dataset"`
	Fingerprint string `json:"fingerprint"`
}

type StepRequest struct {
	Actions []models.MarketActions `json:"actions"`
}

type Rejection struct {
	Market  string `json:"market"`
	TradeID int64  `json:"trade_id"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

type StepResponse struct {
	SessionID  string                       `json:"session_id"`
	Status     string                       `json:"status"`
	EpisodeID  int                          `json:"episode_id"`
	Timestamp  time.Time                    `json:"timestamp"`
	Reward     float64                      `json:"reward"`
	Outcome    services.Outcome             `json:"outcome"`
	EpisodePnl float64                      `json:"episode_pnl"`
	Executed   int                          `json:"executed"`
	Rejected   []Rejection                  `json:"rejected"`
	LiveTrades []models.JournalEntry        `json:"live_trades"`
	Candles    map[string]eventmodels.Ohlcv `json:"candles"`
}

// latestCandles reports the newest visible bar of every candle stream.
func latestCandles(view *models.MarketView) map[string]eventmodels.Ohlcv {
	out := map[string]eventmodels.Ohlcv{}
	if view == nil {
		return out
	}

	for _, s := range view.Ohlcv {
		if len(s.Events) > 0 {
			out[s.ID.Key()] = s.Events[len(s.Events)-1]
		}
	}

	return out
}

func newStepResponse(sessionID string, status services.Status, res services.StepResult) StepResponse {
	rejected := []Rejection{}
	for _, r := range res.Summary.Results {
		if r.Err == nil {
			continue
		}

		rejected = append(rejected, Rejection{
			Market:  r.Market.Key(),
			TradeID: int64(r.Action.TradeID()),
			Action:  string(r.Action.Kind),
			Reason:  r.Err.Error(),
		})
	}

	live := res.Observation.LiveTrades
	if live == nil {
		live = []models.JournalEntry{}
	}

	return StepResponse{
		SessionID:  sessionID,
		Status:     status.String(),
		EpisodeID:  res.Observation.EpisodeID,
		Timestamp:  res.Observation.Timestamp,
		Reward:     res.Reward,
		Outcome:    res.Outcome,
		EpisodePnl: res.Observation.EpisodePnl,
		Executed:   res.Summary.Executed,
		Rejected:   rejected,
		LiveTrades: live,
		Candles:    latestCandles(res.Observation.View),
	}
}
