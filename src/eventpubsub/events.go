package eventpubsub

import (
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type EpisodeEvent struct {
	SessionID string
	EpisodeID int
	Start     time.Time
	End       time.Time
	Pnl       float64
}

type TradeEvent struct {
	SessionID string
	EpisodeID int
	Market    eventmodels.MarketID
	TradeID   int64
	AgentID   string
	State     string
	Reward    float64
	Timestamp time.Time
}

type RejectionEvent struct {
	SessionID string
	EpisodeID int
	Market    eventmodels.MarketID
	TradeID   int64
	AgentID   string
	Action    string
	Reason    string
}
