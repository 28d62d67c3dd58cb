package models

import (
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// JournalEntry is one flattened trade row. The same struct backs the CSV
// export and the postgres journal table.
type JournalEntry struct {
	ID                    uint       `csv:"-" json:"-" gorm:"primaryKey"`
	RunID                 string     `csv:"run_id" json:"run_id" gorm:"index"`
	EpisodeID             int        `csv:"episode_id" json:"episode_id"`
	TradeID               int64      `csv:"trade_id" json:"trade_id"`
	TradeState            string     `csv:"trade_state" json:"trade_state"`
	AgentID               string     `csv:"agent_id" json:"agent_id" gorm:"index"`
	DataBroker            string     `csv:"data_broker" json:"data_broker"`
	Exchange              string     `csv:"exchange" json:"exchange"`
	Symbol                string     `csv:"symbol" json:"symbol"`
	TradeType             string     `csv:"trade_type" json:"trade_type"`
	EntryPrice            float64    `csv:"entry_price" json:"entry_price"`
	StopLoss              *float64   `csv:"stop_loss" json:"stop_loss"`
	TakeProfit            *float64   `csv:"take_profit" json:"take_profit"`
	Quantity              float64    `csv:"quantity" json:"quantity"`
	ExpectedLossInTicks   *int64     `csv:"expected_loss_in_ticks" json:"expected_loss_in_ticks"`
	ExpectedProfitInTicks *int64     `csv:"expected_profit_in_ticks" json:"expected_profit_in_ticks"`
	ExpectedLossUSD       *float64   `csv:"expected_loss_usd" json:"expected_loss_usd"`
	ExpectedProfitUSD     *float64   `csv:"expected_profit_usd" json:"expected_profit_usd"`
	RiskRewardRatio       *float64   `csv:"risk_reward_ratio" json:"risk_reward_ratio"`
	EntryTimestamp        *time.Time `csv:"entry_timestamp" json:"entry_timestamp"`
	ExitTimestamp         *time.Time `csv:"exit_timestamp" json:"exit_timestamp"`
	ExitPrice             *float64   `csv:"exit_price" json:"exit_price"`
	ExitReason            string     `csv:"exit_reason" json:"exit_reason"`
	RealizedReturnInTicks int64      `csv:"realized_return_in_ticks" json:"realized_return_in_ticks"`
	RealizedReturnUSD     float64    `csv:"realized_return_dollars" json:"realized_return_dollars"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}

func NewJournalEntry(episodeID int, market eventmodels.MarketID, s TradeState, inst eventmodels.Instrument) JournalEntry {
	t := s.Envelope()

	e := JournalEntry{
		EpisodeID:  episodeID,
		TradeID:    int64(t.UID),
		TradeState: s.Kind().String(),
		AgentID:    string(t.AgentID),
		DataBroker: string(market.Broker),
		Exchange:   string(market.Exchange),
		Symbol:     market.Symbol.String(),
		TradeType:  t.TradeType.String(),
		EntryPrice: float64(s.AnticipatedEntryPrice()),
		StopLoss:   optionalFloat(t.StopLoss),
		TakeProfit: optionalFloat(t.TakeProfit),
		Quantity:   float64(t.Quantity),
	}

	if ticks, ok := ExpectedLossTicks(s, inst); ok {
		v := int64(ticks)
		e.ExpectedLossInTicks = &v
	}
	if ticks, ok := ExpectedProfitTicks(s, inst); ok {
		v := int64(ticks)
		e.ExpectedProfitInTicks = &v
	}
	if usd, ok := ExpectedLossUSD(s, inst); ok {
		e.ExpectedLossUSD = &usd
	}
	if usd, ok := ExpectedProfitUSD(s, inst); ok {
		e.ExpectedProfitUSD = &usd
	}
	if rr, ok := RiskRewardRatio(s, inst); ok {
		e.RiskRewardRatio = &rr
	}
	if ts, ok := EntryTs(s); ok {
		e.EntryTimestamp = &ts
	}
	if ts, ok := ExitTs(s); ok {
		e.ExitTimestamp = &ts
	}
	if p, ok := ExitPrice(s); ok {
		v := float64(p)
		e.ExitPrice = &v
	}
	if reason, ok := ExitReason(s); ok {
		e.ExitReason = string(reason)
	}

	if s.Kind() == StateKindClosed {
		if ticks, ok := PnlTicks(s, inst); ok {
			e.RealizedReturnInTicks = int64(ticks)
		}
		if usd, ok := PnlUSD(s); ok {
			e.RealizedReturnUSD = usd
		}
	}

	return e
}

func optionalFloat(p *eventmodels.Price) *float64 {
	if p == nil {
		return nil
	}

	v := float64(*p)
	return &v
}
