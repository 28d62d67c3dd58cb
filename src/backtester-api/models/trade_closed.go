package models

import (
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type ClosedTrade struct {
	Trade
	EntryTs           time.Time         `json:"entry_ts"`
	EntryPrice        eventmodels.Price `json:"entry_price"`
	ExitTs            time.Time         `json:"exit_ts"`
	ExitPrice         eventmodels.Price `json:"exit_price"`
	TerminationReason TerminationReason `json:"termination_reason"`
	RealizedPnl       float64           `json:"realized_pnl"`
}

func (c ClosedTrade) Duration() time.Duration {
	return c.ExitTs.Sub(c.EntryTs)
}

// ROI is realized P&L over the cost basis of the position.
func (c ClosedTrade) ROI() float64 {
	basis := float64(c.EntryPrice) * float64(c.Quantity)
	if basis < QuantityEpsilon {
		return 0
	}

	return c.RealizedPnl / basis
}

type CanceledTrade struct {
	Trade
	CreatedAt  time.Time         `json:"created_at"`
	CanceledAt time.Time         `json:"canceled_at"`
	LimitPrice eventmodels.Price `json:"limit_price"`
}

func (c CanceledTrade) TimeInForce() time.Duration {
	return c.CanceledAt.Sub(c.CreatedAt)
}
