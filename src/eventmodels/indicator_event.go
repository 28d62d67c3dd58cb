package eventmodels

import "time"

// Ema, Sma and Rsi are indicator values stamped with the close of the bar
// they were computed from.

type Ema struct {
	Timestamp time.Time `json:"timestamp"`
	Price     Price     `json:"price"`
}

func (e Ema) PointInTime() time.Time { return e.Timestamp }
func (e Ema) OpenedAt() time.Time { return e.Timestamp }

type Sma struct {
	Timestamp time.Time `json:"timestamp"`
	Price     Price     `json:"price"`
}

func (s Sma) PointInTime() time.Time { return s.Timestamp }
func (s Sma) OpenedAt() time.Time { return s.Timestamp }

type Rsi struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

func (r Rsi) PointInTime() time.Time { return r.Timestamp }
func (r Rsi) OpenedAt() time.Time { return r.Timestamp }
