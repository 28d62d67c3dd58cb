package eventmodels

import "time"

type Ohlcv struct {
	OpenTimestamp  time.Time `json:"open_timestamp"`
	CloseTimestamp time.Time `json:"close_timestamp"`
	Open           Price     `json:"open"`
	High           Price     `json:"high"`
	Low            Price     `json:"low"`
	Close          Price     `json:"close"`
	Volume         Quantity  `json:"volume"`
}

func (c Ohlcv) PointInTime() time.Time {
	return c.CloseTimestamp
}

func (c Ohlcv) OpenedAt() time.Time {
	return c.OpenTimestamp
}

func (c Ohlcv) PriceReached(p Price) bool {
	return c.Low <= p && p <= c.High
}

func (c Ohlcv) ClosePrice() Price {
	return c.Close
}

func (c Ohlcv) ClosedAt() time.Time {
	return c.CloseTimestamp
}
