package eventmodels

import "time"

// TradePrint is one executed trade on the tape.
type TradePrint struct {
	Timestamp    time.Time `json:"timestamp"`
	Price        Price     `json:"price"`
	Quantity     Quantity  `json:"quantity"`
	IsBuyerMaker *bool     `json:"is_buyer_maker,omitempty"`
}

func (t TradePrint) PointInTime() time.Time {
	return t.Timestamp
}

func (t TradePrint) OpenedAt() time.Time {
	return t.Timestamp
}

func (t TradePrint) PriceReached(p Price) bool {
	return t.Price == p
}

func (t TradePrint) ClosePrice() Price {
	return t.Price
}

func (t TradePrint) ClosedAt() time.Time {
	return t.Timestamp
}
