package eventmodels

import "time"

// MarketEvent is anything the simulation clock can consume. PointInTime is
// the instant the event becomes knowable; OpenedAt is when its interval began
// and equals PointInTime for atomic events. OpenedAt never exceeds PointInTime.
type MarketEvent interface {
	PointInTime() time.Time
	OpenedAt() time.Time
}

// PriceReachable events can tell whether a price traded during the event.
type PriceReachable interface {
	MarketEvent
	PriceReached(p Price) bool
}

// ClosePriceProvider events carry a canonical "last" price.
type ClosePriceProvider interface {
	MarketEvent
	ClosePrice() Price
	ClosedAt() time.Time
}

// PriceEvent is the union used by the price-checkable market views.
type PriceEvent interface {
	PriceReachable
	ClosePrice() Price
	ClosedAt() time.Time
}

// StreamID identifies one stream of events. Key is a canonical string used to
// order streams deterministically.
type StreamID interface {
	comparable
	Key() string
}

// SymbolStreamID is a stream whose events price a single symbol.
type SymbolStreamID interface {
	StreamID
	GetSymbol() Symbol
}
