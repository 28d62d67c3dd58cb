package eventpubsub

type EventName string

const (
	EpisodeStartedEvent  EventName = "EpisodeStartedEvent"
	EpisodeFinishedEvent EventName = "EpisodeFinishedEvent"
	TradeFilledEvent     EventName = "TradeFilledEvent"
	TradeClosedEvent     EventName = "TradeClosedEvent"
	TradeCanceledEvent   EventName = "TradeCanceledEvent"
	ActionRejectedEvent  EventName = "ActionRejectedEvent"
)
