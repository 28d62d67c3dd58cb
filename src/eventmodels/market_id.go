package eventmodels

import "fmt"

// MarketID identifies a tradable market: where the data came from, where it
// trades, and what it is.
type MarketID struct {
	Broker   DataBroker `json:"broker" yaml:"broker"`
	Exchange Exchange   `json:"exchange" yaml:"exchange"`
	Symbol   Symbol     `json:"symbol" yaml:"symbol"`
}

func (m MarketID) Key() string {
	return fmt.Sprintf("%s/%s/%s", m.Broker, m.Exchange, m.Symbol)
}

func (m MarketID) String() string {
	return m.Key()
}
