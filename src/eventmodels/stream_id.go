package eventmodels

import (
	"fmt"
	"strconv"
	"time"
)

// Period is a bar duration in the usual short form: "1m", "5m", "1h", "1d".
type Period string

type OhlcvID struct {
	Broker   DataBroker `json:"broker" yaml:"broker"`
	Exchange Exchange   `json:"exchange" yaml:"exchange"`
	Symbol   Symbol     `json:"symbol" yaml:"symbol"`
	Period   Period     `json:"period" yaml:"period"`
}

func (id OhlcvID) Key() string {
	return fmt.Sprintf("ohlcv/%s/%s/%s/%s", id.Broker, id.Exchange, id.Symbol, id.Period)
}

func (id OhlcvID) GetSymbol() Symbol {
	return id.Symbol
}

func (id OhlcvID) MarketID() MarketID {
	return MarketID{Broker: id.Broker, Exchange: id.Exchange, Symbol: id.Symbol}
}

type TradesID struct {
	Broker   DataBroker `json:"broker" yaml:"broker"`
	Exchange Exchange   `json:"exchange" yaml:"exchange"`
	Symbol   Symbol     `json:"symbol" yaml:"symbol"`
}

func (id TradesID) Key() string {
	return fmt.Sprintf("trades/%s/%s/%s", id.Broker, id.Exchange, id.Symbol)
}

func (id TradesID) GetSymbol() Symbol {
	return id.Symbol
}

func (id TradesID) MarketID() MarketID {
	return MarketID{Broker: id.Broker, Exchange: id.Exchange, Symbol: id.Symbol}
}

type EconomicCalendarID struct {
	Broker      DataBroker `json:"broker"`
	DataSource  string     `json:"data_source"`
	CountryCode string     `json:"country_code"`
	Category    string     `json:"category"`
	Importance  int        `json:"importance"`
}

func (id EconomicCalendarID) Key() string {
	return fmt.Sprintf("economic/%s/%s/%s/%s/%d", id.Broker, id.DataSource, id.CountryCode, id.Category, id.Importance)
}

type ProfileAggregation string

type VolumeProfileID struct {
	Broker      DataBroker         `json:"broker"`
	Exchange    Exchange           `json:"exchange"`
	Symbol      Symbol             `json:"symbol"`
	Aggregation ProfileAggregation `json:"aggregation"`
}

func (id VolumeProfileID) Key() string {
	return fmt.Sprintf("vp/%s/%s/%s/%s", id.Broker, id.Exchange, id.Symbol, id.Aggregation)
}

type TpoID struct {
	Broker      DataBroker         `json:"broker"`
	Exchange    Exchange           `json:"exchange"`
	Symbol      Symbol             `json:"symbol"`
	Aggregation ProfileAggregation `json:"aggregation"`
}

func (id TpoID) Key() string {
	return fmt.Sprintf("tpo/%s/%s/%s/%s", id.Broker, id.Exchange, id.Symbol, id.Aggregation)
}

type EmaID struct {
	Parent OhlcvID `json:"parent"`
	Length int     `json:"length"`
}

func (id EmaID) Key() string {
	return fmt.Sprintf("ema/%d/%s", id.Length, id.Parent.Key())
}

func (id EmaID) GetSymbol() Symbol {
	return id.Parent.Symbol
}

type SmaID struct {
	Parent OhlcvID `json:"parent"`
	Length int     `json:"length"`
}

func (id SmaID) Key() string {
	return fmt.Sprintf("sma/%d/%s", id.Length, id.Parent.Key())
}

func (id SmaID) GetSymbol() Symbol {
	return id.Parent.Symbol
}

type RsiID struct {
	Parent OhlcvID `json:"parent"`
	Length int     `json:"length"`
}

func (id RsiID) Key() string {
	return fmt.Sprintf("rsi/%d/%s", id.Length, id.Parent.Key())
}

func (id RsiID) GetSymbol() Symbol {
	return id.Parent.Symbol
}

// Duration understands the forms used in data file names and configs:
// "1m", "15m", "1h", "4h", "1d", "1w".
func (p Period) Duration() (time.Duration, error) {
	s := string(p)
	if len(s) < 2 {
		return 0, fmt.Errorf("Period.Duration: invalid period %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("Period.Duration: invalid period %q", s)
	}

	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("Period.Duration: invalid unit in %q", s)
}
