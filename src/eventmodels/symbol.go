package eventmodels

import (
	"encoding/json"
	"strings"
)

// Symbol is the lower-case market ticker, e.g. "btcusdt" for a spot pair or
// "6ez5" (root, contract month code, year digit) for a future.
type Symbol string

func (s Symbol) String() string {
	return strings.ToLower(string(s))
}

func (s Symbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func NewSymbol(s string) Symbol {
	return Symbol(strings.ToLower(strings.TrimSpace(s)))
}

// futureRoot strips the trailing month code and year digit of a future
// contract symbol. ok is false when s cannot be a contract symbol.
func (s Symbol) futureRoot() (string, bool) {
	str := s.String()
	if len(str) < 3 {
		return "", false
	}

	month := str[len(str)-2]
	year := str[len(str)-1]
	if !strings.ContainsRune(contractMonthCodes, rune(month)) || year < '0' || year > '9' {
		return "", false
	}

	return str[:len(str)-2], true
}

const contractMonthCodes = "fghjkmnquvxz"

type DataBroker string

const (
	DataBrokerBinance      DataBroker = "binance"
	DataBrokerNinjaTrader  DataBroker = "ninjatrader"
	DataBrokerInvestingCom DataBroker = "investingcom"
)

type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeCme     Exchange = "cme"
)
