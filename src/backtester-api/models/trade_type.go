package models

import (
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type TradeType int

const (
	TradeTypeLong TradeType = iota
	TradeTypeShort
)

func (t TradeType) String() string {
	switch t {
	case TradeTypeLong:
		return "long"
	case TradeTypeShort:
		return "short"
	}

	return fmt.Sprintf("TradeType(%d)", int(t))
}

func ParseTradeType(s string) (TradeType, error) {
	switch strings.ToLower(s) {
	case "long", "buy":
		return TradeTypeLong, nil
	case "short", "sell":
		return TradeTypeShort, nil
	}

	return 0, fmt.Errorf("ParseTradeType: unknown trade type %q: %w", s, ErrInvalidInput)
}

func (t TradeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TradeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseTradeType(s)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// PriceDiff is the signed favourable move from entry to exit.
func (t TradeType) PriceDiff(entry, exit eventmodels.Price) eventmodels.Price {
	if t == TradeTypeShort {
		return entry - exit
	}

	return exit - entry
}

func (t TradeType) CalculatePnl(entry, exit eventmodels.Price, qty eventmodels.Quantity, inst eventmodels.Instrument) float64 {
	ticks := inst.PriceToTicks(t.PriceDiff(entry, exit))
	return inst.TicksToUSD(ticks) * float64(qty)
}

// ValidatePriceOrdering checks every present pair of stop loss, entry and take
// profit. Zero or one present price is always valid.
func (t TradeType) ValidatePriceOrdering(sl, entry, tp *eventmodels.Price) error {
	if t == TradeTypeShort {
		return validateShortOrdering(sl, entry, tp)
	}

	return validateLongOrdering(sl, entry, tp)
}

func validateLongOrdering(sl, entry, tp *eventmodels.Price) error {
	switch {
	case sl != nil && entry != nil && tp != nil:
		if !(*sl < *entry && *entry < *tp) {
			return orderingError("for long trades: stop_loss < entry < take_profit", sl, entry, tp)
		}
	case entry != nil && tp != nil:
		if !(*entry < *tp) {
			return orderingError("for long trades: entry < take_profit", sl, entry, tp)
		}
	case sl != nil && tp != nil:
		if !(*sl < *tp) {
			return orderingError("for long trades: stop_loss < take_profit", sl, entry, tp)
		}
	case sl != nil && entry != nil:
		if !(*sl < *entry) {
			return orderingError("for long trades: stop_loss < entry", sl, entry, tp)
		}
	}

	return nil
}

func validateShortOrdering(sl, entry, tp *eventmodels.Price) error {
	switch {
	case sl != nil && entry != nil && tp != nil:
		if !(*tp < *entry && *entry < *sl) {
			return orderingError("for short trades: take_profit < entry < stop_loss", sl, entry, tp)
		}
	case entry != nil && tp != nil:
		if !(*tp < *entry) {
			return orderingError("for short trades: take_profit < entry", sl, entry, tp)
		}
	case sl != nil && tp != nil:
		if !(*tp < *sl) {
			return orderingError("for short trades: take_profit < stop_loss", sl, entry, tp)
		}
	case sl != nil && entry != nil:
		if !(*entry < *sl) {
			return orderingError("for short trades: entry < stop_loss", sl, entry, tp)
		}
	}

	return nil
}

func orderingError(rule string, sl, entry, tp *eventmodels.Price) error {
	return fmt.Errorf("%s (stop_loss=%s, entry=%s, take_profit=%s): %w", rule, fmtPrice(sl), fmtPrice(entry), fmtPrice(tp), ErrInvalidPriceOrdering)
}

func fmtPrice(p *eventmodels.Price) string {
	if p == nil {
		return "none"
	}

	return fmt.Sprintf("%v", float64(*p))
}

func pricePtr(p eventmodels.Price) *eventmodels.Price {
	return &p
}

// clonePrice returns a fresh allocation so two trade values never share one
// optional price.
func clonePrice(p *eventmodels.Price) *eventmodels.Price {
	if p == nil {
		return nil
	}

	v := *p
	return &v
}

// snapValue puts p on the instrument's tick grid.
func snapValue(field string, p eventmodels.Price, inst eventmodels.Instrument) eventmodels.Price {
	snapped := inst.NormalizePrice(p)
	if snapped != p {
		log.Debugf("%s: %s %v snapped to %v", inst.Symbol, field, p, snapped)
	}

	return snapped
}

func snapPrice(field string, p *eventmodels.Price, inst eventmodels.Instrument) *eventmodels.Price {
	if p == nil {
		return nil
	}

	return pricePtr(snapValue(field, *p, inst))
}
