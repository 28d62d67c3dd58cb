package eventmodels

import (
	"fmt"
	"math"
	"time"
)

type CsvCandleDTO struct {
	Timestamp string  `csv:"time"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume,omitempty"`
}

func parseCsvTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("error parsing time %q: %v", s, err)
		}
	}

	return t.UTC(), nil
}

func requireFinite(ts string, fields map[string]float64) error {
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is %v at %s", name, v, ts)
		}
	}

	return nil
}

// ToModel treats the csv timestamp as the bar open and derives the close from
// the bar period.
func (c *CsvCandleDTO) ToModel(period time.Duration) (Ohlcv, error) {
	t, err := parseCsvTimestamp(c.Timestamp)
	if err != nil {
		return Ohlcv{}, fmt.Errorf("CsvCandleDTO.ToModel: %w", err)
	}

	if err := requireFinite(c.Timestamp, map[string]float64{"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close, "volume": c.Volume}); err != nil {
		return Ohlcv{}, fmt.Errorf("CsvCandleDTO.ToModel: %w", err)
	}

	if c.Low > c.High {
		return Ohlcv{}, fmt.Errorf("CsvCandleDTO.ToModel: low %v > high %v at %s", c.Low, c.High, c.Timestamp)
	}

	return Ohlcv{
		OpenTimestamp:  t,
		CloseTimestamp: t.Add(period),
		Open:           Price(c.Open),
		High:           Price(c.High),
		Low:            Price(c.Low),
		Close:          Price(c.Close),
		Volume:         Quantity(c.Volume),
	}, nil
}
