package indicators

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

func validatePeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}

	return nil
}

// SMA derives a simple moving average of closes. The first value appears on
// the period-th candle.
func SMA(candles []eventmodels.Ohlcv, period int) ([]eventmodels.Sma, error) {
	if err := validatePeriod(period); err != nil {
		return nil, fmt.Errorf("SMA: %w", err)
	}

	var out []eventmodels.Sma
	window := make([]float64, 0, period)

	for _, c := range candles {
		window = append(window, float64(c.Close))
		if len(window) > period {
			window = window[1:]
		}

		if len(window) < period {
			continue
		}

		mean, err := stats.Mean(window)
		if err != nil {
			return nil, fmt.Errorf("SMA: failed to calculate mean: %w", err)
		}

		out = append(out, eventmodels.Sma{Timestamp: c.CloseTimestamp, Price: eventmodels.Price(mean)})
	}

	return out, nil
}

// EMA seeds with the simple average of the first period closes and then
// applies the usual 2/(n+1) smoothing.
func EMA(candles []eventmodels.Ohlcv, period int) ([]eventmodels.Ema, error) {
	if err := validatePeriod(period); err != nil {
		return nil, fmt.Errorf("EMA: %w", err)
	}

	if len(candles) < period {
		return nil, nil
	}

	seed := make([]float64, 0, period)
	for _, c := range candles[:period] {
		seed = append(seed, float64(c.Close))
	}

	ema, err := stats.Mean(seed)
	if err != nil {
		return nil, fmt.Errorf("EMA: failed to calculate seed: %w", err)
	}

	k := 2.0 / float64(period+1)
	out := []eventmodels.Ema{{Timestamp: candles[period-1].CloseTimestamp, Price: eventmodels.Price(ema)}}

	for _, c := range candles[period:] {
		ema = (float64(c.Close)-ema)*k + ema
		out = append(out, eventmodels.Ema{Timestamp: c.CloseTimestamp, Price: eventmodels.Price(ema)})
	}

	return out, nil
}
