package indicators

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// Rsi is Wilder's relative strength index over closing prices. The first
// value averages the initial Period deltas; later values use Wilder smoothing.
type Rsi struct {
	prevAvgGain *float64
	prevAvgLoss *float64
	closes      []float64
	Period      int
}

func NewRsi(period int) *Rsi {
	return &Rsi{
		Period: period,
	}
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}

	return 0, math.Abs(delta)
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func (r *Rsi) seed() error {
	gains := make([]float64, 0, r.Period)
	losses := make([]float64, 0, r.Period)

	for i := 1; i < len(r.closes); i++ {
		gain, loss := split(r.closes[i] - r.closes[i-1])
		gains = append(gains, gain)
		losses = append(losses, loss)
	}

	avgGain, err := stats.Mean(gains)
	if err != nil {
		return fmt.Errorf("failed to calculate average gain: %w", err)
	}

	avgLoss, err := stats.Mean(losses)
	if err != nil {
		return fmt.Errorf("failed to calculate average loss: %w", err)
	}

	r.prevAvgGain = &avgGain
	r.prevAvgLoss = &avgLoss
	return nil
}

// Update feeds one close. ok is false until Period+1 closes have been seen.
func (r *Rsi) Update(close float64) (value float64, ok bool, err error) {
	if r.Period <= 0 {
		return 0, false, fmt.Errorf("Rsi.Update: period must be positive, got %d", r.Period)
	}

	r.closes = append(r.closes, close)

	if r.prevAvgGain == nil {
		if len(r.closes) < r.Period+1 {
			return 0, false, nil
		}

		if err := r.seed(); err != nil {
			return 0, false, fmt.Errorf("Rsi.Update: %w", err)
		}

		r.closes = r.closes[len(r.closes)-1:]
		return rsiFromAverages(*r.prevAvgGain, *r.prevAvgLoss), true, nil
	}

	gain, loss := split(r.closes[1] - r.closes[0])
	r.closes = r.closes[1:]

	n := float64(r.Period)
	avgGain := (*r.prevAvgGain*(n-1) + gain) / n
	avgLoss := (*r.prevAvgLoss*(n-1) + loss) / n
	r.prevAvgGain = &avgGain
	r.prevAvgLoss = &avgLoss

	return rsiFromAverages(avgGain, avgLoss), true, nil
}

// RSI derives an rsi stream from candles. Each value is stamped with the
// close of the bar it was computed from.
func RSI(candles []eventmodels.Ohlcv, period int) ([]eventmodels.Rsi, error) {
	rsi := NewRsi(period)
	var out []eventmodels.Rsi

	for _, c := range candles {
		v, ok, err := rsi.Update(float64(c.Close))
		if err != nil {
			return nil, fmt.Errorf("RSI: %w", err)
		}

		if ok {
			out = append(out, eventmodels.Rsi{Timestamp: c.CloseTimestamp, Value: v})
		}
	}

	return out, nil
}
