package eventmodels

import "time"

type EconomicImpact int

const (
	EconomicImpactNone EconomicImpact = iota
	EconomicImpactLow
	EconomicImpactMedium
	EconomicImpactHigh
)

// EconomicEvent is a scheduled macro release (NFP, CPI, rate decisions).
type EconomicEvent struct {
	Timestamp    time.Time      `json:"timestamp"`
	DataSource   string         `json:"data_source"`
	Category     string         `json:"category"`
	NewsName     string         `json:"news_name"`
	CountryCode  string         `json:"country_code"`
	CurrencyCode string         `json:"currency_code"`
	Impact       EconomicImpact `json:"impact"`
	Actual       *float64       `json:"actual,omitempty"`
	Forecast     *float64       `json:"forecast,omitempty"`
	Previous     *float64       `json:"previous,omitempty"`
}

func (e EconomicEvent) PointInTime() time.Time {
	return e.Timestamp
}

func (e EconomicEvent) OpenedAt() time.Time {
	return e.Timestamp
}

// Surprise is actual minus forecast, when both are published.
func (e EconomicEvent) Surprise() (float64, bool) {
	if e.Actual == nil || e.Forecast == nil {
		return 0, false
	}

	return *e.Actual - *e.Forecast, true
}
