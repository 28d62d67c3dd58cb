package eventmodels

import "fmt"

type CsvTradePrintDTO struct {
	Timestamp string  `csv:"time"`
	Price     float64 `csv:"price"`
	Size      float64 `csv:"size"`
}

func (c *CsvTradePrintDTO) ToModel() (TradePrint, error) {
	t, err := parseCsvTimestamp(c.Timestamp)
	if err != nil {
		return TradePrint{}, fmt.Errorf("CsvTradePrintDTO.ToModel: %w", err)
	}

	if err := requireFinite(c.Timestamp, map[string]float64{"price": c.Price, "size": c.Size}); err != nil {
		return TradePrint{}, fmt.Errorf("CsvTradePrintDTO.ToModel: %w", err)
	}

	return TradePrint{
		Timestamp: t,
		Price:     Price(c.Price),
		Quantity:  Quantity(c.Size),
	}, nil
}
