package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
	"github.com/jiaming2012/trading-gym/src/indicators"
)

// ReadCandlesCSV decodes the time,open,high,low,close[,volume] layout. The
// time column is the bar open; the close is derived from the period.
func ReadCandlesCSV(r io.Reader, id eventmodels.OhlcvID) ([]eventmodels.Ohlcv, error) {
	period, err := id.Period.Duration()
	if err != nil {
		return nil, fmt.Errorf("ReadCandlesCSV: %s: %w", id.Key(), err)
	}

	var dtos []*eventmodels.CsvCandleDTO
	if err := gocsv.Unmarshal(r, &dtos); err != nil {
		return nil, fmt.Errorf("ReadCandlesCSV: %s: failed to decode: %w", id.Key(), err)
	}

	candles := make([]eventmodels.Ohlcv, 0, len(dtos))
	for _, dto := range dtos {
		c, err := dto.ToModel(period)
		if err != nil {
			return nil, fmt.Errorf("ReadCandlesCSV: %s: %w", id.Key(), err)
		}

		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTimestamp.Before(candles[j].OpenTimestamp)
	})

	return candles, nil
}

func ReadTradePrintsCSV(r io.Reader, id eventmodels.TradesID) ([]eventmodels.TradePrint, error) {
	var dtos []*eventmodels.CsvTradePrintDTO
	if err := gocsv.Unmarshal(r, &dtos); err != nil {
		return nil, fmt.Errorf("ReadTradePrintsCSV: %s: failed to decode: %w", id.Key(), err)
	}

	prints := make([]eventmodels.TradePrint, 0, len(dtos))
	for _, dto := range dtos {
		p, err := dto.ToModel()
		if err != nil {
			return nil, fmt.Errorf("ReadTradePrintsCSV: %s: %w", id.Key(), err)
		}

		prints = append(prints, p)
	}

	sort.SliceStable(prints, func(i, j int) bool {
		return prints[i].Timestamp.Before(prints[j].Timestamp)
	})

	return prints, nil
}

func LoadCandlesCSV(path string, id eventmodels.OhlcvID) ([]eventmodels.Ohlcv, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCandlesCSV: %w", err)
	}
	defer f.Close()

	return ReadCandlesCSV(f, id)
}

func LoadTradePrintsCSV(path string, id eventmodels.TradesID) ([]eventmodels.TradePrint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTradePrintsCSV: %w", err)
	}
	defer f.Close()

	return ReadTradePrintsCSV(f, id)
}

// Dataset is everything a session needs to replay a config: the event data
// and the contract specs of the markets in it. It is read-only once built and
// may be shared by sessions running in parallel.
type Dataset struct {
	Name        string
	Data        *models.SimulationData
	Instruments *eventmodels.InstrumentCatalog
	Config      *BacktestConfigYAML
}

func addIndicator(b *models.SimulationDataBuilder, ind IndicatorYAML, candles []eventmodels.Ohlcv) error {
	switch strings.ToLower(ind.Kind) {
	case "sma":
		values, err := indicators.SMA(candles, ind.Length)
		if err != nil {
			return err
		}
		b.WithSma(eventmodels.SmaID{Parent: ind.Source, Length: ind.Length}, values)
	case "ema":
		values, err := indicators.EMA(candles, ind.Length)
		if err != nil {
			return err
		}
		b.WithEma(eventmodels.EmaID{Parent: ind.Source, Length: ind.Length}, values)
	case "rsi":
		values, err := indicators.RSI(candles, ind.Length)
		if err != nil {
			return err
		}
		b.WithRsi(eventmodels.RsiID{Parent: ind.Source, Length: ind.Length}, values)
	default:
		return fmt.Errorf("unknown indicator kind %q", ind.Kind)
	}

	return nil
}

// BuildDataset loads every configured source, derives the configured
// indicators and checks that each market has a known instrument.
func BuildDataset(cfg *BacktestConfigYAML) (*Dataset, error) {
	catalog := eventmodels.NewInstrumentCatalog()
	for _, inst := range cfg.Instruments {
		if err := catalog.Add(inst); err != nil {
			return nil, fmt.Errorf("BuildDataset: %w", err)
		}
	}

	builder := models.NewSimulationDataBuilder()
	candlesByID := map[eventmodels.OhlcvID][]eventmodels.Ohlcv{}

	for _, src := range cfg.Candles {
		candles, err := LoadCandlesCSV(cfg.ResolvePath(src.File), src.OhlcvID)
		if err != nil {
			return nil, fmt.Errorf("BuildDataset: %w", err)
		}

		log.Infof("loaded %d candles for %s", len(candles), src.OhlcvID.Key())
		candlesByID[src.OhlcvID] = candles
		builder.WithOhlcv(src.OhlcvID, candles)
	}

	for _, src := range cfg.Trades {
		prints, err := LoadTradePrintsCSV(cfg.ResolvePath(src.File), src.TradesID)
		if err != nil {
			return nil, fmt.Errorf("BuildDataset: %w", err)
		}

		log.Infof("loaded %d trade prints for %s", len(prints), src.TradesID.Key())
		builder.WithTrades(src.TradesID, prints)
	}

	for _, ind := range cfg.Indicators {
		candles, found := candlesByID[ind.Source]
		if !found {
			return nil, fmt.Errorf("BuildDataset: indicator %s: no candles loaded for %s", ind.Kind, ind.Source.Key())
		}

		if err := addIndicator(builder, ind, candles); err != nil {
			return nil, fmt.Errorf("BuildDataset: indicator %s on %s: %w", ind.Kind, ind.Source.Key(), err)
		}
	}

	data, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("BuildDataset: %w", err)
	}

	for _, market := range data.MarketIDs() {
		if _, err := catalog.Lookup(market.Symbol); err != nil {
			return nil, fmt.Errorf("BuildDataset: market %s: %w", market.Key(), err)
		}
	}

	log.WithFields(log.Fields{
		"name":        cfg.Name,
		"events":      data.EventCount(),
		"fingerprint": data.Fingerprint(),
	}).Info("dataset ready")

	return &Dataset{
		Name:        cfg.Name,
		Data:        data,
		Instruments: catalog,
		Config:      cfg,
	}, nil
}
