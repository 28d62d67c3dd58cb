package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

const candlesCSV = `time,open,high,low,close,volume
2024-03-15T09:01:00Z,1.1000,1.1004,1.0999,1.1003,12
2024-03-15T09:00:00Z,1.1000,1.1002,1.0998,1.1000,10
2024-03-15T09:02:00Z,1.1003,1.1012,1.1001,1.1010,30
`

const tradesCSV = `time,price,size
2024-03-15T09:00:30Z,1.1001,2
2024-03-15T09:00:10Z,1.1000,1
`

func TestReadCSV(t *testing.T) {
	t.Run("candles are sorted and closed by the period", func(t *testing.T) {
		candles, err := ReadCandlesCSV(strings.NewReader(candlesCSV), eurOhlcvID)
		require.NoError(t, err)
		require.Len(t, candles, 3)

		require.Equal(t, at(9, 0), candles[0].OpenTimestamp)
		require.Equal(t, at(9, 1), candles[0].CloseTimestamp)
		require.Equal(t, eventmodels.Price(1.1012), candles[2].High)
		require.Equal(t, eventmodels.Quantity(12), candles[1].Volume)
	})

	t.Run("bad period", func(t *testing.T) {
		id := eurOhlcvID
		id.Period = "1x"

		_, err := ReadCandlesCSV(strings.NewReader(candlesCSV), id)
		require.Error(t, err)
	})

	t.Run("inverted bar", func(t *testing.T) {
		_, err := ReadCandlesCSV(strings.NewReader("time,open,high,low,close\n2024-03-15T09:00:00Z,1,1,2,1\n"), eurOhlcvID)
		require.Error(t, err)
	})

	t.Run("non-finite values are rejected", func(t *testing.T) {
		for _, row := range []string{
			"2024-03-15T09:00:00Z,NaN,1.1002,1.0998,1.1000,10",
			"2024-03-15T09:00:00Z,1.1000,+Inf,1.0998,1.1000,10",
			"2024-03-15T09:00:00Z,1.1000,1.1002,1.0998,NaN,10",
			"2024-03-15T09:00:00Z,1.1000,1.1002,1.0998,1.1000,NaN",
		} {
			_, err := ReadCandlesCSV(strings.NewReader("time,open,high,low,close,volume\n"+row+"\n"), eurOhlcvID)
			require.Error(t, err, row)
		}

		id := eventmodels.TradesID{Broker: eurMarket.Broker, Exchange: eurMarket.Exchange, Symbol: eurMarket.Symbol}
		_, err := ReadTradePrintsCSV(strings.NewReader("time,price,size\n2024-03-15T09:00:10Z,NaN,1\n"), id)
		require.Error(t, err)

		_, err = ReadTradePrintsCSV(strings.NewReader("time,price,size\n2024-03-15T09:00:10Z,1.1,-Inf\n"), id)
		require.Error(t, err)
	})

	t.Run("trade prints", func(t *testing.T) {
		id := eventmodels.TradesID{Broker: eurMarket.Broker, Exchange: eurMarket.Exchange, Symbol: eurMarket.Symbol}

		prints, err := ReadTradePrintsCSV(strings.NewReader(tradesCSV), id)
		require.NoError(t, err)
		require.Len(t, prints, 2)
		require.Equal(t, eventmodels.Price(1.1), prints[0].Price)
		require.Equal(t, eventmodels.Quantity(2), prints[1].Quantity)
	})
}

const configYAML = `name: eur-crossover
episode_length: weekly
execution_bias: optimistic
invalid_action_penalty: -5
instruments:
  - symbol: 6EZ5
    tick_size: 0.00005
    tick_value_usd: 6.25
candles:
  - broker: ninjatrader
    exchange: cme
    symbol: 6ez5
    period: 1m
    file: data/6ez5-1m.csv
indicators:
  - kind: sma
    length: 2
    source:
      broker: ninjatrader
      exchange: cme
      symbol: 6ez5
      period: 1m
  - kind: rsi
    length: 2
    source:
      broker: ninjatrader
      exchange: cme
      symbol: 6ez5
      period: 1m
agents:
  - id: crossover-1
    kind: crossover
    sma_length: 2
    quantity: 1
    stop_loss_ticks: 20
    take_profit_ticks: 40
    candles:
      broker: ninjatrader
      exchange: cme
      symbol: 6ez5
      period: 1m
output:
  journal_csv: out/journal.csv
`

func TestBacktestConfig(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		cfg, err := ParseBacktestConfig([]byte(configYAML))
		require.NoError(t, err)

		require.Equal(t, "eur-crossover", cfg.Name)
		require.Equal(t, models.EpisodeLengthWeek, cfg.EpisodeLength)
		require.Equal(t, models.ExecutionBiasOptimistic, cfg.ExecutionBias)
		require.Equal(t, -5.0, cfg.InvalidActionPenalty)
		require.Equal(t, eurOhlcvID, cfg.Candles[0].OhlcvID)
		require.Equal(t, eurOhlcvID, cfg.Agents[0].Candles)
		require.Equal(t, int64(40), cfg.Agents[0].TakeProfitTicks)
	})

	t.Run("rejects unknown episode length", func(t *testing.T) {
		_, err := ParseBacktestConfig([]byte("episode_length: fortnight\ncandles: [{file: a.csv}]\n"))
		require.Error(t, err)
	})

	t.Run("rejects duplicate agents", func(t *testing.T) {
		_, err := ParseBacktestConfig([]byte("candles: [{file: a.csv}]\nagents: [{id: a}, {id: a}]\n"))
		require.Error(t, err)
	})

	t.Run("load and build the dataset", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "6ez5-1m.csv"), []byte(candlesCSV), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "backtest.yaml"), []byte(configYAML), 0644))

		cfg, err := LoadBacktestConfig(filepath.Join(dir, "backtest.yaml"))
		require.NoError(t, err)

		dataset, err := BuildDataset(cfg)
		require.NoError(t, err)
		require.Equal(t, []eventmodels.MarketID{eurMarket}, dataset.Data.MarketIDs())
		// 3 candles, 2 sma values, 1 rsi value
		require.Equal(t, 6, dataset.Data.EventCount())
		require.NotEmpty(t, dataset.Data.Fingerprint())

		inst, err := dataset.Instruments.Lookup("6ez5")
		require.NoError(t, err)
		require.Equal(t, 6.25, inst.TickValueUSD)
	})

	t.Run("missing data file", func(t *testing.T) {
		cfg, err := ParseBacktestConfig([]byte(configYAML))
		require.NoError(t, err)

		_, err = BuildDataset(cfg)
		require.Error(t, err)
	})
}
